// Package encryption provides envelope encryption for PII carried in audit
// event details. A data key is generated through KMS (or locally in
// development), cached, and used for AES-GCM field encryption.
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"banking-service/internal/config"
	"banking-service/internal/util"
)

var ErrEncryptionFailed = errors.New("encryption failed")

type dataKey struct {
	plaintext  []byte
	ciphertext []byte
	keyID      string
}

// Manager encrypts individual field values with a cached data key.
type Manager struct {
	kmsClient *kms.Client
	cfg       config.KMSConfig

	mu  sync.Mutex
	key *dataKey
}

// NewManager builds a Manager. When KMS is disabled the data key is
// generated locally, which protects nothing at rest but keeps the wire
// format identical in development.
func NewManager(ctx context.Context, cfg config.KMSConfig) (*Manager, error) {
	m := &Manager{cfg: cfg}

	if cfg.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		m.kmsClient = kms.NewFromConfig(awsCfg)
	}

	return m, nil
}

// EncryptField encrypts one value and returns
// base64(nonce||ciphertext) prefixed with the key ID.
func (m *Manager) EncryptField(ctx context.Context, plaintext string) (string, error) {
	key, err := m.currentKey(ctx)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key.plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return key.keyID + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

func (m *Manager) currentKey(ctx context.Context) (*dataKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key != nil {
		return m.key, nil
	}

	if m.kmsClient == nil {
		m.key = generateLocalKey()
		util.Warn("KMS disabled, using locally generated data key")
		return m.key, nil
	}

	out, err := m.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(m.cfg.KeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	m.key = &dataKey{
		plaintext:  out.Plaintext,
		ciphertext: out.CiphertextBlob,
		keyID:      m.cfg.KeyID,
	}
	util.Info("KMS data key generated", util.String("key_id", m.cfg.KeyID))
	return m.key, nil
}

func generateLocalKey() *dataKey {
	key := make([]byte, 32) // AES-256
	if _, err := rand.Read(key); err != nil {
		util.Fatal("Failed to generate local encryption key", util.ErrorField(err))
	}
	return &dataKey{
		plaintext:  key,
		ciphertext: []byte(base64.StdEncoding.EncodeToString(key)),
		keyID:      "local",
	}
}
