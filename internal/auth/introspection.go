package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"banking-service/internal/config"
	"banking-service/internal/util"
)

// IntrospectionVerifier verifies tokens by calling the identity provider's
// RFC 7662 introspection endpoint.
type IntrospectionVerifier struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewIntrospectionVerifier(cfg config.AuthConfig) *IntrospectionVerifier {
	return &IntrospectionVerifier{
		endpoint:     cfg.IntrospectionURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

type introspectionResponse struct {
	Active            bool   `json:"active"`
	Subject           string `json:"sub"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

func (v *IntrospectionVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(v.clientID, v.clientSecret)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.Warn("Identity provider rejected introspection call",
			util.Int("status", resp.StatusCode))
		return nil, ErrInvalidToken
	}

	var body introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	if !body.Active {
		return nil, ErrInvalidToken
	}

	claims := map[string]string{}
	if body.Email != "" {
		claims["email"] = body.Email
	}
	if body.PreferredUsername != "" {
		claims["preferred_username"] = body.PreferredUsername
	}
	if body.Username != "" {
		claims["username"] = body.Username
	}

	return &Principal{Subject: body.Subject, Claims: claims}, nil
}

// StaticVerifier maps fixed tokens to principals. Used in development and
// tests, where no identity provider is running.
type StaticVerifier struct {
	tokens map[string]*Principal
}

func NewStaticVerifier(tokens map[string]*Principal) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	if p, ok := v.tokens[token]; ok {
		return p, nil
	}
	return nil, ErrInvalidToken
}
