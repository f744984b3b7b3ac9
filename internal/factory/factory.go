package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"banking-service/internal/audit"
	"banking-service/internal/auth"
	"banking-service/internal/client"
	"banking-service/internal/config"
	"banking-service/internal/encryption"
	"banking-service/internal/gatekeeper"
	"banking-service/internal/repository/scylla"
	"banking-service/internal/service"
	"banking-service/internal/tls"
	"banking-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	encryptionManager *encryption.Manager

	// Repositories
	userRepository        *scylla.UserRepository
	accountRepository     *scylla.AccountRepository
	transactionRepository *scylla.TransactionRepository

	// Services
	userService        *service.UserService
	accountService     *service.AccountService
	transactionService *service.TransactionService

	// Gatekeeper
	limiter  gatekeeper.RateLimiter
	trail    *audit.Trail
	pipeline *gatekeeper.Pipeline

	janitorCancel context.CancelFunc
	closeOnce     sync.Once
	closed        chan struct{}
}

// NewFactory creates and initializes all application dependencies.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewManager(&tls.Config{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		})
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeGatekeeper(); err != nil {
		return nil, fmt.Errorf("failed to initialize gatekeeper: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("rate_limit_backend", cfg.RateLimit.Backend),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes the external service clients the current
// configuration actually needs, then health-checks them concurrently.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ScyllaDB backs the user/account/transaction repositories and is
	// always required.
	scyllaClient, err := scylla.NewScyllaClient(f.config)
	if err != nil {
		return fmt.Errorf("scylla: %w", err)
	}
	f.scyllaClient = scyllaClient

	if f.config.RateLimit.Backend == "redis" {
		redisClient, err := client.NewRedisClient(f.config)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = redisClient
	}

	if f.config.Audit.KafkaEnabled {
		producer, err := client.NewKafkaProducer(f.config)
		if err != nil {
			util.Warn("Kafka producer initialization failed, audit events will not reach Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	if f.config.Audit.ClickhouseEnabled {
		chClient, err := client.NewClickHouseClient(f.config)
		if err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		f.clickhouseClient = chClient
	}

	if f.config.Audit.ElasticEnabled {
		esClient, err := client.NewElasticsearchClient(f.config)
		if err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
		f.esClient = esClient
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			return fmt.Errorf("scylla health check: %w", err)
		}
		return nil
	})
	if f.redisClient != nil {
		g.Go(func() error {
			if err := f.redisClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("redis health check: %w", err)
			}
			return nil
		})
	}
	if f.clickhouseClient != nil {
		g.Go(func() error {
			if err := f.clickhouseClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("clickhouse health check: %w", err)
			}
			return nil
		})
	}
	if f.esClient != nil {
		g.Go(func() error {
			if err := f.esClient.HealthCheck(); err != nil {
				return fmt.Errorf("elasticsearch health check: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if f.config.IsProduction() {
			return err
		}
		util.Warn("Service health check warning", util.ErrorField(err))
	}

	util.Info("Clients initialized and healthy")
	return nil
}

// initializeGatekeeper wires the rate limiter, audit trail and request
// pipeline from the initialized clients.
func (f *Factory) initializeGatekeeper() error {
	cfg := f.config

	switch cfg.RateLimit.Backend {
	case "redis":
		f.limiter = gatekeeper.NewRedisLimiter(f.redisClient.Client, cfg.RateLimit.IdleEviction)
	default:
		memLimiter := gatekeeper.NewMemoryLimiter(cfg.RateLimit.CacheMaxSize, cfg.RateLimit.IdleEviction)
		janitorCtx, cancel := context.WithCancel(context.Background())
		f.janitorCancel = cancel
		memLimiter.StartJanitor(janitorCtx, cfg.RateLimit.IdleEviction/4)
		f.limiter = memLimiter
	}

	sinks := []audit.Sink{audit.NewLogSink(util.Get())}
	if f.kafkaProducer != nil {
		sinks = append(sinks, audit.NewKafkaSink(f.kafkaProducer, cfg.Audit.KafkaTopic))
	}
	if f.clickhouseClient != nil {
		sinks = append(sinks, audit.NewClickHouseSink(f.clickhouseClient, cfg.Audit.ClickhouseTable))
	}
	if f.esClient != nil {
		sinks = append(sinks, audit.NewElasticSink(f.esClient, cfg.Audit.ElasticIndex))
	}

	var trailOpts []audit.TrailOption
	if cfg.Audit.EncryptDetails {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager, err := encryption.NewManager(ctx, cfg.KMS)
		if err != nil {
			return fmt.Errorf("encryption manager: %w", err)
		}
		f.encryptionManager = manager
		trailOpts = append(trailOpts, audit.WithEncryptor(manager))
	}
	f.trail = audit.NewTrail(cfg.Audit.QueueSize, util.Get(), sinks, trailOpts...)

	policies := gatekeeper.NewPolicySet(cfg.RateLimit)
	classifier := gatekeeper.NewClassifier(policies,
		cfg.RateLimit.SkipPrefixes, cfg.RateLimit.StaticExtensions)
	authorizer := gatekeeper.NewAuthorizer(f.UserRepository(), f.AccountRepository())

	var verifier auth.Verifier
	if cfg.Auth.IntrospectionURL != "" {
		verifier = auth.NewIntrospectionVerifier(cfg.Auth)
	} else {
		util.Warn("No token introspection endpoint configured, all tokens will be rejected")
		verifier = auth.NewStaticVerifier(nil)
	}

	f.pipeline = gatekeeper.NewPipeline(
		f.limiter,
		classifier,
		verifier,
		authorizer,
		f.trail,
		cfg.RateLimit.RetryAfter,
		util.Get(),
	)
	return nil
}

func (f *Factory) UserRepository() *scylla.UserRepository {
	if f.userRepository == nil {
		f.userRepository = scylla.NewUserRepository(f.scyllaClient)
	}
	return f.userRepository
}

func (f *Factory) AccountRepository() *scylla.AccountRepository {
	if f.accountRepository == nil {
		f.accountRepository = scylla.NewAccountRepository(f.scyllaClient)
	}
	return f.accountRepository
}

func (f *Factory) TransactionRepository() *scylla.TransactionRepository {
	if f.transactionRepository == nil {
		f.transactionRepository = scylla.NewTransactionRepository(f.scyllaClient)
	}
	return f.transactionRepository
}

func (f *Factory) UserService() *service.UserService {
	if f.userService == nil {
		f.userService = service.NewUserService(f.UserRepository(), util.Get())
	}
	return f.userService
}

func (f *Factory) AccountService() *service.AccountService {
	if f.accountService == nil {
		f.accountService = service.NewAccountService(f.AccountRepository(), f.UserRepository(), util.Get())
	}
	return f.accountService
}

func (f *Factory) TransactionService() *service.TransactionService {
	if f.transactionService == nil {
		f.transactionService = service.NewTransactionService(
			f.TransactionRepository(), f.AccountRepository(), util.Get())
	}
	return f.transactionService
}

func (f *Factory) Pipeline() *gatekeeper.Pipeline {
	return f.pipeline
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}

// HealthCheck reports the health of every initialized client.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

// Close shuts down the audit trail first so queued events flush before
// their sinks lose their clients.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.janitorCancel != nil {
			f.janitorCancel()
		}

		if f.trail != nil {
			f.trail.Close()
			util.Info("Audit trail flushed and closed")
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}
		if f.esClient != nil {
			f.esClient.Close()
		}
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}
