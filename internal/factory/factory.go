package factory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"life-auth/internal/client"
	"life-auth/internal/config"
	"life-auth/internal/hashing"
	"life-auth/internal/repository"
	"life-auth/internal/repository/memory"
	redisrepo "life-auth/internal/repository/redis"
	"life-auth/internal/repository/scylla"
	"life-auth/internal/service"
	"life-auth/internal/sms"
	"life-auth/internal/tls"
	"life-auth/internal/token"
	"life-auth/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients, nil when the configured backends don't need them.
	redisClient   *client.RedisClient
	scyllaClient  *scylla.ScyllaClient
	kafkaProducer *client.KafkaProducer

	hasher *hashing.Hasher

	codeStore      repository.CodeStore
	userDirectory  repository.UserDirectory
	tokenIssuer    token.Issuer
	smsSender      sms.Sender
	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration and builds every dependency it selects.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return New(cfg)
}

// New builds the dependencies for an already loaded cfg.
func New(cfg *config.Config) (*Factory, error) {
	f := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewTLSManager(cfg)
	}

	if err := f.initializeClients(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeComponents(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("code_store", cfg.Storage.CodeStore),
		util.String("user_store", cfg.Storage.UserStore),
		util.String("sms_sender", cfg.SMS.Sender),
		util.String("token_mode", cfg.Auth.TokenMode),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
	)
	return f, nil
}

// initializeClients connects only to the backends the config selects.
func (f *Factory) initializeClients() error {
	var err error

	if f.config.Storage.CodeStore == "redis" {
		if f.redisClient, err = client.NewRedisClient(f.config); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if f.config.Storage.UserStore == "scylla" {
		if f.scyllaClient, err = scylla.NewScyllaClient(f.config); err != nil {
			return fmt.Errorf("scylla: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := f.scyllaClient.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("scylla: %w", err)
		}
	}

	if f.config.SMS.Sender == "kafka" {
		if f.kafkaProducer, err = client.NewKafkaProducer(f.config); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errs := f.HealthCheck(ctx); len(errs) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("dependency health check failed: %w", joinHealth(errs))
		}
		for name, err := range errs {
			util.Warn("Dependency unhealthy at startup", util.String("dependency", name), util.ErrorField(err))
		}
	}
	return nil
}

func (f *Factory) initializeComponents() error {
	auth := f.config.Auth

	switch f.config.Storage.CodeStore {
	case "redis":
		hasher, err := hashing.NewHasher(auth.CodePepper)
		if err != nil {
			return err
		}
		f.hasher = hasher
		f.codeStore = redisrepo.NewCodeStore(f.redisClient, hasher, auth.CodeTTL, auth.ExpiredRetention)
	default:
		f.codeStore = memory.NewCodeStore(auth.CodeTTL)
	}

	switch f.config.Storage.UserStore {
	case "scylla":
		f.userDirectory = scylla.NewUserRepository(f.scyllaClient)
	default:
		f.userDirectory = memory.NewUserDirectory()
	}

	switch f.config.SMS.Sender {
	case "kafka":
		f.smsSender = sms.NewKafkaSender(f.kafkaProducer, f.config.SMS.Topic, auth.CodeTTL)
	default:
		f.smsSender = sms.NewLogSender(util.Named("sms"))
	}

	secret := auth.JWTSecret
	if auth.TokenMode == token.ModeJWT && secret == "" {
		secret = ephemeralSecret()
		util.Warn("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}
	if auth.TokenMode == token.ModeOpaque {
		util.Warn("Opaque tokens carry no signature and cannot be verified")
	}
	issuer, err := token.NewIssuer(auth.TokenMode, secret, auth.TokenTTL)
	if err != nil {
		return err
	}
	f.tokenIssuer = issuer

	return nil
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.codeStore,
			f.userDirectory,
			f.tokenIssuer,
			f.smsSender,
			f.config.ExposeCodes(),
			util.Get(),
		)
	}
	return f.serviceFactory
}

// HealthCheck probes every initialized remote dependency concurrently and
// returns the failures by name.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	checks := map[string]repository.HealthChecker{}
	if f.redisClient != nil {
		checks["redis"] = f.redisClient
	}
	if f.scyllaClient != nil {
		checks["scylla"] = f.scyllaClient
	}
	if f.kafkaProducer != nil {
		checks["kafka"] = f.kafkaProducer
	}

	var mu sync.Mutex
	healthErrors := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	for name, c := range checks {
		name, c := name, c
		g.Go(func() error {
			if err := c.HealthCheck(gctx); err != nil {
				mu.Lock()
				healthErrors[name] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	return len(f.HealthCheck(ctx)) == 0
}

func joinHealth(errs map[string]error) error {
	all := make([]error, 0, len(errs))
	for name, err := range errs {
		all = append(all, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(all...)
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

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
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})
	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) CodeStore() repository.CodeStore {
	return f.codeStore
}

func (f *Factory) UserDirectory() repository.UserDirectory {
	return f.userDirectory
}
