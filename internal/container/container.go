package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	database "github.com/FACorreiaa/go-identity-service/app/db"
	"github.com/FACorreiaa/go-identity-service/config"
	"github.com/FACorreiaa/go-identity-service/internal/api/auth"
	"github.com/FACorreiaa/go-identity-service/internal/api/user"
	"github.com/FACorreiaa/go-identity-service/internal/cache"
	"github.com/FACorreiaa/go-identity-service/internal/gateway/mail"
	"github.com/FACorreiaa/go-identity-service/internal/gateway/media"
	"github.com/FACorreiaa/go-identity-service/internal/password"
	"github.com/FACorreiaa/go-identity-service/internal/router"
	"github.com/FACorreiaa/go-identity-service/internal/token"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Tokens      *token.Service
	Notifier    mail.Notifier
	Media       media.Store
	Cache       cache.DirectoryCache
	AuthService *auth.AuthServiceImpl
	UserService *user.UserServiceImpl
	AuthHandler *auth.AuthHandler
	UserHandler *user.HandlerImpl

	closers []io.Closer
}

// Gateways are the outward-facing collaborators the services are built on.
// A nil Notifier, Media or Cache gets the log notifier, the disabled store and
// the no-op cache respectively.
type Gateways struct {
	Users    user.UserRepo
	Notifier mail.Notifier
	Media    media.Store
	Cache    cache.DirectoryCache
}

// NewContainer connects to Postgres and builds every gateway named in cfg.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	var closers []io.Closer
	fail := func(err error) (*Container, error) {
		for _, c := range closers {
			_ = c.Close()
		}
		pool.Close()
		return nil, err
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return fail(err)
	}
	if c, ok := notifier.(io.Closer); ok {
		closers = append(closers, c)
	}

	store, err := newMediaStore(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}

	dirCache, err := newDirectoryCache(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, dirCache)

	c := Assemble(cfg, logger, Gateways{
		Users:    user.NewPostgresUserRepo(pool, logger),
		Notifier: notifier,
		Media:    store,
		Cache:    dirCache,
	})
	c.Pool = pool
	c.closers = closers
	return c, nil
}

// Assemble builds services and handlers on top of already constructed gateways.
func Assemble(cfg *config.Config, logger *slog.Logger, gw Gateways) *Container {
	if gw.Notifier == nil {
		gw.Notifier = mail.NewLogNotifier(logger, mail.Links{BaseURL: cfg.Mail.AppBaseURL})
	}
	if gw.Media == nil {
		gw.Media = media.DisabledStore{}
	}
	if gw.Cache == nil {
		gw.Cache = cache.NoopDirectoryCache{}
	}

	codec := password.NewBcryptCodec(cfg.Password.Cost, cfg.Password.MaxConcurrent)
	tokens := token.NewService(cfg.JWT.Issuer, map[types.TokenPurpose]string{
		types.PurposeSession:       cfg.JWT.SessionSecret,
		types.PurposeEmailVerify:   cfg.JWT.EmailVerifySecret,
		types.PurposePasswordReset: cfg.JWT.PasswordResetSecret,
	})

	authService := auth.NewAuthService(auth.Deps{
		Users:    gw.Users,
		Codec:    codec,
		Tokens:   tokens,
		Notifier: gw.Notifier,
		Media:    gw.Media,
		Cache:    gw.Cache,
		TTLs: auth.TokenTTLs{
			Session:       cfg.JWT.SessionTTL,
			EmailVerify:   cfg.JWT.EmailVerifyTTL,
			PasswordReset: cfg.JWT.PasswordResetTTL,
		},
	}, logger)
	userService := user.NewUserService(gw.Users, codec, gw.Media, gw.Cache, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Tokens:      tokens,
		Notifier:    gw.Notifier,
		Media:       gw.Media,
		Cache:       gw.Cache,
		AuthService: authService,
		UserService: userService,
		AuthHandler: auth.NewAuthHandler(authService, logger, cfg.Media.MaxBytes),
		UserHandler: user.NewHandlerImpl(userService, logger, cfg.Media.MaxBytes),
	}
}

// Router returns the HTTP surface served by this container.
func (c *Container) Router() chi.Router {
	return router.SetupRouter(&router.Config{
		AuthHandler:    c.AuthHandler,
		UserHandler:    c.UserHandler,
		Tokens:         c.Tokens,
		Logger:         c.Logger,
		AllowedOrigins: c.Config.CORS.AllowedOrigins,
		ServiceName:    c.Config.Observability.ServiceName,
		RequestTimeout: c.Config.Server.Timeout,
	})
}

// Close releases all resources held by the container
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	return errors.Join(errs...)
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (mail.Notifier, error) {
	links := mail.Links{BaseURL: cfg.Mail.AppBaseURL}
	switch cfg.Mail.Driver {
	case "smtp":
		n, err := mail.NewSMTPNotifier(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			Timeout:  cfg.Mail.Timeout,
		}, links, logger)
		if err != nil {
			return nil, fmt.Errorf("mail gateway: %w", err)
		}
		logger.Info("Mail gateway ready", slog.String("driver", "smtp"), slog.String("host", cfg.Mail.Host))
		return n, nil
	default:
		logger.Warn("Mail gateway logs links instead of sending them", slog.String("driver", "log"))
		return mail.NewLogNotifier(logger, links), nil
	}
}

func newMediaStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (media.Store, error) {
	if cfg.Media.Driver != "s3" {
		logger.Info("Media gateway disabled, photo uploads will be rejected")
		return media.DisabledStore{}, nil
	}
	store, err := media.NewS3Store(ctx, media.S3Config{
		Bucket:        cfg.Media.Bucket,
		Region:        cfg.Media.Region,
		Endpoint:      cfg.Media.Endpoint,
		AccessKey:     cfg.Media.AccessKey,
		SecretKey:     cfg.Media.SecretKey,
		PublicBaseURL: cfg.Media.PublicBaseURL,
		PathStyle:     cfg.Media.PathStyle,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("media gateway: %w", err)
	}
	logger.Info("Media gateway ready", slog.String("bucket", cfg.Media.Bucket))
	return store, nil
}

func newDirectoryCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.DirectoryCache, error) {
	switch cfg.Cache.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Repositories.Redis.Addr,
			Password: cfg.Repositories.Redis.Password,
			DB:       cfg.Repositories.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("cache gateway: redis ping: %w", err)
		}
		logger.Info("Directory cache ready", slog.String("driver", "redis"), slog.String("addr", cfg.Repositories.Redis.Addr))
		return cache.NewRedisDirectoryCache(client, cfg.Cache.Key, cfg.Cache.TTL, logger), nil
	default:
		return cache.NewMemoryDirectoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval), nil
	}
}
