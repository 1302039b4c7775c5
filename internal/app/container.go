package app

import (
	"context"
	"fmt"

	"github.com/ochronus/goustream/internal/config"
	"github.com/ochronus/goustream/internal/services/api"
	"github.com/ochronus/goustream/internal/services/ftp"
	"github.com/ochronus/goustream/internal/services/media"
	"github.com/ochronus/goustream/internal/services/retry"
	"github.com/ochronus/goustream/internal/upload"
	"github.com/sirupsen/logrus"
)

// Container centralizes the core dependencies used across the application.
// It is intentionally small and uses interfaces so callers (and tests) can
// substitute implementations easily.
type Container struct {
	Config      *config.Config
	Logger      *logrus.Logger
	Requester   api.Requester
	Dialer      upload.Dialer
	Media       media.ClientAPI
	Uploader    *upload.Orchestrator
	ValidateAPI bool
}

// Option allows customizing the container during construction.
type Option func(*Container) error

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithRequester overrides the authenticated API client.
func WithRequester(requester api.Requester) Option {
	return func(c *Container) error {
		if requester == nil {
			return fmt.Errorf("requester cannot be nil")
		}
		c.Requester = requester
		return nil
	}
}

// WithDialer overrides the FTP dialer used for uploads.
func WithDialer(dialer upload.Dialer) Option {
	return func(c *Container) error {
		if dialer == nil {
			return fmt.Errorf("dialer cannot be nil")
		}
		c.Dialer = dialer
		return nil
	}
}

// WithAPIValidation enables or disables the credential check (default: enabled).
func WithAPIValidation(validate bool) Option {
	return func(c *Container) error {
		c.ValidateAPI = validate
		return nil
	}
}

// NewContainer builds a Container with sensible defaults derived from cfg.
// Options can be supplied to override specific dependencies (useful in tests).
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container := &Container{
		Config:      cfg,
		Logger:      BuildLogger(cfg.Loglevel),
		ValidateAPI: true,
	}

	// Apply options early so tests can inject fakes before defaults are created.
	for _, opt := range opts {
		if err := opt(container); err != nil {
			return nil, err
		}
	}

	if container.Requester == nil {
		container.Requester = buildRequester(ctx, cfg, container.Logger)
	}
	if container.Dialer == nil {
		container.Dialer = ftp.NewDialer(cfg.FTPTimeout(), cfg.FTP.DisableEPSV, container.Logger)
	}

	container.Media = media.NewClient(container.Requester)
	container.Uploader = upload.NewOrchestrator(container.Requester, container.Dialer, container.Logger)

	if container.ValidateAPI {
		user, err := container.Media.CurrentUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to verify API credentials: %w", err)
		}
		container.Logger.Debugf("authenticated as %s (%s)", user.Username, user.ID)
	}

	return container, nil
}

// BuildLogger returns the application logger at levelStr, falling back to info.
func BuildLogger(levelStr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func buildRequester(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *api.Client {
	creds := api.Credentials{
		AccessToken:  cfg.API.AccessToken,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
		TokenURL:     cfg.API.TokenURL,
		Scopes:       cfg.API.Scopes,
	}
	return api.NewClient(
		cfg.API.BaseURL,
		api.HTTPClient(ctx, creds, cfg.APITimeout()),
		api.WithRetry(retry.Config{MaxAttempts: cfg.API.MaxRetries}),
		api.WithLogger(logger),
	)
}
