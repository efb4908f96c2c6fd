package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/newsdesk/internal/backup"
	"github.com/starford/newsdesk/internal/editor"
	"github.com/starford/newsdesk/internal/images"
	"github.com/starford/newsdesk/internal/metrics"
	"github.com/starford/newsdesk/internal/remote"
	"github.com/starford/newsdesk/internal/remote/github"
	"github.com/starford/newsdesk/internal/remote/gitstore"
	"github.com/starford/newsdesk/internal/sse"
	"github.com/starford/newsdesk/internal/storage"
)

const remoteEventThrottle = 2 * time.Second

// components is the object graph shared by the serve, mcp and backup
// commands.
type components struct {
	cfg      *Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	repo     *gitstore.Store
	ctl      *editor.Controller
	broker   *sse.Broker
	files    *storage.FS
	ledger   *backup.Ledger
	exporter *backup.Exporter
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) build() (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("remote", cfg.Remote.Provider),
		slog.String("branch", cfg.Remote.Branch),
		slog.String("path", cfg.Remote.Path),
		slog.String("image_sink", cfg.Images.Sink),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c := &components{cfg: cfg, logger: logger, metrics: metrics.New()}

	store, err := c.openRemote()
	if err != nil {
		return nil, err
	}
	store = c.metrics.InstrumentStore(store)

	uploader, err := c.newUploader(store)
	if err != nil {
		return nil, err
	}

	c.broker = sse.NewBroker(remoteEventThrottle)
	c.ctl = editor.New(store, editor.Config{
		Path:          cfg.Remote.Path,
		Branch:        cfg.Remote.Branch,
		CommitMessage: cfg.Remote.CommitMessage,
		DailyBase:     cfg.Remote.DailyBase,
		Location:      cfg.Remote.Location(),
	},
		editor.WithLogger(logger),
		editor.WithObserver(c.metrics),
		editor.WithNotifier(func(s editor.Status) { c.broker.PublishStatus(s) }),
		editor.WithUploader(uploader),
	)

	c.files, err = storage.NewFS(cfg.Backup.Dir)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("init backup dir: %w", err)
	}
	c.ledger, err = backup.OpenLedger(cfg.Backup.DBPath)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("init backup ledger: %w", err)
	}
	c.exporter = backup.NewExporter(c.files, c.ledger, c.ctl, cfg.Backup.Keep, logger)
	c.exporter.Observe(c.metrics.ObserveBackup)

	return c, nil
}

func (c *components) openRemote() (remote.Store, error) {
	rc := c.cfg.Remote
	switch rc.Provider {
	case RemoteGitHub:
		return github.New(github.Config{
			BaseURL:           rc.GitHub.BaseURL,
			Owner:             rc.GitHub.Owner,
			Repo:              rc.GitHub.Repo,
			Token:             rc.GitHub.Token,
			RequestsPerSecond: rc.GitHub.RequestsPerSecond,
			Timeout:           rc.Timeout,
		}, c.logger), nil
	case RemoteGit:
		author := gitstore.Author{Name: rc.Git.AuthorName, Email: rc.Git.AuthorEmail}
		var (
			repo *gitstore.Store
			err  error
		)
		if rc.Git.Init {
			repo, err = gitstore.Init(rc.Git.Dir, rc.Branch, author, c.logger)
		} else {
			repo, err = gitstore.Open(rc.Git.Dir, author, c.logger)
		}
		if err != nil {
			return nil, fmt.Errorf("init git remote: %w", err)
		}
		c.repo = repo
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown remote provider %q", rc.Provider)
	}
}

func (c *components) newUploader(store remote.Store) (*images.Uploader, error) {
	ic := c.cfg.Images
	var sink images.Sink
	switch ic.Sink {
	case SinkS3:
		s3, err := images.NewS3Sink(images.S3Config{
			Endpoint:  ic.S3.Endpoint,
			Bucket:    ic.S3.Bucket,
			AccessKey: ic.S3.AccessKey,
			SecretKey: ic.S3.SecretKey,
			UseSSL:    ic.S3.UseSSL,
			BaseURL:   ic.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init image sink: %w", err)
		}
		sink = s3
	default:
		sink = images.NewRemoteSink(store, c.cfg.Remote.Branch, "", ic.BaseURL)
	}
	tc := images.NewTranscoder(ic.MaxWidth, ic.MaxHeight)
	tc.MaxPixels = ic.MaxPixels
	return images.NewUploader(sink, tc,
		images.UploaderConfig{Folder: ic.Folder, Quality: ic.Quality},
		nil, c.logger), nil
}

func (c *components) close() {
	if c.broker != nil {
		c.broker.Close()
	}
	if c.ledger != nil {
		if err := c.ledger.Close(); err != nil {
			c.logger.Warn("close backup ledger", slog.String("error", err.Error()))
		}
	}
	if c.files != nil {
		_ = c.files.Close()
	}
}
