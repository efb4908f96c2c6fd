package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/robfig/cron/v3"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Remote providers.
const (
	RemoteGitHub = "github"
	RemoteGit    = "git"
)

// Image sinks.
const (
	SinkRemote = "remote"
	SinkS3     = "s3"
)

var (
	jsonPath   = regexp.MustCompile(`^[^\s]+\.json$`)
	branchName = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Remote RemoteConfig      `yaml:"remote"`
	Images ImagesConfig      `yaml:"images"`
	Backup BackupConfig      `yaml:"backup"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if err := c.Images.Validate(); err != nil {
		return err
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RemoteConfig selects the repository holding the collection files.
//
// Path is the collection file loaded by default. When it is empty the
// session opens today's file under DailyBase, named after the date in
// Timezone.
type RemoteConfig struct {
	Provider      string        `yaml:"provider"`
	Branch        string        `yaml:"branch"`
	Path          string        `yaml:"path"`
	DailyBase     string        `yaml:"daily_base"`
	Timezone      string        `yaml:"timezone"`
	CommitMessage string        `yaml:"commit_message"`
	Timeout       time.Duration `yaml:"timeout"`
	GitHub        GitHubConfig  `yaml:"github"`
	Git           GitConfig     `yaml:"git"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(RemoteGitHub, RemoteGit)),
		validation.Field(&c.Branch, validation.Required, validation.Match(branchName)),
		validation.Field(&c.Path, validation.Match(jsonPath)),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
		validation.Field(&c.Timezone, validation.By(validTimezone)),
	); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	switch c.Provider {
	case RemoteGitHub:
		return c.GitHub.Validate()
	default:
		return c.Git.Validate()
	}
}

// Location returns the configured timezone, UTC when unset.
func (c *RemoteConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validTimezone(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown timezone %q", s)
	}
	return nil
}

// GitHubConfig holds the hosted contents API settings.
type GitHubConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Owner             string  `yaml:"owner"`
	Repo              string  `yaml:"repo"`
	Token             string  `yaml:"token"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
	); err != nil {
		return fmt.Errorf("remote.github: %w", err)
	}
	return nil
}

// GitConfig holds the local repository settings.
type GitConfig struct {
	Dir         string `yaml:"dir"`
	Init        bool   `yaml:"init"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.AuthorName, validation.Required),
		validation.Field(&c.AuthorEmail, validation.Required, is.EmailFormat),
	); err != nil {
		return fmt.Errorf("remote.git: %w", err)
	}
	return nil
}

// ImagesConfig controls image uploads.
type ImagesConfig struct {
	Sink      string   `yaml:"sink"`
	Folder    string   `yaml:"folder"`
	Quality   int      `yaml:"quality"`
	MaxWidth  int      `yaml:"max_width"`
	MaxHeight int      `yaml:"max_height"`
	MaxPixels int      `yaml:"max_source_pixels"`
	BaseURL   string   `yaml:"base_url"`
	S3        S3Config `yaml:"s3"`
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Sink, validation.Required, validation.In(SinkRemote, SinkS3)),
		validation.Field(&c.Folder, validation.Required),
		validation.Field(&c.Quality, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MaxWidth, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxHeight, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxPixels, validation.Required, validation.Min(1)),
		validation.Field(&c.BaseURL, is.URL),
	); err != nil {
		return fmt.Errorf("images: %w", err)
	}
	if c.Sink == SinkS3 {
		return c.S3.Validate()
	}
	return nil
}

// S3Config holds the S3-compatible bucket settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
		validation.Field(&c.AccessKey, validation.Required),
		validation.Field(&c.SecretKey, validation.Required),
	); err != nil {
		return fmt.Errorf("images.s3: %w", err)
	}
	return nil
}

// BackupConfig controls snapshot exports. An empty Schedule disables the
// scheduler; exports can still be triggered through the API.
type BackupConfig struct {
	Dir      string `yaml:"dir"`
	DBPath   string `yaml:"db_path"`
	Schedule string `yaml:"schedule"`
	Keep     int    `yaml:"keep"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.Schedule, validation.By(validSchedule)),
		validation.Field(&c.Keep, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

func validSchedule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return fmt.Errorf("invalid cron schedule: %v", err)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Remote: RemoteConfig{
			Provider:  RemoteGit,
			Branch:    "main",
			DailyBase: "data",
			Timezone:  "Africa/Casablanca",
			Timeout:   25 * time.Second,
			GitHub: GitHubConfig{
				BaseURL:           "https://api.github.com",
				RequestsPerSecond: 5,
			},
			Git: GitConfig{
				Dir:         "./repo",
				Init:        true,
				AuthorName:  "newsdesk",
				AuthorEmail: "newsdesk@localhost",
			},
		},
		Images: ImagesConfig{
			Sink:      SinkRemote,
			Folder:    "images",
			Quality:   85,
			MaxWidth:  1280,
			MaxHeight: 1280,
			MaxPixels: 40_000_000,
		},
		Backup: BackupConfig{
			Dir:      "./backups",
			DBPath:   "./newsdesk.db",
			Schedule: "@hourly",
			Keep:     48,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
