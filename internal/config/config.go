package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultDataPath        = "/home/deck/.local/share/deckshot"
	DefaultScreenshotsPath = "/home/deck/.local/share/Steam/userdata"
	DefaultRetryInterval   = 60
	DefaultLogLevel        = "info"
	DefaultFileName        = "deckshot.yml"
)

// Uploader kinds accepted in uploader.kind.
const (
	KindNoop     = "noop"
	KindS3       = "s3"
	KindGDrive   = "gdrive"
	KindDropbox  = "dropbox"
	KindOneDrive = "onedrive"
	KindDiscord  = "discord"
	KindImgur    = "imgur"
)

// Config is the top-level deckshot configuration.
// Fields map 1:1 to deckshot.example.yml.
type Config struct {
	// DataPath is the local data root holding credentials/ and deckshot.db.
	DataPath string `yaml:"deckshot_path"`

	// ScreenshotsPath is the directory tree watched for new screenshots.
	ScreenshotsPath string `yaml:"screenshots_path"`

	// RetryInterval is the number of seconds between two retry cycles.
	RetryInterval int `yaml:"retrier_interval"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// MetricsFile, when set, receives delivery counters in the Prometheus
	// text format after every retry cycle.
	MetricsFile string `yaml:"metrics_file"`

	// Uploader selects the single delivery destination.
	Uploader Uploader `yaml:"uploader"`
}

// Uploader is a tagged union: Kind names the destination and only the
// matching section is read.
type Uploader struct {
	Kind string `yaml:"kind"`

	S3          S3Config       `yaml:"s3"`
	GoogleDrive GDriveConfig   `yaml:"gdrive"`
	Dropbox     DropboxConfig  `yaml:"dropbox"`
	OneDrive    OneDriveConfig `yaml:"onedrive"`
	Discord     DiscordConfig  `yaml:"discord"`
	Imgur       ImgurConfig    `yaml:"imgur"`
}

// S3Config holds the settings for any S3-compatible object store.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
}

// GDriveConfig authenticates with a service account key file and uploads
// below the given parent folder ID.
type GDriveConfig struct {
	PrivateKeyFile string `yaml:"private_key_file"`
	Folder         string `yaml:"folder"`
}

// DropboxConfig uses the PKCE flow, so no client secret is needed.
type DropboxConfig struct {
	ClientID string `yaml:"client_id"`
	Folder   string `yaml:"folder"`
}

type OneDriveConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	Folder       string `yaml:"folder"`
}

// DiscordConfig posts to a channel webhook. Username is only used in the
// message text.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
}

type ImgurConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

// Interval returns RetryInterval as a time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.RetryInterval) * time.Second
}

// CredentialsDir is where the credential store keeps one file per key.
func (c *Config) CredentialsDir() string {
	return filepath.Join(c.DataPath, "credentials")
}

// DatabasePath is the retry queue database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataPath, "deckshot.db")
}

// DefaultPath returns the config file used when -config is not given.
func DefaultPath() string {
	return filepath.Join(DefaultDataPath, DefaultFileName)
}

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// expandEnv replaces $(VAR) with the value of the environment variable.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// expandNode expands $(VAR) in scalar values only, after parsing, so a
// value can never change the document structure. Comments are untouched.
// Plain scalars lose their resolved tag so "$(N)" can still fill an int.
func expandNode(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && envPattern.MatchString(n.Value) {
		n.Value = expandEnv(n.Value)
		if n.Style == 0 {
			n.Tag = ""
		}
		return
	}
	for _, c := range n.Content {
		expandNode(c)
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	expandNode(&doc)

	cfg := defaults()
	if doc.Kind != 0 {
		if err := doc.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		DataPath:        DefaultDataPath,
		ScreenshotsPath: DefaultScreenshotsPath,
		RetryInterval:   DefaultRetryInterval,
		LogLevel:        DefaultLogLevel,
	}
}

// validate checks required fields for the selected uploader kind.
func validate(cfg *Config) error {
	if cfg.DataPath == "" {
		return fmt.Errorf("deckshot_path is required")
	}
	if cfg.ScreenshotsPath == "" {
		return fmt.Errorf("screenshots_path is required")
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("retrier_interval must be positive")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}

	u := cfg.Uploader
	switch u.Kind {
	case KindNoop:
		return nil
	case KindS3:
		return required("uploader.s3", map[string]string{
			"endpoint":          u.S3.Endpoint,
			"access_key_id":     u.S3.AccessKeyID,
			"secret_access_key": u.S3.SecretAccessKey,
			"bucket":            u.S3.Bucket,
		})
	case KindGDrive:
		return required("uploader.gdrive", map[string]string{
			"private_key_file": u.GoogleDrive.PrivateKeyFile,
			"folder":           u.GoogleDrive.Folder,
		})
	case KindDropbox:
		return required("uploader.dropbox", map[string]string{
			"client_id": u.Dropbox.ClientID,
		})
	case KindOneDrive:
		return required("uploader.onedrive", map[string]string{
			"client_id":     u.OneDrive.ClientID,
			"client_secret": u.OneDrive.ClientSecret,
			"redirect_uri":  u.OneDrive.RedirectURI,
		})
	case KindDiscord:
		return required("uploader.discord", map[string]string{
			"webhook_url": u.Discord.WebhookURL,
		})
	case KindImgur:
		return required("uploader.imgur", map[string]string{
			"client_id":     u.Imgur.ClientID,
			"client_secret": u.Imgur.ClientSecret,
			"redirect_uri":  u.Imgur.RedirectURI,
		})
	case "":
		return fmt.Errorf("uploader.kind is required")
	default:
		return fmt.Errorf("unknown uploader kind %q", u.Kind)
	}
}

// required reports the first empty field of section, in sorted key order.
func required(section string, fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%s.%s is required", section, missing[0])
}
