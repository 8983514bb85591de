package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for filecat.
type Config struct {
	BaseDir     string   `toml:"base_dir"`
	LogDir      string   `toml:"log_dir"`
	LogLevel    string   `toml:"log_level"`   // "debug", "info" (default), "warn", "error"
	Environment string   `toml:"environment"` // config entries scope: "dev" (default) or "prod"
	Categories  []string `toml:"categories"`  // always offered, even before any file carries them

	Watch      WatchConfig      `toml:"watch"`
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Auth       AuthConfig       `toml:"auth"`
	Jobs       JobsConfig       `toml:"jobs"`
	Classifier ClassifierConfig `toml:"classifier"`
	ModelStore ModelStoreConfig `toml:"model_store"`
	Encryption EncryptionConfig `toml:"encryption"`
	Client     ClientConfig     `toml:"client"`
}

// WatchConfig describes the directory being categorized.
type WatchConfig struct {
	Dir       string   `toml:"dir"`
	TargetDir string   `toml:"target_dir"` // per-category folders are created here; defaults to dir
	Recursive bool     `toml:"recursive"`
	Ignore    []string `toml:"ignore"`
}

// DatabaseConfig represents configuration for the file registry.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string   `toml:"addr"`
	ReadTimeout       Duration `toml:"read_timeout"`
	WriteTimeout      Duration `toml:"write_timeout"` // 0 keeps the push stream open
	IdleTimeout       Duration `toml:"idle_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	ClientBuffer      int      `toml:"client_buffer"` // per-client push buffer
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Disabled  bool     `toml:"disabled"`
	JWTSecret string   `toml:"jwt_secret"`
	Issuer    string   `toml:"issuer"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// JobsConfig bounds the background job layer.
type JobsConfig struct {
	MaxConcurrent   int `toml:"max_concurrent"`
	Retention       int `toml:"retention"`
	ClassifyWorkers int `toml:"classify_workers"`
	MaxMoveBatch    int `toml:"max_move_batch"`
}

// ClassifierConfig holds classifier settings.
type ClassifierConfig struct {
	MinConfidence float64 `toml:"min_confidence"` // 0 disables the threshold
}

// ModelStoreConfig represents configuration for trained model storage.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ModelStoreConfig struct {
	Type    string `toml:"type"`    // "memory", "filesystem" or "s3"
	Encrypt bool   `toml:"encrypt"` // encrypt artifacts with the configured age keys

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible endpoint, e.g. MinIO
	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for model encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ClientConfig is used by the CLI client and the TUI.
type ClientConfig struct {
	ServerURL string   `toml:"server_url"`
	Token     string   `toml:"token"`
	Timeout   Duration `toml:"timeout"`
	CacheSize int      `toml:"cache_size"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

// Duration is a time.Duration that reads and writes as "30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir, watchDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		LogLevel:    "info",
		Environment: "dev",
		Watch: WatchConfig{
			Dir:    watchDir,
			Ignore: []string{".*", "*.part", "*.crdownload"},
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "filecat.db"),
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8750",
			ReadTimeout:       Duration{15 * time.Second},
			IdleTimeout:       Duration{60 * time.Second},
			ShutdownTimeout:   Duration{10 * time.Second},
			HeartbeatInterval: Duration{30 * time.Second},
			ClientBuffer:      64,
		},
		Auth: AuthConfig{
			Issuer:   "filecat",
			TokenTTL: Duration{24 * time.Hour},
		},
		Jobs: JobsConfig{
			MaxConcurrent:   2,
			Retention:       100,
			ClassifyWorkers: 4,
			MaxMoveBatch:    1000,
		},
		ModelStore: ModelStoreConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "models"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "filecat.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "filecat.key"),
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:8750",
			Timeout:   Duration{30 * time.Second},
			CacheSize: 256,
			CacheTTL:  Duration{5 * time.Minute},
		},
	}
}

// ApplyEnv overrides settings from FILECAT_WATCH_DIR, FILECAT_DB_PATH and
// FILECAT_JWT_SECRET when they are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("FILECAT_WATCH_DIR"); v != "" {
		c.Watch.Dir = v
	}
	if v := getenv("FILECAT_DB_PATH"); v != "" {
		c.Database.Type = "sqlite"
		c.Database.Path = v
	}
	if v := getenv("FILECAT_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry the JWT secret.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
