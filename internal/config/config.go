package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/codefionn/bookshelf/internal/consts"
	"github.com/ilyakaznacheev/cleanenv"
)

const appName = "bookshelf"

// Overflow policies for messages longer than MaxMessageBytes.
const (
	OverflowTruncate = "truncate"
	OverflowReject   = "reject"
)

// Snapshot backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Password storage modes.
const (
	PasswordPlain  = "plain"
	PasswordBcrypt = "bcrypt"
)

// CatalogConfig configures the remote book catalog client
type CatalogConfig struct {
	APIKey          string `json:"api_key" env:"BOOKSHELF_API_KEY"`
	BaseURL         string `json:"base_url" env:"BOOKSHELF_CATALOG_URL"`
	TimeoutSeconds  int    `json:"timeout_seconds" env:"BOOKSHELF_CATALOG_TIMEOUT"`
	CacheMaxEntries int    `json:"cache_max_entries" env:"BOOKSHELF_CACHE_MAX_ENTRIES"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds" env:"BOOKSHELF_CACHE_TTL"` // 0 keeps entries until evicted by size
}

// S3Config locates snapshot objects when Backend is "s3"
type S3Config struct {
	Bucket   string `json:"bucket" env:"BOOKSHELF_S3_BUCKET"`
	Prefix   string `json:"prefix" env:"BOOKSHELF_S3_PREFIX"`
	Region   string `json:"region" env:"BOOKSHELF_S3_REGION"`
	Endpoint string `json:"endpoint,omitempty" env:"BOOKSHELF_S3_ENDPOINT"`
}

// StorageConfig configures where and how often the store is snapshotted
type StorageConfig struct {
	Backend             string   `json:"backend" env:"BOOKSHELF_STORAGE_BACKEND"`
	DataDir             string   `json:"data_dir" env:"BOOKSHELF_DATA_DIR"`
	UsersFile           string   `json:"users_file"`
	ListsFile           string   `json:"lists_file"`
	SQLitePath          string   `json:"sqlite_path,omitempty" env:"BOOKSHELF_SQLITE_PATH"`
	S3                  S3Config `json:"s3"`
	InitialDelaySeconds int      `json:"initial_delay_seconds" env:"BOOKSHELF_SAVE_DELAY"`
	SaveIntervalSeconds int      `json:"save_interval_seconds" env:"BOOKSHELF_SAVE_INTERVAL"`
}

// AuthConfig controls how passwords are stored
type AuthConfig struct {
	PasswordHashing string `json:"password_hashing" env:"BOOKSHELF_PASSWORD_HASHING"`
}

// AdminConfig configures the HTTP side channel (health, metrics, websocket)
type AdminConfig struct {
	Addr        string `json:"addr" env:"BOOKSHELF_ADMIN_ADDR"` // empty disables the admin server
	EnablePprof bool   `json:"enable_pprof" env:"BOOKSHELF_ENABLE_PPROF"`

	// AllowedOrigins are extra browser origins allowed to open /ws.
	AllowedOrigins []string `json:"allowed_origins,omitempty" env:"BOOKSHELF_ADMIN_ORIGINS" env-separator:","`
	// WebSocketKill lets websocket clients stop the server with killcommand.
	WebSocketKill bool `json:"websocket_kill" env:"BOOKSHELF_ADMIN_WEBSOCKET_KILL"`
}

// Config represents application configuration
type Config struct {
	Host               string        `json:"host" env:"BOOKSHELF_HOST"`
	Port               int           `json:"port" env:"BOOKSHELF_PORT"`
	MaxConnections     int           `json:"max_connections" env:"BOOKSHELF_MAX_CONNECTIONS"`
	ReadTimeoutSeconds int           `json:"read_timeout_seconds" env:"BOOKSHELF_READ_TIMEOUT"` // 0 = wait forever
	MaxMessageBytes    int           `json:"max_message_bytes" env:"BOOKSHELF_MAX_MESSAGE_BYTES"`
	OverflowPolicy     string        `json:"overflow_policy" env:"BOOKSHELF_OVERFLOW_POLICY"`
	Catalog            CatalogConfig `json:"catalog"`
	Storage            StorageConfig `json:"storage"`
	Auth               AuthConfig    `json:"auth"`
	Admin              AdminConfig   `json:"admin"`
	LogLevel           string        `json:"log_level" env:"BOOKSHELF_LOG_LEVEL"` // debug, info, warn, error, none
	LogPath            string        `json:"log_path" env:"BOOKSHELF_LOG_PATH"`   // empty logs to stderr
	PidFile            string        `json:"pid_file" env:"BOOKSHELF_PID_FILE"`
}

func defaultConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
	}
	if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
		return filepath.Join(configHome, appName)
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", appName)
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	}
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		Port:            consts.DefaultPort,
		MaxConnections:  consts.DefaultMaxConnections,
		MaxMessageBytes: consts.DefaultMaxMessageBytes,
		OverflowPolicy:  OverflowTruncate,
		Catalog: CatalogConfig{
			BaseURL:         consts.GoogleBooksURL,
			TimeoutSeconds:  int(consts.DefaultCatalogTimeout / time.Second),
			CacheMaxEntries: consts.DefaultDetailCacheEntries,
		},
		Storage: StorageConfig{
			Backend:             BackendJSON,
			DataDir:             filepath.Join(stateDir, "tables"),
			UsersFile:           consts.UsersArtifact,
			ListsFile:           consts.ListsArtifact,
			InitialDelaySeconds: int(consts.DefaultSaveInitialDelay / time.Second),
			SaveIntervalSeconds: int(consts.DefaultSaveInterval / time.Second),
		},
		Auth:     AuthConfig{PasswordHashing: PasswordPlain},
		LogLevel: "info",
		PidFile:  filepath.Join(stateDir, appName+".pid"),
	}
}

// Load loads configuration from file. A missing file yields the defaults;
// fields present in the file override them.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if config.Storage.UsersFile == "" {
		config.Storage.UsersFile = consts.UsersArtifact
	}
	if config.Storage.ListsFile == "" {
		config.Storage.ListsFile = consts.ListsArtifact
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	return config, nil
}

// ApplyEnv overrides fields from BOOKSHELF_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := cleanenv.ReadEnv(c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot be served.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxMessageBytes < consts.MinMaxMessageBytes {
		return fmt.Errorf("max_message_bytes must be at least %d, got %d", consts.MinMaxMessageBytes, c.MaxMessageBytes)
	}
	switch c.OverflowPolicy {
	case OverflowTruncate, OverflowReject:
	default:
		return fmt.Errorf("unknown overflow_policy %q (want %q or %q)", c.OverflowPolicy, OverflowTruncate, OverflowReject)
	}
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.SaveIntervalSeconds <= 0 {
		return fmt.Errorf("storage.save_interval_seconds must be positive")
	}
	if c.Storage.InitialDelaySeconds < 0 {
		return fmt.Errorf("storage.initial_delay_seconds must not be negative")
	}
	switch c.Auth.PasswordHashing {
	case PasswordPlain, PasswordBcrypt:
	default:
		return fmt.Errorf("unknown auth.password_hashing %q", c.Auth.PasswordHashing)
	}
	return nil
}

// ListenAddr returns the host:port the TCP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReadTimeout returns the idle timeout for client reads, 0 when disabled.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// CatalogTimeout bounds one catalog request.
func (c *Config) CatalogTimeout() time.Duration {
	if c.Catalog.TimeoutSeconds <= 0 {
		return consts.DefaultCatalogTimeout
	}
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// CacheTTL returns the detail cache lifetime, 0 meaning no expiry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTLSeconds) * time.Second
}

// SaveSchedule returns the persister's initial delay and period.
func (c *Config) SaveSchedule() (initialDelay, interval time.Duration) {
	return time.Duration(c.Storage.InitialDelaySeconds) * time.Second,
		time.Duration(c.Storage.SaveIntervalSeconds) * time.Second
}

// SQLitePath returns the database file for the sqlite backend.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Storage.DataDir, appName+".db")
}

// LockPath returns the lock file guarding the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Storage.DataDir, "."+appName+".lock")
}

// Encode writes the configuration as indented JSON.
func (c *Config) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
