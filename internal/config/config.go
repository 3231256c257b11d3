package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Fetch         FetchConfig          `mapstructure:"fetch"`
	Index         IndexConfig          `mapstructure:"index"`
	DocumentTypes []DocumentTypeConfig `mapstructure:"document_types"`
	Database      DatabaseConfig       `mapstructure:"database"`
	Storage       StorageConfig        `mapstructure:"storage"`
	Server        ServerConfig         `mapstructure:"server"`
}

type FetchConfig struct {
	APIURL   string        `mapstructure:"api_url"`
	DataPath string        `mapstructure:"data_path"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type IndexConfig struct {
	HostURL              string                 `mapstructure:"host_url"`
	HostPort             string                 `mapstructure:"host_port"`
	IndexName            string                 `mapstructure:"index_name"`
	CredentialsRequired  bool                   `mapstructure:"credentials_required"`
	Username             string                 `mapstructure:"username"`
	Password             string                 `mapstructure:"password"`
	BulkInsertRate       int                    `mapstructure:"bulk_insert_rate"`
	DocumentNameFieldKey string                 `mapstructure:"document_name_field_key"`
	IndexSettings        map[string]interface{} `mapstructure:"index_settings"`
}

// BaseURL joins host and port the way the index endpoint expects them.
func (c IndexConfig) BaseURL() string {
	host := strings.TrimSuffix(c.HostURL, "/")
	if c.HostPort == "" {
		return host
	}
	return host + ":" + c.HostPort
}

// DocumentTypeConfig describes one category of source documents.
type DocumentTypeConfig struct {
	Name             string                 `mapstructure:"name"`
	Links            []string               `mapstructure:"links"`
	URLPath          string                 `mapstructure:"url_path"`
	FileSuffix       string                 `mapstructure:"file_suffix"`
	DataFolder       string                 `mapstructure:"data_folder"`
	IgnoreInitialKey string                 `mapstructure:"ignore_initial_key"`
	HardLimit        *int                   `mapstructure:"hard_limit"`
	LoadData         bool                   `mapstructure:"load_data"`
	Mappings         map[string]interface{} `mapstructure:"mappings"`
}

// Folder returns the directory name under the data path, falling back to the type name.
func (d DocumentTypeConfig) Folder() string {
	if d.DataFolder != "" {
		return d.DataFolder
	}
	return d.Name
}

type DatabaseConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("fetch.data_path", "data")
	v.SetDefault("fetch.timeout", 0)
	v.SetDefault("index.host_url", "http://localhost")
	v.SetDefault("index.host_port", "9200")
	v.SetDefault("index.credentials_required", false)
	v.SetDefault("index.bulk_insert_rate", 500)
	v.SetDefault("index.document_name_field_key", "document_name")
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/.ledger/runs.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.prefix", "archives")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and endpoints are commonly injected by the environment
	v.BindEnv("fetch.api_url", "FETCH_API_URL")
	v.BindEnv("index.host_url", "INDEX_HOST_URL")
	v.BindEnv("index.username", "INDEX_USERNAME")
	v.BindEnv("index.password", "INDEX_PASSWORD")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := restoreMappingKeys(&cfg, v.ConfigFileUsed()); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// rawMappings holds the parts of the config file whose keys are index field
// names and must keep their case.
type rawMappings struct {
	Index struct {
		IndexSettings map[string]interface{} `yaml:"index_settings"`
	} `yaml:"index"`
	DocumentTypes []struct {
		Mappings map[string]interface{} `yaml:"mappings"`
	} `yaml:"document_types"`
}

// restoreMappingKeys re-reads index_settings and per-type mappings straight
// from the file, since viper lowercases every map key it loads.
func restoreMappingKeys(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawMappings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode mappings: %w", err)
	}

	if raw.Index.IndexSettings != nil {
		cfg.Index.IndexSettings = raw.Index.IndexSettings
	}
	for i := range cfg.DocumentTypes {
		if i < len(raw.DocumentTypes) && raw.DocumentTypes[i].Mappings != nil {
			cfg.DocumentTypes[i].Mappings = raw.DocumentTypes[i].Mappings
		}
	}
	return nil
}

// Validate checks the settings shared by both phases.
func (c *Config) Validate() error {
	if len(c.DocumentTypes) == 0 {
		return fmt.Errorf("%w: no document types configured", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.DocumentTypes))
	for i, dt := range c.DocumentTypes {
		if dt.Name == "" {
			return fmt.Errorf("%w: document_types[%d]: name is required", ErrInvalidConfig, i)
		}
		if _, dup := seen[dt.Name]; dup {
			return fmt.Errorf("%w: duplicate document type %q", ErrInvalidConfig, dt.Name)
		}
		seen[dt.Name] = struct{}{}

		if dt.HardLimit != nil && *dt.HardLimit < 0 {
			return fmt.Errorf("%w: document type %q: hard_limit must not be negative", ErrInvalidConfig, dt.Name)
		}
		if strings.ContainsAny(dt.Folder(), `/\`) || dt.Folder() == ".." {
			return fmt.Errorf("%w: document type %q: data_folder must be a plain directory name", ErrInvalidConfig, dt.Name)
		}
	}
	return nil
}

// ValidateFetch checks what the fetch phase needs.
func (c *Config) ValidateFetch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Fetch.APIURL == "" {
		return fmt.Errorf("%w: fetch.api_url is required", ErrInvalidConfig)
	}
	return nil
}

// ValidateLoad checks what the load phase and index commands need.
func (c *Config) ValidateLoad() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Index.HostURL == "" {
		return fmt.Errorf("%w: index.host_url is required", ErrInvalidConfig)
	}
	if c.Index.IndexName == "" {
		return fmt.Errorf("%w: index.index_name is required", ErrInvalidConfig)
	}
	if c.Index.BulkInsertRate < 1 {
		return fmt.Errorf("%w: index.bulk_insert_rate must be at least 1", ErrInvalidConfig)
	}
	for _, dt := range c.DocumentTypes {
		if !dt.LoadData {
			continue
		}
		if dt.IgnoreInitialKey == "" {
			return fmt.Errorf("%w: document type %q: ignore_initial_key is required when load_data is set", ErrInvalidConfig, dt.Name)
		}
		if c.Index.DocumentNameFieldKey == "" {
			return fmt.Errorf("%w: index.document_name_field_key is required", ErrInvalidConfig)
		}
	}
	return nil
}
