package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	washttp "github.com/wallet-storage/was/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for the server.
type Config struct {
	Server  ServerConfig       `mapstructure:"server"`
	Storage StorageConfig      `mapstructure:"storage"`
	CORS    washttp.CORSConfig `mapstructure:"cors"`
	Log     LogConfig          `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=0"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory filesystem sqlite postgres s3 dropbox onedrive gdrive"`

	// Root is the data directory for the filesystem backend.
	Root string `mapstructure:"root"`

	// DSN is the connection string for the sqlite and postgres backends.
	DSN string `mapstructure:"dsn"`

	S3       S3Config       `mapstructure:"s3"`
	Dropbox  DropboxConfig  `mapstructure:"dropbox"`
	OneDrive OneDriveConfig `mapstructure:"onedrive"`
	GDrive   GDriveConfig   `mapstructure:"gdrive"`
}

// S3Config holds Amazon S3 backend configuration. When AccessKey is set,
// static credentials are used instead of the default AWS credential chain.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// DropboxConfig holds Dropbox backend configuration.
type DropboxConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	AppKey       string `mapstructure:"app_key"`
	AppSecret    string `mapstructure:"app_secret"`
	RootFolder   string `mapstructure:"root_folder"`
}

// OneDriveConfig holds Microsoft OneDrive backend configuration.
type OneDriveConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TenantID     string `mapstructure:"tenant_id"`
	DriveID      string `mapstructure:"drive_id"`
	RootFolder   string `mapstructure:"root_folder"`
}

// GDriveConfig holds Google Drive backend configuration. Credentials is a
// service account key, as raw JSON or a path to a key file.
type GDriveConfig struct {
	Credentials string `mapstructure:"credentials"`
	RootFolder  string `mapstructure:"root_folder"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"backend":      "storage.backend",
	"storage-root": "storage.root",
	"storage-dsn":  "storage.dsn",
	"port":         "server.port",
	"log-level":    "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.root", "./was_data")
	v.SetDefault("storage.dsn", "was.db")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.dropbox.root_folder", "was_data")
	v.SetDefault("storage.onedrive.root_folder", "was_data")
	v.SetDefault("storage.gdrive.root_folder", "was_data")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("WAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
