package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Storage StorageConfig `mapstructure:"storage"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Guild   GuildConfig   `mapstructure:"guild"`
	Server  ServerConfig  `mapstructure:"server"`
	Debug   bool          `mapstructure:"debug"`
}

type DBConfig struct {
	Source string `mapstructure:"source" validate:"required"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" validate:"required"`
}

type StorageConfig struct {
	// UploadsPath is the root under which every owner's files live.
	UploadsPath string `mapstructure:"uploads_path" validate:"required"`
}

type QuotaConfig struct {
	// DefaultLimitGB is applied to owners seen for the first time.
	// Fractional values are allowed.
	DefaultLimitGB    float64       `mapstructure:"default_limit_gb" validate:"gt=0"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"gt=0"`
}

type GuildConfig struct {
	// GuildID is the community server whose membership gates the
	// whole cloud feature.
	GuildID      string   `mapstructure:"guild_id" validate:"required"`
	AllowedRoles []string `mapstructure:"allowed_roles" validate:"min=1"`
	AdminRoles   []string `mapstructure:"admin_roles"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

var validate = validator.New()

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.request_timeout", 30*time.Second)
	viper.SetDefault("storage.uploads_path", "./uploads")
	viper.SetDefault("quota.default_limit_gb", 15.0)
	viper.SetDefault("quota.reconcile_interval", 15*time.Minute)
	viper.SetDefault("debug", false)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultLimitBytes converts the configured GiB default to bytes.
func (c *QuotaConfig) DefaultLimitBytes() int64 {
	return GigabytesToBytes(c.DefaultLimitGB)
}

// GigabytesToBytes converts a (possibly fractional) GiB value to bytes.
func GigabytesToBytes(gb float64) int64 {
	return int64(gb * 1024 * 1024 * 1024)
}
