package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides: NOVAMEM_STORAGE_WORKDIR
// overrides storage.workdir.
const EnvPrefix = "NOVAMEM"

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug | info | warn | error
	Format     string `mapstructure:"format"` // text | json
	File       string `mapstructure:"file"`   // empty = stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type NovaMemConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir            string        `mapstructure:"workdir"`
		SyncWrites         bool          `mapstructure:"sync_writes"`
		CheckpointInterval time.Duration `mapstructure:"checkpoint_interval"`
	} `mapstructure:"storage"`

	Server struct {
		Addr           string        `mapstructure:"addr"`
		StatusAddr     string        `mapstructure:"status_addr"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
		Debug          bool          `mapstructure:"debug"`
	} `mapstructure:"server"`

	Log LogConfig `mapstructure:"log"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "novamem")

	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.sync_writes", true)
	v.SetDefault("storage.checkpoint_interval", time.Minute)

	v.SetDefault("server.addr", "127.0.0.1:8866")
	v.SetDefault("server.status_addr", "127.0.0.1:8867")
	v.SetDefault("server.request_timeout", time.Duration(0))
	v.SetDefault("server.debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
}

// NewViper returns a viper instance with defaults and NOVAMEM_* environment
// overrides in place.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the YAML file at path (if any) on top of v and decodes the
// result. Flags bound to v take precedence over the file.
func LoadConfig(v *viper.Viper, path string) (*NovaMemConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovaMemConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Storage.Workdir == "" {
		return nil, fmt.Errorf("config: storage.workdir must not be empty")
	}
	if cfg.Storage.CheckpointInterval < 0 {
		return nil, fmt.Errorf("config: storage.checkpoint_interval must not be negative")
	}
	return &cfg, nil
}
