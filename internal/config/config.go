package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken    string        `mapstructure:"telegram_token"`
	BotHandleTimeout time.Duration `mapstructure:"bot_handle_timeout"`

	StorageDriver string `mapstructure:"storage_driver"`
	BoltPath      string `mapstructure:"bolt_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`

	APIListenAddr string `mapstructure:"api_listen_addr"`
}

const (
	StorageDriverBolt     = "bolt"
	StorageDriverPostgres = "postgres"
)

func New() *Config {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		logrus.Fatalf("unmarshalling config: %v", err)
	}
	return cfg
}

func SetupCommon() {
	viper.SetDefault("storage_driver", StorageDriverBolt)
	viper.SetDefault("bolt_path", "./santa.db")
	viper.SetDefault("api_listen_addr", ":8080")
	viper.SetEnvPrefix("SANTA")

	viper.MustBindEnv("telegram_token")
	_ = viper.BindEnv("postgres_dsn")
	viper.AutomaticEnv()
}
