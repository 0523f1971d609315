package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Provision ProvisionConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
	MigrationsPath string
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
}

type ProvisionConfig struct {
	InstallDir      string
	NginxConfigDir  string
	PHPFPMSocket    string
	DownloadURL     string
	WebUser         string
	MaxSitesPerUser int
}

type WorkerConfig struct {
	Count      int
	PopTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("PRESSHOST")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("database.migrationspath", "migrations")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("provision.installdir", "/var/www")
	viper.SetDefault("provision.nginxconfigdir", "/etc/nginx")
	viper.SetDefault("provision.phpfpmsocket", "unix:/var/run/php/php8.1-fpm.sock")
	viper.SetDefault("provision.downloadurl", "https://www.classicpress.net/latest.zip")
	viper.SetDefault("provision.webuser", "www-data")
	viper.SetDefault("provision.maxsitesperuser", 5)
	viper.SetDefault("worker.count", 4)
	viper.SetDefault("worker.poptimeout", "5s")

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	return &cfg, nil
}
