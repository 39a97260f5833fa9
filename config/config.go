package config

import "github.com/caarlos0/env/v9"

type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	// EncryptionKey is the hex-encoded 32-byte field key. It stays in this
	// process; browser clients go through the crypto endpoints.
	EncryptionKey string `env:"CHAT_ENCRYPTION_KEY,required,unset"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
