package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	StaticDir string `env:"STATIC_DIR" envDefault:"web/static"`

	// StartingChips is every new player's stack. Rooms are cash-free:
	// chips only ever move between stacks and the pot.
	StartingChips int64 `env:"STARTING_CHIPS" envDefault:"1000"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
