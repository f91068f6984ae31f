package config

import "github.com/caarlos0/env/v11"

type IndexerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`

	PollSeconds int `env:"INDEXER_POLL_SECONDS" envDefault:"15"`
	BatchLimit  int `env:"INDEXER_BATCH_LIMIT" envDefault:"100"`
}

func LoadIndexer() (IndexerConfig, error) {
	var cfg IndexerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
