package config

import "github.com/caarlos0/env/v11"

// ChainConfig holds everything needed to talk to the ledger: the RPC
// endpoint, the deployed program, and the submitter's retry/confirmation
// knobs.
type ChainConfig struct {
	RPCURL    string `env:"RPC_URL,required,notEmpty"`
	ProgramID string `env:"PROGRAM_ID" envDefault:"8W83G9mSeoQ6Ljcz5QJHYPjH2vQgw94YeVCnpY6KFt7i"`

	// Commitment level used for blockhash fetches, confirmation polling and
	// account reads: processed, confirmed or finalized.
	Commitment string `env:"COMMITMENT" envDefault:"confirmed"`

	// Registry seed version, bumped on non-breaking registry migrations.
	RegistryVersion string `env:"REGISTRY_VERSION" envDefault:"v4"`

	WalletKeypairPath string `env:"WALLET_KEYPAIR"`

	ConfirmTimeoutSec int `env:"CONFIRM_TIMEOUT_SECONDS" envDefault:"60"`
	ConfirmPollMs     int `env:"CONFIRM_POLL_MS" envDefault:"500"`
	SendMaxAttempts   int `env:"SEND_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseMs       int `env:"RETRY_BASE_MS" envDefault:"500"`

	// Extra lamports required on top of rent when preflighting account
	// creation, covering transaction fees.
	FeeBufferLamports uint64 `env:"FEE_BUFFER_LAMPORTS" envDefault:"100000"`
}

func LoadChain() (ChainConfig, error) {
	var cfg ChainConfig
	err := env.Parse(&cfg)
	return cfg, err
}
