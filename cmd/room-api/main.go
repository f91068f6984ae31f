package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"fundrooms/internal/config"
	"fundrooms/internal/ledger"
	"fundrooms/internal/logging"
	"fundrooms/internal/program"
	"fundrooms/internal/rooms"
	"fundrooms/internal/store"
	"fundrooms/internal/tokens"
	"fundrooms/internal/txsub"
	"fundrooms/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}
	chainCfg, err := config.LoadChain()
	if err != nil {
		log.Fatal().Err(err).Msg("load chain config failed")
	}

	client, err := ledger.NewRPC(chainCfg.RPCURL, chainCfg.Commitment)
	if err != nil {
		log.Fatal().Err(err).Msg("rpc client init failed")
	}
	programID, err := solana.PublicKeyFromBase58(chainCfg.ProgramID)
	if err != nil {
		log.Fatal().Err(err).Msg("bad program id")
	}
	builder := program.NewBuilder(programID)
	builder.Registry = program.RegistryVersion(chainCfg.RegistryVersion)

	// The API is read-only; the room service runs without a connected
	// wallet or bootstrapper and never submits.
	sub := txsub.New(client, txsub.Config{Commitment: chainCfg.Commitment}, log.Logger)
	svc := rooms.NewService(client, sub, builder, tokens.NewResolver(client), nil, &wallet.Local{}, chainCfg.FeeBufferLamports, log.Logger)

	var st *store.Store
	if cfg.PostgresDSN != "" {
		st, err = store.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		if err := st.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		defer st.Close()
	} else {
		log.Warn().Msg("POSTGRES_DSN empty, event endpoints disabled")
	}

	r := newRouter(svc, st)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
