package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"fundrooms/internal/config"
	"fundrooms/internal/indexer"
	"fundrooms/internal/ledger"
	"fundrooms/internal/logging"
	"fundrooms/internal/store"
)

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadIndexer()
	if err != nil {
		log.Fatal().Err(err).Msg("load indexer config failed")
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

	st, err := store.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	ix := indexer.New(client, st, programID, cfg.BatchLimit, log.Logger)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler init failed")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Duration(cfg.PollSeconds)*time.Second),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.PollSeconds)*time.Second)
			defer cancel()
			n, err := ix.RunOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("index run failed")
				return
			}
			if n > 0 {
				log.Info().Int("events", n).Msg("indexed events")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule job failed")
	}
	scheduler.Start()
	log.Info().Str("program", programID.String()).Int("poll_seconds", cfg.PollSeconds).Msg("indexer running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
	_ = scheduler.Shutdown()
}
