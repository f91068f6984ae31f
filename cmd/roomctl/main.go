// roomctl drives the fundraising-room program from the command line:
// bootstrap shared state, administer the token registry, and walk rooms
// through their lifecycle.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"fundrooms/internal/bootstrap"
	"fundrooms/internal/config"
	"fundrooms/internal/ledger"
	"fundrooms/internal/logging"
	"fundrooms/internal/program"
	"fundrooms/internal/rooms"
	"fundrooms/internal/tokens"
	"fundrooms/internal/txsub"
	"fundrooms/internal/wallet"
)

const usage = `usage: roomctl <command> [flags]

commands:
  bootstrap        initialize global config and token registry
  approve-token    add a mint to the approved registry
  remove-token     remove a mint from the approved registry
  set-pause        set or clear the emergency pause
  create-pool      create a pool-mode room
  create-asset     create an asset-mode room
  add-prize        deposit a declared prize slot
  join             join a room as a player
  close-joining    lock a room to new players
  declare-winners  record the winner list
  end              distribute the vault and end the room
  cleanup          close an ended room and reclaim rent
  recover          drain an abandoned room to the platform (admin)
  info             print a room's on-chain state
`

// app bundles the wired services every subcommand draws from.
type app struct {
	client    ledger.Client
	builder   *program.Builder
	wallet    *wallet.Local
	bootstrap *bootstrap.Service
	rooms     *rooms.Service
}

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadChain()
	if err != nil {
		log.Fatal().Err(err).Msg("load chain config failed")
	}
	a, err := wire(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init failed")
	}

	ctx := context.Background()
	if err := run(ctx, a, os.Args[1], os.Args[2:]); err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func wire(cfg config.ChainConfig) (*app, error) {
	client, err := ledger.NewRPC(cfg.RPCURL, cfg.Commitment)
	if err != nil {
		return nil, err
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("bad program id: %w", err)
	}
	builder := program.NewBuilder(programID)
	builder.Registry = program.RegistryVersion(cfg.RegistryVersion)

	var w *wallet.Local
	if cfg.WalletKeypairPath != "" {
		w, err = wallet.NewLocalFromFile(cfg.WalletKeypairPath)
		if err != nil {
			return nil, fmt.Errorf("load wallet: %w", err)
		}
	} else {
		w = &wallet.Local{}
	}

	sub := txsub.New(client, submitterConfig(cfg), log.Logger)
	resolver := tokens.NewResolver(client)
	boot := bootstrap.NewService(client, sub, builder, w, log.Logger)
	return &app{
		client:    client,
		builder:   builder,
		wallet:    w,
		bootstrap: boot,
		rooms:     rooms.NewService(client, sub, builder, resolver, boot, w, cfg.FeeBufferLamports, log.Logger),
	}, nil
}

func run(ctx context.Context, a *app, command string, args []string) error {
	switch command {
	case "bootstrap":
		return cmdBootstrap(ctx, a, args)
	case "approve-token":
		return cmdApproveToken(ctx, a, args, true)
	case "remove-token":
		return cmdApproveToken(ctx, a, args, false)
	case "set-pause":
		return cmdSetPause(ctx, a, args)
	case "create-pool":
		return cmdCreatePool(ctx, a, args)
	case "create-asset":
		return cmdCreateAsset(ctx, a, args)
	case "add-prize":
		return cmdAddPrize(ctx, a, args)
	case "join":
		return cmdJoin(ctx, a, args)
	case "close-joining":
		return cmdCloseJoining(ctx, a, args)
	case "declare-winners":
		return cmdDeclareWinners(ctx, a, args)
	case "end":
		return cmdEnd(ctx, a, args)
	case "cleanup":
		return cmdCleanup(ctx, a, args)
	case "recover":
		return cmdRecover(ctx, a, args)
	case "info":
		return cmdInfo(ctx, a, args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
