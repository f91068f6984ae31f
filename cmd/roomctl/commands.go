package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"fundrooms/internal/config"
	"fundrooms/internal/rooms"
	"fundrooms/internal/txsub"
)

func submitterConfig(cfg config.ChainConfig) txsub.Config {
	return txsub.Config{
		Commitment:     cfg.Commitment,
		ConfirmTimeout: time.Duration(cfg.ConfirmTimeoutSec) * time.Second,
		PollInterval:   time.Duration(cfg.ConfirmPollMs) * time.Millisecond,
		MaxAttempts:    cfg.SendMaxAttempts,
		RetryBase:      time.Duration(cfg.RetryBaseMs) * time.Millisecond,
	}
}

func parseKey(fs *flag.FlagSet, name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("-%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("-%s: %w", name, err)
	}
	return key, nil
}

func parseKeyList(value string) ([]solana.PublicKey, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	keys := make([]solana.PublicKey, 0, len(parts))
	for _, p := range parts {
		key, err := solana.PublicKeyFromBase58(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func cmdBootstrap(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	platform := fs.String("platform", "", "platform fee wallet")
	charity := fs.String("charity", "", "default charity wallet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	platformKey, err := parseKey(fs, "platform", *platform)
	if err != nil {
		return err
	}
	charityKey, err := parseKey(fs, "charity", *charity)
	if err != nil {
		return err
	}

	cfg, created, err := a.bootstrap.EnsureGlobalConfig(ctx, platformKey, charityKey)
	if err != nil {
		return err
	}
	fmt.Printf("global config: admin=%s created=%v\n", cfg.Admin, created)

	reg, created, err := a.bootstrap.EnsureTokenRegistry(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("token registry: approved=%d created=%v\n", len(reg.Approved), created)
	return nil
}

func cmdApproveToken(ctx context.Context, a *app, args []string, approve bool) error {
	name := "approve-token"
	if !approve {
		name = "remove-token"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	mint := fs.String("mint", "", "token mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mintKey, err := parseKey(fs, "mint", *mint)
	if err != nil {
		return err
	}

	var changed bool
	if approve {
		changed, err = a.bootstrap.EnsureApproved(ctx, mintKey)
	} else {
		changed, err = a.bootstrap.RemoveApproved(ctx, mintKey)
	}
	if err != nil {
		return err
	}
	fmt.Printf("mint %s: changed=%v\n", mintKey, changed)
	return nil
}

func cmdSetPause(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("set-pause", flag.ExitOnError)
	paused := fs.Bool("paused", true, "pause state to set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	changed, err := a.bootstrap.SetEmergencyPause(ctx, *paused)
	if err != nil {
		return err
	}
	fmt.Printf("emergency pause %v: changed=%v\n", *paused, changed)
	return nil
}

func cmdCreatePool(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-pool", flag.ExitOnError)
	id := fs.String("id", "", "room id (1-32 bytes)")
	mint := fs.String("mint", "", "entry fee token mint")
	charity := fs.String("charity", "", "charity wallet")
	entryFee := fs.Uint64("entry-fee", 0, "entry fee in token base units")
	maxPlayers := fs.Uint("max-players", 100, "player cap")
	hostBps := fs.Uint("host-bps", 0, "host share in basis points (max 500)")
	prizeBps := fs.Uint("prize-bps", 0, "prize pool share in basis points")
	first := fs.Uint("first", 100, "first place percent of the prize pool")
	second := fs.Uint("second", 0, "second place percent (0 = absent)")
	third := fs.Uint("third", 0, "third place percent (0 = absent)")
	memo := fs.String("memo", "", "charity memo (max 28 bytes)")
	expiration := fs.Uint64("expiration-slots", 0, "slots until expiry (0 = program default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mintKey, err := parseKey(fs, "mint", *mint)
	if err != nil {
		return err
	}
	charityKey, err := parseKey(fs, "charity", *charity)
	if err != nil {
		return err
	}

	p := rooms.PoolRoomParams{
		RoomID:        *id,
		FeeTokenMint:  mintKey,
		CharityWallet: charityKey,
		EntryFee:      *entryFee,
		MaxPlayers:    uint32(*maxPlayers),
		HostFeeBps:    uint16(*hostBps),
		PrizePoolBps:  uint16(*prizeBps),
		FirstPlacePct: uint16(*first),
		CharityMemo:   *memo,
	}
	if *second > 0 {
		v := uint16(*second)
		p.SecondPlacePct = &v
	}
	if *third > 0 {
		v := uint16(*third)
		p.ThirdPlacePct = &v
	}
	if *expiration > 0 {
		p.ExpirationSlots = expiration
	}

	res, err := a.rooms.CreatePoolRoom(ctx, p)
	if err != nil {
		return err
	}
	fmt.Printf("room %s created\n  vault %s\n  signature %s\n", res.RoomAddress, res.Vault, res.Signature)
	return nil
}

func cmdCreateAsset(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-asset", flag.ExitOnError)
	id := fs.String("id", "", "room id (1-32 bytes)")
	mint := fs.String("mint", "", "entry fee token mint")
	charity := fs.String("charity", "", "charity wallet")
	entryFee := fs.Uint64("entry-fee", 0, "entry fee in token base units")
	maxPlayers := fs.Uint("max-players", 100, "player cap")
	hostBps := fs.Uint("host-bps", 0, "host share in basis points (max 500)")
	memo := fs.String("memo", "", "charity memo (max 28 bytes)")
	expiration := fs.Uint64("expiration-slots", 0, "slots until expiry (0 = program default)")
	prizes := fs.String("prizes", "", "comma-separated mint:amount prize slots (1-3)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mintKey, err := parseKey(fs, "mint", *mint)
	if err != nil {
		return err
	}
	charityKey, err := parseKey(fs, "charity", *charity)
	if err != nil {
		return err
	}
	slots, err := parsePrizes(*prizes)
	if err != nil {
		return err
	}

	p := rooms.AssetRoomParams{
		RoomID:        *id,
		FeeTokenMint:  mintKey,
		CharityWallet: charityKey,
		EntryFee:      *entryFee,
		MaxPlayers:    uint32(*maxPlayers),
		HostFeeBps:    uint16(*hostBps),
		CharityMemo:   *memo,
		Prizes:        slots,
	}
	if *expiration > 0 {
		p.ExpirationSlots = expiration
	}

	res, err := a.rooms.CreateAssetRoom(ctx, p)
	if err != nil {
		return err
	}
	fmt.Printf("room %s created\n  vault %s\n  signature %s\n", res.RoomAddress, res.Vault, res.Signature)
	return nil
}

func parsePrizes(s string) ([]rooms.PrizeSlot, error) {
	if s == "" {
		return nil, fmt.Errorf("-prizes is required")
	}
	var slots []rooms.PrizeSlot
	for _, part := range strings.Split(s, ",") {
		mintStr, amountStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("prize %q: want mint:amount", part)
		}
		mint, err := solana.PublicKeyFromBase58(mintStr)
		if err != nil {
			return nil, fmt.Errorf("prize mint %q: %w", mintStr, err)
		}
		amount, err := strconv.ParseUint(amountStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("prize amount %q: %w", amountStr, err)
		}
		slots = append(slots, rooms.PrizeSlot{Mint: mint, Amount: amount})
	}
	return slots, nil
}

func cmdAddPrize(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("add-prize", flag.ExitOnError)
	id := fs.String("id", "", "room id")
	slot := fs.Uint("slot", 0, "prize slot index (0-2)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.rooms.AddPrizeAsset(ctx, *id, uint8(*slot))
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Printf("slot %d already deposited\n", *slot)
		return nil
	}
	fmt.Printf("slot %d deposited, signature %s\n", *slot, res.Signature)
	return nil
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	host := fs.String("host", "", "room host address")
	id := fs.String("id", "", "room id")
	extras := fs.Uint64("extras", 0, "extra donation on top of the entry fee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hostKey, err := parseKey(fs, "host", *host)
	if err != nil {
		return err
	}
	res, err := a.rooms.JoinRoom(ctx, rooms.JoinParams{Host: hostKey, RoomID: *id, Extras: *extras})
	if err != nil {
		return err
	}
	fmt.Printf("joined, signature %s\n", res.Signature)
	return nil
}

func cmdCloseJoining(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("close-joining", flag.ExitOnError)
	id := fs.String("id", "", "room id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.rooms.CloseJoining(ctx, *id)
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Println("joining already closed")
		return nil
	}
	fmt.Printf("joining closed, signature %s\n", res.Signature)
	return nil
}

func cmdDeclareWinners(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("declare-winners", flag.ExitOnError)
	id := fs.String("id", "", "room id")
	winners := fs.String("winners", "", "comma-separated winner addresses, payout order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	keys, err := parseKeyList(*winners)
	if err != nil {
		return err
	}
	res, err := a.rooms.DeclareWinners(ctx, *id, keys)
	if err != nil {
		return err
	}
	fmt.Printf("%d winners declared, signature %s\n", len(keys), res.Signature)
	return nil
}

func cmdEnd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("end", flag.ExitOnError)
	id := fs.String("id", "", "room id")
	winners := fs.String("winners", "", "comma-separated winner addresses, payout order")
	winnerAccounts := fs.String("winner-accounts", "", "comma-separated winner token accounts, same order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	winnerKeys, err := parseKeyList(*winners)
	if err != nil {
		return err
	}
	accountKeys, err := parseKeyList(*winnerAccounts)
	if err != nil {
		return err
	}
	res, err := a.rooms.EndRoom(ctx, rooms.EndParams{
		RoomID:              *id,
		Winners:             winnerKeys,
		WinnerTokenAccounts: accountKeys,
	})
	if err != nil {
		return err
	}
	fmt.Printf("room ended, signature %s\n", res.Signature)
	return nil
}

func cmdCleanup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	host := fs.String("host", "", "room host address (defaults to wallet)")
	id := fs.String("id", "", "room id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hostKey := a.wallet.Address()
	if *host != "" {
		var err error
		hostKey, err = parseKey(fs, "host", *host)
		if err != nil {
			return err
		}
	}
	res, err := a.rooms.CleanupRoom(ctx, hostKey, *id)
	if err != nil {
		return err
	}
	fmt.Printf("room cleaned up, reclaimed %d lamports, signature %s\n", res.Reclaimed, res.Signature)
	return nil
}

func cmdRecover(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	host := fs.String("host", "", "room host address")
	id := fs.String("id", "", "room id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hostKey, err := parseKey(fs, "host", *host)
	if err != nil {
		return err
	}
	res, err := a.rooms.RecoverRoom(ctx, hostKey, *id)
	if err != nil {
		return err
	}
	fmt.Printf("room recovered, signature %s\n", res.Signature)
	return nil
}

func cmdInfo(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	address := fs.String("address", "", "room address (or use -host and -id)")
	host := fs.String("host", "", "room host address")
	id := fs.String("id", "", "room id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var info *rooms.RoomInfo
	var err error
	if *address != "" {
		addr, perr := parseKey(fs, "address", *address)
		if perr != nil {
			return perr
		}
		info, err = a.rooms.GetRoomInfo(ctx, addr)
	} else {
		hostKey, perr := parseKey(fs, "host", *host)
		if perr != nil {
			return perr
		}
		info, err = a.rooms.GetRoom(ctx, hostKey, *id)
	}
	if err != nil {
		return err
	}
	if info == nil {
		fmt.Println("room not found")
		return nil
	}

	out, err := json.MarshalIndent(map[string]any{
		"address":         info.Address.String(),
		"vault":           info.Vault.String(),
		"room_id":         info.Room.RoomID,
		"host":            info.Room.Host.String(),
		"status":          info.Room.Status.String(),
		"prize_mode":      info.Room.PrizeMode.String(),
		"entry_fee":       info.Room.EntryFee,
		"players":         fmt.Sprintf("%d/%d", info.Room.PlayerCount, info.Room.MaxPlayers),
		"total_collected": info.Room.TotalCollected,
		"host_fee_bps":    info.Room.HostFeeBps,
		"prize_pool_bps":  info.Room.PrizePoolBps,
		"charity_bps":     info.Room.CharityBps,
		"joining_closed":  info.Room.JoiningClosed,
		"ended":           info.Room.Ended,
		"expiration_slot": info.Room.ExpirationSlot,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
