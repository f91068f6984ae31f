package rooms

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"fundrooms/internal/ledger"
	"fundrooms/internal/program"
	"fundrooms/internal/txsub"
)

// JoinParams buy the connected wallet into a room.
type JoinParams struct {
	Host   solana.PublicKey
	RoomID string
	// Extras is an optional tip on top of the entry fee; it goes entirely
	// to charity.
	Extras uint64
}

// JoinRoom pays the entry fee (plus extras) from the player's token account
// and records the player entry.
func (s *Service) JoinRoom(ctx context.Context, p JoinParams) (*txsub.Result, error) {
	info, err := s.mustRoom(ctx, p.Host, p.RoomID)
	if err != nil {
		return nil, err
	}
	if info.Room.JoiningClosed || info.Room.Ended {
		return nil, ErrJoiningClosed
	}
	if info.Room.PlayerCount >= info.Room.MaxPlayers {
		return nil, ErrRoomFull
	}
	if err := s.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	player := s.wallet.Address()
	required := info.Room.EntryFee + p.Extras
	holding, createIx, err := s.tokens.EnsureHolding(ctx, player, player, info.Room.FeeTokenMint)
	if err != nil {
		return nil, err
	}
	if holding.Amount < required {
		return nil, &InsufficientTokensError{Mint: info.Room.FeeTokenMint, Required: required, Current: holding.Amount}
	}

	ix, err := s.builder.JoinRoom(player, holding.Address, p.Host, p.RoomID, p.Extras)
	if err != nil {
		return nil, err
	}
	var ixs []solana.Instruction
	if createIx != nil {
		// Free rooms can be joined before the player ever held the fee
		// token; the account comes into existence in the same transaction.
		ixs = append(ixs, createIx)
	}
	ixs = append(ixs, ix)
	entryAddr, _, err := program.PlayerEntryPDA(s.builder.ProgramID, info.Address, player)
	if err != nil {
		return nil, err
	}
	res, err := s.submit(ctx, ixs, s.roomExists(entryAddr))
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("room", info.Address.String()).
		Str("player", player.String()).
		Uint64("extras", p.Extras).
		Str("signature", res.Signature.String()).
		Msg("joined room")
	return res, nil
}

// CloseJoining locks the room to new players. One-way; closing an already
// closed room is a no-op.
func (s *Service) CloseJoining(ctx context.Context, roomID string) (*txsub.Result, error) {
	host := s.wallet.Address()
	info, err := s.mustRoom(ctx, host, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.requireHost(info); err != nil {
		return nil, err
	}
	if info.Room.JoiningClosed {
		return nil, nil
	}

	ix, err := s.builder.CloseJoining(host, roomID)
	if err != nil {
		return nil, err
	}
	probe := s.roomWhere(info.Address, func(r *program.Room) bool { return r.JoiningClosed })
	res, err := s.submit(ctx, []solana.Instruction{ix}, probe)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("room", info.Address.String()).Str("signature", res.Signature.String()).Msg("joining closed")
	return res, nil
}

// DeclareWinners records the ordered winner list ahead of distribution.
func (s *Service) DeclareWinners(ctx context.Context, roomID string, winners []solana.PublicKey) (*txsub.Result, error) {
	if len(winners) == 0 || len(winners) > program.MaxWinners {
		return nil, &WinnerAccountsError{Winners: len(winners), Accounts: len(winners)}
	}
	host := s.wallet.Address()
	info, err := s.mustRoom(ctx, host, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.requireHost(info); err != nil {
		return nil, err
	}

	ix, err := s.builder.DeclareWinners(host, roomID, winners)
	if err != nil {
		return nil, err
	}
	probe := s.roomWhere(info.Address, func(r *program.Room) bool { return len(r.Winners) == len(winners) })
	res, err := s.submit(ctx, []solana.Instruction{ix}, probe)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("room", info.Address.String()).Int("winners", len(winners)).Str("signature", res.Signature.String()).Msg("winners declared")
	return res, nil
}

// EndParams finalize a room and distribute the vault.
type EndParams struct {
	RoomID  string
	Winners []solana.PublicKey
	// WinnerTokenAccounts receive prize payouts, one per winner in winner
	// order.
	WinnerTokenAccounts []solana.PublicKey
}

// EndRoom distributes the vault between platform, charity, host and winners
// and marks the room ended.
func (s *Service) EndRoom(ctx context.Context, p EndParams) (*txsub.Result, error) {
	if len(p.WinnerTokenAccounts) != len(p.Winners) {
		return nil, &WinnerAccountsError{Winners: len(p.Winners), Accounts: len(p.WinnerTokenAccounts)}
	}
	host := s.wallet.Address()
	info, err := s.mustRoom(ctx, host, p.RoomID)
	if err != nil {
		return nil, err
	}
	if err := s.requireHost(info); err != nil {
		return nil, err
	}

	cfg, err := s.globalConfig(ctx)
	if err != nil {
		return nil, err
	}
	// Payout accounts may not exist yet (a charity wallet that never held
	// the fee mint); the host pays for any creates in the same transaction
	// so the distribution cannot fail on a missing recipient.
	var ixs []solana.Instruction
	ensure := func(owner solana.PublicKey) (solana.PublicKey, error) {
		h, createIx, err := s.tokens.EnsureHolding(ctx, host, owner, info.Room.FeeTokenMint)
		if err != nil {
			return solana.PublicKey{}, err
		}
		if createIx != nil {
			ixs = append(ixs, createIx)
		}
		return h.Address, nil
	}
	platformATA, err := ensure(cfg.PlatformWallet)
	if err != nil {
		return nil, err
	}
	charityATA, err := ensure(info.Room.CharityWallet)
	if err != nil {
		return nil, err
	}
	hostATA, err := ensure(host)
	if err != nil {
		return nil, err
	}

	ix, err := s.builder.EndRoom(host, p.RoomID, p.Winners, program.EndRoomAccounts{
		PlatformTokenAccount: platformATA,
		CharityTokenAccount:  charityATA,
		HostTokenAccount:     hostATA,
		WinnerTokenAccounts:  p.WinnerTokenAccounts,
	})
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, ix)
	probe := s.roomWhere(info.Address, func(r *program.Room) bool { return r.Ended })
	res, err := s.submit(ctx, ixs, probe)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("room", info.Address.String()).Str("signature", res.Signature.String()).Msg("room ended")
	return res, nil
}

// CleanupResult reports what a cleanup reclaimed.
type CleanupResult struct {
	Signature solana.Signature
	// Reclaimed is the lamport rent of the room record, the entry-fee vault
	// and every closed prize vault, returned to the host.
	Reclaimed uint64
}

// CleanupRoom closes the room record and its vaults to reclaim rent. It
// refuses to run while any escrow still holds tokens: cleanup is all or
// nothing, never a partial close.
func (s *Service) CleanupRoom(ctx context.Context, host solana.PublicKey, roomID string) (*CleanupResult, error) {
	info, err := s.mustRoom(ctx, host, roomID)
	if err != nil {
		return nil, err
	}
	if info.Room.Status != program.RoomEnded {
		return nil, &RoomNotEndedError{Status: info.Room.Status}
	}

	vaultBalance, err := s.client.TokenAccountBalance(ctx, info.Vault)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	if vaultBalance > 0 {
		return nil, &VaultNotEmptyError{Vault: info.Vault, Slot: -1, Balance: vaultBalance}
	}

	reclaimed, err := s.accountLamports(ctx, info.Address, info.Vault)
	if err != nil {
		return nil, err
	}

	// Only funded slots have vault accounts to close.
	var prizeVaults []solana.PublicKey
	for slot, prize := range info.Room.PrizeAssets {
		if prize == nil || !prize.Deposited {
			continue
		}
		vault, _, err := program.PrizeVaultPDA(s.builder.ProgramID, info.Address, uint8(slot))
		if err != nil {
			return nil, err
		}
		balance, err := s.client.TokenAccountBalance(ctx, vault)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
		if balance > 0 {
			return nil, &VaultNotEmptyError{Vault: vault, Slot: slot, Balance: balance}
		}
		lamports, err := s.accountLamports(ctx, vault)
		if err != nil {
			return nil, err
		}
		reclaimed += lamports
		prizeVaults = append(prizeVaults, vault)
	}

	caller := s.wallet.Address()
	ix, err := s.builder.CleanupRoom(caller, host, roomID, prizeVaults)
	if err != nil {
		return nil, err
	}
	// Landed cleanup means the room account is gone.
	probe := func(ctx context.Context) (bool, error) {
		_, err := s.client.AccountInfo(ctx, info.Address)
		if errors.Is(err, ledger.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	res, err := s.submit(ctx, []solana.Instruction{ix}, probe)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("room", info.Address.String()).
		Uint64("reclaimed", reclaimed).
		Int("prize_vaults", len(prizeVaults)).
		Str("signature", res.Signature.String()).
		Msg("room cleaned up")
	return &CleanupResult{Signature: res.Signature, Reclaimed: reclaimed}, nil
}

// RecoverRoom drains an abandoned room's vault to the platform wallet.
// Admin only; the client pre-checks to avoid burning a transaction on a
// guaranteed rejection.
func (s *Service) RecoverRoom(ctx context.Context, host solana.PublicKey, roomID string) (*txsub.Result, error) {
	info, err := s.mustRoom(ctx, host, roomID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.globalConfig(ctx)
	if err != nil {
		return nil, err
	}
	admin := s.wallet.Address()
	if !cfg.Admin.Equals(admin) {
		return nil, &NotHostError{Host: cfg.Admin, Caller: admin}
	}
	platform, createIx, err := s.tokens.EnsureHolding(ctx, admin, cfg.PlatformWallet, info.Room.FeeTokenMint)
	if err != nil {
		return nil, err
	}

	ix, err := s.builder.RecoverRoom(admin, host, roomID, platform.Address)
	if err != nil {
		return nil, err
	}
	var ixs []solana.Instruction
	if createIx != nil {
		ixs = append(ixs, createIx)
	}
	ixs = append(ixs, ix)
	probe := s.roomWhere(info.Address, func(r *program.Room) bool { return r.Ended })
	res, err := s.submit(ctx, ixs, probe)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("room", info.Address.String()).Str("signature", res.Signature.String()).Msg("room recovered")
	return res, nil
}

func (s *Service) globalConfig(ctx context.Context) (*program.GlobalConfig, error) {
	addr, _, err := program.GlobalConfigPDA(s.builder.ProgramID)
	if err != nil {
		return nil, err
	}
	acc, err := s.client.AccountInfo(ctx, addr)
	if err != nil {
		return nil, err
	}
	return program.DecodeGlobalConfig(acc.Data)
}

func (s *Service) accountLamports(ctx context.Context, addrs ...solana.PublicKey) (uint64, error) {
	var total uint64
	for _, addr := range addrs {
		acc, err := s.client.AccountInfo(ctx, addr)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += acc.Lamports
	}
	return total, nil
}
