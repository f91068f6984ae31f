package rooms

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"fundrooms/internal/bootstrap"
	"fundrooms/internal/ledger"
	"fundrooms/internal/program"
	"fundrooms/internal/txsub"
)

// PoolRoomParams describe a room whose prizes come out of collected entry
// fees.
type PoolRoomParams struct {
	RoomID        string
	FeeTokenMint  solana.PublicKey
	CharityWallet solana.PublicKey
	EntryFee      uint64
	MaxPlayers    uint32
	HostFeeBps    uint16
	PrizePoolBps  uint16
	// Place percentages of the prize pool; present places must sum to 100.
	FirstPlacePct  uint16
	SecondPlacePct *uint16
	ThirdPlacePct  *uint16
	CharityMemo    string
	// ExpirationSlots bounds the room's life measured from creation; nil
	// uses the program default.
	ExpirationSlots *uint64
}

// PrizeSlot is one pre-funded prize of an asset-mode room.
type PrizeSlot struct {
	Mint   solana.PublicKey
	Amount uint64
}

// AssetRoomParams describe a room with escrowed asset prizes. The prize-pool
// share is fixed at zero; entry fees split between platform, host and
// charity only.
type AssetRoomParams struct {
	RoomID          string
	FeeTokenMint    solana.PublicKey
	CharityWallet   solana.PublicKey
	EntryFee        uint64
	MaxPlayers      uint32
	HostFeeBps      uint16
	CharityMemo     string
	ExpirationSlots *uint64
	// Prizes holds 1 to 3 slots; slot order is payout order.
	Prizes []PrizeSlot
}

// CreateResult identifies the room a create operation produced.
type CreateResult struct {
	Signature   solana.Signature
	RoomAddress solana.PublicKey
	Vault       solana.PublicKey
}

// ValidateShares checks the pool-mode fee split. The platform share is
// fixed; charity receives the remainder and must keep its floor.
func ValidateShares(hostFeeBps, prizePoolBps uint16) error {
	charity := program.BpsDenominator - program.PlatformFeeBps - int(hostFeeBps) - int(prizePoolBps)
	if hostFeeBps > program.MaxHostFeeBps {
		return &ShareError{HostFeeBps: hostFeeBps, PrizePoolBps: prizePoolBps, CharityBps: charity,
			Reason: "host share above maximum"}
	}
	if prizePoolBps > program.MaxPrizePoolBps {
		return &ShareError{HostFeeBps: hostFeeBps, PrizePoolBps: prizePoolBps, CharityBps: charity,
			Reason: "prize pool share above maximum"}
	}
	if charity < program.MinCharityBps {
		return &ShareError{HostFeeBps: hostFeeBps, PrizePoolBps: prizePoolBps, CharityBps: charity,
			Reason: "charity share below floor"}
	}
	return nil
}

func validateDistribution(first uint16, second, third *uint16) error {
	sum := int(first)
	if second != nil {
		sum += int(*second)
	}
	if third != nil {
		sum += int(*third)
	}
	if sum != 100 {
		return &DistributionError{Sum: sum}
	}
	return nil
}

// CreatePoolRoom validates the split locally, confirms the fee mint is
// approved, preflights the host's lamport balance and submits the create.
// The connected wallet is the host.
func (s *Service) CreatePoolRoom(ctx context.Context, p PoolRoomParams) (*CreateResult, error) {
	if err := program.ValidateRoomID(p.RoomID); err != nil {
		return nil, err
	}
	if err := ValidateShares(p.HostFeeBps, p.PrizePoolBps); err != nil {
		return nil, err
	}
	if err := validateDistribution(p.FirstPlacePct, p.SecondPlacePct, p.ThirdPlacePct); err != nil {
		return nil, err
	}
	if err := s.checkMintApproved(ctx, p.FeeTokenMint); err != nil {
		return nil, err
	}

	host := s.wallet.Address()
	ix, err := s.builder.InitPoolRoom(program.InitPoolRoomArgs{
		Host:            host,
		FeeTokenMint:    p.FeeTokenMint,
		RoomID:          p.RoomID,
		CharityWallet:   p.CharityWallet,
		EntryFee:        p.EntryFee,
		MaxPlayers:      p.MaxPlayers,
		HostFeeBps:      p.HostFeeBps,
		PrizePoolBps:    p.PrizePoolBps,
		FirstPlacePct:   p.FirstPlacePct,
		SecondPlacePct:  p.SecondPlacePct,
		ThirdPlacePct:   p.ThirdPlacePct,
		CharityMemo:     p.CharityMemo,
		ExpirationSlots: p.ExpirationSlots,
	})
	if err != nil {
		return nil, err
	}
	return s.createRoom(ctx, host, p.RoomID, ix)
}

// CreateAssetRoom creates an asset-mode room. Prize slots are declared here
// and funded afterwards via AddPrizeAsset.
func (s *Service) CreateAssetRoom(ctx context.Context, p AssetRoomParams) (*CreateResult, error) {
	if err := program.ValidateRoomID(p.RoomID); err != nil {
		return nil, err
	}
	// Asset mode fixes the prize-pool share at zero.
	if err := ValidateShares(p.HostFeeBps, 0); err != nil {
		return nil, err
	}
	if len(p.Prizes) == 0 {
		return nil, &PrizeSlotError{Slot: 0, Reason: "at least one prize slot required"}
	}
	if len(p.Prizes) > program.MaxPrizeSlots {
		return nil, &PrizeSlotError{Slot: uint8(len(p.Prizes) - 1), Reason: "too many prize slots"}
	}
	if err := s.checkMintApproved(ctx, p.FeeTokenMint); err != nil {
		return nil, err
	}

	host := s.wallet.Address()
	args := program.InitAssetRoomArgs{
		Host:            host,
		FeeTokenMint:    p.FeeTokenMint,
		RoomID:          p.RoomID,
		CharityWallet:   p.CharityWallet,
		EntryFee:        p.EntryFee,
		MaxPlayers:      p.MaxPlayers,
		HostFeeBps:      p.HostFeeBps,
		CharityMemo:     p.CharityMemo,
		ExpirationSlots: p.ExpirationSlots,
		Prize1Mint:      p.Prizes[0].Mint,
		Prize1Amount:    p.Prizes[0].Amount,
	}
	if len(p.Prizes) > 1 {
		args.Prize2Mint = &p.Prizes[1].Mint
		args.Prize2Amount = &p.Prizes[1].Amount
	}
	if len(p.Prizes) > 2 {
		args.Prize3Mint = &p.Prizes[2].Mint
		args.Prize3Amount = &p.Prizes[2].Amount
	}
	ix, err := s.builder.InitAssetRoom(args)
	if err != nil {
		return nil, err
	}
	return s.createRoom(ctx, host, p.RoomID, ix)
}

func (s *Service) createRoom(ctx context.Context, host solana.PublicKey, roomID string, ix solana.Instruction) (*CreateResult, error) {
	if err := s.checkNotPaused(ctx); err != nil {
		return nil, err
	}
	if err := s.preflightLamports(ctx, host); err != nil {
		return nil, err
	}
	roomAddr, _, err := program.RoomPDA(s.builder.ProgramID, host, roomID)
	if err != nil {
		return nil, err
	}
	vault, _, err := program.RoomVaultPDA(s.builder.ProgramID, roomAddr)
	if err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, []solana.Instruction{ix}, s.roomExists(roomAddr))
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("room", roomAddr.String()).
		Str("room_id", roomID).
		Str("signature", res.Signature.String()).
		Bool("resolved_by_probe", res.ResolvedByProbe).
		Msg("room created")
	return &CreateResult{Signature: res.Signature, RoomAddress: roomAddr, Vault: vault}, nil
}

// preflightLamports fails fast with the exact shortfall instead of letting
// the create die in simulation with an opaque rent error.
func (s *Service) preflightLamports(ctx context.Context, host solana.PublicKey) error {
	roomRent, err := s.client.MinimumBalanceForRentExemption(ctx, program.RoomSize)
	if err != nil {
		return err
	}
	vaultRent, err := s.client.MinimumBalanceForRentExemption(ctx, program.TokenAccountSize)
	if err != nil {
		return err
	}
	required := roomRent + vaultRent + s.feeBuffer
	available, err := s.client.Balance(ctx, host)
	if err != nil {
		return err
	}
	if available < required {
		return &InsufficientLamportsError{Required: required, Available: available}
	}
	return nil
}

func (s *Service) checkMintApproved(ctx context.Context, mint solana.PublicKey) error {
	reg, err := s.registry(ctx)
	if errors.Is(err, ledger.ErrNotFound) {
		reg, err = s.remediateRegistry(ctx)
	}
	if err != nil {
		return err
	}
	if !reg.IsApproved(mint) {
		return &MintNotApprovedError{Mint: mint}
	}
	return nil
}

func (s *Service) registry(ctx context.Context) (*program.TokenRegistry, error) {
	addr, _, err := program.TokenRegistryPDA(s.builder.ProgramID, s.builder.Registry)
	if err != nil {
		return nil, err
	}
	acc, err := s.client.AccountInfo(ctx, addr)
	if err != nil {
		return nil, err
	}
	return program.DecodeTokenRegistry(acc.Data)
}

// remediateRegistry runs the bootstrapper when the registry for the active
// version does not exist yet (fresh deployment, or a registry version bump).
// Creation needs the admin wallet; anyone else gets an error naming the
// missing account instead of a raw not-found.
func (s *Service) remediateRegistry(ctx context.Context) (*program.TokenRegistry, error) {
	if s.boot == nil {
		return nil, &NotInitializedError{Missing: "token registry"}
	}
	reg, created, err := s.boot.EnsureTokenRegistry(ctx)
	if errors.Is(err, ledger.ErrNotFound) {
		// No global config means no recorded admin; config creation takes
		// operator-chosen wallets, so it is never done on a caller's behalf.
		return nil, &NotInitializedError{Missing: "global config", Cause: err}
	}
	var notAuth *bootstrap.NotAuthorizedError
	if errors.As(err, &notAuth) {
		return nil, &NotInitializedError{Missing: "token registry", Cause: err}
	}
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info().Str("version", string(s.builder.Registry)).Msg("token registry initialized during room creation")
	}
	return reg, nil
}

// AddPrizeAsset escrows one declared prize slot from the host's token
// account. Funding an already-deposited slot is a no-op.
func (s *Service) AddPrizeAsset(ctx context.Context, roomID string, slot uint8) (*txsub.Result, error) {
	if slot >= program.MaxPrizeSlots {
		return nil, &PrizeSlotError{Slot: slot, Reason: "slot out of range"}
	}
	host := s.wallet.Address()
	info, err := s.mustRoom(ctx, host, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.requireHost(info); err != nil {
		return nil, err
	}
	prize := info.Room.PrizeAssets[slot]
	if prize == nil {
		return nil, &PrizeSlotError{Slot: slot, Reason: "slot not declared at creation"}
	}
	if prize.Deposited {
		return nil, nil
	}

	holding, createIx, err := s.tokens.EnsureHolding(ctx, host, host, prize.Mint)
	if err != nil {
		return nil, err
	}
	if holding.Amount < prize.Amount {
		return nil, &InsufficientTokensError{Mint: prize.Mint, Required: prize.Amount, Current: holding.Amount}
	}

	ix, err := s.builder.AddPrizeAsset(host, holding.Address, roomID, slot)
	if err != nil {
		return nil, err
	}
	var ixs []solana.Instruction
	if createIx != nil {
		ixs = append(ixs, createIx)
	}
	ixs = append(ixs, ix)
	probe := s.roomWhere(info.Address, func(r *program.Room) bool {
		return r.PrizeAssets[slot] != nil && r.PrizeAssets[slot].Deposited
	})
	res, err := s.submit(ctx, ixs, probe)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("room", info.Address.String()).
		Uint8("slot", slot).
		Str("signature", res.Signature.String()).
		Msg("prize asset deposited")
	return res, nil
}
