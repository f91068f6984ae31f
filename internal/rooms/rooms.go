// Package rooms is the caller-facing lifecycle API: create fundraising
// rooms, manage joining and prizes, finalize, clean up, and read room state.
// All writes go through the submitter with an effect probe, so a retried
// operation is applied at most once.
package rooms

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"fundrooms/internal/ledger"
	"fundrooms/internal/program"
	"fundrooms/internal/tokens"
	"fundrooms/internal/txsub"
	"fundrooms/internal/wallet"
)

// Bootstrapper creates the shared singleton accounts the lifecycle depends
// on. Satisfied by *bootstrap.Service; nil disables auto-remediation, which
// is fine for read-only services.
type Bootstrapper interface {
	EnsureTokenRegistry(ctx context.Context) (*program.TokenRegistry, bool, error)
}

// Service orchestrates room operations for one wallet.
type Service struct {
	client  ledger.Client
	sub     *txsub.Submitter
	builder *program.Builder
	tokens  *tokens.Resolver
	boot    Bootstrapper
	wallet  wallet.Wallet
	log     zerolog.Logger

	// feeBuffer is extra lamports demanded on top of rent during preflight,
	// covering transaction fees.
	feeBuffer uint64
}

func NewService(client ledger.Client, sub *txsub.Submitter, builder *program.Builder, resolver *tokens.Resolver, boot Bootstrapper, w wallet.Wallet, feeBuffer uint64, log zerolog.Logger) *Service {
	return &Service{
		client:    client,
		sub:       sub,
		builder:   builder,
		tokens:    resolver,
		boot:      boot,
		wallet:    w,
		feeBuffer: feeBuffer,
		log:       log,
	}
}

// RoomInfo is a decoded room together with its derived addresses.
type RoomInfo struct {
	Address solana.PublicKey
	Vault   solana.PublicKey
	Room    *program.Room
}

// GetRoomInfo reads the room at addr. A missing or undecodable account
// yields nil without an error; network failures are still errors.
func (s *Service) GetRoomInfo(ctx context.Context, addr solana.PublicKey) (*RoomInfo, error) {
	acc, err := s.client.AccountInfo(ctx, addr)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	room, err := program.DecodeRoom(acc.Data)
	if err != nil {
		s.log.Debug().Str("address", addr.String()).Err(err).Msg("account is not a decodable room")
		return nil, nil
	}
	vault, _, err := program.RoomVaultPDA(s.builder.ProgramID, addr)
	if err != nil {
		return nil, err
	}
	return &RoomInfo{Address: addr, Vault: vault, Room: room}, nil
}

// GetRoom derives the room address for host+roomID and reads it.
func (s *Service) GetRoom(ctx context.Context, host solana.PublicKey, roomID string) (*RoomInfo, error) {
	addr, _, err := program.RoomPDA(s.builder.ProgramID, host, roomID)
	if err != nil {
		return nil, err
	}
	return s.GetRoomInfo(ctx, addr)
}

// mustRoom is GetRoom with not-found promoted to ErrRoomNotFound for
// operations that require an existing room.
func (s *Service) mustRoom(ctx context.Context, host solana.PublicKey, roomID string) (*RoomInfo, error) {
	info, err := s.GetRoom(ctx, host, roomID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrRoomNotFound
	}
	return info, nil
}

func (s *Service) requireHost(info *RoomInfo) error {
	caller := s.wallet.Address()
	if !info.Room.Host.Equals(caller) {
		return &NotHostError{Host: info.Room.Host, Caller: caller}
	}
	return nil
}

// roomExists probes for the room account, used to resolve ambiguous create
// outcomes.
func (s *Service) roomExists(addr solana.PublicKey) txsub.ProbeFunc {
	return func(ctx context.Context) (bool, error) {
		_, err := s.client.AccountInfo(ctx, addr)
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

// roomWhere probes room state, resolving ambiguity for mutations whose
// effect is a visible field change.
func (s *Service) roomWhere(addr solana.PublicKey, cond func(*program.Room) bool) txsub.ProbeFunc {
	return func(ctx context.Context) (bool, error) {
		info, err := s.GetRoomInfo(ctx, addr)
		if err != nil {
			return false, err
		}
		if info == nil {
			return false, nil
		}
		return cond(info.Room), nil
	}
}

// checkNotPaused refuses mutations while the global emergency pause is set.
// A missing config account is tolerated; the program rejects the operation
// itself if it is truly uninitialized.
func (s *Service) checkNotPaused(ctx context.Context) error {
	cfg, err := s.globalConfig(ctx)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.EmergencyPause {
		return ErrEmergencyPaused
	}
	return nil
}

func (s *Service) submit(ctx context.Context, instructions []solana.Instruction, probe txsub.ProbeFunc) (*txsub.Result, error) {
	return s.sub.Submit(ctx, txsub.Request{
		Instructions: instructions,
		Payer:        s.wallet.Address(),
		Signer:       s.wallet,
		Probe:        probe,
	})
}
