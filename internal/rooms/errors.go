package rooms

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"fundrooms/internal/program"
)

var (
	ErrRoomNotFound    = errors.New("room_not_found")
	ErrJoiningClosed   = errors.New("joining_closed")
	ErrRoomFull        = errors.New("room_full")
	ErrEmergencyPaused = errors.New("emergency_paused")
)

// NotInitializedError means a shared singleton account the operation depends
// on does not exist and this service could not create it. Missing names the
// account ("global config" or "token registry"); Cause, when set, is the
// remediation failure.
type NotInitializedError struct {
	Missing string
	Cause   error
}

func (e *NotInitializedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s is not initialized and could not be created: %v", e.Missing, e.Cause)
	}
	return fmt.Sprintf("%s is not initialized; bootstrap the deployment with the admin wallet first", e.Missing)
}

func (e *NotInitializedError) Unwrap() error { return e.Cause }

// ShareError reports a fee split that violates the economic invariants. All
// values are basis points; charity is the residual after the fixed platform
// share, the host share and the prize-pool share.
type ShareError struct {
	HostFeeBps   uint16
	PrizePoolBps uint16
	CharityBps   int
	Reason       string
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("invalid share split (host %d, prize %d, charity %d bps): %s",
		e.HostFeeBps, e.PrizePoolBps, e.CharityBps, e.Reason)
}

// DistributionError reports prize place percentages that do not sum to 100.
type DistributionError struct {
	Sum int
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("prize distribution sums to %d, want 100", e.Sum)
}

// MintNotApprovedError means the chosen entry-fee mint is absent from the
// token registry.
type MintNotApprovedError struct {
	Mint solana.PublicKey
}

func (e *MintNotApprovedError) Error() string {
	return fmt.Sprintf("mint %s is not in the approved token registry", e.Mint)
}

// InsufficientLamportsError carries the exact shortfall so the caller can
// top the wallet up in one step instead of iterating on failures.
type InsufficientLamportsError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientLamportsError) Error() string {
	return fmt.Sprintf("insufficient lamports: need %d, have %d (short %d)",
		e.Required, e.Available, e.Shortfall())
}

func (e *InsufficientLamportsError) Shortfall() uint64 {
	return e.Required - e.Available
}

// InsufficientTokensError is a token balance short of the required spend.
type InsufficientTokensError struct {
	Mint     solana.PublicKey
	Required uint64
	Current  uint64
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient balance of mint %s: need %d, have %d",
		e.Mint, e.Required, e.Current)
}

// NotHostError means the connected wallet does not host the target room.
type NotHostError struct {
	Host   solana.PublicKey
	Caller solana.PublicKey
}

func (e *NotHostError) Error() string {
	return fmt.Sprintf("wallet %s is not the room host (%s)", e.Caller, e.Host)
}

// RoomNotEndedError blocks cleanup of a room that is still live.
type RoomNotEndedError struct {
	Status program.RoomStatus
}

func (e *RoomNotEndedError) Error() string {
	return fmt.Sprintf("room is %s, cleanup requires ended", e.Status)
}

// VaultNotEmptyError blocks cleanup while escrowed funds remain. Slot is -1
// for the entry-fee vault, 0..2 for a prize vault.
type VaultNotEmptyError struct {
	Vault   solana.PublicKey
	Slot    int
	Balance uint64
}

func (e *VaultNotEmptyError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("room vault %s still holds %d tokens", e.Vault, e.Balance)
	}
	return fmt.Sprintf("prize vault %s (slot %d) still holds %d tokens", e.Vault, e.Slot, e.Balance)
}

// WinnerAccountsError means the trailing winner token accounts do not line
// up one-to-one with the declared winners.
type WinnerAccountsError struct {
	Winners  int
	Accounts int
}

func (e *WinnerAccountsError) Error() string {
	return fmt.Sprintf("%d winner token accounts for %d winners", e.Accounts, e.Winners)
}

// PrizeSlotError reports an invalid or misused prize slot.
type PrizeSlotError struct {
	Slot   uint8
	Reason string
}

func (e *PrizeSlotError) Error() string {
	return fmt.Sprintf("prize slot %d: %s", e.Slot, e.Reason)
}
