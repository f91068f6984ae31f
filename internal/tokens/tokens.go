// Package tokens resolves SPL token holdings for a wallet: associated token
// account derivation, existence and ownership checks, and balance
// sufficiency ahead of a transfer.
package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"fundrooms/internal/ledger"
)

var ErrHoldingNotFound = errors.New("token holding not found")

// WrongOwnerError means the account at the associated address exists but is
// not owned by the token program or does not hold the expected mint.
type WrongOwnerError struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Mint    solana.PublicKey
}

func (e *WrongOwnerError) Error() string {
	return fmt.Sprintf("account %s is not a token holding for mint %s (owner %s)", e.Address, e.Mint, e.Owner)
}

// Holding is a wallet's associated token account for one mint.
type Holding struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Mint    solana.PublicKey
	// Exists is false when the account has not been created yet; Amount is
	// zero in that case.
	Exists bool
	Amount uint64
}

// Sufficiency is the verdict of a balance check before a spend.
type Sufficiency struct {
	Sufficient bool
	Current    uint64
	Required   uint64
	// Missing is Required - Current when insufficient, else zero.
	Missing uint64
}

// Resolver reads token holdings through a ledger client.
type Resolver struct {
	client ledger.Client
}

func NewResolver(client ledger.Client) *Resolver {
	return &Resolver{client: client}
}

// AssociatedAddress derives the canonical token account address for
// owner+mint. Pure derivation, no network.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}

// Resolve fetches the holding for owner+mint. A missing account yields
// Exists:false, not an error; an account of the wrong shape yields
// *WrongOwnerError.
func (r *Resolver) Resolve(ctx context.Context, owner, mint solana.PublicKey) (Holding, error) {
	addr, err := AssociatedAddress(owner, mint)
	if err != nil {
		return Holding{}, err
	}
	h := Holding{Address: addr, Owner: owner, Mint: mint}

	acc, err := r.client.AccountInfo(ctx, addr)
	if errors.Is(err, ledger.ErrNotFound) {
		return h, nil
	}
	if err != nil {
		return Holding{}, err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return Holding{}, &WrongOwnerError{Address: addr, Owner: acc.Owner, Mint: mint}
	}
	// SPL token account layout starts with the 32-byte mint.
	if len(acc.Data) < 32 {
		return Holding{}, &WrongOwnerError{Address: addr, Owner: acc.Owner, Mint: mint}
	}
	if !solana.PublicKeyFromBytes(acc.Data[:32]).Equals(mint) {
		return Holding{}, &WrongOwnerError{Address: addr, Owner: acc.Owner, Mint: mint}
	}

	amount, err := r.client.TokenAccountBalance(ctx, addr)
	if err != nil {
		return Holding{}, err
	}
	h.Exists = true
	h.Amount = amount
	return h, nil
}

// CheckSufficiency resolves the holding and compares it against required.
// A missing account counts as zero balance.
func (r *Resolver) CheckSufficiency(ctx context.Context, owner, mint solana.PublicKey, required uint64) (Sufficiency, error) {
	h, err := r.Resolve(ctx, owner, mint)
	if err != nil {
		return Sufficiency{}, err
	}
	s := Sufficiency{Current: h.Amount, Required: required}
	if h.Amount >= required {
		s.Sufficient = true
	} else {
		s.Missing = required - h.Amount
	}
	return s, nil
}

// EnsureHolding returns the holding plus, when the account does not exist
// yet, the idempotent create instruction to prepend to the caller's
// transaction.
func (r *Resolver) EnsureHolding(ctx context.Context, payer, owner, mint solana.PublicKey) (Holding, solana.Instruction, error) {
	h, err := r.Resolve(ctx, owner, mint)
	if err != nil {
		return Holding{}, nil, err
	}
	if h.Exists {
		return h, nil, nil
	}
	return h, createAssociatedAccountInstruction(payer, owner, mint, h.Address), nil
}

// createAssociatedAccountInstruction builds CreateIdempotent (discriminant 1)
// for the associated token account program, safe to include even when a
// concurrent transaction creates the account first.
func createAssociatedAccountInstruction(payer, owner, mint, ata solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(ata).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.TokenProgramID),
		},
		[]byte{1},
	)
}
