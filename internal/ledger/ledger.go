// Package ledger narrows the remote node's RPC surface to the read and
// submit operations the rest of the library needs, behind an interface small
// enough to fake in tests.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var ErrNotFound = errors.New("not_found")

// Blockhash is a recent sequence marker and the block height after which it
// can no longer be used.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Simulation is the result of a dry run against current ledger state.
type Simulation struct {
	Err           error
	Logs          []string
	UnitsConsumed uint64
}

// SignatureStatus describes how far a submitted transaction has progressed.
type SignatureStatus struct {
	Slot          uint64
	Confirmations *uint64
	Err           error
	// Commitment is processed, confirmed or finalized.
	Commitment string
}

// Account is a fetched ledger account.
type Account struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

// SignatureInfo is one entry of an address's signature history.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime int64
	Err       error
}

// TransactionDetail is the confirmed transaction metadata relevant to event
// decoding.
type TransactionDetail struct {
	Slot      uint64
	BlockTime int64
	Logs      []string
	Err       error
}

// Client is the ledger access surface. All methods are single round trips;
// reads are idempotent and safe to retry.
type Client interface {
	LatestBlockhash(ctx context.Context) (Blockhash, error)
	BlockHeight(ctx context.Context) (uint64, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*Simulation, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	AccountInfo(ctx context.Context, addr solana.PublicKey) (*Account, error)
	Balance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	TokenAccountBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	SignaturesForAddress(ctx context.Context, addr solana.PublicKey, until solana.Signature, limit int) ([]SignatureInfo, error)
	TransactionDetail(ctx context.Context, sig solana.Signature) (*TransactionDetail, error)
}

// programError wraps the untyped error value the RPC layer returns for
// failed transactions.
type programError struct {
	value interface{}
}

func (e *programError) Error() string {
	return fmt.Sprintf("program error: %v", e.value)
}

func wrapTxErr(v interface{}) error {
	if v == nil {
		return nil
	}
	return &programError{value: v}
}
