package txsub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrNoInstructions   = errors.New("no instructions")
	ErrBlockhashExpired = errors.New("blockhash expired")
	// ErrAmbiguousOutcome means a resend was rejected as already processed
	// and no probe was supplied to establish whether the effect landed.
	ErrAmbiguousOutcome = errors.New("ambiguous transaction outcome")
)

// SimulationError is a program-level rejection during simulation. The
// transaction was never sent.
type SimulationError struct {
	ProgramErr    error
	Logs          []string
	UnitsConsumed uint64
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed: %v", e.ProgramErr)
}

// TransactionError is a landed-but-failed transaction.
type TransactionError struct {
	Signature solana.Signature
	Cause     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Cause)
}

// MaxAttemptsError means every attempt expired without confirmation and the
// probe (if any) never saw the effect land.
type MaxAttemptsError struct {
	Attempts      int
	LastSignature solana.Signature
}

func (e *MaxAttemptsError) Error() string {
	return fmt.Sprintf("gave up after %d attempts, last signature %s", e.Attempts, e.LastSignature)
}

// IsAlreadyProcessed reports whether a send error is the node refusing a
// transaction it has already seen, which makes the outcome ambiguous rather
// than failed.
func IsAlreadyProcessed(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already been processed") ||
		strings.Contains(msg, "AlreadyProcessed")
}
