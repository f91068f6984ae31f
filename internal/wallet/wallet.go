// Package wallet abstracts the signing provider. The library never handles
// key material beyond asking a Wallet to sign; browser/hardware providers
// implement the same interface out of process.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var ErrNotConnected = errors.New("wallet_not_connected")

// Wallet is the signing provider contract.
type Wallet interface {
	Address() solana.PublicKey
	IsConnected() bool
	Connect(ctx context.Context) error
	SignTransaction(tx *solana.Transaction) error
}

// Local is a Wallet backed by an in-process keypair, used by the CLI and by
// server-side admin tooling.
type Local struct {
	key solana.PrivateKey
}

// NewLocalFromFile loads a JSON keygen file (the standard CLI keypair
// format).
func NewLocalFromFile(path string) (*Local, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return &Local{key: key}, nil
}

// NewLocal wraps an existing private key.
func NewLocal(key solana.PrivateKey) *Local {
	return &Local{key: key}
}

func (l *Local) Address() solana.PublicKey { return l.key.PublicKey() }

func (l *Local) IsConnected() bool { return len(l.key) > 0 }

func (l *Local) Connect(context.Context) error {
	if !l.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

func (l *Local) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key == l.key.PublicKey() {
			return &l.key
		}
		return nil
	})
	return err
}
