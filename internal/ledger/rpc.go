package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPC implements Client on top of a JSON-RPC node.
type RPC struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPC dials nothing; it just configures the endpoint and commitment level
// ("processed", "confirmed" or "finalized") used by every call.
func NewRPC(endpoint, commitment string) (*RPC, error) {
	c, err := parseCommitment(commitment)
	if err != nil {
		return nil, err
	}
	return &RPC{client: rpc.New(endpoint), commitment: c}, nil
}

func parseCommitment(s string) (rpc.CommitmentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed", "":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("unknown commitment %q", s)
	}
}

// Commitment reports the configured confirmation level.
func (r *RPC) Commitment() string { return string(r.commitment) }

func (r *RPC) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	out, err := r.client.GetLatestBlockhash(ctx, r.commitment)
	if err != nil {
		return Blockhash{}, err
	}
	return Blockhash{
		Hash:                 out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

func (r *RPC) BlockHeight(ctx context.Context) (uint64, error) {
	return r.client.GetBlockHeight(ctx, r.commitment)
}

func (r *RPC) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*Simulation, error) {
	out, err := r.client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		Commitment: r.commitment,
	})
	if err != nil {
		return nil, err
	}
	sim := &Simulation{
		Err:  wrapTxErr(out.Value.Err),
		Logs: out.Value.Logs,
	}
	if out.Value.UnitsConsumed != nil {
		sim.UnitsConsumed = *out.Value.UnitsConsumed
	}
	return sim, nil
}

func (r *RPC) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	// Preflight is skipped: the submitter always simulates explicitly first,
	// and a node-side preflight failure would mask the ambiguous
	// "already processed" signal on resends.
	return r.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: r.commitment,
	})
}

func (r *RPC) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	out, err := r.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, err
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return nil, nil
	}
	st := out.Value[0]
	return &SignatureStatus{
		Slot:          st.Slot,
		Confirmations: st.Confirmations,
		Err:           wrapTxErr(st.Err),
		Commitment:    string(st.ConfirmationStatus),
	}, nil
}

func (r *RPC) AccountInfo(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	out, err := r.client.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: r.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, ErrNotFound
	}
	acct := &Account{
		Lamports: out.Value.Lamports,
		Owner:    out.Value.Owner,
	}
	if out.Value.Data != nil {
		acct.Data = out.Value.Data.GetBinary()
	}
	return acct, nil
}

func (r *RPC) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	out, err := r.client.GetBalance(ctx, addr, r.commitment)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

func (r *RPC) TokenAccountBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	out, err := r.client.GetTokenAccountBalance(ctx, addr, r.commitment)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if out.Value == nil {
		return 0, ErrNotFound
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

func (r *RPC) MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	return r.client.GetMinimumBalanceForRentExemption(ctx, dataSize, r.commitment)
}

func (r *RPC) SignaturesForAddress(ctx context.Context, addr solana.PublicKey, until solana.Signature, limit int) ([]SignatureInfo, error) {
	opts := &rpc.GetSignaturesForAddressOpts{Commitment: r.commitment}
	if limit > 0 {
		opts.Limit = &limit
	}
	if !until.IsZero() {
		opts.Until = until
	}
	out, err := r.client.GetSignaturesForAddressWithOpts(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	infos := make([]SignatureInfo, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		info := SignatureInfo{
			Signature: s.Signature,
			Slot:      s.Slot,
			Err:       wrapTxErr(s.Err),
		}
		if s.BlockTime != nil {
			info.BlockTime = s.BlockTime.Time().Unix()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (r *RPC) TransactionDetail(ctx context.Context, sig solana.Signature) (*TransactionDetail, error) {
	maxVersion := uint64(0)
	out, err := r.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     r.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if out == nil {
		return nil, ErrNotFound
	}
	detail := &TransactionDetail{Slot: out.Slot}
	if out.BlockTime != nil {
		detail.BlockTime = out.BlockTime.Time().Unix()
	}
	if out.Meta != nil {
		detail.Logs = out.Meta.LogMessages
		detail.Err = wrapTxErr(out.Meta.Err)
	}
	return detail, nil
}
