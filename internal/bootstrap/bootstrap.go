// Package bootstrap brings the program's shared accounts into existence and
// keeps them administered: the global config, the approved-mint registry,
// and the admin-only switches. Every Ensure operation is idempotent; running
// it against already-initialized state is a cheap read, not a failure.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"fundrooms/internal/ledger"
	"fundrooms/internal/program"
	"fundrooms/internal/txsub"
	"fundrooms/internal/wallet"
)

// NotAuthorizedError means the connected wallet is not the program admin
// recorded in the global config.
type NotAuthorizedError struct {
	Admin  solana.PublicKey
	Caller solana.PublicKey
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("wallet %s is not the program admin (%s)", e.Caller, e.Admin)
}

// Service performs bootstrap and admin operations with a single wallet.
type Service struct {
	client  ledger.Client
	sub     *txsub.Submitter
	builder *program.Builder
	wallet  wallet.Wallet
	log     zerolog.Logger
}

func NewService(client ledger.Client, sub *txsub.Submitter, builder *program.Builder, w wallet.Wallet, log zerolog.Logger) *Service {
	return &Service{client: client, sub: sub, builder: builder, wallet: w, log: log}
}

// GlobalConfig fetches and decodes the global config account.
// ledger.ErrNotFound means the program has not been initialized.
func (s *Service) GlobalConfig(ctx context.Context) (*program.GlobalConfig, error) {
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

// TokenRegistry fetches and decodes the registry for the builder's version.
func (s *Service) TokenRegistry(ctx context.Context) (*program.TokenRegistry, error) {
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

// EnsureGlobalConfig initializes the global config if it does not exist yet,
// with the connected wallet as admin. Returns the config either way; created
// reports whether this call brought it into existence.
func (s *Service) EnsureGlobalConfig(ctx context.Context, platformWallet, charityWallet solana.PublicKey) (cfg *program.GlobalConfig, created bool, err error) {
	cfg, err = s.GlobalConfig(ctx)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, false, err
	}

	admin := s.wallet.Address()
	ix, err := s.builder.Initialize(admin, platformWallet, charityWallet)
	if err != nil {
		return nil, false, err
	}
	res, err := s.submit(ctx, ix, s.configExists)
	if err != nil {
		return nil, false, err
	}
	s.log.Info().Str("signature", res.Signature.String()).Msg("global config initialized")

	cfg, err = s.GlobalConfig(ctx)
	if err != nil {
		return nil, false, err
	}
	return cfg, !res.ResolvedByProbe, nil
}

// EnsureTokenRegistry initializes the registry for the builder's version if
// missing. Registry versions live at distinct addresses; switching versions
// means ensuring the new one, the old stays untouched.
func (s *Service) EnsureTokenRegistry(ctx context.Context) (reg *program.TokenRegistry, created bool, err error) {
	reg, err = s.TokenRegistry(ctx)
	if err == nil {
		return reg, false, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, false, err
	}

	if err := s.requireAdmin(ctx); err != nil {
		return nil, false, err
	}
	ix, err := s.builder.InitializeTokenRegistry(s.wallet.Address())
	if err != nil {
		return nil, false, err
	}
	res, err := s.submit(ctx, ix, s.registryExists)
	if err != nil {
		return nil, false, err
	}
	s.log.Info().Str("signature", res.Signature.String()).Str("version", string(s.builder.Registry)).Msg("token registry initialized")

	reg, err = s.TokenRegistry(ctx)
	if err != nil {
		return nil, false, err
	}
	return reg, !res.ResolvedByProbe, nil
}

// EnsureApproved adds mint to the registry allowlist if absent. Returns
// whether this call changed the registry.
func (s *Service) EnsureApproved(ctx context.Context, mint solana.PublicKey) (bool, error) {
	reg, err := s.TokenRegistry(ctx)
	if err != nil {
		return false, err
	}
	if reg.IsApproved(mint) {
		return false, nil
	}
	if err := s.requireAdmin(ctx); err != nil {
		return false, err
	}

	ix, err := s.builder.AddApprovedToken(s.wallet.Address(), mint)
	if err != nil {
		return false, err
	}
	probe := func(ctx context.Context) (bool, error) {
		reg, err := s.TokenRegistry(ctx)
		if err != nil {
			return false, err
		}
		return reg.IsApproved(mint), nil
	}
	res, err := s.submit(ctx, ix, probe)
	if err != nil {
		return false, err
	}
	s.log.Info().Str("signature", res.Signature.String()).Str("mint", mint.String()).Msg("token approved")
	return true, nil
}

// RemoveApproved drops mint from the allowlist if present.
func (s *Service) RemoveApproved(ctx context.Context, mint solana.PublicKey) (bool, error) {
	reg, err := s.TokenRegistry(ctx)
	if err != nil {
		return false, err
	}
	if !reg.IsApproved(mint) {
		return false, nil
	}
	if err := s.requireAdmin(ctx); err != nil {
		return false, err
	}

	ix, err := s.builder.RemoveApprovedToken(s.wallet.Address(), mint)
	if err != nil {
		return false, err
	}
	probe := func(ctx context.Context) (bool, error) {
		reg, err := s.TokenRegistry(ctx)
		if err != nil {
			return false, err
		}
		return !reg.IsApproved(mint), nil
	}
	res, err := s.submit(ctx, ix, probe)
	if err != nil {
		return false, err
	}
	s.log.Info().Str("signature", res.Signature.String()).Str("mint", mint.String()).Msg("token removed")
	return true, nil
}

// SetEmergencyPause flips the global pause switch. Idempotent: setting the
// value already in place is a no-op read.
func (s *Service) SetEmergencyPause(ctx context.Context, paused bool) (bool, error) {
	cfg, err := s.GlobalConfig(ctx)
	if err != nil {
		return false, err
	}
	if cfg.EmergencyPause == paused {
		return false, nil
	}
	if err := s.requireAdmin(ctx); err != nil {
		return false, err
	}

	ix, err := s.builder.SetEmergencyPause(s.wallet.Address(), paused)
	if err != nil {
		return false, err
	}
	probe := func(ctx context.Context) (bool, error) {
		cfg, err := s.GlobalConfig(ctx)
		if err != nil {
			return false, err
		}
		return cfg.EmergencyPause == paused, nil
	}
	res, err := s.submit(ctx, ix, probe)
	if err != nil {
		return false, err
	}
	s.log.Info().Str("signature", res.Signature.String()).Bool("paused", paused).Msg("emergency pause updated")
	return true, nil
}

// UpdateGlobalConfig applies the non-nil fields of args.
func (s *Service) UpdateGlobalConfig(ctx context.Context, args program.UpdateGlobalConfigArgs) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	ix, err := s.builder.UpdateGlobalConfig(s.wallet.Address(), args)
	if err != nil {
		return err
	}
	res, err := s.sub.Submit(ctx, txsub.Request{
		Instructions: []solana.Instruction{ix},
		Payer:        s.wallet.Address(),
		Signer:       s.wallet,
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("signature", res.Signature.String()).Msg("global config updated")
	return nil
}

func (s *Service) requireAdmin(ctx context.Context) error {
	cfg, err := s.GlobalConfig(ctx)
	if err != nil {
		return err
	}
	caller := s.wallet.Address()
	if !cfg.Admin.Equals(caller) {
		return &NotAuthorizedError{Admin: cfg.Admin, Caller: caller}
	}
	return nil
}

func (s *Service) submit(ctx context.Context, ix solana.Instruction, probe txsub.ProbeFunc) (*txsub.Result, error) {
	return s.sub.Submit(ctx, txsub.Request{
		Instructions: []solana.Instruction{ix},
		Payer:        s.wallet.Address(),
		Signer:       s.wallet,
		Probe:        probe,
	})
}

func (s *Service) configExists(ctx context.Context) (bool, error) {
	addr, _, err := program.GlobalConfigPDA(s.builder.ProgramID)
	if err != nil {
		return false, err
	}
	return s.accountExists(ctx, addr)
}

func (s *Service) registryExists(ctx context.Context) (bool, error) {
	addr, _, err := program.TokenRegistryPDA(s.builder.ProgramID, s.builder.Registry)
	if err != nil {
		return false, err
	}
	return s.accountExists(ctx, addr)
}

func (s *Service) accountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	_, err := s.client.AccountInfo(ctx, addr)
	if errors.Is(err, ledger.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
