// Package txsub drives a transaction from built instructions to a resolved
// outcome: build against a fresh blockhash, simulate, send, poll for
// confirmation, retry on blockhash expiry, and disambiguate "already
// processed" resends by probing ledger state. The probe-before-resubmit rule
// is what guarantees a retried transaction lands at most once.
package txsub

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"fundrooms/internal/ledger"
	"fundrooms/internal/wallet"
)

// State names one stage of a submission's lifecycle, reported to retry
// observers and logged per transition.
type State string

const (
	StateBuilt          State = "built"
	StateSimulated      State = "simulated"
	StateSent           State = "sent"
	StateConfirmed      State = "confirmed"
	StateExpiredRetry   State = "expired_retry"
	StateAmbiguousProbe State = "ambiguous_probe"
	StateResolved       State = "resolved"
)

// ProbeFunc checks whether the submission's intended effect is already
// visible on the ledger (e.g. the target account exists with the expected
// shape). It must be safe to call repeatedly.
type ProbeFunc func(ctx context.Context) (bool, error)

// RetryObserver is invoked before each re-attempt with the stage the failed
// attempt reached and the error that triggered the retry.
type RetryObserver func(attempt int, state State, cause error)

// retryCause records why an attempt warrants another pass.
type retryCause struct {
	state State
	err   error
}

// Config tunes the submitter. Zero values fall back to defaults.
type Config struct {
	// Commitment is the confirmation level to wait for: processed,
	// confirmed or finalized.
	Commitment string
	// ConfirmTimeout bounds the confirmation poll per attempt; hitting it
	// yields an unconfirmed (not failed) result.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	MaxAttempts    int
	// RetryBase is the backoff unit; attempt n waits base * 2^(n-2).
	RetryBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.Commitment == "" {
		c.Commitment = "confirmed"
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	return c
}

// Request is one logical submission.
type Request struct {
	Instructions []solana.Instruction
	Payer        solana.PublicKey
	Signer       wallet.Wallet
	// Probe disambiguates ambiguous outcomes; required for any submission
	// that creates accounts or moves funds.
	Probe   ProbeFunc
	OnRetry RetryObserver
}

// Result is the resolved outcome of a submission.
type Result struct {
	// Signature is the last signature this process sent. A probe-resolved
	// outcome whose send was never acknowledged (already-processed on the
	// first attempt) carries a zero signature; check ResolvedByProbe before
	// displaying it.
	Signature solana.Signature
	// Confirmed is false when the wall-clock timeout elapsed first; the
	// transaction may still land, and the caller decides whether to requery.
	Confirmed bool
	Attempts  int
	// ResolvedByProbe marks success established via state probe rather than
	// signature confirmation.
	ResolvedByProbe bool
}

// Submitter executes Requests against a ledger client.
type Submitter struct {
	client ledger.Client
	cfg    Config
	log    zerolog.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(client ledger.Client, cfg Config, log zerolog.Logger) *Submitter {
	return &Submitter{
		client: client,
		cfg:    cfg.withDefaults(),
		log:    log,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newSubmissionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Submit runs the full state machine for one request.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Result, error) {
	if len(req.Instructions) == 0 {
		return nil, ErrNoInstructions
	}
	if req.Signer == nil || !req.Signer.IsConnected() {
		return nil, wallet.ErrNotConnected
	}

	subID := newSubmissionID()
	log := s.log.With().Str("submission", subID).Logger()

	var lastSig solana.Signature
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := s.cfg.RetryBase * time.Duration(1<<(attempt-2))
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying submission")
			if err := s.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, retry, err := s.attempt(ctx, req, attempt, &lastSig, log)
		if err != nil {
			return nil, err
		}
		if res != nil {
			res.Attempts = attempt
			return res, nil
		}
		if retry == nil {
			break
		}
		if req.OnRetry != nil {
			req.OnRetry(attempt, retry.state, retry.err)
		}
	}
	return nil, &MaxAttemptsError{Attempts: s.cfg.MaxAttempts, LastSignature: lastSig}
}

// attempt runs one build→simulate→send→confirm pass. It returns a non-nil
// Result on resolution, a non-nil retryCause when a fresh attempt is
// warranted, or an error for terminal failures.
func (s *Submitter) attempt(ctx context.Context, req Request, attempt int, lastSig *solana.Signature, log zerolog.Logger) (*Result, *retryCause, error) {
	// Blockhash is fetched as late as possible to maximize the validity
	// window left after signing.
	bh, err := s.client.LatestBlockhash(ctx)
	if err != nil {
		return nil, nil, err
	}
	tx, err := solana.NewTransaction(req.Instructions, bh.Hash, solana.TransactionPayer(req.Payer))
	if err != nil {
		return nil, nil, err
	}
	if err := req.Signer.SignTransaction(tx); err != nil {
		return nil, nil, err
	}
	log.Debug().Int("attempt", attempt).Str("state", string(StateBuilt)).Uint64("last_valid_height", bh.LastValidBlockHeight).Msg("transaction built")

	sim, err := s.client.SimulateTransaction(ctx, tx)
	if err != nil {
		// Transport failure, not a program verdict; retry.
		log.Warn().Err(err).Msg("simulation round trip failed")
		return nil, &retryCause{state: StateBuilt, err: err}, nil
	}
	if sim.Err != nil {
		return nil, nil, &SimulationError{ProgramErr: sim.Err, Logs: sim.Logs, UnitsConsumed: sim.UnitsConsumed}
	}
	log.Debug().Int("attempt", attempt).Str("state", string(StateSimulated)).Uint64("units", sim.UnitsConsumed).Msg("simulation passed")

	sig, err := s.client.SendTransaction(ctx, tx)
	if err != nil {
		if IsAlreadyProcessed(err) {
			return s.resolveAmbiguous(ctx, req, *lastSig, err, log)
		}
		log.Warn().Err(err).Msg("send failed")
		return nil, &retryCause{state: StateSimulated, err: err}, nil
	}
	*lastSig = sig
	log.Info().Int("attempt", attempt).Str("state", string(StateSent)).Str("signature", sig.String()).Msg("transaction sent")

	return s.confirm(ctx, req, sig, bh.LastValidBlockHeight, log)
}

// confirm polls signature status until the target commitment, blockhash
// expiry, or the wall-clock timeout.
func (s *Submitter) confirm(ctx context.Context, req Request, sig solana.Signature, lastValidHeight uint64, log zerolog.Logger) (*Result, *retryCause, error) {
	deadline := time.Now().Add(s.cfg.ConfirmTimeout)
	for {
		if time.Now().After(deadline) {
			// Unconfirmed is an outcome, not an error: the transaction may
			// still land after we stop watching.
			log.Warn().Str("signature", sig.String()).Msg("confirmation timeout; returning unconfirmed")
			return &Result{Signature: sig, Confirmed: false}, nil, nil
		}

		status, err := s.client.SignatureStatus(ctx, sig)
		if err != nil {
			return nil, nil, err
		}
		if status != nil {
			if status.Err != nil {
				return nil, nil, &TransactionError{Signature: sig, Cause: status.Err}
			}
			if commitmentReached(status.Commitment, s.cfg.Commitment) {
				log.Info().Str("state", string(StateConfirmed)).Str("signature", sig.String()).Msg("transaction confirmed")
				return &Result{Signature: sig, Confirmed: true}, nil, nil
			}
		} else {
			height, err := s.client.BlockHeight(ctx)
			if err != nil {
				return nil, nil, err
			}
			if height > lastValidHeight {
				// The blockhash expired before the ledger saw the
				// transaction. Probe before any resubmission: the send may
				// have landed in a block we have not observed yet.
				log.Warn().Str("state", string(StateExpiredRetry)).Str("signature", sig.String()).Msg("blockhash expired before confirmation")
				if landed, res, err := s.probeLanded(ctx, req, sig, log); err != nil {
					return nil, nil, err
				} else if landed {
					return res, nil, nil
				}
				return nil, &retryCause{state: StateExpiredRetry, err: ErrBlockhashExpired}, nil
			}
		}

		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return nil, nil, err
		}
	}
}

// resolveAmbiguous handles the "already processed" send verdict: an earlier
// attempt may have landed. Probe decides; absent evidence the attempt cycle
// continues with a fresh blockhash.
func (s *Submitter) resolveAmbiguous(ctx context.Context, req Request, lastSig solana.Signature, sendErr error, log zerolog.Logger) (*Result, *retryCause, error) {
	log.Warn().Str("state", string(StateAmbiguousProbe)).Msg("send reported already processed; probing ledger state")
	if landed, res, err := s.probeLanded(ctx, req, lastSig, log); err != nil {
		return nil, nil, err
	} else if landed {
		return res, nil, nil
	}
	if req.Probe == nil {
		return nil, nil, ErrAmbiguousOutcome
	}
	return nil, &retryCause{state: StateAmbiguousProbe, err: sendErr}, nil
}

func (s *Submitter) probeLanded(ctx context.Context, req Request, sig solana.Signature, log zerolog.Logger) (bool, *Result, error) {
	if req.Probe == nil {
		return false, nil, nil
	}
	landed, err := req.Probe(ctx)
	if err != nil {
		return false, nil, err
	}
	if !landed {
		return false, nil, nil
	}
	log.Info().Str("state", string(StateResolved)).Msg("effect already on ledger; resolved as success")
	return true, &Result{Signature: sig, Confirmed: true, ResolvedByProbe: true}, nil
}

var commitmentRank = map[string]int{
	"processed": 1,
	"confirmed": 2,
	"finalized": 3,
}

func commitmentReached(got, want string) bool {
	return commitmentRank[got] >= commitmentRank[want]
}
