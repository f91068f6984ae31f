package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"fundrooms/internal/bootstrap"
	"fundrooms/internal/ledger"
	"fundrooms/internal/program"
	"fundrooms/internal/tokens"
	"fundrooms/internal/txsub"
	"fundrooms/internal/wallet"
)

type fakeClient struct {
	ledger.Client

	accounts      map[solana.PublicKey]*ledger.Account
	balances      map[solana.PublicKey]uint64
	tokenBalances map[solana.PublicKey]uint64
	rentPerByte   uint64

	onSend  func()
	sends   int
	sentTxs []*solana.Transaction
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accounts:      map[solana.PublicKey]*ledger.Account{},
		balances:      map[solana.PublicKey]uint64{},
		tokenBalances: map[solana.PublicKey]uint64{},
		rentPerByte:   10,
	}
}

func (f *fakeClient) AccountInfo(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	acc, ok := f.accounts[addr]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return acc, nil
}

func (f *fakeClient) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	return f.balances[addr], nil
}

func (f *fakeClient) TokenAccountBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	bal, ok := f.tokenBalances[addr]
	if !ok {
		return 0, ledger.ErrNotFound
	}
	return bal, nil
}

func (f *fakeClient) MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	return dataSize * f.rentPerByte, nil
}

func (f *fakeClient) LatestBlockhash(ctx context.Context) (ledger.Blockhash, error) {
	return ledger.Blockhash{Hash: solana.Hash{1}, LastValidBlockHeight: 1000}, nil
}

func (f *fakeClient) BlockHeight(ctx context.Context) (uint64, error) { return 1, nil }

func (f *fakeClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*ledger.Simulation, error) {
	return &ledger.Simulation{}, nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.sends++
	f.sentTxs = append(f.sentTxs, tx)
	if f.onSend != nil {
		f.onSend()
	}
	return solana.Signature{byte(f.sends)}, nil
}

func (f *fakeClient) SignatureStatus(ctx context.Context, sig solana.Signature) (*ledger.SignatureStatus, error) {
	return &ledger.SignatureStatus{Commitment: "confirmed"}, nil
}

type writeBuffer struct{ data []byte }

func (w *writeBuffer) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func encodeAccount(t *testing.T, name string, write func(e *bin.Encoder) error) []byte {
	t.Helper()
	disc := program.AccountDiscriminator(name)
	var buf writeBuffer
	enc := bin.NewBorshEncoder(&buf)
	if err := write(enc); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return append(append([]byte{}, disc[:]...), buf.data...)
}

func encodeRoom(t *testing.T, room program.Room) []byte {
	t.Helper()
	return encodeAccount(t, "Room", func(e *bin.Encoder) error {
		for _, v := range []any{
			room.RoomID, room.Host, room.CharityWallet, room.FeeTokenMint,
			room.EntryFee, room.MaxPlayers, room.PlayerCount,
			room.TotalCollected, room.TotalEntryFees, room.TotalExtrasFees,
			room.HostFeeBps, room.PrizePoolBps, room.CharityBps,
			uint8(room.PrizeMode), room.PrizeDistribution,
		} {
			if err := e.Encode(v); err != nil {
				return err
			}
		}
		for _, asset := range room.PrizeAssets {
			if err := e.WriteBool(asset != nil); err != nil {
				return err
			}
			if asset == nil {
				continue
			}
			for _, v := range []any{asset.Mint, asset.Amount, asset.Deposited} {
				if err := e.Encode(v); err != nil {
					return err
				}
			}
		}
		for _, v := range []any{
			uint8(room.Status), room.JoiningClosed, room.Ended, room.Winners,
			room.CreationSlot, room.ExpirationSlot, room.CharityMemo, room.Bump,
		} {
			if err := e.Encode(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeRegistry(t *testing.T, approved ...solana.PublicKey) []byte {
	t.Helper()
	return encodeAccount(t, "TokenRegistry", func(e *bin.Encoder) error {
		if err := e.Encode(solana.NewWallet().PublicKey()); err != nil {
			return err
		}
		if err := e.Encode(approved); err != nil {
			return err
		}
		return e.Encode(uint8(0))
	})
}

func encodeConfig(t *testing.T, cfg program.GlobalConfig) []byte {
	t.Helper()
	return encodeAccount(t, "GlobalConfig", func(e *bin.Encoder) error {
		for _, v := range []any{
			cfg.Admin, cfg.PlatformWallet, cfg.CharityWallet,
			cfg.PlatformFeeBps, cfg.MaxHostFeeBps, cfg.MaxPrizePoolBps, cfg.MinCharityBps,
			cfg.EmergencyPause, cfg.Bump,
		} {
			if err := e.Encode(v); err != nil {
				return err
			}
		}
		return nil
	})
}

const testFeeBuffer = 100_000

func newTestService(t *testing.T, client *fakeClient) (*Service, wallet.Wallet) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey() error = %v", err)
	}
	w := wallet.NewLocal(key)
	sub := txsub.New(client, txsub.Config{ConfirmTimeout: time.Second, PollInterval: time.Millisecond}, zerolog.Nop())
	builder := program.NewBuilder(program.DefaultProgramID)
	svc := NewService(client, sub, builder, tokens.NewResolver(client), nil, w, testFeeBuffer, zerolog.Nop())
	return svc, w
}

// fakeBootstrapper scripts the remediation path for a missing registry.
type fakeBootstrapper struct {
	install func() *program.TokenRegistry
	err     error
	calls   int
}

func (b *fakeBootstrapper) EnsureTokenRegistry(ctx context.Context) (*program.TokenRegistry, bool, error) {
	b.calls++
	if b.err != nil {
		return nil, false, b.err
	}
	return b.install(), true, nil
}

func addRegistry(t *testing.T, client *fakeClient, approved ...solana.PublicKey) {
	t.Helper()
	addr, _, err := program.TokenRegistryPDA(program.DefaultProgramID, program.RegistryV4)
	if err != nil {
		t.Fatalf("TokenRegistryPDA() error = %v", err)
	}
	client.accounts[addr] = &ledger.Account{Data: encodeRegistry(t, approved...)}
}

func addConfig(t *testing.T, client *fakeClient, cfg program.GlobalConfig) {
	t.Helper()
	addr, _, err := program.GlobalConfigPDA(program.DefaultProgramID)
	if err != nil {
		t.Fatalf("GlobalConfigPDA() error = %v", err)
	}
	client.accounts[addr] = &ledger.Account{Data: encodeConfig(t, cfg)}
}

func addTokenAccount(t *testing.T, client *fakeClient, owner, mint solana.PublicKey, amount uint64) solana.PublicKey {
	t.Helper()
	ata, err := tokens.AssociatedAddress(owner, mint)
	if err != nil {
		t.Fatalf("AssociatedAddress() error = %v", err)
	}
	data := make([]byte, 165)
	copy(data[:32], mint.Bytes())
	client.accounts[ata] = &ledger.Account{Owner: solana.TokenProgramID, Data: data}
	client.tokenBalances[ata] = amount
	return ata
}

// ataCreates counts the associated-token-program instructions in a sent
// transaction.
func ataCreates(t *testing.T, tx *solana.Transaction) int {
	t.Helper()
	n := 0
	for _, ci := range tx.Message.Instructions {
		prog, err := tx.Message.Program(ci.ProgramIDIndex)
		if err != nil {
			t.Fatalf("Program(%d) error = %v", ci.ProgramIDIndex, err)
		}
		if prog.Equals(solana.SPLAssociatedTokenAccountProgramID) {
			n++
		}
	}
	return n
}

func addRoom(t *testing.T, client *fakeClient, room program.Room) solana.PublicKey {
	t.Helper()
	addr, _, err := program.RoomPDA(program.DefaultProgramID, room.Host, room.RoomID)
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	client.accounts[addr] = &ledger.Account{Lamports: 1000, Data: encodeRoom(t, room)}
	return addr
}

func TestValidateShares(t *testing.T) {
	cases := []struct {
		name    string
		host    uint16
		prize   uint16
		wantErr bool
	}{
		{"zero shares", 0, 0, false},
		{"max host max prize", 500, 3500, false},
		{"host above cap", 501, 0, true},
		{"prize eats charity floor", 0, 4001, true},
		{"combined below floor", 500, 3501, true},
		{"host only", 500, 0, false},
		{"prize only at limit", 0, 3500, false},
		{"prize above cap", 0, 3501, true},
		{"prize above cap within charity floor", 0, 4000, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateShares(c.host, c.prize)
			if (err != nil) != c.wantErr {
				t.Fatalf("ValidateShares(%d, %d) error = %v, wantErr %v", c.host, c.prize, err, c.wantErr)
			}
			if err != nil {
				var shareErr *ShareError
				if !errors.As(err, &shareErr) {
					t.Fatalf("error type = %T, want *ShareError", err)
				}
			}
		})
	}
}

func TestCreatePoolRoom(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	addRegistry(t, client, mint)
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 100_000_000

	roomAddr, _, err := program.RoomPDA(program.DefaultProgramID, w.Address(), "spring-gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	client.onSend = func() {
		client.accounts[roomAddr] = &ledger.Account{Lamports: 100, Data: encodeRoom(t, program.Room{
			RoomID: "spring-gala", Host: w.Address(), FeeTokenMint: mint,
		})}
	}

	res, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "spring-gala",
		FeeTokenMint:  mint,
		CharityWallet: solana.NewWallet().PublicKey(),
		EntryFee:      1_000_000,
		MaxPlayers:    100,
		HostFeeBps:    200,
		PrizePoolBps:  2000,
		FirstPlacePct: 100,
	})
	if err != nil {
		t.Fatalf("CreatePoolRoom() error = %v", err)
	}
	if !res.RoomAddress.Equals(roomAddr) {
		t.Fatalf("RoomAddress = %s, want %s", res.RoomAddress, roomAddr)
	}
	if client.sends != 1 {
		t.Fatalf("sends = %d, want 1", client.sends)
	}
}

func TestCreatePoolRoomRejectsUnapprovedMint(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	addRegistry(t, client) // empty allowlist
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 100_000_000

	_, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "gala",
		FeeTokenMint:  mint,
		FirstPlacePct: 100,
	})
	var notApproved *MintNotApprovedError
	if !errors.As(err, &notApproved) {
		t.Fatalf("CreatePoolRoom() error = %v, want *MintNotApprovedError", err)
	}
	if !notApproved.Mint.Equals(mint) {
		t.Fatalf("Mint = %s, want %s", notApproved.Mint, mint)
	}
}

func TestCreatePoolRoomBootstrapsMissingRegistry(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	// No registry account yet: a fresh deployment (or a registry version
	// bump) where the admin wallet creates rooms directly.
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 100_000_000

	boot := &fakeBootstrapper{install: func() *program.TokenRegistry {
		addRegistry(t, client, mint)
		return &program.TokenRegistry{Approved: []solana.PublicKey{mint}}
	}}
	svc.boot = boot

	roomAddr, _, err := program.RoomPDA(program.DefaultProgramID, w.Address(), "gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	client.onSend = func() {
		client.accounts[roomAddr] = &ledger.Account{Data: encodeRoom(t, program.Room{
			RoomID: "gala", Host: w.Address(), FeeTokenMint: mint,
		})}
	}

	res, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "gala",
		FeeTokenMint:  mint,
		FirstPlacePct: 100,
	})
	if err != nil {
		t.Fatalf("CreatePoolRoom() error = %v", err)
	}
	if boot.calls != 1 {
		t.Fatalf("EnsureTokenRegistry calls = %d, want 1", boot.calls)
	}
	if !res.RoomAddress.Equals(roomAddr) {
		t.Fatalf("RoomAddress = %s, want %s", res.RoomAddress, roomAddr)
	}
}

func TestCreatePoolRoomUninitializedDeployment(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 100_000_000
	// The bootstrapper cannot even check admin rights: no global config.
	svc.boot = &fakeBootstrapper{err: ledger.ErrNotFound}

	_, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "gala",
		FeeTokenMint:  mint,
		FirstPlacePct: 100,
	})
	var notInit *NotInitializedError
	if !errors.As(err, &notInit) {
		t.Fatalf("CreatePoolRoom() error = %v, want *NotInitializedError", err)
	}
	if notInit.Missing != "global config" {
		t.Fatalf("Missing = %q, want %q", notInit.Missing, "global config")
	}
	if client.sends != 0 {
		t.Fatalf("sends = %d, want 0", client.sends)
	}
}

func TestCreatePoolRoomNonAdminCannotRemediate(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 100_000_000
	svc.boot = &fakeBootstrapper{err: &bootstrap.NotAuthorizedError{
		Admin:  solana.NewWallet().PublicKey(),
		Caller: w.Address(),
	}}

	_, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "gala",
		FeeTokenMint:  mint,
		FirstPlacePct: 100,
	})
	var notInit *NotInitializedError
	if !errors.As(err, &notInit) {
		t.Fatalf("CreatePoolRoom() error = %v, want *NotInitializedError", err)
	}
	if notInit.Missing != "token registry" {
		t.Fatalf("Missing = %q, want %q", notInit.Missing, "token registry")
	}
	var notAuth *bootstrap.NotAuthorizedError
	if !errors.As(notInit, &notAuth) {
		t.Fatalf("cause = %v, want *bootstrap.NotAuthorizedError", notInit.Cause)
	}
}

func TestCreatePoolRoomWithoutBootstrapper(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 100_000_000

	_, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "gala",
		FeeTokenMint:  mint,
		FirstPlacePct: 100,
	})
	var notInit *NotInitializedError
	if !errors.As(err, &notInit) {
		t.Fatalf("CreatePoolRoom() error = %v, want *NotInitializedError", err)
	}
	if notInit.Missing != "token registry" {
		t.Fatalf("Missing = %q, want %q", notInit.Missing, "token registry")
	}
}

func TestCreatePoolRoomLamportPreflight(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	addRegistry(t, client, mint)
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 10 // far below rent

	_, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "gala",
		FeeTokenMint:  mint,
		FirstPlacePct: 100,
	})
	var short *InsufficientLamportsError
	if !errors.As(err, &short) {
		t.Fatalf("CreatePoolRoom() error = %v, want *InsufficientLamportsError", err)
	}
	wantRequired := uint64(program.RoomSize+program.TokenAccountSize)*client.rentPerByte + testFeeBuffer
	if short.Required != wantRequired {
		t.Fatalf("Required = %d, want %d", short.Required, wantRequired)
	}
	if short.Shortfall() != wantRequired-10 {
		t.Fatalf("Shortfall() = %d, want %d", short.Shortfall(), wantRequired-10)
	}
	if client.sends != 0 {
		t.Fatalf("sends = %d, want 0 after failed preflight", client.sends)
	}
}

func TestCreatePoolRoomBadDistribution(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	addRegistry(t, client, mint)
	svc, _ := newTestService(t, client)

	second := uint16(30)
	_, err := svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:         "gala",
		FeeTokenMint:   mint,
		FirstPlacePct:  60,
		SecondPlacePct: &second,
	})
	var distErr *DistributionError
	if !errors.As(err, &distErr) {
		t.Fatalf("CreatePoolRoom() error = %v, want *DistributionError", err)
	}
	if distErr.Sum != 90 {
		t.Fatalf("Sum = %d, want 90", distErr.Sum)
	}
}

func TestCreateAssetRoomPrizeSlotBounds(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	addRegistry(t, client, mint)
	svc, _ := newTestService(t, client)

	_, err := svc.CreateAssetRoom(context.Background(), AssetRoomParams{
		RoomID:       "gala",
		FeeTokenMint: mint,
	})
	var slotErr *PrizeSlotError
	if !errors.As(err, &slotErr) {
		t.Fatalf("CreateAssetRoom() with no prizes error = %v, want *PrizeSlotError", err)
	}

	four := make([]PrizeSlot, 4)
	for i := range four {
		four[i] = PrizeSlot{Mint: solana.NewWallet().PublicKey(), Amount: 1}
	}
	_, err = svc.CreateAssetRoom(context.Background(), AssetRoomParams{
		RoomID:       "gala",
		FeeTokenMint: mint,
		Prizes:       four,
	})
	if !errors.As(err, &slotErr) {
		t.Fatalf("CreateAssetRoom() with 4 prizes error = %v, want *PrizeSlotError", err)
	}
}

func TestCloseJoiningNotHost(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)

	// Room exists at the caller-derived address but records another host.
	otherHost := solana.NewWallet().PublicKey()
	addr, _, err := program.RoomPDA(program.DefaultProgramID, w.Address(), "gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	client.accounts[addr] = &ledger.Account{Data: encodeRoom(t, program.Room{RoomID: "gala", Host: otherHost})}

	_, err = svc.CloseJoining(context.Background(), "gala")
	var notHost *NotHostError
	if !errors.As(err, &notHost) {
		t.Fatalf("CloseJoining() error = %v, want *NotHostError", err)
	}
}

func TestCloseJoiningAlreadyClosedIsNoOp(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	addRoom(t, client, program.Room{RoomID: "gala", Host: w.Address(), JoiningClosed: true})

	res, err := svc.CloseJoining(context.Background(), "gala")
	if err != nil {
		t.Fatalf("CloseJoining() error = %v", err)
	}
	if res != nil {
		t.Fatalf("result = %v, want nil for already closed room", res)
	}
	if client.sends != 0 {
		t.Fatalf("sends = %d, want 0", client.sends)
	}
}

func TestCloseJoining(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	addr := addRoom(t, client, program.Room{RoomID: "gala", Host: w.Address(), MaxPlayers: 10})
	client.onSend = func() {
		client.accounts[addr] = &ledger.Account{Data: encodeRoom(t, program.Room{
			RoomID: "gala", Host: w.Address(), MaxPlayers: 10, JoiningClosed: true,
		})}
	}

	res, err := svc.CloseJoining(context.Background(), "gala")
	if err != nil {
		t.Fatalf("CloseJoining() error = %v", err)
	}
	if res == nil || !res.Confirmed {
		t.Fatalf("result = %+v, want confirmed", res)
	}
}

func TestCleanupRoomRequiresEnded(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	addRoom(t, client, program.Room{RoomID: "gala", Host: w.Address(), Status: program.RoomActive})

	_, err := svc.CleanupRoom(context.Background(), w.Address(), "gala")
	var notEnded *RoomNotEndedError
	if !errors.As(err, &notEnded) {
		t.Fatalf("CleanupRoom() error = %v, want *RoomNotEndedError", err)
	}
	if notEnded.Status != program.RoomActive {
		t.Fatalf("Status = %v, want %v", notEnded.Status, program.RoomActive)
	}
}

func TestCleanupRoomVaultNotEmpty(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	addr := addRoom(t, client, program.Room{RoomID: "gala", Host: w.Address(), Status: program.RoomEnded})
	vault, _, err := program.RoomVaultPDA(program.DefaultProgramID, addr)
	if err != nil {
		t.Fatalf("RoomVaultPDA() error = %v", err)
	}
	client.tokenBalances[vault] = 42

	_, err = svc.CleanupRoom(context.Background(), w.Address(), "gala")
	var notEmpty *VaultNotEmptyError
	if !errors.As(err, &notEmpty) {
		t.Fatalf("CleanupRoom() error = %v, want *VaultNotEmptyError", err)
	}
	if notEmpty.Slot != -1 || notEmpty.Balance != 42 {
		t.Fatalf("Slot = %d, Balance = %d, want -1, 42", notEmpty.Slot, notEmpty.Balance)
	}
}

func TestCleanupRoomPrizeVaultNotEmpty(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	prizeMint := solana.NewWallet().PublicKey()
	addr := addRoom(t, client, program.Room{
		RoomID: "gala", Host: w.Address(), Status: program.RoomEnded,
		PrizeMode: program.PrizeModeAsset,
		PrizeAssets: [program.MaxPrizeSlots]*program.PrizeAsset{
			{Mint: prizeMint, Amount: 10, Deposited: true},
		},
	})
	prizeVault, _, err := program.PrizeVaultPDA(program.DefaultProgramID, addr, 0)
	if err != nil {
		t.Fatalf("PrizeVaultPDA() error = %v", err)
	}
	client.tokenBalances[prizeVault] = 10

	_, err = svc.CleanupRoom(context.Background(), w.Address(), "gala")
	var notEmpty *VaultNotEmptyError
	if !errors.As(err, &notEmpty) {
		t.Fatalf("CleanupRoom() error = %v, want *VaultNotEmptyError", err)
	}
	if notEmpty.Slot != 0 {
		t.Fatalf("Slot = %d, want 0", notEmpty.Slot)
	}
	if client.sends != 0 {
		t.Fatalf("sends = %d, want 0 (cleanup is never partial)", client.sends)
	}
}

func TestCleanupRoomReclaims(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	prizeMint := solana.NewWallet().PublicKey()
	addr := addRoom(t, client, program.Room{
		RoomID: "gala", Host: w.Address(), Status: program.RoomEnded,
		PrizeMode: program.PrizeModeAsset,
		PrizeAssets: [program.MaxPrizeSlots]*program.PrizeAsset{
			{Mint: prizeMint, Amount: 10, Deposited: true},
		},
	})
	vault, _, err := program.RoomVaultPDA(program.DefaultProgramID, addr)
	if err != nil {
		t.Fatalf("RoomVaultPDA() error = %v", err)
	}
	prizeVault, _, err := program.PrizeVaultPDA(program.DefaultProgramID, addr, 0)
	if err != nil {
		t.Fatalf("PrizeVaultPDA() error = %v", err)
	}
	client.accounts[vault] = &ledger.Account{Lamports: 2039280}
	client.accounts[prizeVault] = &ledger.Account{Lamports: 2039280}
	client.tokenBalances[vault] = 0
	client.tokenBalances[prizeVault] = 0
	client.onSend = func() {
		delete(client.accounts, addr)
		delete(client.accounts, vault)
		delete(client.accounts, prizeVault)
	}

	res, err := svc.CleanupRoom(context.Background(), w.Address(), "gala")
	if err != nil {
		t.Fatalf("CleanupRoom() error = %v", err)
	}
	want := uint64(1000 + 2039280 + 2039280)
	if res.Reclaimed != want {
		t.Fatalf("Reclaimed = %d, want %d", res.Reclaimed, want)
	}
}

func TestJoinRoomClosed(t *testing.T) {
	client := newFakeClient()
	svc, _ := newTestService(t, client)
	host := solana.NewWallet().PublicKey()
	addRoom(t, client, program.Room{RoomID: "gala", Host: host, MaxPlayers: 10, JoiningClosed: true})

	_, err := svc.JoinRoom(context.Background(), JoinParams{Host: host, RoomID: "gala"})
	if !errors.Is(err, ErrJoiningClosed) {
		t.Fatalf("JoinRoom() error = %v, want ErrJoiningClosed", err)
	}
}

func TestJoinRoomFull(t *testing.T) {
	client := newFakeClient()
	svc, _ := newTestService(t, client)
	host := solana.NewWallet().PublicKey()
	addRoom(t, client, program.Room{RoomID: "gala", Host: host, MaxPlayers: 2, PlayerCount: 2})

	_, err := svc.JoinRoom(context.Background(), JoinParams{Host: host, RoomID: "gala"})
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("JoinRoom() error = %v, want ErrRoomFull", err)
	}
}

func TestJoinRoomInsufficientTokens(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	host := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	addRoom(t, client, program.Room{
		RoomID: "gala", Host: host, FeeTokenMint: mint, EntryFee: 500, MaxPlayers: 10,
	})
	// Player holds 100 of the fee token.
	ata, err := tokens.AssociatedAddress(w.Address(), mint)
	if err != nil {
		t.Fatalf("AssociatedAddress() error = %v", err)
	}
	data := make([]byte, 165)
	copy(data[:32], mint.Bytes())
	client.accounts[ata] = &ledger.Account{Owner: solana.TokenProgramID, Data: data}
	client.tokenBalances[ata] = 100

	_, err = svc.JoinRoom(context.Background(), JoinParams{Host: host, RoomID: "gala", Extras: 50})
	var short *InsufficientTokensError
	if !errors.As(err, &short) {
		t.Fatalf("JoinRoom() error = %v, want *InsufficientTokensError", err)
	}
	if short.Required != 550 || short.Current != 100 {
		t.Fatalf("Required = %d, Current = %d, want 550, 100", short.Required, short.Current)
	}
}

func TestJoinRoomFreeRoomCreatesTokenAccount(t *testing.T) {
	client := newFakeClient()
	svc, _ := newTestService(t, client)
	host := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	// Zero entry fee: joinable before the player ever held the fee token.
	addRoom(t, client, program.Room{RoomID: "gala", Host: host, FeeTokenMint: mint, MaxPlayers: 10})

	res, err := svc.JoinRoom(context.Background(), JoinParams{Host: host, RoomID: "gala"})
	if err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if !res.Confirmed {
		t.Fatalf("Confirmed = false, want true")
	}
	if len(client.sentTxs) != 1 {
		t.Fatalf("sent transactions = %d, want 1", len(client.sentTxs))
	}
	tx := client.sentTxs[0]
	if got := ataCreates(t, tx); got != 1 {
		t.Fatalf("token account creates = %d, want 1", got)
	}
	if got := len(tx.Message.Instructions); got != 2 {
		t.Fatalf("instructions = %d, want create + join", got)
	}
}

func TestEndRoomCreatesMissingRecipientAccounts(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	mint := solana.NewWallet().PublicKey()
	charity := solana.NewWallet().PublicKey()
	platform := solana.NewWallet().PublicKey()
	addConfig(t, client, program.GlobalConfig{PlatformWallet: platform})
	addr := addRoom(t, client, program.Room{
		RoomID: "gala", Host: w.Address(), FeeTokenMint: mint, CharityWallet: charity, MaxPlayers: 10,
	})
	// Platform and host already hold the fee token; the charity wallet has
	// never seen it.
	addTokenAccount(t, client, platform, mint, 0)
	addTokenAccount(t, client, w.Address(), mint, 0)
	client.onSend = func() {
		client.accounts[addr] = &ledger.Account{Data: encodeRoom(t, program.Room{
			RoomID: "gala", Host: w.Address(), FeeTokenMint: mint, CharityWallet: charity,
			MaxPlayers: 10, Ended: true,
		})}
	}

	res, err := svc.EndRoom(context.Background(), EndParams{RoomID: "gala"})
	if err != nil {
		t.Fatalf("EndRoom() error = %v", err)
	}
	if !res.Confirmed {
		t.Fatalf("Confirmed = false, want true")
	}
	if len(client.sentTxs) != 1 {
		t.Fatalf("sent transactions = %d, want 1", len(client.sentTxs))
	}
	tx := client.sentTxs[0]
	if got := ataCreates(t, tx); got != 1 {
		t.Fatalf("token account creates = %d, want 1 for the charity wallet", got)
	}
	if got := len(tx.Message.Instructions); got != 2 {
		t.Fatalf("instructions = %d, want create + end", got)
	}
}

func TestGetRoomInfo(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)

	// Missing account.
	info, err := svc.GetRoomInfo(context.Background(), solana.NewWallet().PublicKey())
	if err != nil {
		t.Fatalf("GetRoomInfo() error = %v", err)
	}
	if info != nil {
		t.Fatalf("info = %+v, want nil for missing account", info)
	}

	// Undecodable account.
	junk := solana.NewWallet().PublicKey()
	client.accounts[junk] = &ledger.Account{Data: []byte{1, 2, 3}}
	info, err = svc.GetRoomInfo(context.Background(), junk)
	if err != nil {
		t.Fatalf("GetRoomInfo() error = %v", err)
	}
	if info != nil {
		t.Fatalf("info = %+v, want nil for undecodable account", info)
	}

	// Real room.
	addr := addRoom(t, client, program.Room{RoomID: "gala", Host: w.Address(), EntryFee: 77, MaxPlayers: 5})
	info, err = svc.GetRoomInfo(context.Background(), addr)
	if err != nil {
		t.Fatalf("GetRoomInfo() error = %v", err)
	}
	if info == nil {
		t.Fatalf("info = nil, want decoded room")
	}
	if info.Room.EntryFee != 77 {
		t.Fatalf("EntryFee = %d, want 77", info.Room.EntryFee)
	}
	vault, _, err := program.RoomVaultPDA(program.DefaultProgramID, addr)
	if err != nil {
		t.Fatalf("RoomVaultPDA() error = %v", err)
	}
	if !info.Vault.Equals(vault) {
		t.Fatalf("Vault = %s, want %s", info.Vault, vault)
	}
}

func TestCreatePoolRoomRefusedWhilePaused(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	client := newFakeClient()
	addRegistry(t, client, mint)
	svc, w := newTestService(t, client)
	client.balances[w.Address()] = 100_000_000

	cfgAddr, _, err := program.GlobalConfigPDA(program.DefaultProgramID)
	if err != nil {
		t.Fatalf("GlobalConfigPDA() error = %v", err)
	}
	client.accounts[cfgAddr] = &ledger.Account{Data: encodeConfig(t, program.GlobalConfig{EmergencyPause: true})}

	_, err = svc.CreatePoolRoom(context.Background(), PoolRoomParams{
		RoomID:        "gala",
		FeeTokenMint:  mint,
		FirstPlacePct: 100,
	})
	if !errors.Is(err, ErrEmergencyPaused) {
		t.Fatalf("CreatePoolRoom() error = %v, want ErrEmergencyPaused", err)
	}
	if client.sends != 0 {
		t.Fatalf("sends = %d, want 0", client.sends)
	}
}

func TestAddPrizeAssetUndeclaredSlot(t *testing.T) {
	client := newFakeClient()
	svc, w := newTestService(t, client)
	addRoom(t, client, program.Room{
		RoomID: "gala", Host: w.Address(), Status: program.RoomAwaitingFunding,
		PrizeMode: program.PrizeModeAsset,
	})

	_, err := svc.AddPrizeAsset(context.Background(), "gala", 1)
	var slotErr *PrizeSlotError
	if !errors.As(err, &slotErr) {
		t.Fatalf("AddPrizeAsset() error = %v, want *PrizeSlotError", err)
	}
}
