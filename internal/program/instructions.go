package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Builder constructs instructions against one deployment of the program.
// Builders are pure: they derive PDAs and encode argument bytes, nothing else.
type Builder struct {
	ProgramID solana.PublicKey
	Registry  RegistryVersion
}

// NewBuilder returns a Builder for programID targeting the current registry
// version.
func NewBuilder(programID solana.PublicKey) *Builder {
	return &Builder{ProgramID: programID, Registry: RegistryV4}
}

func encodeData(name string, write func(enc *bin.Encoder) error) ([]byte, error) {
	buf := new(bytes.Buffer)
	disc := InstructionDiscriminator(name)
	buf.Write(disc[:])
	if write != nil {
		if err := write(bin.NewBorshEncoder(buf)); err != nil {
			return nil, fmt.Errorf("encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

// writeOption encodes Borsh Option<T>: a presence byte, then the value.
func writeOption[T any](enc *bin.Encoder, v *T) error {
	if v == nil {
		return enc.WriteBool(false)
	}
	if err := enc.WriteBool(true); err != nil {
		return err
	}
	return enc.Encode(*v)
}

// Initialize creates the GlobalConfig singleton (one-time admin setup).
func (b *Builder) Initialize(admin, platformWallet, charityWallet solana.PublicKey) (solana.Instruction, error) {
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("initialize", func(enc *bin.Encoder) error {
		if err := enc.Encode(platformWallet); err != nil {
			return err
		}
		return enc.Encode(charityWallet)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(configAddr).WRITE(),
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// UpdateGlobalConfigArgs carries the optional fields of update_global_config;
// nil fields are left unchanged on-chain.
type UpdateGlobalConfigArgs struct {
	PlatformWallet  *solana.PublicKey
	CharityWallet   *solana.PublicKey
	PlatformFeeBps  *uint16
	MaxHostFeeBps   *uint16
	MaxPrizePoolBps *uint16
	MinCharityBps   *uint16
}

// UpdateGlobalConfig mutates the GlobalConfig singleton (admin only).
func (b *Builder) UpdateGlobalConfig(admin solana.PublicKey, args UpdateGlobalConfigArgs) (solana.Instruction, error) {
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("update_global_config", func(enc *bin.Encoder) error {
		if err := writeOption(enc, args.PlatformWallet); err != nil {
			return err
		}
		if err := writeOption(enc, args.CharityWallet); err != nil {
			return err
		}
		if err := writeOption(enc, args.PlatformFeeBps); err != nil {
			return err
		}
		if err := writeOption(enc, args.MaxHostFeeBps); err != nil {
			return err
		}
		if err := writeOption(enc, args.MaxPrizePoolBps); err != nil {
			return err
		}
		return writeOption(enc, args.MinCharityBps)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(configAddr).WRITE(),
		solana.Meta(admin).SIGNER(),
	}, data), nil
}

// SetEmergencyPause flips the program-wide circuit breaker (admin only).
func (b *Builder) SetEmergencyPause(admin solana.PublicKey, paused bool) (solana.Instruction, error) {
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("set_emergency_pause", func(enc *bin.Encoder) error {
		return enc.WriteBool(paused)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(configAddr).WRITE(),
		solana.Meta(admin).WRITE().SIGNER(),
	}, data), nil
}

// InitializeTokenRegistry creates the versioned approved-mint registry.
func (b *Builder) InitializeTokenRegistry(admin solana.PublicKey) (solana.Instruction, error) {
	registryAddr, _, err := TokenRegistryPDA(b.ProgramID, b.Registry)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("initialize_token_registry", nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(registryAddr).WRITE(),
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// AddApprovedToken allowlists an entry-fee mint (admin only).
func (b *Builder) AddApprovedToken(admin, mint solana.PublicKey) (solana.Instruction, error) {
	return b.registryMutation("add_approved_token", admin, mint)
}

// RemoveApprovedToken removes a mint from the allowlist (admin only).
func (b *Builder) RemoveApprovedToken(admin, mint solana.PublicKey) (solana.Instruction, error) {
	return b.registryMutation("remove_approved_token", admin, mint)
}

func (b *Builder) registryMutation(name string, admin, mint solana.PublicKey) (solana.Instruction, error) {
	registryAddr, _, err := TokenRegistryPDA(b.ProgramID, b.Registry)
	if err != nil {
		return nil, err
	}
	data, err := encodeData(name, func(enc *bin.Encoder) error {
		return enc.Encode(mint)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(registryAddr).WRITE(),
		solana.Meta(admin).WRITE().SIGNER(),
	}, data), nil
}

// InitPoolRoomArgs are the arguments of init_pool_room.
type InitPoolRoomArgs struct {
	Host            solana.PublicKey
	FeeTokenMint    solana.PublicKey
	RoomID          string
	CharityWallet   solana.PublicKey
	EntryFee        uint64
	MaxPlayers      uint32
	HostFeeBps      uint16
	PrizePoolBps    uint16
	FirstPlacePct   uint16
	SecondPlacePct  *uint16
	ThirdPlacePct   *uint16
	CharityMemo     string
	ExpirationSlots *uint64
}

// InitPoolRoom creates a pool-mode room whose prizes come out of collected
// entry fees.
func (b *Builder) InitPoolRoom(args InitPoolRoomArgs) (solana.Instruction, error) {
	roomAddr, vaultAddr, err := b.roomAndVault(args.Host, args.RoomID)
	if err != nil {
		return nil, err
	}
	registryAddr, _, err := TokenRegistryPDA(b.ProgramID, b.Registry)
	if err != nil {
		return nil, err
	}
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("init_pool_room", func(enc *bin.Encoder) error {
		if err := enc.Encode(args.RoomID); err != nil {
			return err
		}
		if err := enc.Encode(args.CharityWallet); err != nil {
			return err
		}
		if err := enc.Encode(args.EntryFee); err != nil {
			return err
		}
		if err := enc.Encode(args.MaxPlayers); err != nil {
			return err
		}
		if err := enc.Encode(args.HostFeeBps); err != nil {
			return err
		}
		if err := enc.Encode(args.PrizePoolBps); err != nil {
			return err
		}
		if err := enc.Encode(args.FirstPlacePct); err != nil {
			return err
		}
		if err := writeOption(enc, args.SecondPlacePct); err != nil {
			return err
		}
		if err := writeOption(enc, args.ThirdPlacePct); err != nil {
			return err
		}
		if err := enc.Encode(args.CharityMemo); err != nil {
			return err
		}
		return writeOption(enc, args.ExpirationSlots)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, b.initRoomAccounts(roomAddr, vaultAddr, args.FeeTokenMint, registryAddr, configAddr, args.Host), data), nil
}

// InitAssetRoomArgs are the arguments of init_asset_room. Prize slot 0 is
// mandatory; slots 1 and 2 are optional.
type InitAssetRoomArgs struct {
	Host            solana.PublicKey
	FeeTokenMint    solana.PublicKey
	RoomID          string
	CharityWallet   solana.PublicKey
	EntryFee        uint64
	MaxPlayers      uint32
	HostFeeBps      uint16
	CharityMemo     string
	ExpirationSlots *uint64
	Prize1Mint      solana.PublicKey
	Prize1Amount    uint64
	Prize2Mint      *solana.PublicKey
	Prize2Amount    *uint64
	Prize3Mint      *solana.PublicKey
	Prize3Amount    *uint64
}

// InitAssetRoom creates an asset-mode room whose prizes are pre-funded
// escrowed assets; the prize-pool share is always zero.
func (b *Builder) InitAssetRoom(args InitAssetRoomArgs) (solana.Instruction, error) {
	roomAddr, vaultAddr, err := b.roomAndVault(args.Host, args.RoomID)
	if err != nil {
		return nil, err
	}
	registryAddr, _, err := TokenRegistryPDA(b.ProgramID, b.Registry)
	if err != nil {
		return nil, err
	}
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("init_asset_room", func(enc *bin.Encoder) error {
		if err := enc.Encode(args.RoomID); err != nil {
			return err
		}
		if err := enc.Encode(args.CharityWallet); err != nil {
			return err
		}
		if err := enc.Encode(args.EntryFee); err != nil {
			return err
		}
		if err := enc.Encode(args.MaxPlayers); err != nil {
			return err
		}
		if err := enc.Encode(args.HostFeeBps); err != nil {
			return err
		}
		if err := enc.Encode(args.CharityMemo); err != nil {
			return err
		}
		if err := writeOption(enc, args.ExpirationSlots); err != nil {
			return err
		}
		if err := enc.Encode(args.Prize1Mint); err != nil {
			return err
		}
		if err := enc.Encode(args.Prize1Amount); err != nil {
			return err
		}
		if err := writeOption(enc, args.Prize2Mint); err != nil {
			return err
		}
		if err := writeOption(enc, args.Prize2Amount); err != nil {
			return err
		}
		if err := writeOption(enc, args.Prize3Mint); err != nil {
			return err
		}
		return writeOption(enc, args.Prize3Amount)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, b.initRoomAccounts(roomAddr, vaultAddr, args.FeeTokenMint, registryAddr, configAddr, args.Host), data), nil
}

func (b *Builder) initRoomAccounts(room, vault, mint, registry, config, host solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(room).WRITE(),
		solana.Meta(vault).WRITE(),
		solana.Meta(mint),
		solana.Meta(registry),
		solana.Meta(config),
		solana.Meta(host).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}
}

// AddPrizeAsset escrows one prize slot of an asset-mode room (host only).
func (b *Builder) AddPrizeAsset(host, hostTokenAccount solana.PublicKey, roomID string, slot uint8) (solana.Instruction, error) {
	roomAddr, _, err := RoomPDA(b.ProgramID, host, roomID)
	if err != nil {
		return nil, err
	}
	vaultAddr, _, err := PrizeVaultPDA(b.ProgramID, roomAddr, slot)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("add_prize_asset", func(enc *bin.Encoder) error {
		if err := enc.Encode(roomID); err != nil {
			return err
		}
		return enc.Encode(slot)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(roomAddr).WRITE(),
		solana.Meta(vaultAddr).WRITE(),
		solana.Meta(hostTokenAccount).WRITE(),
		solana.Meta(host).WRITE().SIGNER(),
		solana.Meta(solana.TokenProgramID),
	}, data), nil
}

// JoinRoom buys a player into a room, optionally tipping extras (which go
// entirely to charity).
func (b *Builder) JoinRoom(player, playerTokenAccount, host solana.PublicKey, roomID string, extras uint64) (solana.Instruction, error) {
	roomAddr, vaultAddr, err := b.roomAndVault(host, roomID)
	if err != nil {
		return nil, err
	}
	entryAddr, _, err := PlayerEntryPDA(b.ProgramID, roomAddr, player)
	if err != nil {
		return nil, err
	}
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("join_room", func(enc *bin.Encoder) error {
		if err := enc.Encode(roomID); err != nil {
			return err
		}
		return enc.Encode(extras)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(roomAddr).WRITE(),
		solana.Meta(entryAddr).WRITE(),
		solana.Meta(vaultAddr).WRITE(),
		solana.Meta(playerTokenAccount).WRITE(),
		solana.Meta(configAddr),
		solana.Meta(player).WRITE().SIGNER(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// DeclareWinners records the winner list ahead of distribution (host only).
func (b *Builder) DeclareWinners(host solana.PublicKey, roomID string, winners []solana.PublicKey) (solana.Instruction, error) {
	roomAddr, _, err := RoomPDA(b.ProgramID, host, roomID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("declare_winners", func(enc *bin.Encoder) error {
		if err := enc.Encode(roomID); err != nil {
			return err
		}
		return enc.Encode(winners)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(roomAddr).WRITE(),
		solana.Meta(host).WRITE().SIGNER(),
	}, data), nil
}

// EndRoomAccounts are the distribution destinations of end_room.
type EndRoomAccounts struct {
	PlatformTokenAccount solana.PublicKey
	CharityTokenAccount  solana.PublicKey
	HostTokenAccount     solana.PublicKey
	// WinnerTokenAccounts trail the fixed list, one per winner, in winner
	// order.
	WinnerTokenAccounts []solana.PublicKey
}

// EndRoom finalizes a room and distributes funds.
func (b *Builder) EndRoom(host solana.PublicKey, roomID string, winners []solana.PublicKey, accounts EndRoomAccounts) (solana.Instruction, error) {
	roomAddr, vaultAddr, err := b.roomAndVault(host, roomID)
	if err != nil {
		return nil, err
	}
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("end_room", func(enc *bin.Encoder) error {
		if err := enc.Encode(roomID); err != nil {
			return err
		}
		return enc.Encode(winners)
	})
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(roomAddr).WRITE(),
		solana.Meta(vaultAddr).WRITE(),
		solana.Meta(configAddr),
		solana.Meta(accounts.PlatformTokenAccount).WRITE(),
		solana.Meta(accounts.CharityTokenAccount).WRITE(),
		solana.Meta(accounts.HostTokenAccount).WRITE(),
		solana.Meta(host).WRITE().SIGNER(),
		solana.Meta(solana.TokenProgramID),
	}
	for _, w := range accounts.WinnerTokenAccounts {
		metas = append(metas, solana.Meta(w).WRITE())
	}
	return solana.NewInstruction(b.ProgramID, metas, data), nil
}

// CloseJoining locks a room to new players (host only, one-way).
func (b *Builder) CloseJoining(host solana.PublicKey, roomID string) (solana.Instruction, error) {
	roomAddr, _, err := RoomPDA(b.ProgramID, host, roomID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("close_joining", func(enc *bin.Encoder) error {
		return enc.Encode(roomID)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(roomAddr).WRITE(),
		solana.Meta(host).WRITE().SIGNER(),
	}, data), nil
}

// CleanupRoom closes an ended room's accounts to reclaim rent. prizeVaults
// trail the fixed account list; the program closes each one listed, so only
// funded slots should be passed.
func (b *Builder) CleanupRoom(caller, host solana.PublicKey, roomID string, prizeVaults []solana.PublicKey) (solana.Instruction, error) {
	roomAddr, vaultAddr, err := b.roomAndVault(host, roomID)
	if err != nil {
		return nil, err
	}
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("cleanup_room", func(enc *bin.Encoder) error {
		return enc.Encode(roomID)
	})
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(roomAddr).WRITE(),
		solana.Meta(vaultAddr).WRITE(),
		solana.Meta(configAddr),
		solana.Meta(caller).WRITE().SIGNER(),
		solana.Meta(solana.TokenProgramID),
	}
	for _, pv := range prizeVaults {
		metas = append(metas, solana.Meta(pv).WRITE())
	}
	return solana.NewInstruction(b.ProgramID, metas, data), nil
}

// RecoverRoom drains an abandoned room's vault to the platform (admin only).
func (b *Builder) RecoverRoom(admin, host solana.PublicKey, roomID string, platformTokenAccount solana.PublicKey) (solana.Instruction, error) {
	roomAddr, vaultAddr, err := b.roomAndVault(host, roomID)
	if err != nil {
		return nil, err
	}
	configAddr, _, err := GlobalConfigPDA(b.ProgramID)
	if err != nil {
		return nil, err
	}
	data, err := encodeData("recover_room", func(enc *bin.Encoder) error {
		return enc.Encode(roomID)
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.ProgramID, solana.AccountMetaSlice{
		solana.Meta(roomAddr).WRITE(),
		solana.Meta(vaultAddr).WRITE(),
		solana.Meta(configAddr),
		solana.Meta(platformTokenAccount).WRITE(),
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(solana.TokenProgramID),
	}, data), nil
}

func (b *Builder) roomAndVault(host solana.PublicKey, roomID string) (room, vault solana.PublicKey, err error) {
	room, _, err = RoomPDA(b.ProgramID, host, roomID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	vault, _, err = RoomVaultPDA(b.ProgramID, room)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	return room, vault, nil
}
