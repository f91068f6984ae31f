package program

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrWrongDiscriminator = errors.New("wrong_account_discriminator")
	ErrAccountTooShort    = errors.New("account_data_too_short")
)

// RoomStatus mirrors the program's status enum.
type RoomStatus uint8

const (
	RoomAwaitingFunding RoomStatus = iota
	RoomPartiallyFunded
	RoomReady
	RoomActive
	RoomEnded
)

func (s RoomStatus) String() string {
	switch s {
	case RoomAwaitingFunding:
		return "awaiting_funding"
	case RoomPartiallyFunded:
		return "partially_funded"
	case RoomReady:
		return "ready"
	case RoomActive:
		return "active"
	case RoomEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// PrizeMode mirrors the program's prize mode enum.
type PrizeMode uint8

const (
	PrizeModePool PrizeMode = iota
	PrizeModeAsset
)

func (m PrizeMode) String() string {
	if m == PrizeModeAsset {
		return "asset"
	}
	return "pool"
}

// PrizeAsset is one pre-funded prize slot of an asset-mode room.
type PrizeAsset struct {
	Mint      solana.PublicKey
	Amount    uint64
	Deposited bool
}

// GlobalConfig is the platform-wide singleton.
type GlobalConfig struct {
	Admin           solana.PublicKey
	PlatformWallet  solana.PublicKey
	CharityWallet   solana.PublicKey
	PlatformFeeBps  uint16
	MaxHostFeeBps   uint16
	MaxPrizePoolBps uint16
	MinCharityBps   uint16
	EmergencyPause  bool
	Bump            uint8
}

// TokenRegistry is the approved entry-fee mint allowlist.
type TokenRegistry struct {
	Authority solana.PublicKey
	Approved  []solana.PublicKey
	Bump      uint8
}

// IsApproved reports whether mint may be used as an entry-fee currency.
func (r *TokenRegistry) IsApproved(mint solana.PublicKey) bool {
	for _, m := range r.Approved {
		if m == mint {
			return true
		}
	}
	return false
}

// Room is the on-chain room record.
type Room struct {
	RoomID            string
	Host              solana.PublicKey
	CharityWallet     solana.PublicKey
	FeeTokenMint      solana.PublicKey
	EntryFee          uint64
	MaxPlayers        uint32
	PlayerCount       uint32
	TotalCollected    uint64
	TotalEntryFees    uint64
	TotalExtrasFees   uint64
	HostFeeBps        uint16
	PrizePoolBps      uint16
	CharityBps        uint16
	PrizeMode         PrizeMode
	PrizeDistribution []byte
	PrizeAssets       [MaxPrizeSlots]*PrizeAsset
	Status            RoomStatus
	JoiningClosed     bool
	Ended             bool
	Winners           []solana.PublicKey
	CreationSlot      uint64
	ExpirationSlot    uint64
	CharityMemo       string
	Bump              uint8
}

// PlayerEntry is the per-(room, player) join record.
type PlayerEntry struct {
	Player     solana.PublicKey
	Room       solana.PublicKey
	AmountPaid uint64
	ExtrasPaid uint64
	JoinedAt   int64
	Bump       uint8
}

func checkedDecoder(data []byte, accountName string) (*bin.Decoder, error) {
	if len(data) < 8 {
		return nil, ErrAccountTooShort
	}
	disc := AccountDiscriminator(accountName)
	if !bytes.Equal(data[:8], disc[:]) {
		return nil, fmt.Errorf("%w: account is not a %s", ErrWrongDiscriminator, accountName)
	}
	return bin.NewBorshDecoder(data[8:]), nil
}

// DecodeGlobalConfig parses a GlobalConfig account.
func DecodeGlobalConfig(data []byte) (*GlobalConfig, error) {
	dec, err := checkedDecoder(data, "GlobalConfig")
	if err != nil {
		return nil, err
	}
	var cfg GlobalConfig
	for _, v := range []interface{}{
		&cfg.Admin, &cfg.PlatformWallet, &cfg.CharityWallet,
		&cfg.PlatformFeeBps, &cfg.MaxHostFeeBps, &cfg.MaxPrizePoolBps, &cfg.MinCharityBps,
		&cfg.EmergencyPause, &cfg.Bump,
	} {
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("decode global config: %w", err)
		}
	}
	return &cfg, nil
}

// DecodeTokenRegistry parses a TokenRegistry account.
func DecodeTokenRegistry(data []byte) (*TokenRegistry, error) {
	dec, err := checkedDecoder(data, "TokenRegistry")
	if err != nil {
		return nil, err
	}
	var reg TokenRegistry
	if err := dec.Decode(&reg.Authority); err != nil {
		return nil, fmt.Errorf("decode token registry: %w", err)
	}
	if err := dec.Decode(&reg.Approved); err != nil {
		return nil, fmt.Errorf("decode token registry: %w", err)
	}
	if err := dec.Decode(&reg.Bump); err != nil {
		return nil, fmt.Errorf("decode token registry: %w", err)
	}
	return &reg, nil
}

// DecodeRoom parses a Room account.
func DecodeRoom(data []byte) (*Room, error) {
	dec, err := checkedDecoder(data, "Room")
	if err != nil {
		return nil, err
	}
	var room Room
	for _, v := range []interface{}{
		&room.RoomID, &room.Host, &room.CharityWallet, &room.FeeTokenMint,
		&room.EntryFee, &room.MaxPlayers, &room.PlayerCount,
		&room.TotalCollected, &room.TotalEntryFees, &room.TotalExtrasFees,
		&room.HostFeeBps, &room.PrizePoolBps, &room.CharityBps,
	} {
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
	}
	var mode uint8
	if err := dec.Decode(&mode); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	room.PrizeMode = PrizeMode(mode)
	if err := dec.Decode(&room.PrizeDistribution); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	for i := range room.PrizeAssets {
		present, err := dec.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("decode room prize slot %d: %w", i, err)
		}
		if !present {
			continue
		}
		var asset PrizeAsset
		if err := dec.Decode(&asset.Mint); err != nil {
			return nil, fmt.Errorf("decode room prize slot %d: %w", i, err)
		}
		if err := dec.Decode(&asset.Amount); err != nil {
			return nil, fmt.Errorf("decode room prize slot %d: %w", i, err)
		}
		if err := dec.Decode(&asset.Deposited); err != nil {
			return nil, fmt.Errorf("decode room prize slot %d: %w", i, err)
		}
		room.PrizeAssets[i] = &asset
	}
	var status uint8
	if err := dec.Decode(&status); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	room.Status = RoomStatus(status)
	for _, v := range []interface{}{
		&room.JoiningClosed, &room.Ended, &room.Winners,
		&room.CreationSlot, &room.ExpirationSlot, &room.CharityMemo, &room.Bump,
	} {
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
	}
	return &room, nil
}

// DecodePlayerEntry parses a PlayerEntry account.
func DecodePlayerEntry(data []byte) (*PlayerEntry, error) {
	dec, err := checkedDecoder(data, "PlayerEntry")
	if err != nil {
		return nil, err
	}
	var entry PlayerEntry
	for _, v := range []interface{}{
		&entry.Player, &entry.Room, &entry.AmountPaid, &entry.ExtrasPaid, &entry.JoinedAt, &entry.Bump,
	} {
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("decode player entry: %w", err)
		}
	}
	return &entry, nil
}
