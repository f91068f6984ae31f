package program

import (
	"encoding/base64"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Event is one program event recovered from transaction logs.
type Event interface {
	EventName() string
}

type RoomCreatedEvent struct {
	Room           solana.PublicKey
	RoomID         string
	Host           solana.PublicKey
	EntryFee       uint64
	MaxPlayers     uint32
	ExpirationSlot uint64
	Timestamp      int64
}

func (RoomCreatedEvent) EventName() string { return "RoomCreated" }

type AssetRoomCreatedEvent struct {
	Room           solana.PublicKey
	RoomID         string
	Host           solana.PublicKey
	EntryFee       uint64
	ExpectedPrizes uint8
	Timestamp      int64
}

func (AssetRoomCreatedEvent) EventName() string { return "AssetRoomCreated" }

type PlayerJoinedEvent struct {
	Room        solana.PublicKey
	Player      solana.PublicKey
	AmountPaid  uint64
	ExtrasPaid  uint64
	PlayerCount uint32
	Timestamp   int64
}

func (PlayerJoinedEvent) EventName() string { return "PlayerJoined" }

type WinnersDeclaredEvent struct {
	Room      solana.PublicKey
	Winners   []solana.PublicKey
	Timestamp int64
}

func (WinnersDeclaredEvent) EventName() string { return "WinnersDeclared" }

type RoomEndedEvent struct {
	Room           solana.PublicKey
	Winners        []solana.PublicKey
	PlatformAmount uint64
	HostAmount     uint64
	CharityAmount  uint64
	PrizeAmount    uint64
	TotalPlayers   uint32
	Timestamp      int64
}

func (RoomEndedEvent) EventName() string { return "RoomEnded" }

type PrizeAssetDepositedEvent struct {
	Room       solana.PublicKey
	PrizeIndex uint8
	TokenMint  solana.PublicKey
	Amount     uint64
	Depositor  solana.PublicKey
	Timestamp  int64
}

func (PrizeAssetDepositedEvent) EventName() string { return "PrizeAssetDeposited" }

type PrizeAssetWithdrawnEvent struct {
	Room       solana.PublicKey
	PrizeIndex uint8
	TokenMint  solana.PublicKey
	Amount     uint64
	Recipient  solana.PublicKey
	Timestamp  int64
}

func (PrizeAssetWithdrawnEvent) EventName() string { return "PrizeAssetWithdrawn" }

type TokenApprovedEvent struct {
	TokenMint solana.PublicKey
	Admin     solana.PublicKey
	Timestamp int64
}

func (TokenApprovedEvent) EventName() string { return "TokenApproved" }

type TokenRemovedEvent struct {
	TokenMint solana.PublicKey
	Admin     solana.PublicKey
	Timestamp int64
}

func (TokenRemovedEvent) EventName() string { return "TokenRemoved" }

type JoiningClosedEvent struct {
	Room        solana.PublicKey
	RoomID      string
	Host        solana.PublicKey
	PlayerCount uint32
	Timestamp   int64
}

func (JoiningClosedEvent) EventName() string { return "JoiningClosed" }

type RoomCleanedEvent struct {
	Room          solana.PublicKey
	RoomID        string
	RentReclaimed uint64
	Recipient     solana.PublicKey
	Timestamp     int64
}

func (RoomCleanedEvent) EventName() string { return "RoomCleaned" }

type RoomRecoveredEvent struct {
	Room            solana.PublicKey
	AmountRecovered uint64
	Recipient       solana.PublicKey
	Admin           solana.PublicKey
	Timestamp       int64
}

func (RoomRecoveredEvent) EventName() string { return "RoomRecovered" }

var eventFactories = map[[8]byte]func() Event{
	EventDiscriminator("RoomCreated"):         func() Event { return &RoomCreatedEvent{} },
	EventDiscriminator("AssetRoomCreated"):    func() Event { return &AssetRoomCreatedEvent{} },
	EventDiscriminator("PlayerJoined"):        func() Event { return &PlayerJoinedEvent{} },
	EventDiscriminator("WinnersDeclared"):     func() Event { return &WinnersDeclaredEvent{} },
	EventDiscriminator("RoomEnded"):           func() Event { return &RoomEndedEvent{} },
	EventDiscriminator("PrizeAssetDeposited"): func() Event { return &PrizeAssetDepositedEvent{} },
	EventDiscriminator("PrizeAssetWithdrawn"): func() Event { return &PrizeAssetWithdrawnEvent{} },
	EventDiscriminator("TokenApproved"):       func() Event { return &TokenApprovedEvent{} },
	EventDiscriminator("TokenRemoved"):        func() Event { return &TokenRemovedEvent{} },
	EventDiscriminator("JoiningClosed"):       func() Event { return &JoiningClosedEvent{} },
	EventDiscriminator("RoomCleaned"):         func() Event { return &RoomCleanedEvent{} },
	EventDiscriminator("RoomRecovered"):       func() Event { return &RoomRecoveredEvent{} },
}

const programDataPrefix = "Program data: "

// DecodeEvents scans transaction log messages for program events. Unknown
// discriminators and undecodable payloads are skipped: logs may interleave
// events from other programs in the same transaction.
func DecodeEvents(logs []string) []Event {
	var events []Event
	for _, line := range logs {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
		if err != nil || len(raw) < 8 {
			continue
		}
		var disc [8]byte
		copy(disc[:], raw[:8])
		factory, ok := eventFactories[disc]
		if !ok {
			continue
		}
		ev := factory()
		if err := bin.NewBorshDecoder(raw[8:]).Decode(ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events
}
