package program

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Seed prefixes. These are part of the wire contract and must never drift
// from the program's own constants.
var (
	seedGlobalConfig  = []byte("global-config")
	seedTokenRegistry = []byte("token-registry-")
	seedRoom          = []byte("room")
	seedRoomVault     = []byte("room-vault")
	seedPrizeVault    = []byte("prize-vault")
	seedPlayerEntry   = []byte("player")
)

// RoomIDError reports a room id the program would reject, before any
// derivation or network call happens.
type RoomIDError struct {
	RoomID string
	Reason string
}

func (e *RoomIDError) Error() string {
	return fmt.Sprintf("invalid room id %q: %s", e.RoomID, e.Reason)
}

// ValidateRoomID enforces the program's room id constraints: 1-32 bytes, no
// NUL bytes.
func ValidateRoomID(roomID string) error {
	if len(roomID) == 0 {
		return &RoomIDError{RoomID: roomID, Reason: "empty"}
	}
	if len(roomID) > MaxRoomIDLen {
		return &RoomIDError{RoomID: roomID, Reason: fmt.Sprintf("longer than %d bytes", MaxRoomIDLen)}
	}
	if strings.ContainsRune(roomID, 0) {
		return &RoomIDError{RoomID: roomID, Reason: "contains NUL byte"}
	}
	return nil
}

// GlobalConfigPDA derives the singleton global configuration account.
func GlobalConfigPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedGlobalConfig}, programID)
}

// TokenRegistryPDA derives the approved-mint registry for a given seed
// version. Passing the version explicitly lets a migration read the old
// registry and write the new one side by side.
func TokenRegistryPDA(programID solana.PublicKey, version RegistryVersion) (solana.PublicKey, uint8, error) {
	seed := append(append([]byte{}, seedTokenRegistry...), []byte(version)...)
	return solana.FindProgramAddress([][]byte{seed}, programID)
}

// RoomPDA derives a room account from its host and host-scoped id.
func RoomPDA(programID, host solana.PublicKey, roomID string) (solana.PublicKey, uint8, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.FindProgramAddress([][]byte{seedRoom, host.Bytes(), []byte(roomID)}, programID)
}

// RoomVaultPDA derives the entry-fee escrow for a room.
func RoomVaultPDA(programID, room solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedRoomVault, room.Bytes()}, programID)
}

// PrizeVaultPDA derives the escrow for one of a room's prize slots (0-2).
func PrizeVaultPDA(programID, room solana.PublicKey, slot uint8) (solana.PublicKey, uint8, error) {
	if slot >= MaxPrizeSlots {
		return solana.PublicKey{}, 0, fmt.Errorf("prize slot %d out of range [0,%d)", slot, MaxPrizeSlots)
	}
	return solana.FindProgramAddress([][]byte{seedPrizeVault, room.Bytes(), {slot}}, programID)
}

// PlayerEntryPDA derives the per-(room, player) join record.
func PlayerEntryPDA(programID, room, player solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPlayerEntry, room.Bytes(), player.Bytes()}, programID)
}
