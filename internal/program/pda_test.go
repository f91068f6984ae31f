package program

import (
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

var (
	testProgram = DefaultProgramID
	testHost    = solana.MustPublicKeyFromBase58("C1vn2MT7tZotZPjUJQDf9oo3dpZZ2tr7NxYLg8jTYgkw")
	testPlayer  = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
)

func TestRoomPDADeterministic(t *testing.T) {
	a1, bump1, err := RoomPDA(testProgram, testHost, "spring-gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	a2, bump2, err := RoomPDA(testProgram, testHost, "spring-gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	if a1 != a2 || bump1 != bump2 {
		t.Fatalf("derivation not deterministic: %s/%d vs %s/%d", a1, bump1, a2, bump2)
	}
}

func TestRoomPDAComponentSensitivity(t *testing.T) {
	base, _, err := RoomPDA(testProgram, testHost, "spring-gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	otherID, _, err := RoomPDA(testProgram, testHost, "spring-galb")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	if base == otherID {
		t.Fatal("changing room id did not change the address")
	}
	otherHost, _, err := RoomPDA(testProgram, testPlayer, "spring-gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	if base == otherHost {
		t.Fatal("changing host did not change the address")
	}
}

func TestPrizeVaultPDASlotSensitivity(t *testing.T) {
	room, _, err := RoomPDA(testProgram, testHost, "spring-gala")
	if err != nil {
		t.Fatalf("RoomPDA() error = %v", err)
	}
	v0, _, err := PrizeVaultPDA(testProgram, room, 0)
	if err != nil {
		t.Fatalf("PrizeVaultPDA(0) error = %v", err)
	}
	v1, _, err := PrizeVaultPDA(testProgram, room, 1)
	if err != nil {
		t.Fatalf("PrizeVaultPDA(1) error = %v", err)
	}
	if v0 == v1 {
		t.Fatal("changing slot did not change the address")
	}
	if _, _, err := PrizeVaultPDA(testProgram, room, 3); err == nil {
		t.Fatal("PrizeVaultPDA(3) expected error, got nil")
	}
}

func TestTokenRegistryPDAVersioned(t *testing.T) {
	v2, _, err := TokenRegistryPDA(testProgram, RegistryV2)
	if err != nil {
		t.Fatalf("TokenRegistryPDA(v2) error = %v", err)
	}
	v4, _, err := TokenRegistryPDA(testProgram, RegistryV4)
	if err != nil {
		t.Fatalf("TokenRegistryPDA(v4) error = %v", err)
	}
	if v2 == v4 {
		t.Fatal("registry versions must derive distinct addresses")
	}
}

func TestValidateRoomIDBounds(t *testing.T) {
	cases := []struct {
		roomID string
		ok     bool
	}{
		{"", false},
		{"a", true},
		{strings.Repeat("x", 32), true},
		{strings.Repeat("x", 33), false},
		{"has\x00nul", false},
	}
	for _, tc := range cases {
		err := ValidateRoomID(tc.roomID)
		if tc.ok && err != nil {
			t.Fatalf("ValidateRoomID(%q) = %v, want nil", tc.roomID, err)
		}
		if !tc.ok {
			var idErr *RoomIDError
			if !errors.As(err, &idErr) {
				t.Fatalf("ValidateRoomID(%q) = %v, want *RoomIDError", tc.roomID, err)
			}
		}
	}
}

func TestRoomPDARejectsBadIDBeforeDerivation(t *testing.T) {
	_, _, err := RoomPDA(testProgram, testHost, strings.Repeat("x", 33))
	var idErr *RoomIDError
	if !errors.As(err, &idErr) {
		t.Fatalf("RoomPDA error = %v, want *RoomIDError", err)
	}
}
