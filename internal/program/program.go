// Package program encodes the wire contract of the on-chain fundraising
// rooms program: PDA derivations, instruction data and account ordering,
// account state layouts and event payloads. Byte layouts here must match the
// deployed program exactly; nothing in this package touches the network.
package program

import "github.com/gagliardetto/solana-go"

// DefaultProgramID is the mainnet deployment. Override via PROGRAM_ID for
// devnet/localnet deployments.
var DefaultProgramID = solana.MustPublicKeyFromBase58("8W83G9mSeoQ6Ljcz5QJHYPjH2vQgw94YeVCnpY6KFt7i")

// Fee split constants, basis points out of 10000. The platform share is fixed
// by the program; host and prize-pool shares are per-room within these caps,
// and charity always receives at least MinCharityBps.
const (
	PlatformFeeBps   = 2000
	MaxHostFeeBps    = 500
	MaxPrizePoolBps  = 3500
	MinCharityBps    = 4000
	BpsDenominator   = 10000
	MaxApprovedMints = 50
	MaxPrizeSlots    = 3
	MaxWinners       = 10
	MaxRoomIDLen     = 32
	MaxCharityMemo   = 28
	MaxPlayersLimit  = 10000
)

// RegistryVersion tags the approved-mint registry PDA seed so a new registry
// layout can coexist with an old one during migration.
type RegistryVersion string

const (
	// RegistryV2 is the legacy registry kept alive during migration.
	RegistryV2 RegistryVersion = "v2"
	// RegistryV4 is the current registry version.
	RegistryV4 RegistryVersion = "v4"
)

// Account sizes as allocated on-chain (8-byte discriminator included).
// Used for rent preflight, so slight over-allocation is harmless.
const (
	GlobalConfigSize  = 8 + 32*3 + 2*4 + 1 + 1
	TokenRegistrySize = 8 + 32 + 4 + 32*MaxApprovedMints + 1
	RoomSize          = 8 + (4 + MaxRoomIDLen) + 32*3 + 8 + 4 + 4 + 8*3 + 2*3 + 1 + (4 + 3) +
		MaxPrizeSlots*(1+32+8+1) + 1 + 1 + 1 + (4 + 32*MaxWinners) + 8 + 8 + (4 + MaxCharityMemo) + 1
	PlayerEntrySize  = 8 + 32 + 32 + 8 + 8 + 8 + 1
	TokenAccountSize = 165
)
