/*

This file contains the typed events delivered by the chain source. Each
event carries the block timestamp and the transaction hash for diagnostics.

The transfer shape (mint / burn / move) is decided once per event from the
zero-address sentinels and then dispatched on, instead of re-comparing the
sentinels throughout the handlers.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// TransferKind tags the three disjoint shapes a share-token transfer
// event can take.
type TransferKind uint8

const (
	// KindMint is a transfer from the zero address: shares created.
	KindMint TransferKind = iota
	// KindBurn is a transfer to the zero address: shares destroyed.
	KindBurn
	// KindMove is an account-to-account transfer.
	KindMove
)

func (k TransferKind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	case KindMove:
		return "move"
	default:
		return "unknown"
	}
}

// TransferEvent is one share-token Transfer log.
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value sdkmath.LegacyDec // descaled by 10^18

	Time   int64 // block timestamp, unix seconds
	Block  uint64
	TxHash common.Hash
}

// Kind classifies the event by its zero-address sentinels.
func (e TransferEvent) Kind() TransferKind {
	zero := common.Address{}
	switch {
	case e.From == zero:
		return KindMint
	case e.To == zero:
		return KindBurn
	default:
		return KindMove
	}
}

// PoolAdditionEvent registers a new reward pool.
type PoolAdditionEvent struct {
	PoolID     uint64
	AllocPoint sdkmath.Int
	LPToken    common.Address
	Rewarder   common.Address

	Time   int64
	TxHash common.Hash
}

// SetPoolEvent re-weights an existing pool and optionally rebinds its
// rewarder.
type SetPoolEvent struct {
	PoolID     uint64
	AllocPoint sdkmath.Int
	Rewarder   common.Address
	Overwrite  bool

	Time   int64
	TxHash common.Hash
}

// UpdatePoolEvent advances a pool's reward accumulator. The accumulator is
// treated as an opaque scaled integer set by the contract.
type UpdatePoolEvent struct {
	PoolID            uint64
	LastRewardTime    int64
	SuppliedLiquidity sdkmath.Int
	AccRewardPerShare sdkmath.Int

	Time   int64
	TxHash common.Hash
}

// RewardPerSecondEvent sets the chef-wide emission rate.
type RewardPerSecondEvent struct {
	RewardPerSecond sdkmath.Int

	Time   int64
	TxHash common.Hash
}

// DepositEvent credits principal to an account's pool position.
type DepositEvent struct {
	User   common.Address
	PoolID uint64
	Amount sdkmath.Int
	To     common.Address

	Time   int64
	TxHash common.Hash
}

// WithdrawEvent debits principal from an account's pool position.
type WithdrawEvent struct {
	User   common.Address
	PoolID uint64
	Amount sdkmath.Int
	To     common.Address

	Time   int64
	TxHash common.Hash
}

// EmergencyWithdrawEvent abandons a position, forfeiting accrued rewards.
type EmergencyWithdrawEvent struct {
	User   common.Address
	PoolID uint64
	Amount sdkmath.Int
	To     common.Address

	Time   int64
	TxHash common.Hash
}

// HarvestEvent pays out an account's pending reward.
type HarvestEvent struct {
	User   common.Address
	PoolID uint64
	Amount sdkmath.Int

	Time   int64
	TxHash common.Hash
}

// AccountKey converts an address to its canonical hex entity key.
func AccountKey(addr common.Address) string {
	return addr.Hex()
}
