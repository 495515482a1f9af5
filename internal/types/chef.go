/*

This file contains the entities derived from the reward-pool (chef)
contract: the singleton reward ledger, per-pool rows, rewarder references
and per-account-per-pool positions.

Reward quantities stay in the contract's native integer scale; the
accumulator-per-share index carries an implicit 1e12 denominator.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// Chef is the singleton reward ledger for one chef contract.
type Chef struct {
	ID string // chef contract address, canonical hex

	TotalAllocPoint sdkmath.Int
	PoolCount       sdkmath.Int
	RewardPerSecond sdkmath.Int

	UpdatedAt int64
}

// NewChef returns a zeroed reward ledger for the given contract.
func NewChef(id string, now int64) *Chef {
	return &Chef{
		ID:              id,
		TotalAllocPoint: sdkmath.ZeroInt(),
		PoolCount:       sdkmath.ZeroInt(),
		RewardPerSecond: sdkmath.ZeroInt(),
		UpdatedAt:       now,
	}
}

// Pool is one reward pool row, keyed by the contract's pool id.
type Pool struct {
	ID       uint64
	Chef     string
	Pair     string // LP token address, canonical hex
	Rewarder string // "" when no rewarder is bound

	AllocPoint        sdkmath.Int
	AccRewardPerShare sdkmath.Int // scaled by AccRewardPrecision
	LastRewardTime    int64
	SuppliedLiquidity sdkmath.Int

	UpdatedAt int64
}

// NewPool returns a zeroed pool row bound to the given chef.
func NewPool(id uint64, chefID string, now int64) *Pool {
	return &Pool{
		ID:                id,
		Chef:              chefID,
		AllocPoint:        sdkmath.ZeroInt(),
		AccRewardPerShare: sdkmath.ZeroInt(),
		SuppliedLiquidity: sdkmath.ZeroInt(),
		UpdatedAt:         now,
	}
}

// Rewarder is an external bonus-reward contract referenced by a pool.
type Rewarder struct {
	ID        string // rewarder contract address, canonical hex
	UpdatedAt int64
}

// PoolPosition is one account's stake in one reward pool.
type PoolPosition struct {
	Account string
	Pool    uint64

	Amount     sdkmath.Int // deposited principal
	RewardDebt sdkmath.Int // accumulator value already attributed
	Harvested  sdkmath.Int

	UpdatedAt int64
}

// NewPoolPosition returns a zeroed position for the account in the pool.
func NewPoolPosition(account string, pool uint64, now int64) *PoolPosition {
	return &PoolPosition{
		Account:    account,
		Pool:       pool,
		Amount:     sdkmath.ZeroInt(),
		RewardDebt: sdkmath.ZeroInt(),
		Harvested:  sdkmath.ZeroInt(),
		UpdatedAt:  now,
	}
}
