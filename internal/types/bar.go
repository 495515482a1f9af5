/*

This file contains the entities derived from the bar (share token) contract:
the singleton ledger, per-account positions and the daily history snapshots.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// SecondsPerDay is the size of one history bucket.
const SecondsPerDay = 86400

// BarMetadata holds the immutable token attributes read from the bar
// contract when the ledger entity is first created.
type BarMetadata struct {
	Decimals   uint8
	Name       string
	Symbol     string
	StakeToken string // underlying staked-token contract, canonical hex
}

// Bar is the singleton ledger for one bar contract. All quantities are
// descaled base-10^18 decimals.
type Bar struct {
	ID         string // bar contract address, canonical hex
	Decimals   uint8
	Name       string
	Symbol     string
	StakeToken string

	TotalSupply  sdkmath.LegacyDec
	Staked       sdkmath.LegacyDec
	StakedUSD    sdkmath.LegacyDec
	Harvested    sdkmath.LegacyDec
	HarvestedUSD sdkmath.LegacyDec
	Minted       sdkmath.LegacyDec
	Burned       sdkmath.LegacyDec
	Age          sdkmath.LegacyDec
	AgeDestroyed sdkmath.LegacyDec
	Ratio        sdkmath.LegacyDec // staked / totalSupply at last mutation

	UpdatedAt int64 // unix seconds of last mutation
}

// NewBar returns a zeroed ledger for the given contract. Creation defaults
// live here so they stay testable independent of the event handlers.
func NewBar(id string, meta BarMetadata, now int64) *Bar {
	return &Bar{
		ID:           id,
		Decimals:     meta.Decimals,
		Name:         meta.Name,
		Symbol:       meta.Symbol,
		StakeToken:   meta.StakeToken,
		TotalSupply:  sdkmath.LegacyZeroDec(),
		Staked:       sdkmath.LegacyZeroDec(),
		StakedUSD:    sdkmath.LegacyZeroDec(),
		Harvested:    sdkmath.LegacyZeroDec(),
		HarvestedUSD: sdkmath.LegacyZeroDec(),
		Minted:       sdkmath.LegacyZeroDec(),
		Burned:       sdkmath.LegacyZeroDec(),
		Age:          sdkmath.LegacyZeroDec(),
		AgeDestroyed: sdkmath.LegacyZeroDec(),
		Ratio:        sdkmath.LegacyZeroDec(),
		UpdatedAt:    now,
	}
}

// Position is the per-account view of the bar ledger. Bar holds the ledger
// id while the account is a member (positive share balance) and is empty
// once the account has left.
type Position struct {
	ID  string // account address, canonical hex
	Bar string // "" when the account holds zero shares

	ShareBalance sdkmath.LegacyDec
	Minted       sdkmath.LegacyDec
	Burned       sdkmath.LegacyDec

	Staked       sdkmath.LegacyDec
	StakedUSD    sdkmath.LegacyDec
	Harvested    sdkmath.LegacyDec
	HarvestedUSD sdkmath.LegacyDec

	// Gross directional transfer counters.
	SharesIn  sdkmath.LegacyDec
	SharesOut sdkmath.LegacyDec
	StakeIn   sdkmath.LegacyDec
	StakeOut  sdkmath.LegacyDec
	USDIn     sdkmath.LegacyDec
	USDOut    sdkmath.LegacyDec

	// Amounts already credited to the staked metrics, so round-trip
	// transfers are never counted twice.
	SharesOffset sdkmath.LegacyDec
	StakeOffset  sdkmath.LegacyDec
	USDOffset    sdkmath.LegacyDec

	Age          sdkmath.LegacyDec
	AgeDestroyed sdkmath.LegacyDec

	UpdatedAt int64
}

// NewPosition returns a zeroed position for the account, attached to the
// given bar.
func NewPosition(account, barID string, now int64) *Position {
	return &Position{
		ID:           account,
		Bar:          barID,
		ShareBalance: sdkmath.LegacyZeroDec(),
		Minted:       sdkmath.LegacyZeroDec(),
		Burned:       sdkmath.LegacyZeroDec(),
		Staked:       sdkmath.LegacyZeroDec(),
		StakedUSD:    sdkmath.LegacyZeroDec(),
		Harvested:    sdkmath.LegacyZeroDec(),
		HarvestedUSD: sdkmath.LegacyZeroDec(),
		SharesIn:     sdkmath.LegacyZeroDec(),
		SharesOut:    sdkmath.LegacyZeroDec(),
		StakeIn:      sdkmath.LegacyZeroDec(),
		StakeOut:     sdkmath.LegacyZeroDec(),
		USDIn:        sdkmath.LegacyZeroDec(),
		USDOut:       sdkmath.LegacyZeroDec(),
		SharesOffset: sdkmath.LegacyZeroDec(),
		StakeOffset:  sdkmath.LegacyZeroDec(),
		USDOffset:    sdkmath.LegacyZeroDec(),
		Age:          sdkmath.LegacyZeroDec(),
		AgeDestroyed: sdkmath.LegacyZeroDec(),
		UpdatedAt:    now,
	}
}

// History is one calendar-day snapshot of the ledger aggregates. It is
// created on the first mutation inside the day bucket and updated by every
// subsequent one; it is never deleted.
type History struct {
	Day  int64 // unix timestamp / 86400
	Date int64 // bucket start, unix seconds

	Staked       sdkmath.LegacyDec
	StakedUSD    sdkmath.LegacyDec
	Harvested    sdkmath.LegacyDec
	HarvestedUSD sdkmath.LegacyDec
	Age          sdkmath.LegacyDec
	AgeDestroyed sdkmath.LegacyDec
	Minted       sdkmath.LegacyDec
	Burned       sdkmath.LegacyDec
	Supply       sdkmath.LegacyDec
	Ratio        sdkmath.LegacyDec
}

// DayBucket truncates an event timestamp to its history bucket index.
func DayBucket(timestamp int64) int64 {
	return timestamp / SecondsPerDay
}

// NewHistory returns a zeroed snapshot for the given day bucket.
func NewHistory(day int64) *History {
	return &History{
		Day:          day,
		Date:         day * SecondsPerDay,
		Staked:       sdkmath.LegacyZeroDec(),
		StakedUSD:    sdkmath.LegacyZeroDec(),
		Harvested:    sdkmath.LegacyZeroDec(),
		HarvestedUSD: sdkmath.LegacyZeroDec(),
		Age:          sdkmath.LegacyZeroDec(),
		AgeDestroyed: sdkmath.LegacyZeroDec(),
		Minted:       sdkmath.LegacyZeroDec(),
		Burned:       sdkmath.LegacyZeroDec(),
		Supply:       sdkmath.LegacyZeroDec(),
		Ratio:        sdkmath.LegacyZeroDec(),
	}
}
