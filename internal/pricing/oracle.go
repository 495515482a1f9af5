/*

This file contains the price lookup adapter. The USD price of the staked
token comes from the reserves of a fixed token/USDT pair: quote reserve
over base reserve, adjusted for the quote token's 6 decimals. The price is
fetched fresh for every event that needs a USD conversion; there is no
caching.

*/

package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrZeroReserves = errors.New("pair has zero reserves")
)

// Decimal scales of the pair legs: the staked token uses 18 decimals, the
// USDT quote leg uses 6.
const (
	baseDecimals  = 18
	quoteDecimals = 6
)

// PairReader supplies the raw reserves of the pricing pair as of a
// given block.
type PairReader interface {
	PairReserves(ctx context.Context, block uint64) (reserve0, reserve1 *big.Int, err error)
}

// Oracle converts pair reserves into a USD price for the staked token.
type Oracle struct {
	pair PairReader
}

// NewOracle returns an oracle reading from the given pair.
func NewOracle(pair PairReader) (*Oracle, error) {
	if pair == nil {
		return nil, errors.New("pair reader cannot be nil")
	}
	return &Oracle{pair: pair}, nil
}

// CurrentPrice returns reserve1/reserve0 at the given block, adjusted to
// ledger precision. Degenerate (zero) reserves are rejected so the
// division can never produce a non-finite value downstream.
func (o *Oracle) CurrentPrice(ctx context.Context, block uint64) (sdkmath.LegacyDec, error) {
	reserve0, reserve1, err := o.pair.PairReserves(ctx, block)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("failed to fetch pair reserves: %w", err)
	}

	if reserve0 == nil || reserve1 == nil || reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return sdkmath.LegacyDec{}, ErrZeroReserves
	}

	base := sdkmath.LegacyNewDecFromBigIntWithPrec(reserve0, baseDecimals)
	quote := sdkmath.LegacyNewDecFromBigIntWithPrec(reserve1, quoteDecimals)

	return quote.QuoTruncate(base), nil
}
