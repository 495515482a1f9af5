/*

This file wraps the raw eth_call surface the indexer needs: the bar
contract's supply and metadata, the staked-token balance held by the bar,
and the reserves of the pricing pair. Every call is pinned to a specific
block so the ledger derived during a backfill matches what a live run
would have recorded; the node answering these calls must keep state for
the blocks being scanned. Results are descaled into ledger decimals
where appropriate.

*/

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/energyfi-network/stakeledger/internal/logger"
	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Function selectors for the read-only contract calls.
var (
	selTotalSupply = crypto.Keccak256([]byte("totalSupply()"))[:4]
	selBalanceOf   = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	selDecimals    = crypto.Keccak256([]byte("decimals()"))[:4]
	selName        = crypto.Keccak256([]byte("name()"))[:4]
	selSymbol      = crypto.Keccak256([]byte("symbol()"))[:4]
	selGetReserves = crypto.Keccak256([]byte("getReserves()"))[:4]
)

var ErrShortReturnData = errors.New("contract call returned short data")

// Caller is the subset of the eth client needed for read-only calls.
// *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader performs the read-only contract queries against the bar, the
// staked token and the pricing pair.
type Reader struct {
	caller Caller
	bar    common.Address
	token  common.Address
	pair   common.Address
}

// NewReader returns a reader bound to the configured contract addresses.
func NewReader(caller Caller, bar, token, pair common.Address) (*Reader, error) {
	if caller == nil {
		return nil, errors.New("caller cannot be nil")
	}
	return &Reader{caller: caller, bar: bar, token: token, pair: pair}, nil
}

var readerLogger = logger.GetForComponent("chain_reader")

// TotalSupply returns the bar's share-token supply at the given block,
// descaled by 10^18.
func (r *Reader) TotalSupply(ctx context.Context, block uint64) (sdkmath.LegacyDec, error) {
	out, err := r.call(ctx, r.bar, selTotalSupply, block)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("totalSupply call failed: %w", err)
	}
	if len(out) < 32 {
		return sdkmath.LegacyDec{}, ErrShortReturnData
	}
	raw := new(big.Int).SetBytes(out[:32])
	return sdkmath.LegacyNewDecFromBigIntWithPrec(raw, 18), nil
}

// StakedBalance returns the underlying-token balance held by the bar
// contract at the given block, descaled by 10^18.
func (r *Reader) StakedBalance(ctx context.Context, block uint64) (sdkmath.LegacyDec, error) {
	data := make([]byte, 0, 36)
	data = append(data, selBalanceOf...)
	data = append(data, common.LeftPadBytes(r.bar.Bytes(), 32)...)

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.token, Data: data}, blockArg(block))
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("balanceOf call failed: %w", err)
	}
	if len(out) < 32 {
		return sdkmath.LegacyDec{}, ErrShortReturnData
	}
	raw := new(big.Int).SetBytes(out[:32])
	return sdkmath.LegacyNewDecFromBigIntWithPrec(raw, 18), nil
}

// BarMetadata reads the bar token attributes used when the ledger entity
// is first created.
func (r *Reader) BarMetadata(ctx context.Context, block uint64) (types.BarMetadata, error) {
	var meta types.BarMetadata

	out, err := r.call(ctx, r.bar, selDecimals, block)
	if err != nil {
		return meta, fmt.Errorf("decimals call failed: %w", err)
	}
	if len(out) < 32 {
		return meta, ErrShortReturnData
	}
	meta.Decimals = uint8(new(big.Int).SetBytes(out[:32]).Uint64())

	name, err := r.callString(ctx, r.bar, selName, block)
	if err != nil {
		return meta, fmt.Errorf("name call failed: %w", err)
	}
	meta.Name = name

	symbol, err := r.callString(ctx, r.bar, selSymbol, block)
	if err != nil {
		return meta, fmt.Errorf("symbol call failed: %w", err)
	}
	meta.Symbol = symbol

	meta.StakeToken = r.token.Hex()

	readerLogger.Debug().
		Str("name", meta.Name).
		Str("symbol", meta.Symbol).
		Uint8("decimals", meta.Decimals).
		Msg("Fetched bar metadata")
	return meta, nil
}

// PairReserves returns the raw pair reserves in contract scale at the
// given block.
func (r *Reader) PairReserves(ctx context.Context, block uint64) (*big.Int, *big.Int, error) {
	out, err := r.call(ctx, r.pair, selGetReserves, block)
	if err != nil {
		return nil, nil, fmt.Errorf("getReserves call failed: %w", err)
	}
	// reserve0, reserve1 and the last-update timestamp, one word each.
	if len(out) < 96 {
		return nil, nil, ErrShortReturnData
	}
	reserve0 := new(big.Int).SetBytes(out[:32])
	reserve1 := new(big.Int).SetBytes(out[32:64])
	return reserve0, reserve1, nil
}

func blockArg(block uint64) *big.Int {
	return new(big.Int).SetUint64(block)
}

func (r *Reader) call(ctx context.Context, to common.Address, selector []byte, block uint64) ([]byte, error) {
	return r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: selector}, blockArg(block))
}

// callString decodes a single ABI-encoded dynamic string return value.
// The offset and length words are range-checked without additions that
// could wrap, so a degenerate return can never panic the slice below.
func (r *Reader) callString(ctx context.Context, to common.Address, selector []byte, block uint64) (string, error) {
	out, err := r.call(ctx, to, selector, block)
	if err != nil {
		return "", err
	}
	if len(out) < 64 {
		return "", ErrShortReturnData
	}

	offsetWord := new(big.Int).SetBytes(out[:32])
	if !offsetWord.IsUint64() {
		return "", ErrShortReturnData
	}
	offset := offsetWord.Uint64()
	if offset > uint64(len(out))-32 {
		return "", ErrShortReturnData
	}

	lengthWord := new(big.Int).SetBytes(out[offset : offset+32])
	if !lengthWord.IsUint64() {
		return "", ErrShortReturnData
	}
	length := lengthWord.Uint64()
	if length > uint64(len(out))-32-offset {
		return "", ErrShortReturnData
	}
	return string(out[offset+32 : offset+32+length]), nil
}
