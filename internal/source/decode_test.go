package source

import (
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	testFrom = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTo   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTx   = common.HexToHash("0xabcd")
)

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func uintTopic(v uint64) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32))
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// 5 shares at the token's 18-decimal scale.
var fiveShares = new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func TestDecodeTransfer(t *testing.T) {
	lg := ethtypes.Log{
		Topics:      []common.Hash{TopicTransfer, addressTopic(testFrom), addressTopic(testTo)},
		Data:        word(fiveShares),
		BlockNumber: 42,
		TxHash:      testTx,
	}

	ev, err := decodeTransfer(lg, 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, testFrom, ev.From)
	require.Equal(t, testTo, ev.To)
	require.True(t, ev.Value.Equal(sdkmath.LegacyNewDec(5)))
	require.Equal(t, int64(1_700_000_000), ev.Time)
	require.Equal(t, uint64(42), ev.Block)
	require.Equal(t, testTx, ev.TxHash)
}

func TestDecodeTransferMalformed(t *testing.T) {
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicTransfer, addressTopic(testFrom), addressTopic(testTo)},
		Data:   []byte{0x01},
	}
	_, err := decodeTransfer(lg, 0)
	require.ErrorIs(t, err, ErrMalformedLog)

	lg = ethtypes.Log{
		Topics: []common.Hash{TopicTransfer, addressTopic(testFrom)},
		Data:   word(fiveShares),
	}
	_, err = decodeTransfer(lg, 0)
	require.ErrorIs(t, err, ErrMalformedLog)
}

func TestDecodeDeposit(t *testing.T) {
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicDeposit, addressTopic(testFrom), uintTopic(3), addressTopic(testTo)},
		Data:   word(big.NewInt(500)),
		TxHash: testTx,
	}

	ev, err := decodeDeposit(lg, 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, testFrom, ev.User)
	require.Equal(t, uint64(3), ev.PoolID)
	require.Equal(t, testTo, ev.To)
	require.True(t, ev.Amount.Equal(sdkmath.NewInt(500)))
}

func TestDecodeHarvest(t *testing.T) {
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicHarvest, addressTopic(testFrom), uintTopic(1)},
		Data:   word(big.NewInt(77)),
	}

	ev, err := decodeHarvest(lg, 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, testFrom, ev.User)
	require.Equal(t, uint64(1), ev.PoolID)
	require.True(t, ev.Amount.Equal(sdkmath.NewInt(77)))
}

func TestDecodePoolAddition(t *testing.T) {
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicPoolAddition, uintTopic(2), addressTopic(testFrom), addressTopic(testTo)},
		Data:   word(big.NewInt(100)),
	}

	ev, err := decodePoolAddition(lg, 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(2), ev.PoolID)
	require.True(t, ev.AllocPoint.Equal(sdkmath.NewInt(100)))
	require.Equal(t, testFrom, ev.LPToken)
	require.Equal(t, testTo, ev.Rewarder)
}

func TestDecodeSetPool(t *testing.T) {
	data := append(word(big.NewInt(60)), word(big.NewInt(1))...)
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicSetPool, uintTopic(2), addressTopic(testTo)},
		Data:   data,
	}

	ev, err := decodeSetPool(lg, 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(2), ev.PoolID)
	require.True(t, ev.AllocPoint.Equal(sdkmath.NewInt(60)))
	require.Equal(t, testTo, ev.Rewarder)
	require.True(t, ev.Overwrite)

	ev, err = decodeSetPool(ethtypes.Log{
		Topics: lg.Topics,
		Data:   append(word(big.NewInt(60)), word(big.NewInt(0))...),
	}, 0)
	require.NoError(t, err)
	require.False(t, ev.Overwrite)
}

func TestDecodeUpdatePool(t *testing.T) {
	data := word(big.NewInt(1_700_000_050))
	data = append(data, word(big.NewInt(500))...)
	data = append(data, word(big.NewInt(2_000_000_000_000))...)
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicUpdatePool, uintTopic(0)},
		Data:   data,
	}

	ev, err := decodeUpdatePool(lg, 1_700_000_050)
	require.NoError(t, err)
	require.Equal(t, uint64(0), ev.PoolID)
	require.Equal(t, int64(1_700_000_050), ev.LastRewardTime)
	require.True(t, ev.SuppliedLiquidity.Equal(sdkmath.NewInt(500)))
	require.True(t, ev.AccRewardPerShare.Equal(sdkmath.NewInt(2_000_000_000_000)))
}

func TestDecodeRewardPerSecond(t *testing.T) {
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicRewardPerSecond},
		Data:   word(big.NewInt(9)),
	}

	ev, err := decodeRewardPerSecond(lg, 1_700_000_000)
	require.NoError(t, err)
	require.True(t, ev.RewardPerSecond.Equal(sdkmath.NewInt(9)))
}

func TestDecodeRewardPerSecondMalformed(t *testing.T) {
	lg := ethtypes.Log{
		Topics: []common.Hash{TopicRewardPerSecond, uintTopic(9)},
		Data:   word(big.NewInt(9)),
	}
	_, err := decodeRewardPerSecond(lg, 0)
	require.ErrorIs(t, err, ErrMalformedLog)
}
