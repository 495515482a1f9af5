/*

This file decodes raw chain logs into the typed events the processors
consume. Topic zero identifies the event; indexed arguments live in the
remaining topics and the rest is packed into the data words.

*/

package source

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures of the bar and chef contracts.
var (
	TopicTransfer          = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	TopicDeposit           = crypto.Keccak256Hash([]byte("Deposit(address,uint256,uint256,address)"))
	TopicWithdraw          = crypto.Keccak256Hash([]byte("Withdraw(address,uint256,uint256,address)"))
	TopicEmergencyWithdraw = crypto.Keccak256Hash([]byte("EmergencyWithdraw(address,uint256,uint256,address)"))
	TopicHarvest           = crypto.Keccak256Hash([]byte("Harvest(address,uint256,uint256)"))
	TopicPoolAddition      = crypto.Keccak256Hash([]byte("LogPoolAddition(uint256,uint256,address,address)"))
	TopicSetPool           = crypto.Keccak256Hash([]byte("LogSetPool(uint256,uint256,address,bool)"))
	TopicUpdatePool        = crypto.Keccak256Hash([]byte("LogUpdatePool(uint256,uint64,uint256,uint256)"))
	TopicRewardPerSecond   = crypto.Keccak256Hash([]byte("LogRewardPerSecond(uint256)"))
)

var ErrMalformedLog = errors.New("malformed log")

const wordSize = 32

func topicAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes()[12:])
}

func topicUint64(topic common.Hash) uint64 {
	return new(big.Int).SetBytes(topic.Bytes()).Uint64()
}

func dataWord(data []byte, index int) (*big.Int, error) {
	start := index * wordSize
	if len(data) < start+wordSize {
		return nil, fmt.Errorf("%w: want data word %d, have %d bytes", ErrMalformedLog, index, len(data))
	}
	return new(big.Int).SetBytes(data[start : start+wordSize]), nil
}

func decodeTransfer(lg ethtypes.Log, blockTime int64) (types.TransferEvent, error) {
	var ev types.TransferEvent
	if len(lg.Topics) != 3 {
		return ev, fmt.Errorf("%w: transfer with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	value, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}

	ev.From = topicAddress(lg.Topics[1])
	ev.To = topicAddress(lg.Topics[2])
	ev.Value = sdkmath.LegacyNewDecFromBigIntWithPrec(value, 18)
	ev.Time = blockTime
	ev.Block = lg.BlockNumber
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodeDeposit(lg ethtypes.Log, blockTime int64) (types.DepositEvent, error) {
	var ev types.DepositEvent
	if len(lg.Topics) != 4 {
		return ev, fmt.Errorf("%w: deposit with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	amount, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}

	ev.User = topicAddress(lg.Topics[1])
	ev.PoolID = topicUint64(lg.Topics[2])
	ev.Amount = sdkmath.NewIntFromBigInt(amount)
	ev.To = topicAddress(lg.Topics[3])
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodeWithdraw(lg ethtypes.Log, blockTime int64) (types.WithdrawEvent, error) {
	var ev types.WithdrawEvent
	if len(lg.Topics) != 4 {
		return ev, fmt.Errorf("%w: withdraw with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	amount, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}

	ev.User = topicAddress(lg.Topics[1])
	ev.PoolID = topicUint64(lg.Topics[2])
	ev.Amount = sdkmath.NewIntFromBigInt(amount)
	ev.To = topicAddress(lg.Topics[3])
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodeEmergencyWithdraw(lg ethtypes.Log, blockTime int64) (types.EmergencyWithdrawEvent, error) {
	var ev types.EmergencyWithdrawEvent
	if len(lg.Topics) != 4 {
		return ev, fmt.Errorf("%w: emergency withdraw with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	amount, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}

	ev.User = topicAddress(lg.Topics[1])
	ev.PoolID = topicUint64(lg.Topics[2])
	ev.Amount = sdkmath.NewIntFromBigInt(amount)
	ev.To = topicAddress(lg.Topics[3])
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodeHarvest(lg ethtypes.Log, blockTime int64) (types.HarvestEvent, error) {
	var ev types.HarvestEvent
	if len(lg.Topics) != 3 {
		return ev, fmt.Errorf("%w: harvest with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	amount, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}

	ev.User = topicAddress(lg.Topics[1])
	ev.PoolID = topicUint64(lg.Topics[2])
	ev.Amount = sdkmath.NewIntFromBigInt(amount)
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodePoolAddition(lg ethtypes.Log, blockTime int64) (types.PoolAdditionEvent, error) {
	var ev types.PoolAdditionEvent
	if len(lg.Topics) != 4 {
		return ev, fmt.Errorf("%w: pool addition with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	allocPoint, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}

	ev.PoolID = topicUint64(lg.Topics[1])
	ev.AllocPoint = sdkmath.NewIntFromBigInt(allocPoint)
	ev.LPToken = topicAddress(lg.Topics[2])
	ev.Rewarder = topicAddress(lg.Topics[3])
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodeSetPool(lg ethtypes.Log, blockTime int64) (types.SetPoolEvent, error) {
	var ev types.SetPoolEvent
	if len(lg.Topics) != 3 {
		return ev, fmt.Errorf("%w: set pool with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	allocPoint, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}
	overwrite, err := dataWord(lg.Data, 1)
	if err != nil {
		return ev, err
	}

	ev.PoolID = topicUint64(lg.Topics[1])
	ev.AllocPoint = sdkmath.NewIntFromBigInt(allocPoint)
	ev.Rewarder = topicAddress(lg.Topics[2])
	ev.Overwrite = overwrite.Sign() != 0
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodeUpdatePool(lg ethtypes.Log, blockTime int64) (types.UpdatePoolEvent, error) {
	var ev types.UpdatePoolEvent
	if len(lg.Topics) != 2 {
		return ev, fmt.Errorf("%w: update pool with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	lastRewardTime, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}
	supplied, err := dataWord(lg.Data, 1)
	if err != nil {
		return ev, err
	}
	accPerShare, err := dataWord(lg.Data, 2)
	if err != nil {
		return ev, err
	}

	ev.PoolID = topicUint64(lg.Topics[1])
	ev.LastRewardTime = int64(lastRewardTime.Uint64())
	ev.SuppliedLiquidity = sdkmath.NewIntFromBigInt(supplied)
	ev.AccRewardPerShare = sdkmath.NewIntFromBigInt(accPerShare)
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}

func decodeRewardPerSecond(lg ethtypes.Log, blockTime int64) (types.RewardPerSecondEvent, error) {
	var ev types.RewardPerSecondEvent
	if len(lg.Topics) != 1 {
		return ev, fmt.Errorf("%w: reward per second with %d topics", ErrMalformedLog, len(lg.Topics))
	}
	rate, err := dataWord(lg.Data, 0)
	if err != nil {
		return ev, err
	}

	ev.RewardPerSecond = sdkmath.NewIntFromBigInt(rate)
	ev.Time = blockTime
	ev.TxHash = lg.TxHash
	return ev, nil
}
