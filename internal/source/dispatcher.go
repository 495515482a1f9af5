/*

The dispatcher routes a decoded log to the processor that owns the
emitting contract. Rejected events (zero-divisor guards in the share
ledger) are logged and skipped so the stream keeps moving; any other
handler error is returned to the caller, which retries the same event.

*/

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/energyfi-network/stakeledger/internal/bar"
	"github.com/energyfi-network/stakeledger/internal/chef"
	"github.com/energyfi-network/stakeledger/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// Dispatcher routes contract logs to the bar and chef processors.
type Dispatcher struct {
	barAddress  common.Address
	chefAddress common.Address

	bar  *bar.Processor
	chef *chef.Processor

	log zerolog.Logger
}

// DispatcherConfig carries the dependencies of a Dispatcher.
type DispatcherConfig struct {
	BarAddress  common.Address
	ChefAddress common.Address
	Bar         *bar.Processor
	Chef        *chef.Processor
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Bar == nil {
		return nil, fmt.Errorf("dispatcher requires a bar processor")
	}
	if cfg.Chef == nil {
		return nil, fmt.Errorf("dispatcher requires a chef processor")
	}
	return &Dispatcher{
		barAddress:  cfg.BarAddress,
		chefAddress: cfg.ChefAddress,
		bar:         cfg.Bar,
		chef:        cfg.Chef,
		log:         logger.GetForComponent("dispatcher"),
	}, nil
}

// Addresses returns the contracts the dispatcher handles, in the shape
// the log filter wants.
func (d *Dispatcher) Addresses() []common.Address {
	return []common.Address{d.barAddress, d.chefAddress}
}

// Dispatch decodes and applies one log. blockTime is the timestamp of the
// block the log was emitted in.
func (d *Dispatcher) Dispatch(ctx context.Context, lg ethtypes.Log, blockTime int64) error {
	if len(lg.Topics) == 0 {
		d.log.Warn().Uint64("block", lg.BlockNumber).Msg("log without topics, skipping")
		return nil
	}

	var err error
	switch lg.Address {
	case d.barAddress:
		err = d.dispatchBar(ctx, lg, blockTime)
	case d.chefAddress:
		err = d.dispatchChef(ctx, lg, blockTime)
	default:
		d.log.Warn().Str("address", lg.Address.Hex()).Msg("log from unexpected contract, skipping")
		return nil
	}

	if err != nil && (errors.Is(err, ErrMalformedLog) || bar.IsEventRejection(err)) {
		d.log.Warn().Err(err).
			Uint64("block", lg.BlockNumber).
			Str("tx", lg.TxHash.Hex()).
			Msg("event rejected, skipping")
		return nil
	}
	return err
}

func (d *Dispatcher) dispatchBar(ctx context.Context, lg ethtypes.Log, blockTime int64) error {
	switch lg.Topics[0] {
	case TopicTransfer:
		ev, err := decodeTransfer(lg, blockTime)
		if err != nil {
			return err
		}
		return d.bar.HandleTransfer(ctx, ev)
	default:
		return nil
	}
}

func (d *Dispatcher) dispatchChef(ctx context.Context, lg ethtypes.Log, blockTime int64) error {
	switch lg.Topics[0] {
	case TopicDeposit:
		ev, err := decodeDeposit(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandleDeposit(ctx, ev)
	case TopicWithdraw:
		ev, err := decodeWithdraw(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandleWithdraw(ctx, ev)
	case TopicEmergencyWithdraw:
		ev, err := decodeEmergencyWithdraw(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandleEmergencyWithdraw(ctx, ev)
	case TopicHarvest:
		ev, err := decodeHarvest(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandleHarvest(ctx, ev)
	case TopicPoolAddition:
		ev, err := decodePoolAddition(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandlePoolAddition(ctx, ev)
	case TopicSetPool:
		ev, err := decodeSetPool(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandleSetPool(ctx, ev)
	case TopicUpdatePool:
		ev, err := decodeUpdatePool(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandleUpdatePool(ctx, ev)
	case TopicRewardPerSecond:
		ev, err := decodeRewardPerSecond(lg, blockTime)
		if err != nil {
			return err
		}
		return d.chef.HandleRewardPerSecond(ctx, ev)
	default:
		return nil
	}
}
