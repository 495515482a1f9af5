/*

This file contains the accumulator-per-share reward ledger. The chef
contract advances a per-pool reward-per-share index; each position's
reward debt marks how much of that index has already been attributed, so

	pending(account) = amount * accRewardPerShare / PRECISION - rewardDebt

holds across any interleaving of deposits, withdrawals and accumulator
advances. All math stays in the contract's native integer scale.

*/

package chef

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/energyfi-network/stakeledger/internal/logger"
	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/rs/zerolog"
)

// AccRewardPrecision is the implicit denominator of the
// accumulator-per-share index.
var AccRewardPrecision = sdkmath.NewInt(1_000_000_000_000)

// Store is the entity repository the processor reads from and commits to.
type Store interface {
	GetChef(ctx context.Context, id string) (*types.Chef, error)
	GetPool(ctx context.Context, id uint64) (*types.Pool, error)
	GetRewarder(ctx context.Context, id string) (*types.Rewarder, error)
	GetPoolPosition(ctx context.Context, account string, pool uint64) (*types.PoolPosition, error)
	Commit(ctx context.Context, chef *types.Chef, pool *types.Pool, rewarder *types.Rewarder, pos *types.PoolPosition) error
}

// Config holds the dependencies for creating a Processor.
type Config struct {
	Store  Store
	ChefID string
}

// Processor applies reward-pool events to the reward ledger.
type Processor struct {
	store  Store
	chefID string

	logger zerolog.Logger
}

// NewProcessor creates a processor with dependency injection.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.ChefID == "" {
		return nil, fmt.Errorf("chef id cannot be empty")
	}

	return &Processor{
		store:  cfg.Store,
		chefID: cfg.ChefID,
		logger: logger.GetForComponent("chef_processor"),
	}, nil
}

// HandlePoolAddition registers a new pool and adds its weight to the
// ledger-wide allocation total.
func (p *Processor) HandlePoolAddition(ctx context.Context, ev types.PoolAdditionEvent) error {
	chef, err := p.getOrCreateChef(ctx, ev.Time)
	if err != nil {
		return err
	}
	pool, err := p.getOrCreatePool(ctx, ev.PoolID, ev.Time)
	if err != nil {
		return err
	}
	rewarder, err := p.getOrCreateRewarder(ctx, types.AccountKey(ev.Rewarder), ev.Time)
	if err != nil {
		return err
	}

	pool.Rewarder = rewarder.ID
	pool.Pair = types.AccountKey(ev.LPToken)
	pool.AllocPoint = ev.AllocPoint
	pool.UpdatedAt = ev.Time

	chef.TotalAllocPoint = chef.TotalAllocPoint.Add(pool.AllocPoint)
	chef.PoolCount = chef.PoolCount.Add(sdkmath.OneInt())
	chef.UpdatedAt = ev.Time

	p.logger.Info().
		Uint64("pool", ev.PoolID).
		Str("allocPoint", ev.AllocPoint.String()).
		Str("pair", pool.Pair).
		Msg("Pool added")

	return p.store.Commit(ctx, chef, pool, rewarder, nil)
}

// HandleSetPool re-weights a pool, adjusting the allocation total by the
// delta, and rebinds its rewarder when the overwrite flag is set.
func (p *Processor) HandleSetPool(ctx context.Context, ev types.SetPoolEvent) error {
	chef, err := p.getOrCreateChef(ctx, ev.Time)
	if err != nil {
		return err
	}
	pool, err := p.getOrCreatePool(ctx, ev.PoolID, ev.Time)
	if err != nil {
		return err
	}

	var rewarder *types.Rewarder
	if ev.Overwrite {
		if rewarder, err = p.getOrCreateRewarder(ctx, types.AccountKey(ev.Rewarder), ev.Time); err != nil {
			return err
		}
		pool.Rewarder = rewarder.ID
	}

	chef.TotalAllocPoint = chef.TotalAllocPoint.Add(ev.AllocPoint.Sub(pool.AllocPoint))
	chef.UpdatedAt = ev.Time
	pool.AllocPoint = ev.AllocPoint
	pool.UpdatedAt = ev.Time

	p.logger.Info().
		Uint64("pool", ev.PoolID).
		Str("allocPoint", ev.AllocPoint.String()).
		Bool("overwrite", ev.Overwrite).
		Msg("Pool set")

	return p.store.Commit(ctx, chef, pool, rewarder, nil)
}

// HandleUpdatePool adopts the accumulator advance reported by the
// contract. The index is opaque here; only the contract derives it.
func (p *Processor) HandleUpdatePool(ctx context.Context, ev types.UpdatePoolEvent) error {
	pool, err := p.getOrCreatePool(ctx, ev.PoolID, ev.Time)
	if err != nil {
		return err
	}

	pool.AccRewardPerShare = ev.AccRewardPerShare
	pool.LastRewardTime = ev.LastRewardTime
	pool.UpdatedAt = ev.Time

	return p.store.Commit(ctx, nil, pool, nil, nil)
}

// HandleRewardPerSecond sets the chef-wide emission rate.
func (p *Processor) HandleRewardPerSecond(ctx context.Context, ev types.RewardPerSecondEvent) error {
	chef, err := p.getOrCreateChef(ctx, ev.Time)
	if err != nil {
		return err
	}

	chef.RewardPerSecond = ev.RewardPerSecond
	chef.UpdatedAt = ev.Time

	p.logger.Info().
		Str("rewardPerSecond", ev.RewardPerSecond.String()).
		Msg("Reward per second updated")

	return p.store.Commit(ctx, chef, nil, nil, nil)
}

// HandleDeposit credits principal to the receiving position and raises its
// reward debt by the part of the accumulator the new principal never
// earned.
func (p *Processor) HandleDeposit(ctx context.Context, ev types.DepositEvent) error {
	pool, err := p.getOrCreatePool(ctx, ev.PoolID, ev.Time)
	if err != nil {
		return err
	}
	pos, err := p.getOrCreatePosition(ctx, types.AccountKey(ev.To), ev.PoolID, ev.Time)
	if err != nil {
		return err
	}

	pool.SuppliedLiquidity = pool.SuppliedLiquidity.Add(ev.Amount)
	pool.UpdatedAt = ev.Time

	pos.Amount = pos.Amount.Add(ev.Amount)
	pos.RewardDebt = pos.RewardDebt.Add(ev.Amount.Mul(pool.AccRewardPerShare).Quo(AccRewardPrecision))
	pos.UpdatedAt = ev.Time

	p.logger.Info().
		Str("account", pos.Account).
		Uint64("pool", ev.PoolID).
		Str("amount", ev.Amount.String()).
		Str("tx", ev.TxHash.Hex()).
		Msg("Deposit")

	return p.store.Commit(ctx, nil, pool, nil, pos)
}

// HandleWithdraw debits principal from the position, lowering its reward
// debt by the same accumulator share. The contract guarantees the amount
// never exceeds the principal, so that is not re-validated here.
func (p *Processor) HandleWithdraw(ctx context.Context, ev types.WithdrawEvent) error {
	pool, err := p.getOrCreatePool(ctx, ev.PoolID, ev.Time)
	if err != nil {
		return err
	}
	pos, err := p.getOrCreatePosition(ctx, types.AccountKey(ev.User), ev.PoolID, ev.Time)
	if err != nil {
		return err
	}

	pool.SuppliedLiquidity = pool.SuppliedLiquidity.Sub(ev.Amount)
	pool.UpdatedAt = ev.Time

	pos.Amount = pos.Amount.Sub(ev.Amount)
	pos.RewardDebt = pos.RewardDebt.Sub(ev.Amount.Mul(pool.AccRewardPerShare).Quo(AccRewardPrecision))
	pos.UpdatedAt = ev.Time

	p.logger.Info().
		Str("account", pos.Account).
		Uint64("pool", ev.PoolID).
		Str("amount", ev.Amount.String()).
		Str("tx", ev.TxHash.Hex()).
		Msg("Withdraw")

	return p.store.Commit(ctx, nil, pool, nil, pos)
}

// HandleEmergencyWithdraw abandons the position: principal and reward debt
// reset to zero regardless of the reported amount, forfeiting any accrued
// but undebited reward.
func (p *Processor) HandleEmergencyWithdraw(ctx context.Context, ev types.EmergencyWithdrawEvent) error {
	pool, err := p.getOrCreatePool(ctx, ev.PoolID, ev.Time)
	if err != nil {
		return err
	}
	pos, err := p.getOrCreatePosition(ctx, types.AccountKey(ev.User), ev.PoolID, ev.Time)
	if err != nil {
		return err
	}

	pool.SuppliedLiquidity = pool.SuppliedLiquidity.Sub(ev.Amount)
	pool.UpdatedAt = ev.Time

	pos.Amount = sdkmath.ZeroInt()
	pos.RewardDebt = sdkmath.ZeroInt()
	pos.UpdatedAt = ev.Time

	p.logger.Warn().
		Str("account", pos.Account).
		Uint64("pool", ev.PoolID).
		Str("amount", ev.Amount.String()).
		Str("tx", ev.TxHash.Hex()).
		Msg("Emergency withdraw")

	return p.store.Commit(ctx, nil, pool, nil, pos)
}

// HandleHarvest pays the position out: the reward debt jumps to the full
// accumulated value, and the cumulative harvested counter grows by the
// amount the contract reported.
func (p *Processor) HandleHarvest(ctx context.Context, ev types.HarvestEvent) error {
	pool, err := p.getOrCreatePool(ctx, ev.PoolID, ev.Time)
	if err != nil {
		return err
	}
	pos, err := p.getOrCreatePosition(ctx, types.AccountKey(ev.User), ev.PoolID, ev.Time)
	if err != nil {
		return err
	}

	accumulated := pos.Amount.Mul(pool.AccRewardPerShare).Quo(AccRewardPrecision)

	pos.RewardDebt = accumulated
	pos.Harvested = pos.Harvested.Add(ev.Amount)
	pos.UpdatedAt = ev.Time

	p.logger.Info().
		Str("account", pos.Account).
		Uint64("pool", ev.PoolID).
		Str("amount", ev.Amount.String()).
		Str("tx", ev.TxHash.Hex()).
		Msg("Harvest")

	return p.store.Commit(ctx, nil, nil, nil, pos)
}

// PendingReward reports the reward a position has earned since its last
// debt reset.
func PendingReward(pool *types.Pool, pos *types.PoolPosition) sdkmath.Int {
	return pos.Amount.Mul(pool.AccRewardPerShare).Quo(AccRewardPrecision).Sub(pos.RewardDebt)
}

func (p *Processor) getOrCreateChef(ctx context.Context, now int64) (*types.Chef, error) {
	chef, err := p.store.GetChef(ctx, p.chefID)
	if err != nil {
		return nil, err
	}
	if chef != nil {
		return chef, nil
	}
	p.logger.Info().Str("chef", p.chefID).Msg("Creating chef ledger")
	return types.NewChef(p.chefID, now), nil
}

func (p *Processor) getOrCreatePool(ctx context.Context, id uint64, now int64) (*types.Pool, error) {
	pool, err := p.store.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		return pool, nil
	}
	return types.NewPool(id, p.chefID, now), nil
}

func (p *Processor) getOrCreateRewarder(ctx context.Context, id string, now int64) (*types.Rewarder, error) {
	rewarder, err := p.store.GetRewarder(ctx, id)
	if err != nil {
		return nil, err
	}
	if rewarder != nil {
		return rewarder, nil
	}
	return &types.Rewarder{ID: id, UpdatedAt: now}, nil
}

func (p *Processor) getOrCreatePosition(ctx context.Context, account string, pool uint64, now int64) (*types.PoolPosition, error) {
	pos, err := p.store.GetPoolPosition(ctx, account, pool)
	if err != nil {
		return nil, err
	}
	if pos != nil {
		return pos, nil
	}
	return types.NewPoolPosition(account, pool, now), nil
}
