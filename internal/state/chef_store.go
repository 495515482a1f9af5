package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/rs/zerolog/log"
)

// ChefStore persists the reward ledger, its pools, rewarders and
// per-account pool positions. Writes for one event are committed together
// in a single transaction.
type ChefStore struct{}

// NewChefStore returns a store backed by the global connection pool.
func NewChefStore() *ChefStore {
	return &ChefStore{}
}

// GetChef loads the reward ledger singleton. Returns nil without error
// when it has not been created yet.
func (s *ChefStore) GetChef(ctx context.Context, id string) (*types.Chef, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, total_alloc_point, pool_count, reward_per_second, updated_at
		FROM chef_ledger WHERE id = $1;
	`

	var (
		chef types.Chef
		ints [3]string
	)
	err := DB.QueryRowContext(ctx, query, id).Scan(
		&chef.ID, &ints[0], &ints[1], &ints[2], &chef.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chef ledger: %w", err)
	}

	if chef.TotalAllocPoint, err = parseInt(ints[0]); err != nil {
		return nil, err
	}
	if chef.PoolCount, err = parseInt(ints[1]); err != nil {
		return nil, err
	}
	if chef.RewardPerSecond, err = parseInt(ints[2]); err != nil {
		return nil, err
	}

	return &chef, nil
}

// GetPool loads one reward pool row. Returns nil without error when the
// pool id has never been seen.
func (s *ChefStore) GetPool(ctx context.Context, id uint64) (*types.Pool, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, chef, pair, rewarder, alloc_point, acc_reward_per_share,
			last_reward_time, supplied_liquidity, updated_at
		FROM chef_pools WHERE id = $1;
	`

	var (
		pool     types.Pool
		rewarder sql.NullString
		ints     [3]string
	)
	err := DB.QueryRowContext(ctx, query, int64(id)).Scan(
		&pool.ID, &pool.Chef, &pool.Pair, &rewarder, &ints[0], &ints[1],
		&pool.LastRewardTime, &ints[2], &pool.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pool %d: %w", id, err)
	}

	if rewarder.Valid {
		pool.Rewarder = rewarder.String
	}
	if pool.AllocPoint, err = parseInt(ints[0]); err != nil {
		return nil, err
	}
	if pool.AccRewardPerShare, err = parseInt(ints[1]); err != nil {
		return nil, err
	}
	if pool.SuppliedLiquidity, err = parseInt(ints[2]); err != nil {
		return nil, err
	}

	return &pool, nil
}

// GetRewarder loads one rewarder reference. Returns nil without error when
// it has never been seen.
func (s *ChefStore) GetRewarder(ctx context.Context, id string) (*types.Rewarder, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `SELECT id, updated_at FROM chef_rewarders WHERE id = $1;`

	var rewarder types.Rewarder
	err := DB.QueryRowContext(ctx, query, id).Scan(&rewarder.ID, &rewarder.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rewarder %s: %w", id, err)
	}
	return &rewarder, nil
}

// GetPoolPosition loads one account's position in one pool. Returns nil
// without error when the pair has never been seen.
func (s *ChefStore) GetPoolPosition(ctx context.Context, account string, pool uint64) (*types.PoolPosition, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT account, pool, amount, reward_debt, harvested, updated_at
		FROM chef_positions WHERE account = $1 AND pool = $2;
	`

	var (
		pos  types.PoolPosition
		ints [3]string
	)
	err := DB.QueryRowContext(ctx, query, account, int64(pool)).Scan(
		&pos.Account, &pos.Pool, &ints[0], &ints[1], &ints[2], &pos.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pool position %s/%d: %w", account, pool, err)
	}

	if pos.Amount, err = parseInt(ints[0]); err != nil {
		return nil, err
	}
	if pos.RewardDebt, err = parseInt(ints[1]); err != nil {
		return nil, err
	}
	if pos.Harvested, err = parseInt(ints[2]); err != nil {
		return nil, err
	}

	return &pos, nil
}

// Commit upserts all entities touched by one event in a single transaction.
// Nil arguments are skipped.
func (s *ChefStore) Commit(ctx context.Context, chef *types.Chef, pool *types.Pool, rewarder *types.Rewarder, pos *types.PoolPosition) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if chef != nil {
		if err := upsertChef(ctx, tx, chef); err != nil {
			return err
		}
	}
	if rewarder != nil {
		if err := upsertRewarder(ctx, tx, rewarder); err != nil {
			return err
		}
	}
	if pool != nil {
		if err := upsertPool(ctx, tx, pool); err != nil {
			return err
		}
	}
	if pos != nil {
		if err := upsertPoolPosition(ctx, tx, pos); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chef mutation: %w", err)
	}

	log.Debug().
		Bool("ledger", chef != nil).
		Bool("pool", pool != nil).
		Bool("position", pos != nil).
		Msg("Chef mutation committed")
	return nil
}

func upsertChef(ctx context.Context, tx *sql.Tx, chef *types.Chef) error {
	query := `
		INSERT INTO chef_ledger (id, total_alloc_point, pool_count, reward_per_second, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			total_alloc_point = EXCLUDED.total_alloc_point,
			pool_count = EXCLUDED.pool_count,
			reward_per_second = EXCLUDED.reward_per_second,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := tx.ExecContext(ctx, query,
		chef.ID, chef.TotalAllocPoint.String(), chef.PoolCount.String(),
		chef.RewardPerSecond.String(), chef.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chef ledger: %w", err)
	}
	return nil
}

func upsertPool(ctx context.Context, tx *sql.Tx, pool *types.Pool) error {
	rewarder := sql.NullString{String: pool.Rewarder, Valid: pool.Rewarder != ""}

	query := `
		INSERT INTO chef_pools (
			id, chef, pair, rewarder, alloc_point, acc_reward_per_share,
			last_reward_time, supplied_liquidity, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			pair = EXCLUDED.pair,
			rewarder = EXCLUDED.rewarder,
			alloc_point = EXCLUDED.alloc_point,
			acc_reward_per_share = EXCLUDED.acc_reward_per_share,
			last_reward_time = EXCLUDED.last_reward_time,
			supplied_liquidity = EXCLUDED.supplied_liquidity,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := tx.ExecContext(ctx, query,
		int64(pool.ID), pool.Chef, pool.Pair, rewarder,
		pool.AllocPoint.String(), pool.AccRewardPerShare.String(),
		pool.LastRewardTime, pool.SuppliedLiquidity.String(), pool.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool %d: %w", pool.ID, err)
	}
	return nil
}

func upsertRewarder(ctx context.Context, tx *sql.Tx, rewarder *types.Rewarder) error {
	query := `
		INSERT INTO chef_rewarders (id, updated_at) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at;
	`
	if _, err := tx.ExecContext(ctx, query, rewarder.ID, rewarder.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert rewarder %s: %w", rewarder.ID, err)
	}
	return nil
}

func upsertPoolPosition(ctx context.Context, tx *sql.Tx, pos *types.PoolPosition) error {
	query := `
		INSERT INTO chef_positions (account, pool, amount, reward_debt, harvested, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account, pool) DO UPDATE SET
			amount = EXCLUDED.amount,
			reward_debt = EXCLUDED.reward_debt,
			harvested = EXCLUDED.harvested,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := tx.ExecContext(ctx, query,
		pos.Account, int64(pos.Pool), pos.Amount.String(),
		pos.RewardDebt.String(), pos.Harvested.String(), pos.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool position %s/%d: %w", pos.Account, pos.Pool, err)
	}
	return nil
}
