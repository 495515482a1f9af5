package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/rs/zerolog/log"
)

// BarStore persists the bar ledger, its positions and the daily history
// snapshots. Reads hit the database directly; writes for one event are
// committed together in a single transaction so a rejected event never
// leaves a partially written ledger behind.
type BarStore struct{}

// NewBarStore returns a store backed by the global connection pool.
func NewBarStore() *BarStore {
	return &BarStore{}
}

// GetBar loads the ledger singleton. Returns nil without error when the
// ledger has not been created yet.
func (s *BarStore) GetBar(ctx context.Context, id string) (*types.Bar, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, decimals, name, symbol, stake_token,
			total_supply, staked, staked_usd, harvested, harvested_usd,
			minted, burned, age, age_destroyed, ratio, updated_at
		FROM bar_ledger WHERE id = $1;
	`

	var (
		bar  types.Bar
		decs [10]string
	)
	err := DB.QueryRowContext(ctx, query, id).Scan(
		&bar.ID, &bar.Decimals, &bar.Name, &bar.Symbol, &bar.StakeToken,
		&decs[0], &decs[1], &decs[2], &decs[3], &decs[4],
		&decs[5], &decs[6], &decs[7], &decs[8], &decs[9], &bar.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bar ledger: %w", err)
	}

	if bar.TotalSupply, err = parseDec(decs[0]); err != nil {
		return nil, err
	}
	if bar.Staked, err = parseDec(decs[1]); err != nil {
		return nil, err
	}
	if bar.StakedUSD, err = parseDec(decs[2]); err != nil {
		return nil, err
	}
	if bar.Harvested, err = parseDec(decs[3]); err != nil {
		return nil, err
	}
	if bar.HarvestedUSD, err = parseDec(decs[4]); err != nil {
		return nil, err
	}
	if bar.Minted, err = parseDec(decs[5]); err != nil {
		return nil, err
	}
	if bar.Burned, err = parseDec(decs[6]); err != nil {
		return nil, err
	}
	if bar.Age, err = parseDec(decs[7]); err != nil {
		return nil, err
	}
	if bar.AgeDestroyed, err = parseDec(decs[8]); err != nil {
		return nil, err
	}
	if bar.Ratio, err = parseDec(decs[9]); err != nil {
		return nil, err
	}

	return &bar, nil
}

// GetPosition loads one account's position. Returns nil without error when
// the account has never been seen.
func (s *BarStore) GetPosition(ctx context.Context, account string) (*types.Position, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, bar, share_balance, minted, burned,
			staked, staked_usd, harvested, harvested_usd,
			shares_in, shares_out, stake_in, stake_out, usd_in, usd_out,
			shares_offset, stake_offset, usd_offset,
			age, age_destroyed, updated_at
		FROM bar_positions WHERE id = $1;
	`

	var (
		pos    types.Position
		barCol sql.NullString
		decs   [18]string
	)
	err := DB.QueryRowContext(ctx, query, account).Scan(
		&pos.ID, &barCol, &decs[0], &decs[1], &decs[2],
		&decs[3], &decs[4], &decs[5], &decs[6],
		&decs[7], &decs[8], &decs[9], &decs[10], &decs[11], &decs[12],
		&decs[13], &decs[14], &decs[15],
		&decs[16], &decs[17], &pos.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s: %w", account, err)
	}

	if barCol.Valid {
		pos.Bar = barCol.String
	}

	if pos.ShareBalance, err = parseDec(decs[0]); err != nil {
		return nil, err
	}
	if pos.Minted, err = parseDec(decs[1]); err != nil {
		return nil, err
	}
	if pos.Burned, err = parseDec(decs[2]); err != nil {
		return nil, err
	}
	if pos.Staked, err = parseDec(decs[3]); err != nil {
		return nil, err
	}
	if pos.StakedUSD, err = parseDec(decs[4]); err != nil {
		return nil, err
	}
	if pos.Harvested, err = parseDec(decs[5]); err != nil {
		return nil, err
	}
	if pos.HarvestedUSD, err = parseDec(decs[6]); err != nil {
		return nil, err
	}
	if pos.SharesIn, err = parseDec(decs[7]); err != nil {
		return nil, err
	}
	if pos.SharesOut, err = parseDec(decs[8]); err != nil {
		return nil, err
	}
	if pos.StakeIn, err = parseDec(decs[9]); err != nil {
		return nil, err
	}
	if pos.StakeOut, err = parseDec(decs[10]); err != nil {
		return nil, err
	}
	if pos.USDIn, err = parseDec(decs[11]); err != nil {
		return nil, err
	}
	if pos.USDOut, err = parseDec(decs[12]); err != nil {
		return nil, err
	}
	if pos.SharesOffset, err = parseDec(decs[13]); err != nil {
		return nil, err
	}
	if pos.StakeOffset, err = parseDec(decs[14]); err != nil {
		return nil, err
	}
	if pos.USDOffset, err = parseDec(decs[15]); err != nil {
		return nil, err
	}
	if pos.Age, err = parseDec(decs[16]); err != nil {
		return nil, err
	}
	if pos.AgeDestroyed, err = parseDec(decs[17]); err != nil {
		return nil, err
	}

	return &pos, nil
}

// GetHistory loads the snapshot for one day bucket. Returns nil without
// error when the bucket has not been touched yet.
func (s *BarStore) GetHistory(ctx context.Context, day int64) (*types.History, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT day, date, staked, staked_usd, harvested, harvested_usd,
			age, age_destroyed, minted, burned, supply, ratio
		FROM bar_history WHERE day = $1;
	`

	var (
		hist types.History
		decs [10]string
	)
	err := DB.QueryRowContext(ctx, query, day).Scan(
		&hist.Day, &hist.Date, &decs[0], &decs[1], &decs[2], &decs[3],
		&decs[4], &decs[5], &decs[6], &decs[7], &decs[8], &decs[9],
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history day %d: %w", day, err)
	}

	if hist.Staked, err = parseDec(decs[0]); err != nil {
		return nil, err
	}
	if hist.StakedUSD, err = parseDec(decs[1]); err != nil {
		return nil, err
	}
	if hist.Harvested, err = parseDec(decs[2]); err != nil {
		return nil, err
	}
	if hist.HarvestedUSD, err = parseDec(decs[3]); err != nil {
		return nil, err
	}
	if hist.Age, err = parseDec(decs[4]); err != nil {
		return nil, err
	}
	if hist.AgeDestroyed, err = parseDec(decs[5]); err != nil {
		return nil, err
	}
	if hist.Minted, err = parseDec(decs[6]); err != nil {
		return nil, err
	}
	if hist.Burned, err = parseDec(decs[7]); err != nil {
		return nil, err
	}
	if hist.Supply, err = parseDec(decs[8]); err != nil {
		return nil, err
	}
	if hist.Ratio, err = parseDec(decs[9]); err != nil {
		return nil, err
	}

	return &hist, nil
}

// Commit upserts all entities touched by one event in a single transaction.
// Nil arguments are skipped.
func (s *BarStore) Commit(ctx context.Context, bar *types.Bar, positions []*types.Position, history *types.History) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if bar != nil {
		if err := upsertBar(ctx, tx, bar); err != nil {
			return err
		}
	}
	for _, pos := range positions {
		if pos == nil {
			continue
		}
		if err := upsertPosition(ctx, tx, pos); err != nil {
			return err
		}
	}
	if history != nil {
		if err := upsertHistory(ctx, tx, history); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar mutation: %w", err)
	}

	log.Debug().
		Bool("ledger", bar != nil).
		Int("positions", len(positions)).
		Bool("history", history != nil).
		Msg("Bar mutation committed")
	return nil
}

func upsertBar(ctx context.Context, tx *sql.Tx, bar *types.Bar) error {
	query := `
		INSERT INTO bar_ledger (
			id, decimals, name, symbol, stake_token,
			total_supply, staked, staked_usd, harvested, harvested_usd,
			minted, burned, age, age_destroyed, ratio, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			total_supply = EXCLUDED.total_supply,
			staked = EXCLUDED.staked,
			staked_usd = EXCLUDED.staked_usd,
			harvested = EXCLUDED.harvested,
			harvested_usd = EXCLUDED.harvested_usd,
			minted = EXCLUDED.minted,
			burned = EXCLUDED.burned,
			age = EXCLUDED.age,
			age_destroyed = EXCLUDED.age_destroyed,
			ratio = EXCLUDED.ratio,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := tx.ExecContext(ctx, query,
		bar.ID, bar.Decimals, bar.Name, bar.Symbol, bar.StakeToken,
		bar.TotalSupply.String(), bar.Staked.String(), bar.StakedUSD.String(),
		bar.Harvested.String(), bar.HarvestedUSD.String(),
		bar.Minted.String(), bar.Burned.String(), bar.Age.String(),
		bar.AgeDestroyed.String(), bar.Ratio.String(), bar.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert bar ledger: %w", err)
	}
	return nil
}

func upsertPosition(ctx context.Context, tx *sql.Tx, pos *types.Position) error {
	barCol := sql.NullString{String: pos.Bar, Valid: pos.Bar != ""}

	query := `
		INSERT INTO bar_positions (
			id, bar, share_balance, minted, burned,
			staked, staked_usd, harvested, harvested_usd,
			shares_in, shares_out, stake_in, stake_out, usd_in, usd_out,
			shares_offset, stake_offset, usd_offset,
			age, age_destroyed, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			bar = EXCLUDED.bar,
			share_balance = EXCLUDED.share_balance,
			minted = EXCLUDED.minted,
			burned = EXCLUDED.burned,
			staked = EXCLUDED.staked,
			staked_usd = EXCLUDED.staked_usd,
			harvested = EXCLUDED.harvested,
			harvested_usd = EXCLUDED.harvested_usd,
			shares_in = EXCLUDED.shares_in,
			shares_out = EXCLUDED.shares_out,
			stake_in = EXCLUDED.stake_in,
			stake_out = EXCLUDED.stake_out,
			usd_in = EXCLUDED.usd_in,
			usd_out = EXCLUDED.usd_out,
			shares_offset = EXCLUDED.shares_offset,
			stake_offset = EXCLUDED.stake_offset,
			usd_offset = EXCLUDED.usd_offset,
			age = EXCLUDED.age,
			age_destroyed = EXCLUDED.age_destroyed,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := tx.ExecContext(ctx, query,
		pos.ID, barCol, pos.ShareBalance.String(), pos.Minted.String(), pos.Burned.String(),
		pos.Staked.String(), pos.StakedUSD.String(), pos.Harvested.String(), pos.HarvestedUSD.String(),
		pos.SharesIn.String(), pos.SharesOut.String(), pos.StakeIn.String(), pos.StakeOut.String(),
		pos.USDIn.String(), pos.USDOut.String(),
		pos.SharesOffset.String(), pos.StakeOffset.String(), pos.USDOffset.String(),
		pos.Age.String(), pos.AgeDestroyed.String(), pos.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", pos.ID, err)
	}
	return nil
}

func upsertHistory(ctx context.Context, tx *sql.Tx, hist *types.History) error {
	query := `
		INSERT INTO bar_history (
			day, date, staked, staked_usd, harvested, harvested_usd,
			age, age_destroyed, minted, burned, supply, ratio
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (day) DO UPDATE SET
			staked = EXCLUDED.staked,
			staked_usd = EXCLUDED.staked_usd,
			harvested = EXCLUDED.harvested,
			harvested_usd = EXCLUDED.harvested_usd,
			age = EXCLUDED.age,
			age_destroyed = EXCLUDED.age_destroyed,
			minted = EXCLUDED.minted,
			burned = EXCLUDED.burned,
			supply = EXCLUDED.supply,
			ratio = EXCLUDED.ratio;
	`
	_, err := tx.ExecContext(ctx, query,
		hist.Day, hist.Date, hist.Staked.String(), hist.StakedUSD.String(),
		hist.Harvested.String(), hist.HarvestedUSD.String(),
		hist.Age.String(), hist.AgeDestroyed.String(),
		hist.Minted.String(), hist.Burned.String(),
		hist.Supply.String(), hist.Ratio.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert history day %d: %w", hist.Day, err)
	}
	return nil
}
