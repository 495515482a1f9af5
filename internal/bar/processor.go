/*

This file contains the age-weighted position ledger state machine. Every
share-token transfer event mutates the singleton ledger, the affected
positions and (for mints and burns) the daily history snapshot.

The invariants enforced here:

  - Age accrues at balance * elapsed-days and is brought up to the event
    timestamp BEFORE the balance delta is applied.
  - Burns destroy age proportionally to the burned fraction of the
    balance; transfers move that proportional age to the receiver instead
    of destroying it.
  - A receiver's staked metrics only grow when its net lifetime inflow
    (in - out - offset) turns positive, and the offset counters advance by
    the credited amount so round-trip transfers are never counted twice.

All entities touched by one event are committed in a single store
transaction; a rejected event persists nothing.

*/

package bar

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/energyfi-network/stakeledger/internal/logger"
	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/rs/zerolog"
)

// Error definitions for the arithmetic hazards. Both reject the current
// event without persisting anything; silently producing a non-finite
// result would corrupt every downstream aggregate.
var (
	// ErrZeroSupply means the ledger ratio is undefined because the share
	// token has no supply.
	ErrZeroSupply = errors.New("share token total supply is zero")
	// ErrZeroBalance means a proportional age apportionment is undefined
	// because the position holds no shares.
	ErrZeroBalance = errors.New("position share balance is zero")
)

// IsEventRejection reports whether err is an arithmetic-hazard rejection
// of a single event, as opposed to an external-dependency failure worth
// retrying.
func IsEventRejection(err error) bool {
	return errors.Is(err, ErrZeroSupply) || errors.Is(err, ErrZeroBalance)
}

var daySeconds = sdkmath.LegacyNewDec(types.SecondsPerDay)

// Store is the entity repository the processor reads from and commits to.
type Store interface {
	GetBar(ctx context.Context, id string) (*types.Bar, error)
	GetPosition(ctx context.Context, account string) (*types.Position, error)
	GetHistory(ctx context.Context, day int64) (*types.History, error)
	Commit(ctx context.Context, bar *types.Bar, positions []*types.Position, history *types.History) error
}

// ChainReader supplies the contract state the ledger mirror needs. Every
// read is evaluated at the given block so a backfill from an old start
// block reproduces the same aggregates as a live run did.
type ChainReader interface {
	TotalSupply(ctx context.Context, block uint64) (sdkmath.LegacyDec, error)
	StakedBalance(ctx context.Context, block uint64) (sdkmath.LegacyDec, error)
	BarMetadata(ctx context.Context, block uint64) (types.BarMetadata, error)
}

// PriceSource supplies the staked token's USD price at a given block.
type PriceSource interface {
	CurrentPrice(ctx context.Context, block uint64) (sdkmath.LegacyDec, error)
}

// Config holds the dependencies for creating a Processor.
type Config struct {
	Store Store
	Chain ChainReader
	Price PriceSource
	BarID string
}

// Processor applies share-token transfer events to the ledger.
type Processor struct {
	store Store
	chain ChainReader
	price PriceSource
	barID string

	logger zerolog.Logger
}

// NewProcessor creates a processor with dependency injection.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain reader cannot be nil")
	}
	if cfg.Price == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}
	if cfg.BarID == "" {
		return nil, fmt.Errorf("bar id cannot be empty")
	}

	return &Processor{
		store:  cfg.Store,
		chain:  cfg.Chain,
		price:  cfg.Price,
		barID:  cfg.BarID,
		logger: logger.GetForComponent("bar_processor"),
	}, nil
}

// HandleTransfer applies one transfer event. Zero-value events are logged
// and skipped. Arithmetic hazards reject the event (IsEventRejection);
// any other error is an external failure and the event may be retried
// because nothing was persisted.
func (p *Processor) HandleTransfer(ctx context.Context, ev types.TransferEvent) error {
	if ev.Value.IsZero() {
		p.logger.Warn().
			Str("tx", ev.TxHash.Hex()).
			Msg("Transfer with zero value, skipping")
		return nil
	}

	bar, err := p.getOrCreateBar(ctx, ev.Time, ev.Block)
	if err != nil {
		return err
	}

	price, err := p.price.CurrentPrice(ctx, ev.Block)
	if err != nil {
		return fmt.Errorf("price lookup failed: %w", err)
	}

	// Mirror the supply and staked balance as of the event's block, then
	// derive the ratio the conversions below use. The ratio is fixed for
	// the whole event.
	if bar.TotalSupply, err = p.chain.TotalSupply(ctx, ev.Block); err != nil {
		return fmt.Errorf("supply refresh failed: %w", err)
	}
	if bar.Staked, err = p.chain.StakedBalance(ctx, ev.Block); err != nil {
		return fmt.Errorf("staked balance refresh failed: %w", err)
	}
	if bar.TotalSupply.IsZero() {
		return fmt.Errorf("%w: tx %s", ErrZeroSupply, ev.TxHash.Hex())
	}
	bar.Ratio = bar.Staked.QuoTruncate(bar.TotalSupply)

	// Underlying-token amount backing the transferred shares.
	what := ev.Value.MulTruncate(bar.Ratio)

	switch ev.Kind() {
	case types.KindMint:
		return p.applyMint(ctx, bar, ev, what, price)
	case types.KindBurn:
		return p.applyBurn(ctx, bar, ev, what, price)
	default:
		return p.applyMove(ctx, bar, ev, what, price)
	}
}

// applyMint credits freshly minted shares to the receiving position and
// mirrors the mint on the ledger and the daily snapshot.
func (p *Processor) applyMint(ctx context.Context, bar *types.Bar, ev types.TransferEvent, what, price sdkmath.LegacyDec) error {
	pos, err := p.getOrCreatePosition(ctx, types.AccountKey(ev.To), ev.Time)
	if err != nil {
		return err
	}

	if pos.ShareBalance.IsZero() {
		p.logger.Info().Str("account", pos.ID).Msg("Account entered the bar")
		pos.Bar = bar.ID
	}

	stakedUSD := what.MulTruncate(price)

	pos.Minted = pos.Minted.Add(ev.Value)
	pos.Staked = pos.Staked.Add(what)
	pos.StakedUSD = pos.StakedUSD.Add(stakedUSD)

	// Accrue age before the balance changes.
	pos.Age = pos.Age.Add(elapsedDays(ev.Time, pos.UpdatedAt).MulTruncate(pos.ShareBalance))
	pos.ShareBalance = pos.ShareBalance.Add(ev.Value)
	pos.UpdatedAt = ev.Time

	circulating := bar.Minted.Sub(bar.Burned)
	bar.Age = bar.Age.Add(elapsedDays(ev.Time, bar.UpdatedAt).MulTruncate(circulating))
	bar.Minted = bar.Minted.Add(ev.Value)
	bar.Staked = bar.Staked.Add(what)
	bar.StakedUSD = bar.StakedUSD.Add(stakedUSD)
	bar.UpdatedAt = ev.Time

	hist, err := p.getOrCreateHistory(ctx, ev.Time)
	if err != nil {
		return err
	}
	hist.Age = bar.Age
	hist.Minted = hist.Minted.Add(ev.Value)
	hist.Supply = bar.TotalSupply
	hist.Staked = hist.Staked.Add(what)
	hist.StakedUSD = hist.StakedUSD.Add(stakedUSD)
	hist.Ratio = bar.Ratio

	p.logger.Info().
		Str("account", pos.ID).
		Str("shares", ev.Value.String()).
		Str("staked", what.String()).
		Str("tx", ev.TxHash.Hex()).
		Msg("Minted shares")

	return p.store.Commit(ctx, bar, []*types.Position{pos}, hist)
}

// applyBurn debits burned shares from the sending position, destroying a
// proportional slice of its age, and mirrors the burn on the ledger and
// the daily snapshot.
func (p *Processor) applyBurn(ctx context.Context, bar *types.Bar, ev types.TransferEvent, what, price sdkmath.LegacyDec) error {
	pos, err := p.getOrCreatePosition(ctx, types.AccountKey(ev.From), ev.Time)
	if err != nil {
		return err
	}

	harvestedUSD := what.MulTruncate(price)

	pos.Burned = pos.Burned.Add(ev.Value)
	pos.Harvested = pos.Harvested.Add(what)
	pos.HarvestedUSD = pos.HarvestedUSD.Add(harvestedUSD)

	// Accrue age to now, then apportion the destroyed slice before the
	// balance changes.
	pos.Age = pos.Age.Add(elapsedDays(ev.Time, pos.UpdatedAt).MulTruncate(pos.ShareBalance))
	if pos.ShareBalance.IsZero() {
		return fmt.Errorf("%w: burn from %s, tx %s", ErrZeroBalance, pos.ID, ev.TxHash.Hex())
	}
	ageDestroyed := pos.Age.QuoTruncate(pos.ShareBalance).MulTruncate(ev.Value)

	pos.AgeDestroyed = pos.AgeDestroyed.Add(ageDestroyed)
	pos.Age = clampZero(pos.Age.Sub(ageDestroyed))
	pos.ShareBalance = pos.ShareBalance.Sub(ev.Value)

	if pos.ShareBalance.IsZero() {
		p.logger.Info().Str("account", pos.ID).Msg("Account left the bar")
		pos.Bar = ""
	}
	pos.UpdatedAt = ev.Time

	circulating := bar.Minted.Sub(bar.Burned)
	bar.Age = clampZero(bar.Age.Add(elapsedDays(ev.Time, bar.UpdatedAt).MulTruncate(circulating)).Sub(ageDestroyed))
	bar.AgeDestroyed = bar.AgeDestroyed.Add(ageDestroyed)
	bar.Burned = bar.Burned.Add(ev.Value)
	bar.Harvested = bar.Harvested.Add(what)
	bar.HarvestedUSD = bar.HarvestedUSD.Add(harvestedUSD)
	bar.UpdatedAt = ev.Time

	hist, err := p.getOrCreateHistory(ctx, ev.Time)
	if err != nil {
		return err
	}
	hist.Supply = bar.TotalSupply
	hist.Burned = hist.Burned.Add(ev.Value)
	hist.Age = bar.Age
	hist.AgeDestroyed = hist.AgeDestroyed.Add(ageDestroyed)
	hist.HarvestedUSD = hist.HarvestedUSD.Add(harvestedUSD)
	hist.Ratio = bar.Ratio

	p.logger.Info().
		Str("account", pos.ID).
		Str("shares", ev.Value.String()).
		Str("harvested", what.String()).
		Str("ageDestroyed", ageDestroyed.String()).
		Str("tx", ev.TxHash.Hex()).
		Msg("Burned shares")

	return p.store.Commit(ctx, bar, []*types.Position{pos}, hist)
}

// applyMove transfers shares between two live positions. The sender's
// proportional age moves to the receiver; it is seniority changing hands,
// not a harvest. The receiver's staked metrics only grow by its positive
// net inflow, tracked through the offset counters.
func (p *Processor) applyMove(ctx context.Context, bar *types.Bar, ev types.TransferEvent, what, price sdkmath.LegacyDec) error {
	usd := what.MulTruncate(price)

	from, err := p.getOrCreatePosition(ctx, types.AccountKey(ev.From), ev.Time)
	if err != nil {
		return err
	}

	// Accrue the sender's age, then split off the transferred slice.
	from.Age = from.Age.Add(elapsedDays(ev.Time, from.UpdatedAt).MulTruncate(from.ShareBalance))
	if from.ShareBalance.IsZero() {
		return fmt.Errorf("%w: transfer from %s, tx %s", ErrZeroBalance, from.ID, ev.TxHash.Hex())
	}
	ageMoved := from.Age.QuoTruncate(from.ShareBalance).MulTruncate(ev.Value)
	from.Age = clampZero(from.Age.Sub(ageMoved))
	from.UpdatedAt = ev.Time

	from.ShareBalance = from.ShareBalance.Sub(ev.Value)
	from.SharesOut = from.SharesOut.Add(ev.Value)
	from.StakeOut = from.StakeOut.Add(what)
	from.USDOut = from.USDOut.Add(usd)

	if from.ShareBalance.IsZero() {
		p.logger.Info().Str("account", from.ID).Msg("Account left the bar by transfer out")
		from.Bar = ""
	}

	// A self-transfer must mutate a single entity, not two stale copies.
	to := from
	if key := types.AccountKey(ev.To); key != from.ID {
		if to, err = p.getOrCreatePosition(ctx, key, ev.Time); err != nil {
			return err
		}
	}

	if to.Bar == "" {
		p.logger.Info().Str("account", to.ID).Msg("Account entered the bar by transfer in")
		to.Bar = bar.ID
	}

	// Accrue the receiver's own age, then add the incoming slice.
	to.Age = to.Age.Add(elapsedDays(ev.Time, to.UpdatedAt).MulTruncate(to.ShareBalance)).Add(ageMoved)
	to.UpdatedAt = ev.Time

	to.ShareBalance = to.ShareBalance.Add(ev.Value)
	to.SharesIn = to.SharesIn.Add(ev.Value)
	to.StakeIn = to.StakeIn.Add(what)
	to.USDIn = to.USDIn.Add(usd)

	difference := to.SharesIn.Sub(to.SharesOut).Sub(to.SharesOffset)
	if difference.IsPositive() {
		stake := to.StakeIn.Sub(to.StakeOut).Sub(to.StakeOffset)
		usdNet := to.USDIn.Sub(to.USDOut).Sub(to.USDOffset)

		to.Staked = to.Staked.Add(stake)
		to.StakedUSD = to.StakedUSD.Add(usdNet)

		to.SharesOffset = to.SharesOffset.Add(difference)
		to.StakeOffset = to.StakeOffset.Add(stake)
		to.USDOffset = to.USDOffset.Add(usdNet)
	}

	p.logger.Info().
		Str("from", from.ID).
		Str("to", to.ID).
		Str("shares", ev.Value.String()).
		Str("ageMoved", ageMoved.String()).
		Str("tx", ev.TxHash.Hex()).
		Msg("Transferred shares")

	positions := []*types.Position{from}
	if to != from {
		positions = append(positions, to)
	}
	return p.store.Commit(ctx, bar, positions, nil)
}

func (p *Processor) getOrCreateBar(ctx context.Context, now int64, block uint64) (*types.Bar, error) {
	bar, err := p.store.GetBar(ctx, p.barID)
	if err != nil {
		return nil, err
	}
	if bar != nil {
		return bar, nil
	}

	meta, err := p.chain.BarMetadata(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("bar metadata fetch failed: %w", err)
	}

	p.logger.Info().
		Str("bar", p.barID).
		Str("symbol", meta.Symbol).
		Msg("Creating bar ledger")
	return types.NewBar(p.barID, meta, now), nil
}

func (p *Processor) getOrCreatePosition(ctx context.Context, account string, now int64) (*types.Position, error) {
	pos, err := p.store.GetPosition(ctx, account)
	if err != nil {
		return nil, err
	}
	if pos != nil {
		return pos, nil
	}
	return types.NewPosition(account, p.barID, now), nil
}

func (p *Processor) getOrCreateHistory(ctx context.Context, timestamp int64) (*types.History, error) {
	day := types.DayBucket(timestamp)
	hist, err := p.store.GetHistory(ctx, day)
	if err != nil {
		return nil, err
	}
	if hist != nil {
		return hist, nil
	}
	return types.NewHistory(day), nil
}

// elapsedDays converts the seconds since the last mutation into days.
// Rounding is truncate-toward-zero at 10^-18, like every division here.
func elapsedDays(now, updatedAt int64) sdkmath.LegacyDec {
	if now <= updatedAt {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDec(now - updatedAt).QuoTruncate(daySeconds)
}

// clampZero floors an age accumulator at zero. Truncation in the
// proportional apportionment can otherwise leave dust below zero.
func clampZero(d sdkmath.LegacyDec) sdkmath.LegacyDec {
	if d.IsNegative() {
		return sdkmath.LegacyZeroDec()
	}
	return d
}
