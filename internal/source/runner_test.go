package source

import (
	"context"
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/energyfi-network/stakeledger/internal/bar"
	"github.com/energyfi-network/stakeledger/internal/chef"
	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	barAddr  = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	chefAddr = common.HexToAddress("0x00000000000000000000000000000000000000CC")
	holder   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// barStore is a minimal in-memory bar.Store.
type barStore struct {
	bar       *types.Bar
	positions map[string]*types.Position
	history   map[int64]*types.History
}

func newBarStore() *barStore {
	return &barStore{
		positions: make(map[string]*types.Position),
		history:   make(map[int64]*types.History),
	}
}

func (s *barStore) GetBar(_ context.Context, id string) (*types.Bar, error) {
	if s.bar == nil || s.bar.ID != id {
		return nil, nil
	}
	c := *s.bar
	return &c, nil
}

func (s *barStore) GetPosition(_ context.Context, account string) (*types.Position, error) {
	pos, ok := s.positions[account]
	if !ok {
		return nil, nil
	}
	c := *pos
	return &c, nil
}

func (s *barStore) GetHistory(_ context.Context, day int64) (*types.History, error) {
	hist, ok := s.history[day]
	if !ok {
		return nil, nil
	}
	c := *hist
	return &c, nil
}

func (s *barStore) Commit(_ context.Context, b *types.Bar, positions []*types.Position, history *types.History) error {
	if b != nil {
		c := *b
		s.bar = &c
	}
	for _, pos := range positions {
		c := *pos
		s.positions[pos.ID] = &c
	}
	if history != nil {
		c := *history
		s.history[history.Day] = &c
	}
	return nil
}

// chefStore is a minimal in-memory chef.Store.
type chefStore struct {
	chef      *types.Chef
	pools     map[uint64]*types.Pool
	rewarders map[string]*types.Rewarder
	positions map[string]*types.PoolPosition
}

func newChefStore() *chefStore {
	return &chefStore{
		pools:     make(map[uint64]*types.Pool),
		rewarders: make(map[string]*types.Rewarder),
		positions: make(map[string]*types.PoolPosition),
	}
}

func (s *chefStore) GetChef(_ context.Context, id string) (*types.Chef, error) {
	if s.chef == nil || s.chef.ID != id {
		return nil, nil
	}
	c := *s.chef
	return &c, nil
}

func (s *chefStore) GetPool(_ context.Context, id uint64) (*types.Pool, error) {
	pool, ok := s.pools[id]
	if !ok {
		return nil, nil
	}
	c := *pool
	return &c, nil
}

func (s *chefStore) GetRewarder(_ context.Context, id string) (*types.Rewarder, error) {
	r, ok := s.rewarders[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (s *chefStore) GetPoolPosition(_ context.Context, account string, pool uint64) (*types.PoolPosition, error) {
	pos, ok := s.positions[account]
	if !ok || pos.Pool != pool {
		return nil, nil
	}
	c := *pos
	return &c, nil
}

func (s *chefStore) Commit(_ context.Context, c *types.Chef, pool *types.Pool, rewarder *types.Rewarder, pos *types.PoolPosition) error {
	if c != nil {
		cc := *c
		s.chef = &cc
	}
	if pool != nil {
		cc := *pool
		s.pools[pool.ID] = &cc
	}
	if rewarder != nil {
		cc := *rewarder
		s.rewarders[rewarder.ID] = &cc
	}
	if pos != nil {
		cc := *pos
		s.positions[pos.Account] = &cc
	}
	return nil
}

type stubChain struct{}

func (stubChain) TotalSupply(context.Context, uint64) (sdkmath.LegacyDec, error) {
	return sdkmath.LegacyNewDec(1000), nil
}

func (stubChain) StakedBalance(context.Context, uint64) (sdkmath.LegacyDec, error) {
	return sdkmath.LegacyNewDec(1000), nil
}

func (stubChain) BarMetadata(context.Context, uint64) (types.BarMetadata, error) {
	return types.BarMetadata{Decimals: 18, Name: "Bar", Symbol: "xBAR"}, nil
}

type stubPrice struct{}

func (stubPrice) CurrentPrice(context.Context, uint64) (sdkmath.LegacyDec, error) {
	return sdkmath.LegacyNewDec(2), nil
}

// fakeClient serves a fixed log set and constant block timestamps.
type fakeClient struct {
	head uint64
	logs []ethtypes.Log
}

func (c *fakeClient) BlockNumber(context.Context) (uint64, error) { return c.head, nil }

func (c *fakeClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	var out []ethtypes.Log
	for _, lg := range c.logs {
		if lg.BlockNumber >= q.FromBlock.Uint64() && lg.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (c *fakeClient) HeaderByNumber(_ context.Context, number *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Time: 1_700_000_000 + number.Uint64()}, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *barStore, *chefStore) {
	t.Helper()
	bs := newBarStore()
	cs := newChefStore()

	barProc, err := bar.NewProcessor(bar.Config{
		Store: bs, Chain: stubChain{}, Price: stubPrice{}, BarID: barAddr.Hex(),
	})
	require.NoError(t, err)
	chefProc, err := chef.NewProcessor(chef.Config{Store: cs, ChefID: chefAddr.Hex()})
	require.NoError(t, err)

	d, err := NewDispatcher(DispatcherConfig{
		BarAddress:  barAddr,
		ChefAddress: chefAddr,
		Bar:         barProc,
		Chef:        chefProc,
	})
	require.NoError(t, err)
	return d, bs, cs
}

func mintLog(block uint64, index uint, value *big.Int) ethtypes.Log {
	return ethtypes.Log{
		Address:     barAddr,
		Topics:      []common.Hash{TopicTransfer, addressTopic(common.Address{}), addressTopic(holder)},
		Data:        word(value),
		BlockNumber: block,
		Index:       index,
		TxHash:      testTx,
	}
}

func depositLog(block uint64, index uint, amount *big.Int) ethtypes.Log {
	return ethtypes.Log{
		Address:     chefAddr,
		Topics:      []common.Hash{TopicDeposit, addressTopic(holder), uintTopic(0), addressTopic(holder)},
		Data:        word(amount),
		BlockNumber: block,
		Index:       index,
		TxHash:      testTx,
	}
}

func TestScanRangeAppliesLogsInOrder(t *testing.T) {
	d, bs, cs := newTestDispatcher(t)

	// Logs arrive shuffled; the runner must re-establish chain order so
	// the deposit in block 11 lands after the mint in block 10.
	client := &fakeClient{head: 11, logs: []ethtypes.Log{
		depositLog(11, 0, big.NewInt(500)),
		mintLog(10, 1, scaledShares(3)),
		mintLog(10, 0, scaledShares(5)),
	}}

	r, err := NewRunner(RunnerConfig{Client: client, Dispatcher: d, StartBlock: 10, BatchSize: 100})
	require.NoError(t, err)
	require.NoError(t, r.scanRange(context.Background(), 10, 11))

	pos := bs.positions[holder.Hex()]
	require.NotNil(t, pos)
	require.True(t, pos.ShareBalance.Equal(sdkmath.LegacyNewDec(8)))
	// The block timestamp, not the wall clock, drives the ledger.
	require.Equal(t, int64(1_700_000_010), pos.UpdatedAt)

	chefPos := cs.positions[holder.Hex()]
	require.NotNil(t, chefPos)
	require.True(t, chefPos.Amount.Equal(sdkmath.NewInt(500)))
	require.Equal(t, int64(1_700_000_011), chefPos.UpdatedAt)
}

func TestDispatchSkipsRejectedEvent(t *testing.T) {
	d, bs, _ := newTestDispatcher(t)
	ctx := context.Background()

	// A burn from an account that never held shares is rejected, not
	// retried; the stream continues with the next log.
	burn := ethtypes.Log{
		Address:     barAddr,
		Topics:      []common.Hash{TopicTransfer, addressTopic(holder), addressTopic(common.Address{})},
		Data:        word(scaledShares(1)),
		BlockNumber: 10,
	}
	require.NoError(t, d.Dispatch(ctx, burn, 1_700_000_010))
	require.Nil(t, bs.positions[holder.Hex()])

	require.NoError(t, d.Dispatch(ctx, mintLog(10, 1, scaledShares(5)), 1_700_000_010))
	require.NotNil(t, bs.positions[holder.Hex()])
}

func TestDispatchIgnoresUnknownSources(t *testing.T) {
	d, bs, cs := newTestDispatcher(t)
	ctx := context.Background()

	other := mintLog(10, 0, scaledShares(5))
	other.Address = common.HexToAddress("0x00000000000000000000000000000000000000EE")
	require.NoError(t, d.Dispatch(ctx, other, 1_700_000_010))

	unknownTopic := mintLog(10, 0, scaledShares(5))
	unknownTopic.Topics[0] = common.HexToHash("0x1234")
	require.NoError(t, d.Dispatch(ctx, unknownTopic, 1_700_000_010))

	require.Nil(t, bs.bar)
	require.Nil(t, cs.chef)
}

func scaledShares(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}
