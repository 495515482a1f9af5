package chef

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/energyfi-network/stakeledger/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	testChefID = "0x00000000000000000000000000000000000000CC"
	chefT0     = int64(1_700_000_000)
)

var (
	userA    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	lpToken  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	rewarder = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type poolKey struct {
	account string
	pool    uint64
}

// fakeStore keeps entities in memory and hands out copies, so nothing
// leaks into it before Commit.
type fakeStore struct {
	chef      *types.Chef
	pools     map[uint64]*types.Pool
	rewarders map[string]*types.Rewarder
	positions map[poolKey]*types.PoolPosition

	commits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pools:     make(map[uint64]*types.Pool),
		rewarders: make(map[string]*types.Rewarder),
		positions: make(map[poolKey]*types.PoolPosition),
	}
}

func (s *fakeStore) GetChef(_ context.Context, id string) (*types.Chef, error) {
	if s.chef == nil || s.chef.ID != id {
		return nil, nil
	}
	c := *s.chef
	return &c, nil
}

func (s *fakeStore) GetPool(_ context.Context, id uint64) (*types.Pool, error) {
	pool, ok := s.pools[id]
	if !ok {
		return nil, nil
	}
	c := *pool
	return &c, nil
}

func (s *fakeStore) GetRewarder(_ context.Context, id string) (*types.Rewarder, error) {
	r, ok := s.rewarders[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (s *fakeStore) GetPoolPosition(_ context.Context, account string, pool uint64) (*types.PoolPosition, error) {
	pos, ok := s.positions[poolKey{account, pool}]
	if !ok {
		return nil, nil
	}
	c := *pos
	return &c, nil
}

func (s *fakeStore) Commit(_ context.Context, chef *types.Chef, pool *types.Pool, rewarder *types.Rewarder, pos *types.PoolPosition) error {
	s.commits++
	if chef != nil {
		c := *chef
		s.chef = &c
	}
	if pool != nil {
		c := *pool
		s.pools[pool.ID] = &c
	}
	if rewarder != nil {
		c := *rewarder
		s.rewarders[rewarder.ID] = &c
	}
	if pos != nil {
		c := *pos
		s.positions[poolKey{pos.Account, pos.Pool}] = &c
	}
	return nil
}

func newTestProcessor(t *testing.T) (*Processor, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	p, err := NewProcessor(Config{Store: store, ChefID: testChefID})
	require.NoError(t, err)
	return p, store
}

func addPool(t *testing.T, p *Processor, id uint64, allocPoint int64) {
	t.Helper()
	require.NoError(t, p.HandlePoolAddition(context.Background(), types.PoolAdditionEvent{
		PoolID:     id,
		AllocPoint: sdkmath.NewInt(allocPoint),
		LPToken:    lpToken,
		Rewarder:   rewarder,
		Time:       chefT0,
	}))
}

func TestNewProcessorValidation(t *testing.T) {
	_, err := NewProcessor(Config{ChefID: testChefID})
	require.Error(t, err)
	_, err = NewProcessor(Config{Store: newFakeStore()})
	require.Error(t, err)
}

func TestPoolAddition(t *testing.T) {
	p, store := newTestProcessor(t)

	addPool(t, p, 0, 100)
	addPool(t, p, 1, 50)

	chef := store.chef
	require.NotNil(t, chef)
	require.True(t, chef.TotalAllocPoint.Equal(sdkmath.NewInt(150)))
	require.True(t, chef.PoolCount.Equal(sdkmath.NewInt(2)))

	pool := store.pools[1]
	require.NotNil(t, pool)
	require.Equal(t, testChefID, pool.Chef)
	require.Equal(t, lpToken.Hex(), pool.Pair)
	require.Equal(t, rewarder.Hex(), pool.Rewarder)
	require.True(t, pool.AllocPoint.Equal(sdkmath.NewInt(50)))

	require.NotNil(t, store.rewarders[rewarder.Hex()])
}

func TestSetPoolAdjustsTotalByDelta(t *testing.T) {
	p, store := newTestProcessor(t)
	ctx := context.Background()

	addPool(t, p, 0, 100)

	other := common.HexToAddress("0x5555555555555555555555555555555555555555")
	require.NoError(t, p.HandleSetPool(ctx, types.SetPoolEvent{
		PoolID:     0,
		AllocPoint: sdkmath.NewInt(30),
		Rewarder:   other,
		Overwrite:  false,
		Time:       chefT0,
	}))

	require.True(t, store.chef.TotalAllocPoint.Equal(sdkmath.NewInt(30)))
	pool := store.pools[0]
	require.True(t, pool.AllocPoint.Equal(sdkmath.NewInt(30)))
	// Without the overwrite flag the rewarder binding is untouched.
	require.Equal(t, rewarder.Hex(), pool.Rewarder)

	require.NoError(t, p.HandleSetPool(ctx, types.SetPoolEvent{
		PoolID:     0,
		AllocPoint: sdkmath.NewInt(60),
		Rewarder:   other,
		Overwrite:  true,
		Time:       chefT0,
	}))

	require.True(t, store.chef.TotalAllocPoint.Equal(sdkmath.NewInt(60)))
	require.Equal(t, other.Hex(), store.pools[0].Rewarder)
	require.NotNil(t, store.rewarders[other.Hex()])
}

func TestUpdatePoolAdoptsAccumulator(t *testing.T) {
	p, store := newTestProcessor(t)

	addPool(t, p, 0, 100)
	require.NoError(t, p.HandleUpdatePool(context.Background(), types.UpdatePoolEvent{
		PoolID:            0,
		LastRewardTime:    chefT0 + 60,
		SuppliedLiquidity: sdkmath.NewInt(500),
		AccRewardPerShare: sdkmath.NewInt(2_000_000_000_000),
		Time:              chefT0 + 60,
	}))

	pool := store.pools[0]
	require.True(t, pool.AccRewardPerShare.Equal(sdkmath.NewInt(2_000_000_000_000)))
	require.Equal(t, chefT0+60, pool.LastRewardTime)
}

func TestRewardPerSecond(t *testing.T) {
	p, store := newTestProcessor(t)

	require.NoError(t, p.HandleRewardPerSecond(context.Background(), types.RewardPerSecondEvent{
		RewardPerSecond: sdkmath.NewInt(7),
		Time:            chefT0,
	}))
	require.True(t, store.chef.RewardPerSecond.Equal(sdkmath.NewInt(7)))
}

func TestDepositHarvestWithdrawCycle(t *testing.T) {
	p, store := newTestProcessor(t)
	ctx := context.Background()

	addPool(t, p, 0, 100)

	// Deposit 50 while the accumulator is zero: no debt yet.
	require.NoError(t, p.HandleDeposit(ctx, types.DepositEvent{
		User: userA, PoolID: 0, Amount: sdkmath.NewInt(50), To: userA, Time: chefT0,
	}))
	pos := store.positions[poolKey{userA.Hex(), 0}]
	require.True(t, pos.Amount.Equal(sdkmath.NewInt(50)))
	require.True(t, pos.RewardDebt.IsZero())
	require.True(t, store.pools[0].SuppliedLiquidity.Equal(sdkmath.NewInt(50)))

	// The accumulator advances to 2 reward units per principal unit.
	require.NoError(t, p.HandleUpdatePool(ctx, types.UpdatePoolEvent{
		PoolID:            0,
		LastRewardTime:    chefT0 + 50,
		SuppliedLiquidity: sdkmath.NewInt(50),
		AccRewardPerShare: sdkmath.NewInt(2_000_000_000_000),
		Time:              chefT0 + 50,
	}))
	require.True(t, PendingReward(store.pools[0], pos).Equal(sdkmath.NewInt(100)))

	// Harvest pays the pending 100 and resets the debt to the full
	// accumulated value.
	require.NoError(t, p.HandleHarvest(ctx, types.HarvestEvent{
		User: userA, PoolID: 0, Amount: sdkmath.NewInt(100), Time: chefT0 + 50,
	}))
	pos = store.positions[poolKey{userA.Hex(), 0}]
	require.True(t, pos.RewardDebt.Equal(sdkmath.NewInt(100)))
	require.True(t, pos.Harvested.Equal(sdkmath.NewInt(100)))
	require.True(t, PendingReward(store.pools[0], pos).IsZero())

	// Withdrawing 20 lowers the debt by the same accumulator share, so
	// the pending reward stays zero.
	require.NoError(t, p.HandleWithdraw(ctx, types.WithdrawEvent{
		User: userA, PoolID: 0, Amount: sdkmath.NewInt(20), To: userA, Time: chefT0 + 51,
	}))
	pos = store.positions[poolKey{userA.Hex(), 0}]
	require.True(t, pos.Amount.Equal(sdkmath.NewInt(30)))
	require.True(t, pos.RewardDebt.Equal(sdkmath.NewInt(60)))
	require.True(t, store.pools[0].SuppliedLiquidity.Equal(sdkmath.NewInt(30)))
	require.True(t, PendingReward(store.pools[0], pos).IsZero())
}

func TestDepositToOtherAccountCreditsReceiver(t *testing.T) {
	p, store := newTestProcessor(t)

	other := common.HexToAddress("0x6666666666666666666666666666666666666666")
	addPool(t, p, 0, 100)
	require.NoError(t, p.HandleDeposit(context.Background(), types.DepositEvent{
		User: userA, PoolID: 0, Amount: sdkmath.NewInt(10), To: other, Time: chefT0,
	}))

	require.Nil(t, store.positions[poolKey{userA.Hex(), 0}])
	pos := store.positions[poolKey{other.Hex(), 0}]
	require.NotNil(t, pos)
	require.True(t, pos.Amount.Equal(sdkmath.NewInt(10)))
}

func TestEmergencyWithdrawForfeitsRewards(t *testing.T) {
	p, store := newTestProcessor(t)
	ctx := context.Background()

	addPool(t, p, 0, 100)
	require.NoError(t, p.HandleDeposit(ctx, types.DepositEvent{
		User: userA, PoolID: 0, Amount: sdkmath.NewInt(50), To: userA, Time: chefT0,
	}))
	require.NoError(t, p.HandleUpdatePool(ctx, types.UpdatePoolEvent{
		PoolID:            0,
		LastRewardTime:    chefT0 + 50,
		SuppliedLiquidity: sdkmath.NewInt(50),
		AccRewardPerShare: sdkmath.NewInt(2_000_000_000_000),
		Time:              chefT0 + 50,
	}))

	require.NoError(t, p.HandleEmergencyWithdraw(ctx, types.EmergencyWithdrawEvent{
		User: userA, PoolID: 0, Amount: sdkmath.NewInt(50), To: userA, Time: chefT0 + 51,
	}))

	pos := store.positions[poolKey{userA.Hex(), 0}]
	require.True(t, pos.Amount.IsZero())
	require.True(t, pos.RewardDebt.IsZero())
	require.True(t, pos.Harvested.IsZero())
	require.True(t, store.pools[0].SuppliedLiquidity.IsZero())
	require.True(t, PendingReward(store.pools[0], pos).IsZero())
}

func TestHarvestBelowPrecisionTruncatesToZero(t *testing.T) {
	p, store := newTestProcessor(t)
	ctx := context.Background()

	addPool(t, p, 0, 100)
	require.NoError(t, p.HandleDeposit(ctx, types.DepositEvent{
		User: userA, PoolID: 0, Amount: sdkmath.NewInt(50), To: userA, Time: chefT0,
	}))

	// 50 * 10^6 / 10^12 is below one reward unit: the debt stays at the
	// truncated integer, never a fractional approximation.
	require.NoError(t, p.HandleUpdatePool(ctx, types.UpdatePoolEvent{
		PoolID:            0,
		LastRewardTime:    chefT0 + 1,
		SuppliedLiquidity: sdkmath.NewInt(50),
		AccRewardPerShare: sdkmath.NewInt(1_000_000),
		Time:              chefT0 + 1,
	}))
	require.NoError(t, p.HandleHarvest(ctx, types.HarvestEvent{
		User: userA, PoolID: 0, Amount: sdkmath.ZeroInt(), Time: chefT0 + 1,
	}))

	pos := store.positions[poolKey{userA.Hex(), 0}]
	require.True(t, pos.RewardDebt.IsZero())
	require.True(t, PendingReward(store.pools[0], pos).IsZero())
}

func TestAccumulatorTruncatesTowardZero(t *testing.T) {
	// 7 units of principal against an accumulator of 3*10^11 accrue
	// 7*3*10^11 / 10^12 = 2.1, truncated to 2.
	pool := types.NewPool(0, testChefID, chefT0)
	pool.AccRewardPerShare = sdkmath.NewInt(300_000_000_000)
	pos := types.NewPoolPosition(userA.Hex(), 0, chefT0)
	pos.Amount = sdkmath.NewInt(7)

	require.True(t, PendingReward(pool, pos).Equal(sdkmath.NewInt(2)))
}
