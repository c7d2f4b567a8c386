package pool

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lendcore/address"
	"lendcore/auction"
	"lendcore/emissions"
	"lendcore/external"
	"lendcore/external/externaltest"
	"lendcore/native/common"
	"lendcore/observability/metrics"
	"lendcore/poolstatus"
	"lendcore/requestpipeline"
	"lendcore/reserve"
	"lendcore/storage"
)

func testAsset(n byte) address.Address {
	b := make([]byte, 20)
	b[19] = n
	return address.MustNew(address.AssetPrefix, b)
}

func testUser(n byte) address.Address {
	b := make([]byte, 20)
	b[19] = n
	return address.MustNew(address.UserPrefix, b)
}

func newTestPool(t *testing.T) (*Pool, *externaltest.Oracle, *externaltest.Token, *externaltest.Token, *externaltest.Backstop) {
	oracle := externaltest.NewOracle(7, testAsset(0))
	token0 := externaltest.NewToken()
	token1 := externaltest.NewToken()
	backstop := externaltest.NewBackstop()

	collateral := testAsset(1)
	debtAsset := testAsset(2)
	oracle.Set(collateral, big.NewInt(10_000_000), 1000)
	oracle.Set(debtAsset, big.NewInt(10_000_000), 1000)

	store := NewStore(storage.NewMemDB())
	cfg0 := &reserve.Config{Asset: collateral, Index: 0, Decimals: 7, CFactor: big.NewInt(9_000_000), LFactor: big.NewInt(9_000_000),
		Util: big.NewInt(8_000_000), MaxUtil: big.NewInt(9_500_000), RBase: big.NewInt(50_000), ROne: big.NewInt(400_000),
		RTwo: big.NewInt(2_000_000), RThree: big.NewInt(10_000_000), Reactivity: big.NewInt(20_000), SupplyCap: big.NewInt(0), Enabled: true}
	cfg1 := &reserve.Config{Asset: debtAsset, Index: 1, Decimals: 7, CFactor: big.NewInt(9_000_000), LFactor: big.NewInt(9_000_000),
		Util: big.NewInt(8_000_000), MaxUtil: big.NewInt(9_500_000), RBase: big.NewInt(50_000), ROne: big.NewInt(400_000),
		RTwo: big.NewInt(2_000_000), RThree: big.NewInt(10_000_000), Reactivity: big.NewInt(20_000), SupplyCap: big.NewInt(0), Enabled: true}
	require.NoError(t, store.PutReserve(cfg0, reserve.NewData(1000)))
	require.NoError(t, store.PutReserve(cfg1, reserve.NewData(1000)))

	p := &Pool{
		Addr:             testAsset(9),
		Backstop:         backstop,
		BackAddr:         testAsset(8),
		Oracle:           oracle,
		Tokens:           map[uint32]external.Token{0: token0, 1: token1},
		Store:            store,
		ReserveIndices:   []uint32{0, 1},
		MaxPositions:     4,
		MinCollateral:    big.NewInt(0),
		MaxPriceAge:      0,
		BackstopTakeRate: big.NewInt(2_000_000),
		SubmitQuota:      common.Quota{MaxRequestsPerMin: 100},
		Pause:            NewModulePause(),
		Metrics:          metrics.Registry(),
	}
	return p, oracle, token0, token1, backstop
}

func TestSubmitFundsCollateralAndBorrow(t *testing.T) {
	p, _, token0, token1, _ := newTestPool(t)
	user := testUser(1)
	token0.Fund(user, big.NewInt(100_0000000))
	token1.Fund(p.Addr, big.NewInt(1_000_0000000))

	_, err := p.Submit(context.Background(), user, []requestpipeline.Request{
		{Type: requestpipeline.SupplyCollateral, ReserveIndex: 0, Amount: big.NewInt(100_0000000)},
		{Type: requestpipeline.Borrow, ReserveIndex: 1, Amount: big.NewInt(50_0000000)},
	}, 1000, 100)
	require.NoError(t, err)

	bal0, err := token0.Balance(context.Background(), p.Addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_0000000), bal0)

	bal1, err := token1.Balance(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50_0000000), bal1)

	positions, err := p.Store.GetPositions(user.Key())
	require.NoError(t, err)
	require.Contains(t, positions.Collateral, uint32(0))
	require.Contains(t, positions.Liabilities, uint32(1))
}

func TestSubmitRejectsUnhealthyBorrow(t *testing.T) {
	p, _, token0, token1, _ := newTestPool(t)
	user := testUser(1)
	token0.Fund(user, big.NewInt(100_0000000))
	token1.Fund(p.Addr, big.NewInt(1_000_0000000))

	_, err := p.Submit(context.Background(), user, []requestpipeline.Request{
		{Type: requestpipeline.SupplyCollateral, ReserveIndex: 0, Amount: big.NewInt(100_0000000)},
		{Type: requestpipeline.Borrow, ReserveIndex: 1, Amount: big.NewInt(95_0000000)},
	}, 1000, 100)
	require.Error(t, err)

	positions, err := p.Store.GetPositions(user.Key())
	require.NoError(t, err)
	require.True(t, positions.IsEmpty())
}

func TestSubmitBlockedWhenRequestPipelinePaused(t *testing.T) {
	p, _, _, _, _ := newTestPool(t)
	p.Pause.SetPaused("requestpipeline", true)

	_, err := p.Submit(context.Background(), testUser(1), []requestpipeline.Request{
		{Type: requestpipeline.SupplyCollateral, ReserveIndex: 0, Amount: big.NewInt(1)},
	}, 1000, 100)
	require.Error(t, err)
}

func TestCurrentStatusFollowsAdminFloorWhenStricter(t *testing.T) {
	p, _, _, _, backstop := newTestPool(t)
	backstop.Healthy = true
	backstop.Threshold = true
	require.NoError(t, p.Store.PutAdminStatus(poolstatus.AdminOnIce))

	status, err := p.CurrentStatus(context.Background(), poolstatus.AdminOnIce)
	require.NoError(t, err)
	require.Equal(t, poolstatus.AdminOnIce, status)
}

func TestCurrentStatusAdminOnIceSuppressesSixtyBpsEscalationToFrozen(t *testing.T) {
	p, _, _, _, backstop := newTestPool(t)
	backstop.Healthy = true
	backstop.Threshold = true
	backstop.Balances[p.Addr.Key()] = external.PoolBalance{
		Shares: big.NewInt(10_000),
		Q4W:    big.NewInt(6_500),
	}
	require.NoError(t, p.Store.PutAdminStatus(poolstatus.AdminOnIce))

	status, err := p.CurrentStatus(context.Background(), poolstatus.AdminOnIce)
	require.NoError(t, err)
	require.Equal(t, poolstatus.OnIce, status)
	require.NoError(t, status.Allows(poolstatus.ActionSupply))
}

func TestSubmitAllowsSupplyInAdminOnIceSixtyToSeventyFiveBand(t *testing.T) {
	p, _, token0, _, backstop := newTestPool(t)
	backstop.Healthy = true
	backstop.Threshold = true
	backstop.Balances[p.Addr.Key()] = external.PoolBalance{
		Shares: big.NewInt(10_000),
		Q4W:    big.NewInt(6_500),
	}
	require.NoError(t, p.Store.PutAdminStatus(poolstatus.AdminOnIce))

	user := testUser(1)
	token0.Fund(user, big.NewInt(100_0000000))

	_, err := p.Submit(context.Background(), user, []requestpipeline.Request{
		{Type: requestpipeline.SupplyCollateral, ReserveIndex: 0, Amount: big.NewInt(100_0000000)},
	}, 1000, 100)
	require.NoError(t, err)
}

// TestSubmitCascadesBadDebtAfterLiquidationFillLeavesPureBadDebt covers
// spec.md §4.8: a liquidation fill that seizes a subject's entire collateral
// lot while the bid covers only part of its debt must leave the remainder on
// the backstop rather than stranded on an empty, debt-only position.
func TestSubmitCascadesBadDebtAfterLiquidationFillLeavesPureBadDebt(t *testing.T) {
	p, _, _, token1, _ := newTestPool(t)
	subject := testUser(2)
	filler := testUser(3)

	subjectPositions, err := p.Store.GetPositions(subject.Key())
	require.NoError(t, err)
	require.NoError(t, subjectPositions.AdjustCollateral(0, big.NewInt(100_0000000)))
	require.NoError(t, subjectPositions.AdjustLiability(1, big.NewInt(80_0000000)))
	require.NoError(t, p.Store.PutPositions(subject.Key(), subjectPositions))

	data := auction.New(100)
	data.Bid[1] = big.NewInt(40_0000000)
	data.Lot[0] = big.NewInt(100_0000000)
	require.NoError(t, p.Store.PutAuction(auction.UserLiquidation, subject.Key(), data))

	token1.Fund(filler, big.NewInt(40_0000000))

	_, err = p.Submit(context.Background(), filler, []requestpipeline.Request{
		{Type: requestpipeline.FillUserLiquidationAuction, Amount: big.NewInt(100), Subject: subject},
	}, 1000, 300)
	require.NoError(t, err)

	subjectAfter, err := p.Store.GetPositions(subject.Key())
	require.NoError(t, err)
	require.True(t, subjectAfter.IsEmpty())

	backstopAfter, err := p.Store.GetPositions(p.BackAddr.Key())
	require.NoError(t, err)
	require.Equal(t, 0, backstopAfter.Liabilities[1].Cmp(big.NewInt(40_0000000)))
}

func TestGulpCreditsSurplusToBackstop(t *testing.T) {
	p, _, token0, _, _ := newTestPool(t)
	token0.Fund(p.Addr, big.NewInt(500_0000000))

	surplus, err := p.Gulp(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 0, surplus.Cmp(big.NewInt(500_0000000)))
}

func TestSetEmissionsConfigRejectsOverAllocatedShares(t *testing.T) {
	p, _, _, _, _ := newTestPool(t)
	shares := map[uint32]*big.Int{
		emissions.EncodeTokenID(0, emissions.SideSupply):     big.NewInt(9_000_000),
		emissions.EncodeTokenID(1, emissions.SideLiability): big.NewInt(2_000_000),
	}
	require.Error(t, p.SetEmissionsConfig(shares))
}

func TestGulpEmissionsDistributesAllotmentAcrossConfiguredShares(t *testing.T) {
	p, _, _, _, backstop := newTestPool(t)
	backstop.EmissionsAmount = big.NewInt(100_0000000)

	cfg, data, ok, err := p.Store.GetReserve(0)
	require.NoError(t, err)
	require.True(t, ok)
	data.BSupply = big.NewInt(1_000_0000000)
	require.NoError(t, p.Store.PutReserve(cfg, data))

	require.NoError(t, p.SetEmissionsConfig(map[uint32]*big.Int{
		emissions.EncodeTokenID(0, emissions.SideSupply): big.NewInt(10_000_000), // 100%
	}))

	total, err := p.GulpEmissions(context.Background(), 2000)
	require.NoError(t, err)
	require.Equal(t, 0, total.Cmp(big.NewInt(100_0000000)))

	track, err := p.Store.GetReserveEmission(0, emissions.SideSupply, 2000)
	require.NoError(t, err)
	require.True(t, track.Index.Sign() > 0)
}

func TestClaimEmissionsAccruesAndZeroesBalance(t *testing.T) {
	p, _, _, _, _ := newTestPool(t)
	track := emissions.NewReserveEmissionData(1000)
	track.Eps = big.NewInt(1_000_000) // 0.1 token/sec, 7-dec
	require.NoError(t, p.Store.PutReserveEmission(0, emissions.SideSupply, track))

	cfg, data, ok, err := p.Store.GetReserve(0)
	require.NoError(t, err)
	require.True(t, ok)
	data.BSupply = big.NewInt(100_0000000)
	require.NoError(t, p.Store.PutReserve(cfg, data))

	user := testUser(3)
	claimed, err := p.ClaimEmissions(user, 0, emissions.SideSupply, big.NewInt(10_0000000), 2000)
	require.NoError(t, err)
	require.True(t, claimed.Sign() > 0)

	second, err := p.ClaimEmissions(user, 0, emissions.SideSupply, big.NewInt(10_0000000), 2000)
	require.NoError(t, err)
	require.Equal(t, 0, second.Sign())
}
