package requestpipeline

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lendcore/address"
	"lendcore/auction"
	"lendcore/coreerr"
	"lendcore/external/externaltest"
	"lendcore/poolstatus"
	"lendcore/position"
	"lendcore/reserve"
)

func asset(n byte) address.Address {
	b := make([]byte, 20)
	b[19] = n
	return address.MustNew(address.AssetPrefix, b)
}

func user(n byte) address.Address {
	b := make([]byte, 20)
	b[19] = n
	return address.MustNew(address.UserPrefix, b)
}

func testReserves(oracle *externaltest.Oracle) map[uint32]*ReserveEntry {
	collateral := asset(1)
	debtAsset := asset(2)
	oracle.Set(collateral, big.NewInt(10_000_000), 1000)
	oracle.Set(debtAsset, big.NewInt(10_000_000), 1000)
	return map[uint32]*ReserveEntry{
		0: {
			Config: &reserve.Config{Asset: collateral, Decimals: 7, CFactor: big.NewInt(9_000_000), LFactor: big.NewInt(9_000_000),
				Util: big.NewInt(8_000_000), MaxUtil: big.NewInt(9_500_000), RBase: big.NewInt(50_000), ROne: big.NewInt(400_000),
				RTwo: big.NewInt(2_000_000), RThree: big.NewInt(10_000_000), Reactivity: big.NewInt(20_000)},
			Data: reserve.NewData(1000),
		},
		1: {
			Config: &reserve.Config{Asset: debtAsset, Decimals: 7, CFactor: big.NewInt(9_000_000), LFactor: big.NewInt(9_000_000),
				Util: big.NewInt(8_000_000), MaxUtil: big.NewInt(9_500_000), RBase: big.NewInt(50_000), ROne: big.NewInt(400_000),
				RTwo: big.NewInt(2_000_000), RThree: big.NewInt(10_000_000), Reactivity: big.NewInt(20_000)},
			Data: reserve.NewData(1000),
		},
	}
}

func newCtx(t *testing.T) (*Context, *externaltest.Oracle) {
	oracle := externaltest.NewOracle(7, asset(0))
	reserves := testReserves(oracle)
	reserves[1].Data.BSupply = big.NewInt(1_000_000_0000000)

	return &Context{
		Ctx:              context.Background(),
		Oracle:           oracle,
		Reserves:         reserves,
		Status:           poolstatus.Active,
		Now:              1000,
		Block:            100,
		MaxPositions:     4,
		MinCollateral:    big.NewInt(0),
		MaxPriceAge:      0,
		BackstopTakeRate: big.NewInt(2_000_000),
		FillerAddr:       user(1),
		User:             position.New(),
		Backstop:         position.New(),
		Subjects:         map[string]*position.Positions{},
		Auctions:         map[AuctionKey]*auction.Data{},
	}, oracle
}

func TestSubmitSupplyAndBorrowAggregatesNetDeltas(t *testing.T) {
	ctx, _ := newCtx(t)

	result, err := Submit(ctx, []Request{
		{Type: SupplyCollateral, ReserveIndex: 0, Amount: big.NewInt(100_0000000)},
		{Type: Borrow, ReserveIndex: 1, Amount: big.NewInt(50_0000000)},
	})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_0000000), result.TransferDeltas[0])
	require.Equal(t, big.NewInt(-50_0000000), result.TransferDeltas[1])
	require.Contains(t, ctx.User.Collateral, uint32(0))
	require.Contains(t, ctx.User.Liabilities, uint32(1))
}

func TestSubmitRejectsBorrowThatBreaksHealth(t *testing.T) {
	ctx, _ := newCtx(t)

	_, err := Submit(ctx, []Request{
		{Type: SupplyCollateral, ReserveIndex: 0, Amount: big.NewInt(100_0000000)},
		{Type: Borrow, ReserveIndex: 1, Amount: big.NewInt(95_0000000)},
	})
	require.ErrorIs(t, err, coreerr.ErrInvalidHf)
	require.True(t, ctx.User.IsEmpty())
}

func TestSubmitDeleveragingPathToleratesPriorUnhealthyState(t *testing.T) {
	ctx, _ := newCtx(t)
	require.NoError(t, ctx.User.AdjustCollateral(0, big.NewInt(50_0000000)))
	require.NoError(t, ctx.User.AdjustLiability(1, big.NewInt(80_0000000)))

	result, err := Submit(ctx, []Request{
		{Type: Repay, ReserveIndex: 1, Amount: big.NewInt(10_0000000)},
	})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(70_0000000), ctx.User.Liabilities[1])
	require.Equal(t, big.NewInt(10_0000000), result.TransferDeltas[1])
}

func TestSubmitBlocksBorrowWhenOnIce(t *testing.T) {
	ctx, _ := newCtx(t)
	ctx.Status = poolstatus.OnIce

	_, err := Submit(ctx, []Request{
		{Type: Borrow, ReserveIndex: 1, Amount: big.NewInt(1)},
	})
	require.ErrorIs(t, err, coreerr.ErrStatusNotAllowed)
}

func TestSubmitRejectsSelfLiquidationFill(t *testing.T) {
	ctx, _ := newCtx(t)
	ctx.Subjects[ctx.FillerAddr.Key()] = position.New()
	ctx.Auctions[AuctionKey{Type: auction.UserLiquidation, Subject: ctx.FillerAddr.Key()}] = auction.New(100)

	_, err := Submit(ctx, []Request{
		{Type: FillUserLiquidationAuction, Amount: big.NewInt(100), Subject: ctx.FillerAddr},
	})
	require.ErrorIs(t, err, coreerr.ErrInvalidLiquidation)
}

func TestSubmitFillsUserLiquidationAuctionPartially(t *testing.T) {
	ctx, _ := newCtx(t)
	subjectAddr := user(2)
	subject := position.New()
	require.NoError(t, subject.AdjustCollateral(0, big.NewInt(100_0000000)))
	require.NoError(t, subject.AdjustLiability(1, big.NewInt(80_0000000)))
	ctx.Subjects[subjectAddr.Key()] = subject

	data := auction.New(ctx.Block - 100) // 100 blocks elapsed: lot at 50%, bid still at 100%
	data.Bid[1] = big.NewInt(80_0000000)
	data.Lot[0] = big.NewInt(100_0000000)
	ctx.Auctions[AuctionKey{Type: auction.UserLiquidation, Subject: subjectAddr.Key()}] = data

	result, err := Submit(ctx, []Request{
		{Type: FillUserLiquidationAuction, Amount: big.NewInt(50), Subject: subjectAddr},
	})
	require.NoError(t, err)
	require.True(t, result.TransferDeltas[1].Sign() > 0)
	require.Contains(t, ctx.User.Collateral, uint32(0))
	require.True(t, subject.Liabilities[1].Cmp(big.NewInt(80_0000000)) < 0)
	require.Contains(t, ctx.Auctions, AuctionKey{Type: auction.UserLiquidation, Subject: subjectAddr.Key()})
}

func TestSubmitDeleteLiquidationAuctionRequiresStale(t *testing.T) {
	ctx, _ := newCtx(t)
	subjectAddr := user(2)
	key := AuctionKey{Type: auction.UserLiquidation, Subject: subjectAddr.Key()}
	ctx.Auctions[key] = auction.New(ctx.Block)

	_, err := Submit(ctx, []Request{
		{Type: DeleteLiquidationAuction, Subject: subjectAddr},
	})
	require.Error(t, err)

	ctx.Block += 501
	_, err = Submit(ctx, []Request{
		{Type: DeleteLiquidationAuction, Subject: subjectAddr},
	})
	require.NoError(t, err)
	require.NotContains(t, ctx.Auctions, key)
}
