package lottery

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/lottoctl/internal/chain/chaintest"
)

type fixture struct {
	sim     *chaintest.Sim
	fake    *chaintest.FakeContract
	lottery *Lottery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sim := chaintest.New(t, 2)
	addr := sim.DeployStub(t)
	sim.AutoCommit(t, 20*time.Millisecond)

	parsed, err := ParsedABI()
	require.NoError(t, err)
	fake := chaintest.NewFakeContract(sim.Client, addr, parsed)

	l, err := New(addr, fake)
	require.NoError(t, err)
	return &fixture{sim: sim, fake: fake, lottery: l}
}

func (f *fixture) playerOpts(t *testing.T) *bind.TransactOpts {
	t.Helper()
	player, err := f.sim.Accounts.Player()
	require.NoError(t, err)
	opts, err := player.TransactOpts(context.Background(), chaintest.ChainID)
	require.NoError(t, err)
	return opts
}

func TestParsedABI(t *testing.T) {
	parsed, err := ParsedABI()
	require.NoError(t, err)

	for _, method := range []string{
		"enterLottery", "checkUpkeep", "performUpkeep", "getEntranceFee", "getLotteryState",
		"getInterval", "getPlayer", "getLastTimeStamp", "getRecentWinner", "getNumberOfPlayers",
	} {
		assert.Contains(t, parsed.Methods, method)
	}
	for _, event := range []string{"LotteryEnter", "RequestedLotteryWinner", "WinnerPicked"} {
		assert.Contains(t, parsed.Events, event)
	}
	assert.Len(t, parsed.Constructor.Inputs, 6)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "calculating", Calculating.String())
	assert.Equal(t, "unknown(7)", State(7).String())
}

func TestLottery_Accessors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fee := big.NewInt(1e16)
	winner := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	f.fake.Returns("getEntranceFee", fee)
	f.fake.Returns("getLotteryState", uint8(1))
	f.fake.Returns("getInterval", big.NewInt(30))
	f.fake.Returns("getLastTimeStamp", big.NewInt(1700000000))
	f.fake.Returns("getRecentWinner", winner)
	f.fake.Returns("getNumberOfPlayers", big.NewInt(2))
	f.fake.Returns("getPlayer", winner)

	got, err := f.lottery.EntranceFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fee.Cmp(got))

	state, err := f.lottery.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, Calculating, state)

	interval, err := f.lottery.Interval(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), interval.Uint64())

	ts, err := f.lottery.LastTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), ts.Uint64())

	recent, err := f.lottery.RecentWinner(ctx)
	require.NoError(t, err)
	assert.Equal(t, winner, recent)

	players, err := f.lottery.Players(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{winner, winner}, players)
	assert.Equal(t, 2, f.fake.Calls("getPlayer"))
}

func TestLottery_CheckUpkeep(t *testing.T) {
	f := newFixture(t)

	f.fake.Returns("checkUpkeep", true, []byte{})
	needed, _, err := f.lottery.CheckUpkeep(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, needed)

	f.fake.Returns("checkUpkeep", false, []byte{})
	needed, _, err = f.lottery.CheckUpkeep(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestLottery_EnterRevertsDecoded(t *testing.T) {
	tests := []struct {
		name    string
		revert  string
		wantErr error
	}{
		{name: "not enough eth", revert: "Lottery__NotEnoughETHEntered", wantErr: ErrNotEnoughETHEntered},
		{name: "not open", revert: "Lottery__NotOpen", wantErr: ErrNotOpen},
		{name: "transfer failed", revert: "Lottery__TransferFailed", wantErr: ErrTransferFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.fake.Reverts("enterLottery", chaintest.RevertErr(f.fake.RevertData(tc.revert)))

			_, err := f.lottery.Enter(context.Background(), f.playerOpts(t), big.NewInt(0))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Contains(t, err.Error(), "enterLottery")
		})
	}
}

func TestLottery_PerformUpkeepNotNeeded(t *testing.T) {
	f := newFixture(t)
	data := f.fake.RevertData("Lottery__UpkeepNotNeeded", big.NewInt(0), big.NewInt(0), big.NewInt(0))
	f.fake.Reverts("performUpkeep", chaintest.RevertErr(data))

	_, _, err := f.lottery.PerformUpkeep(context.Background(), f.playerOpts(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpkeepNotNeeded)

	var upkeep *UpkeepNotNeededError
	require.True(t, errors.As(err, &upkeep))
	assert.Equal(t, int64(0), upkeep.Players.Int64())
	assert.Equal(t, Open, upkeep.State)
}

func TestLottery_EnterSendsAndWaits(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	receipt, err := f.lottery.Enter(ctx, f.playerOpts(t), big.NewInt(1e16))
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, 1, f.fake.Calls("enterLottery"))

	// the stub emits nothing
	events, err := f.lottery.LotteryEnterEvents(receipt)
	require.NoError(t, err)
	assert.Empty(t, events)

	balance, err := f.sim.Client.BalanceAt(ctx, f.lottery.Address(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1e16), balance.Int64())
}

func TestLottery_PerformUpkeepWithoutEvent(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	receipt, id, err := f.lottery.PerformUpkeep(ctx, f.playerOpts(t), nil)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NotNil(t, receipt)
	assert.Nil(t, id)
}

func TestLottery_ReceiptEvents(t *testing.T) {
	f := newFixture(t)
	parsed := f.lottery.abi
	player := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	receipt := &types.Receipt{Logs: []*types.Log{
		{
			// coordinator log from another address is ignored
			Address: common.HexToAddress("0x01"),
			Topics:  []common.Hash{parsed.Events["RequestedLotteryWinner"].ID, common.BigToHash(big.NewInt(9))},
		},
		{
			Address: f.lottery.Address(),
			Topics:  []common.Hash{parsed.Events["LotteryEnter"].ID, common.BytesToHash(player.Bytes())},
		},
		{
			Address: f.lottery.Address(),
			Topics:  []common.Hash{parsed.Events["RequestedLotteryWinner"].ID, common.BigToHash(big.NewInt(1))},
		},
	}}

	enters, err := f.lottery.LotteryEnterEvents(receipt)
	require.NoError(t, err)
	require.Len(t, enters, 1)
	assert.Equal(t, player, enters[0].Player)

	requests, err := f.lottery.RequestedLotteryWinnerEvents(receipt)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, int64(1), requests[0].RequestId.Int64())
}

func TestLottery_WaitForWinnerPicked(t *testing.T) {
	f := newFixture(t)
	orig := PollInterval
	PollInterval = 5 * time.Millisecond
	defer func() { PollInterval = orig }()

	winner := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	topic := f.lottery.abi.Events["WinnerPicked"].ID

	var head atomic.Uint64
	head.Store(10)
	f.fake.BlockNumberFunc = func(ctx context.Context) (uint64, error) {
		return head.Add(1), nil
	}
	var queries []ethereum.FilterQuery
	f.fake.FilterLogsFunc = func(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
		queries = append(queries, q)
		if q.ToBlock.Uint64() < 14 {
			return nil, nil
		}
		return []types.Log{{
			Address:     f.lottery.Address(),
			Topics:      []common.Hash{topic, common.BytesToHash(winner.Bytes())},
			BlockNumber: 14,
		}}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := f.lottery.WaitForWinnerPicked(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, winner, ev.Winner)
	assert.Equal(t, uint64(14), ev.Raw.BlockNumber)

	require.GreaterOrEqual(t, len(queries), 2)
	assert.Equal(t, uint64(8), queries[0].FromBlock.Uint64())
	// ranges are contiguous and never rescanned
	for i := 1; i < len(queries); i++ {
		assert.Equal(t, queries[i-1].ToBlock.Uint64()+1, queries[i].FromBlock.Uint64())
	}
}

func TestLottery_WaitForWinnerPickedTimesOut(t *testing.T) {
	f := newFixture(t)
	orig := PollInterval
	PollInterval = 5 * time.Millisecond
	defer func() { PollInterval = orig }()

	f.fake.FilterLogsFunc = func(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.lottery.WaitForWinnerPicked(ctx, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
