package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/lottoctl/internal/accounts"
	"github.com/Bidon15/lottoctl/internal/contracts/lottery"
	"github.com/Bidon15/lottoctl/internal/contracts/vrfmock"
)

// maxEntrants caps the players of the full draw check.
const maxEntrants = 4

// UnitChecks returns the development-chain checks in order.
func UnitChecks() []Check {
	return []Check{
		{Name: "constructor initializes the lottery", Run: checkConstructor},
		{Name: "enterLottery reverts when not paying enough", Run: checkEnterUnderpaid},
		{Name: "enterLottery records players", Run: checkEnterRecordsPlayer},
		{Name: "enterLottery emits LotteryEnter", Run: checkEnterEmits},
		{Name: "enterLottery is blocked while calculating", Run: checkEnterWhileCalculating},
		{Name: "checkUpkeep is false without funded players", Run: checkUpkeepNoPlayers},
		{Name: "checkUpkeep is false when not open", Run: checkUpkeepNotOpen},
		{Name: "checkUpkeep is false before the interval", Run: checkUpkeepBeforeInterval},
		{Name: "checkUpkeep is true when open, funded and past the interval", Run: checkUpkeepNeeded},
		{Name: "performUpkeep reverts when upkeep is not needed", Run: checkPerformNotNeeded},
		{Name: "performUpkeep moves to calculating and requests a winner", Run: checkPerformRequests},
		{Name: "fulfillRandomWords reverts for nonexistent requests", Run: checkFulfillNonexistent},
		{Name: "fulfillRandomWords picks a winner, resets and pays out", Run: checkFullDraw},
	}
}

func enter(ctx context.Context, env *Env, acct *accounts.Account) (*types.Receipt, error) {
	fee, err := env.Lottery.EntranceFee(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := env.opts(ctx, acct)
	if err != nil {
		return nil, err
	}
	receipt, err := env.Lottery.Enter(ctx, opts, fee)
	if err != nil {
		return nil, fmt.Errorf("enter as %s: %w", acct.Address().Hex(), err)
	}
	return receipt, nil
}

func enterAsDeployer(ctx context.Context, env *Env) (*types.Receipt, error) {
	acct, err := env.Accounts.Deployer()
	if err != nil {
		return nil, err
	}
	return enter(ctx, env, acct)
}

// advance moves the node clock by seconds and mines a block.
func advance(ctx context.Context, env *Env, seconds uint64) error {
	if err := env.Node.IncreaseTime(ctx, seconds); err != nil {
		return err
	}
	return env.Node.Mine(ctx)
}

func advancePastInterval(ctx context.Context, env *Env) error {
	interval, err := env.Lottery.Interval(ctx)
	if err != nil {
		return err
	}
	return advance(ctx, env, interval.Uint64()+1)
}

func performUpkeep(ctx context.Context, env *Env) (*types.Receipt, *big.Int, error) {
	_, opts, err := env.deployerOpts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return env.Lottery.PerformUpkeep(ctx, opts, nil)
}

// startDraw enters once, runs past the interval and performs upkeep.
func startDraw(ctx context.Context, env *Env) (*big.Int, error) {
	if _, err := enterAsDeployer(ctx, env); err != nil {
		return nil, err
	}
	if err := advancePastInterval(ctx, env); err != nil {
		return nil, err
	}
	_, requestID, err := performUpkeep(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("performUpkeep: %w", err)
	}
	return requestID, nil
}

func expectState(ctx context.Context, env *Env, want lottery.State) error {
	state, err := env.Lottery.State(ctx)
	if err != nil {
		return err
	}
	if state != want {
		return fmt.Errorf("state = %s, want %s", state, want)
	}
	return nil
}

func expectUpkeep(ctx context.Context, env *Env, want bool) error {
	needed, _, err := env.Lottery.CheckUpkeep(ctx, nil)
	if err != nil {
		return fmt.Errorf("checkUpkeep: %w", err)
	}
	if needed != want {
		return fmt.Errorf("upkeepNeeded = %t, want %t", needed, want)
	}
	return nil
}

func checkConstructor(ctx context.Context, env *Env) error {
	if err := expectState(ctx, env, lottery.Open); err != nil {
		return err
	}
	interval, err := env.Lottery.Interval(ctx)
	if err != nil {
		return err
	}
	if !interval.IsUint64() || interval.Uint64() != env.Network.Interval {
		return fmt.Errorf("interval = %s, want %d", interval, env.Network.Interval)
	}
	return nil
}

func checkEnterUnderpaid(ctx context.Context, env *Env) error {
	_, opts, err := env.deployerOpts(ctx)
	if err != nil {
		return err
	}
	_, err = env.Lottery.Enter(ctx, opts, new(big.Int))
	return expectErr("enter without payment", err, lottery.ErrNotEnoughETHEntered)
}

func checkEnterRecordsPlayer(ctx context.Context, env *Env) error {
	deployer, err := env.Accounts.Deployer()
	if err != nil {
		return err
	}
	if _, err := enter(ctx, env, deployer); err != nil {
		return err
	}
	player, err := env.Lottery.Player(ctx, 0)
	if err != nil {
		return err
	}
	if player != deployer.Address() {
		return fmt.Errorf("player 0 = %s, want %s", player.Hex(), deployer.Address().Hex())
	}
	return nil
}

func checkEnterEmits(ctx context.Context, env *Env) error {
	deployer, err := env.Accounts.Deployer()
	if err != nil {
		return err
	}
	receipt, err := enter(ctx, env, deployer)
	if err != nil {
		return err
	}
	events, err := env.Lottery.LotteryEnterEvents(receipt)
	if err != nil {
		return err
	}
	if len(events) != 1 {
		return fmt.Errorf("got %d LotteryEnter events, want 1", len(events))
	}
	if events[0].Player != deployer.Address() {
		return fmt.Errorf("LotteryEnter player = %s, want %s", events[0].Player.Hex(), deployer.Address().Hex())
	}
	return nil
}

func checkEnterWhileCalculating(ctx context.Context, env *Env) error {
	if _, err := startDraw(ctx, env); err != nil {
		return err
	}
	_, err := enterAsDeployer(ctx, env)
	return expectErr("enter while calculating", err, lottery.ErrNotOpen)
}

func checkUpkeepNoPlayers(ctx context.Context, env *Env) error {
	if err := advancePastInterval(ctx, env); err != nil {
		return err
	}
	return expectUpkeep(ctx, env, false)
}

func checkUpkeepNotOpen(ctx context.Context, env *Env) error {
	if _, err := startDraw(ctx, env); err != nil {
		return err
	}
	if err := expectState(ctx, env, lottery.Calculating); err != nil {
		return err
	}
	return expectUpkeep(ctx, env, false)
}

func checkUpkeepBeforeInterval(ctx context.Context, env *Env) error {
	if _, err := enterAsDeployer(ctx, env); err != nil {
		return err
	}
	interval, err := env.Lottery.Interval(ctx)
	if err != nil {
		return err
	}
	last, err := env.Lottery.LastTimestamp(ctx)
	if err != nil {
		return err
	}
	head, err := env.Chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return err
	}
	// stop 5s short of lastTimestamp + interval; the node clock has kept
	// running since deployment
	target := last.Uint64() + interval.Uint64()
	if interval.Uint64() > 5 {
		target -= 5
	}
	var wait uint64
	if target > head.Time {
		wait = target - head.Time
	}
	if err := advance(ctx, env, wait); err != nil {
		return err
	}
	return expectUpkeep(ctx, env, false)
}

func checkUpkeepNeeded(ctx context.Context, env *Env) error {
	if _, err := enterAsDeployer(ctx, env); err != nil {
		return err
	}
	if err := advancePastInterval(ctx, env); err != nil {
		return err
	}
	return expectUpkeep(ctx, env, true)
}

func checkPerformNotNeeded(ctx context.Context, env *Env) error {
	_, _, err := performUpkeep(ctx, env)
	if err := expectErr("performUpkeep without players", err, lottery.ErrUpkeepNotNeeded); err != nil {
		return err
	}
	var upkeep *lottery.UpkeepNotNeededError
	if errors.As(err, &upkeep) && upkeep.Players != nil && upkeep.Players.Sign() != 0 {
		return fmt.Errorf("UpkeepNotNeeded reported %s players, want 0", upkeep.Players)
	}
	return nil
}

func checkPerformRequests(ctx context.Context, env *Env) error {
	requestID, err := startDraw(ctx, env)
	if err != nil {
		return err
	}
	if requestID == nil || requestID.Sign() <= 0 {
		return fmt.Errorf("request id = %v, want > 0", requestID)
	}
	return expectState(ctx, env, lottery.Calculating)
}

func checkFulfillNonexistent(ctx context.Context, env *Env) error {
	_, opts, err := env.deployerOpts(ctx)
	if err != nil {
		return err
	}
	for _, id := range []int64{0, 1} {
		_, err := env.Coordinator.FulfillRandomWords(ctx, opts, big.NewInt(id), env.Lottery.Address())
		if err := expectErr(fmt.Sprintf("fulfill request %d", id), err, vrfmock.ErrNonexistentRequest); err != nil {
			return err
		}
	}
	return nil
}

// entrants are the players of the full draw: every account but the
// deployer, or the deployer alone when it is the only key.
func entrants(set *accounts.Set) []*accounts.Account {
	all := set.All()
	if len(all) > 1 {
		all = all[1:]
	}
	if len(all) > maxEntrants {
		all = all[:maxEntrants]
	}
	return all
}

func checkFullDraw(ctx context.Context, env *Env) error {
	players := entrants(env.Accounts)
	for _, p := range players {
		if _, err := enter(ctx, env, p); err != nil {
			return err
		}
	}

	startTimestamp, err := env.Lottery.LastTimestamp(ctx)
	if err != nil {
		return err
	}
	startBalances := make(map[common.Address]*big.Int, len(players))
	for _, p := range players {
		bal, err := env.Chain.BalanceAt(ctx, p.Address(), nil)
		if err != nil {
			return err
		}
		startBalances[p.Address()] = bal
	}
	fromBlock, err := env.Chain.BlockNumber(ctx)
	if err != nil {
		return err
	}

	if err := advancePastInterval(ctx, env); err != nil {
		return err
	}
	deployer, opts, err := env.deployerOpts(ctx)
	if err != nil {
		return err
	}
	upkeepReceipt, requestID, err := env.Lottery.PerformUpkeep(ctx, opts, nil)
	if err != nil {
		return fmt.Errorf("performUpkeep: %w", err)
	}
	fulfillReceipt, err := env.Coordinator.FulfillRandomWords(ctx, opts, requestID, env.Lottery.Address())
	if err != nil {
		return fmt.Errorf("fulfillRandomWords: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, env.winnerTimeout())
	defer cancel()
	picked, err := env.Lottery.WaitForWinnerPicked(waitCtx, fromBlock)
	if err != nil {
		return err
	}
	env.logger().Info("winner picked", slog.String("winner", picked.Winner.Hex()))

	recent, err := env.Lottery.RecentWinner(ctx)
	if err != nil {
		return err
	}
	if recent != picked.Winner {
		return fmt.Errorf("recent winner = %s, WinnerPicked reported %s", recent.Hex(), picked.Winner.Hex())
	}
	start, ok := startBalances[picked.Winner]
	if !ok {
		return fmt.Errorf("winner %s did not enter", picked.Winner.Hex())
	}
	if err := expectReset(ctx, env, startTimestamp); err != nil {
		return err
	}

	fee, err := env.Lottery.EntranceFee(ctx)
	if err != nil {
		return err
	}
	want := new(big.Int).Mul(fee, big.NewInt(int64(len(players))))
	want.Add(want, start)
	if picked.Winner == deployer.Address() {
		want.Sub(want, gasCost(upkeepReceipt))
		want.Sub(want, gasCost(fulfillReceipt))
	}
	got, err := env.Chain.BalanceAt(ctx, picked.Winner, nil)
	if err != nil {
		return err
	}
	if got.Cmp(want) != 0 {
		return fmt.Errorf("winner balance = %s, want %s", got, want)
	}
	return nil
}

// expectReset checks the lottery state after a draw.
func expectReset(ctx context.Context, env *Env, startTimestamp *big.Int) error {
	players, err := env.Lottery.NumberOfPlayers(ctx)
	if err != nil {
		return err
	}
	if players.Sign() != 0 {
		return fmt.Errorf("players = %s after the draw, want 0", players)
	}
	if _, err := env.Lottery.Player(ctx, 0); err == nil {
		return errors.New("getPlayer(0) succeeded after the draw, want revert")
	}
	if err := expectState(ctx, env, lottery.Open); err != nil {
		return err
	}
	end, err := env.Lottery.LastTimestamp(ctx)
	if err != nil {
		return err
	}
	if end.Cmp(startTimestamp) <= 0 {
		return fmt.Errorf("last timestamp = %s, want after %s", end, startTimestamp)
	}
	return nil
}
