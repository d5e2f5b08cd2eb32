package suite

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
)

// StagingChecks returns the live-network checks.
func StagingChecks() []Check {
	return []Check{
		{Name: "live keepers and VRF pick the entrant as winner", Run: checkLiveDraw},
	}
}

func checkLiveDraw(ctx context.Context, env *Env) error {
	deployer, err := env.Accounts.Deployer()
	if err != nil {
		return err
	}
	startTimestamp, err := env.Lottery.LastTimestamp(ctx)
	if err != nil {
		return err
	}
	fee, err := env.Lottery.EntranceFee(ctx)
	if err != nil {
		return err
	}

	receipt, err := enter(ctx, env, deployer)
	if err != nil {
		return err
	}
	fromBlock, err := entryBlock(ctx, env, receipt.BlockNumber)
	if err != nil {
		return err
	}
	// measured after entering, so the entry gas is already spent
	start, err := env.Chain.BalanceAt(ctx, deployer.Address(), nil)
	if err != nil {
		return err
	}

	timeout := env.winnerTimeout()
	env.logger().Info("waiting for WinnerPicked",
		slog.String("lottery", env.Lottery.Address().Hex()),
		slog.Uint64("from_block", fromBlock),
		slog.Duration("timeout", timeout),
	)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	picked, err := env.Lottery.WaitForWinnerPicked(waitCtx, fromBlock)
	if err != nil {
		return err
	}

	recent, err := env.Lottery.RecentWinner(ctx)
	if err != nil {
		return err
	}
	if recent != deployer.Address() || picked.Winner != deployer.Address() {
		return fmt.Errorf("winner = %s, want the entrant %s", recent.Hex(), deployer.Address().Hex())
	}
	if err := expectReset(ctx, env, startTimestamp); err != nil {
		return err
	}

	got, err := env.Chain.BalanceAt(ctx, deployer.Address(), nil)
	if err != nil {
		return err
	}
	want := new(big.Int).Add(start, fee)
	if got.Cmp(want) != 0 {
		return fmt.Errorf("winner balance = %s, want %s", got, want)
	}
	return nil
}

func entryBlock(ctx context.Context, env *Env, mined *big.Int) (uint64, error) {
	if mined != nil {
		return mined.Uint64(), nil
	}
	return env.Chain.BlockNumber(ctx)
}
