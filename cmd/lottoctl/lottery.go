package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bidon15/lottoctl/internal/networks"
)

var (
	lotteryAddressFlag string
	enterValue         string
	enterAccount       int
	waitFromBlock      uint64
	waitTimeout        time.Duration
)

var lotteryCmd = &cobra.Command{
	Use:   "lottery",
	Short: "Operate a deployed lottery",
	Long: `Read and drive the lottery deployed on the selected network.

The contract address comes from the deployment registry unless --address is set.`,
}

var lotteryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lottery state",
	RunE:  runLotteryStatus,
}

var lotteryEnterCmd = &cobra.Command{
	Use:   "enter",
	Short: "Enter the lottery",
	Long: `Enter the lottery, paying the entrance fee unless --value is set.

Examples:
  lottoctl lottery enter
  lottoctl lottery enter --account 1 --value 0.02`,
	RunE: runLotteryEnter,
}

var lotteryUpkeepCmd = &cobra.Command{
	Use:   "upkeep",
	Short: "Check or perform upkeep",
}

var lotteryUpkeepCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether upkeep is needed",
	RunE:  runLotteryUpkeepCheck,
}

var lotteryUpkeepPerformCmd = &cobra.Command{
	Use:   "perform",
	Short: "Perform upkeep and request a random winner",
	RunE:  runLotteryUpkeepPerform,
}

var lotteryPlayersCmd = &cobra.Command{
	Use:   "players",
	Short: "List current players",
	RunE:  runLotteryPlayers,
}

var lotteryWaitWinnerCmd = &cobra.Command{
	Use:   "wait-winner",
	Short: "Wait for the next WinnerPicked event",
	Long: `Poll for a WinnerPicked event, starting at --from-block (default: the
current block), until one is seen or --timeout passes.`,
	RunE: runLotteryWaitWinner,
}

func init() {
	lotteryCmd.PersistentFlags().StringVar(&lotteryAddressFlag, "address", "", "lottery address (default: from the deployment registry)")

	lotteryEnterCmd.Flags().StringVar(&enterValue, "value", "", "amount in ETH (default: the entrance fee)")
	lotteryEnterCmd.Flags().IntVar(&enterAccount, "account", 0, "index of the signing account")

	lotteryWaitWinnerCmd.Flags().Uint64Var(&waitFromBlock, "from-block", 0, "first block to search (default: current block)")
	lotteryWaitWinnerCmd.Flags().DurationVar(&waitTimeout, "timeout", 10*time.Minute, "how long to wait")

	lotteryUpkeepCmd.AddCommand(lotteryUpkeepCheckCmd)
	lotteryUpkeepCmd.AddCommand(lotteryUpkeepPerformCmd)
	lotteryCmd.AddCommand(lotteryStatusCmd)
	lotteryCmd.AddCommand(lotteryEnterCmd)
	lotteryCmd.AddCommand(lotteryUpkeepCmd)
	lotteryCmd.AddCommand(lotteryPlayersCmd)
	lotteryCmd.AddCommand(lotteryWaitWinnerCmd)
	rootCmd.AddCommand(lotteryCmd)
}

type lotteryStatus struct {
	Address         string `json:"address"`
	Network         string `json:"network"`
	State           string `json:"state"`
	EntranceFeeETH  string `json:"entrance_fee_eth"`
	Interval        string `json:"interval"`
	Players         string `json:"players"`
	LastTimestamp   string `json:"last_timestamp"`
	RecentWinner    string `json:"recent_winner"`
	BalanceETH      string `json:"balance_eth"`
	UpkeepNeeded    bool   `json:"upkeep_needed"`
	NextUpkeepAfter string `json:"next_upkeep_after,omitempty"`
}

func runLotteryStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.lottery(lotteryAddressFlag)
	if err != nil {
		return err
	}

	fee, err := l.EntranceFee(ctx)
	if err != nil {
		return err
	}
	state, err := l.State(ctx)
	if err != nil {
		return err
	}
	interval, err := l.Interval(ctx)
	if err != nil {
		return err
	}
	players, err := l.NumberOfPlayers(ctx)
	if err != nil {
		return err
	}
	last, err := l.LastTimestamp(ctx)
	if err != nil {
		return err
	}
	winner, err := l.RecentWinner(ctx)
	if err != nil {
		return err
	}
	balance, err := s.client.BalanceAt(ctx, l.Address(), nil)
	if err != nil {
		return err
	}
	needed, _, err := l.CheckUpkeep(ctx, nil)
	if err != nil {
		return err
	}

	status := lotteryStatus{
		Address:        l.Address().Hex(),
		Network:        s.network.Name,
		State:          state.String(),
		EntranceFeeETH: networks.FormatEther(fee),
		Interval:       (time.Duration(interval.Int64()) * time.Second).String(),
		Players:        players.String(),
		LastTimestamp:  time.Unix(last.Int64(), 0).UTC().Format(time.RFC3339),
		RecentWinner:   winner.Hex(),
		BalanceETH:     networks.FormatEther(balance),
		UpkeepNeeded:   needed,
	}
	next := time.Unix(new(big.Int).Add(last, interval).Int64(), 0).UTC()
	status.NextUpkeepAfter = next.Format(time.RFC3339)

	if jsonOut {
		return printJSON(status)
	}

	fmt.Printf("Lottery:         %s (%s)\n", status.Address, status.Network)
	fmt.Printf("State:           %s\n", status.State)
	fmt.Printf("Entrance Fee:    %s ETH\n", status.EntranceFeeETH)
	fmt.Printf("Interval:        %s\n", status.Interval)
	fmt.Printf("Players:         %s\n", status.Players)
	fmt.Printf("Balance:         %s ETH\n", status.BalanceETH)
	fmt.Printf("Last Draw:       %s\n", status.LastTimestamp)
	fmt.Printf("Recent Winner:   %s\n", status.RecentWinner)
	fmt.Printf("Upkeep Needed:   %t (interval ends %s)\n", status.UpkeepNeeded, status.NextUpkeepAfter)
	return nil
}

func runLotteryEnter(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.lottery(lotteryAddressFlag)
	if err != nil {
		return err
	}

	var value *big.Int
	if enterValue != "" {
		value, err = networks.ParseEther(enterValue)
		if err != nil {
			return fmt.Errorf("--value: %w", err)
		}
	} else if value, err = l.EntranceFee(ctx); err != nil {
		return err
	}

	acct, err := s.accounts.At(enterAccount)
	if err != nil {
		return err
	}
	opts, err := acct.TransactOpts(ctx, s.chainID())
	if err != nil {
		return err
	}
	receipt, err := l.Enter(ctx, opts, value)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"player":    acct.Address().Hex(),
			"value_eth": networks.FormatEther(value),
			"tx_hash":   receipt.TxHash.Hex(),
			"block":     receipt.BlockNumber.Uint64(),
		})
	}
	fmt.Printf("%s Entered as %s with %s ETH\n", colorGreen("✓"), acct.Address().Hex(), networks.FormatEther(value))
	fmt.Printf("  Tx:    %s\n", receipt.TxHash.Hex())
	fmt.Printf("  Block: %d\n", receipt.BlockNumber.Uint64())
	return nil
}

func runLotteryUpkeepCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.lottery(lotteryAddressFlag)
	if err != nil {
		return err
	}

	needed, _, err := l.CheckUpkeep(ctx, nil)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(map[string]bool{"upkeep_needed": needed})
	}
	fmt.Printf("Upkeep needed: %t\n", needed)
	return nil
}

func runLotteryUpkeepPerform(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.lottery(lotteryAddressFlag)
	if err != nil {
		return err
	}

	deployer, err := s.accounts.Deployer()
	if err != nil {
		return err
	}
	opts, err := deployer.TransactOpts(ctx, s.chainID())
	if err != nil {
		return err
	}
	receipt, requestID, err := l.PerformUpkeep(ctx, opts, nil)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"request_id": requestID.String(),
			"tx_hash":    receipt.TxHash.Hex(),
			"block":      receipt.BlockNumber.Uint64(),
		})
	}
	fmt.Printf("%s Upkeep performed, VRF request %s\n", colorGreen("✓"), requestID)
	fmt.Printf("  Tx: %s\n", receipt.TxHash.Hex())
	return nil
}

func runLotteryPlayers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.lottery(lotteryAddressFlag)
	if err != nil {
		return err
	}

	players, err := l.Players(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		out := make([]string, len(players))
		for i, p := range players {
			out[i] = p.Hex()
		}
		return printJSON(out)
	}
	if len(players) == 0 {
		fmt.Println("No players")
		return nil
	}

	w := newTable()
	printTableHeader(w, "#", "PLAYER")
	for i, p := range players {
		fmt.Fprintf(w, "%d\t%s\n", i, p.Hex())
	}
	return w.Flush()
}

func runLotteryWaitWinner(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.lottery(lotteryAddressFlag)
	if err != nil {
		return err
	}

	from := waitFromBlock
	if from == 0 {
		if from, err = s.client.BlockNumber(ctx); err != nil {
			return err
		}
	}
	if !jsonOut {
		fmt.Printf("Waiting up to %s for WinnerPicked from block %d...\n", waitTimeout, from)
	}

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	picked, err := l.WaitForWinnerPicked(waitCtx, from)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"winner":  picked.Winner.Hex(),
			"block":   picked.Raw.BlockNumber,
			"tx_hash": picked.Raw.TxHash.Hex(),
		})
	}
	fmt.Printf("%s Winner picked: %s (block %d)\n", colorGreen("✓"), picked.Winner.Hex(), picked.Raw.BlockNumber)
	return nil
}
