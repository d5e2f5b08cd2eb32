package lottery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/lottoctl/internal/chain"
)

// LotteryEnter is emitted for every entry.
type LotteryEnter struct {
	Player common.Address
	Raw    types.Log
}

// RequestedLotteryWinner is emitted by performUpkeep.
type RequestedLotteryWinner struct {
	RequestId *big.Int
	Raw       types.Log
}

// WinnerPicked is emitted once the VRF callback paid the winner.
type WinnerPicked struct {
	Winner common.Address
	Raw    types.Log
}

// LotteryEnterEvents returns the LotteryEnter events in a receipt.
func (l *Lottery) LotteryEnterEvents(receipt *types.Receipt) ([]LotteryEnter, error) {
	return unpackLotteryEnter(l.contract, l.contract.ReceiptLogs(receipt, "LotteryEnter"))
}

// RequestedLotteryWinnerEvents returns the RequestedLotteryWinner events in a receipt.
func (l *Lottery) RequestedLotteryWinnerEvents(receipt *types.Receipt) ([]RequestedLotteryWinner, error) {
	logs := l.contract.ReceiptLogs(receipt, "RequestedLotteryWinner")
	events := make([]RequestedLotteryWinner, 0, len(logs))
	for _, log := range logs {
		ev := RequestedLotteryWinner{Raw: log}
		if err := l.contract.UnpackLog(&ev, "RequestedLotteryWinner", log); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func unpackLotteryEnter(c *chain.Contract, logs []types.Log) ([]LotteryEnter, error) {
	events := make([]LotteryEnter, 0, len(logs))
	for _, log := range logs {
		ev := LotteryEnter{Raw: log}
		if err := c.UnpackLog(&ev, "LotteryEnter", log); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// FilterLotteryEnter returns LotteryEnter events in [from, to]. A nil to
// means the latest block.
func (l *Lottery) FilterLotteryEnter(ctx context.Context, from uint64, to *uint64) ([]LotteryEnter, error) {
	logs, err := l.contract.FilterLogs(ctx, "LotteryEnter", from, to)
	if err != nil {
		return nil, err
	}
	return unpackLotteryEnter(l.contract, logs)
}

// FilterWinnerPicked returns WinnerPicked events in [from, to]. A nil to
// means the latest block.
func (l *Lottery) FilterWinnerPicked(ctx context.Context, from uint64, to *uint64) ([]WinnerPicked, error) {
	logs, err := l.contract.FilterLogs(ctx, "WinnerPicked", from, to)
	if err != nil {
		return nil, err
	}
	events := make([]WinnerPicked, 0, len(logs))
	for _, log := range logs {
		ev := WinnerPicked{Raw: log}
		if err := l.contract.UnpackLog(&ev, "WinnerPicked", log); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// WaitForWinnerPicked polls for the first WinnerPicked event at or after
// fromBlock. It returns when the event is seen or ctx is done, so callers
// bound the wait with a deadline.
func (l *Lottery) WaitForWinnerPicked(ctx context.Context, fromBlock uint64) (*WinnerPicked, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	next := fromBlock
	for {
		head, err := l.contract.Backend().BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("wait for WinnerPicked: %w", err)
		}
		if head >= next {
			events, err := l.FilterWinnerPicked(ctx, next, &head)
			if err != nil {
				return nil, fmt.Errorf("wait for WinnerPicked: %w", err)
			}
			if len(events) > 0 {
				return &events[0], nil
			}
			next = head + 1
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for WinnerPicked since block %d: %w", fromBlock, ctx.Err())
		case <-ticker.C:
		}
	}
}
