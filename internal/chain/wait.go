package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("chain: transaction reverted")

// ConfirmationPollInterval is how often block height is polled while waiting
// for confirmations.
var ConfirmationPollInterval = time.Second

// WaitConfirmations waits until tx is mined with a successful status and has
// at least confirmations blocks on top of (and including) its own block.
func WaitConfirmations(ctx context.Context, backend Backend, tx *types.Transaction, confirmations uint64) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	if confirmations <= 1 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + confirmations - 1
	ticker := time.NewTicker(ConfirmationPollInterval)
	defer ticker.Stop()
	for {
		head, err := backend.BlockNumber(ctx)
		if err != nil {
			return receipt, fmt.Errorf("get block number: %w", err)
		}
		if head >= target {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-ticker.C:
		}
	}
}
