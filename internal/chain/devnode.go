package chain

import (
	"context"
	"fmt"
)

// RPCCaller is the subset of *rpc.Client used for node-specific methods.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// DevNode drives the evm_* namespace exposed by local development nodes
// (hardhat node, anvil, ganache).
type DevNode struct {
	rpc RPCCaller
}

// NewDevNode wraps an RPC client.
func NewDevNode(c RPCCaller) *DevNode {
	return &DevNode{rpc: c}
}

// IncreaseTime moves the node clock forward.
func (d *DevNode) IncreaseTime(ctx context.Context, seconds uint64) error {
	var ignored interface{}
	if err := d.rpc.CallContext(ctx, &ignored, "evm_increaseTime", seconds); err != nil {
		return fmt.Errorf("evm_increaseTime: %w", err)
	}
	return nil
}

// Mine mines one block.
func (d *DevNode) Mine(ctx context.Context) error {
	var ignored interface{}
	if err := d.rpc.CallContext(ctx, &ignored, "evm_mine"); err != nil {
		return fmt.Errorf("evm_mine: %w", err)
	}
	return nil
}

// AdvancePast moves the clock seconds+1 forward and mines a block so the
// next call observes the new timestamp.
func (d *DevNode) AdvancePast(ctx context.Context, seconds uint64) error {
	if err := d.IncreaseTime(ctx, seconds+1); err != nil {
		return err
	}
	return d.Mine(ctx)
}

// Snapshot records the chain state and returns its id.
func (d *DevNode) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := d.rpc.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot: %w", err)
	}
	return id, nil
}

// Revert restores a snapshot. Snapshots are single use.
func (d *DevNode) Revert(ctx context.Context, id string) error {
	var ok bool
	if err := d.rpc.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return fmt.Errorf("evm_revert: %w", err)
	}
	if !ok {
		return fmt.Errorf("evm_revert: snapshot %s not found", id)
	}
	return nil
}
