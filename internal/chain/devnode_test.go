package chain

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEVM serves the evm_* namespace of a dev node.
type fakeEVM struct {
	clock     uint64
	blocks    uint64
	snapshots map[string][2]uint64
}

func (e *fakeEVM) IncreaseTime(seconds uint64) (uint64, error) {
	e.clock += seconds
	return e.clock, nil
}

func (e *fakeEVM) Mine() (string, error) {
	e.blocks++
	return "0x0", nil
}

func (e *fakeEVM) Snapshot() string {
	id := fmt.Sprintf("0x%x", len(e.snapshots)+1)
	e.snapshots[id] = [2]uint64{e.clock, e.blocks}
	return id
}

func (e *fakeEVM) Revert(id string) bool {
	snap, ok := e.snapshots[id]
	if !ok {
		return false
	}
	delete(e.snapshots, id)
	e.clock, e.blocks = snap[0], snap[1]
	return true
}

func newFakeDevNode(t *testing.T) (*DevNode, *fakeEVM) {
	t.Helper()
	evm := &fakeEVM{snapshots: make(map[string][2]uint64)}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("evm", evm))
	t.Cleanup(server.Stop)

	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)
	return NewDevNode(client), evm
}

func TestDevNode_IncreaseTimeAndMine(t *testing.T) {
	node, evm := newFakeDevNode(t)
	ctx := context.Background()

	require.NoError(t, node.IncreaseTime(ctx, 30))
	require.NoError(t, node.Mine(ctx))
	assert.Equal(t, uint64(30), evm.clock)
	assert.Equal(t, uint64(1), evm.blocks)
}

func TestDevNode_AdvancePast(t *testing.T) {
	node, evm := newFakeDevNode(t)

	require.NoError(t, node.AdvancePast(context.Background(), 30))
	assert.Equal(t, uint64(31), evm.clock)
	assert.Equal(t, uint64(1), evm.blocks)
}

func TestDevNode_SnapshotRevert(t *testing.T) {
	node, evm := newFakeDevNode(t)
	ctx := context.Background()

	id, err := node.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, node.AdvancePast(ctx, 100))

	require.NoError(t, node.Revert(ctx, id))
	assert.Equal(t, uint64(0), evm.clock)
	assert.Equal(t, uint64(0), evm.blocks)

	err = node.Revert(ctx, id)
	assert.Error(t, err, "snapshots are single use")
}

func TestDevNode_UnsupportedNode(t *testing.T) {
	server := rpc.NewServer()
	t.Cleanup(server.Stop)
	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)

	err := NewDevNode(client).Mine(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evm_mine")
}
