package deploy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	return &Record{
		ID:              uuid.New(),
		Address:         common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		ABI:             []byte(`[]`),
		TransactionHash: common.HexToHash("0x01"),
		BlockNumber:     7,
		Deployer:        common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		Args:            []string{"1"},
		ConstructorArgs: "00",
		BytecodeHash:    "0xabc",
		DeployedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRegistry_SaveGet(t *testing.T) {
	r := NewRegistry(t.TempDir(), "sepolia", 11155111)
	rec := testRecord()

	require.NoError(t, r.Save("Lottery", rec))

	got, err := r.Get("Lottery")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Address, got.Address)
	assert.Equal(t, rec.Args, got.Args)
	assert.True(t, rec.DeployedAt.Equal(got.DeployedAt))

	chainID, err := os.ReadFile(filepath.Join(r.Dir(), ".chainId"))
	require.NoError(t, err)
	assert.Equal(t, "11155111", string(chainID))

	_, err = os.Stat(filepath.Join(r.Dir(), "Lottery.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry(t.TempDir(), "sepolia", 11155111)

	_, err := r.Get("Lottery")
	assert.ErrorIs(t, err, ErrNotDeployed)
	assert.Contains(t, err.Error(), "Lottery on sepolia")
}

func TestRegistry_NamesAndClear(t *testing.T) {
	r := NewRegistry(t.TempDir(), "hardhat", 31337)

	names, err := r.Names()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, r.Save("VRFCoordinatorV2Mock", testRecord()))
	require.NoError(t, r.Save("Lottery", testRecord()))

	names, err = r.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"Lottery", "VRFCoordinatorV2Mock"}, names)

	require.NoError(t, r.Clear())
	names, err = r.Names()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRegistry_ChainMismatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, NewRegistry(root, "localhost", 31337).Save("Lottery", testRecord()))

	other := NewRegistry(root, "localhost", 1337)
	_, err := other.Get("Lottery")
	assert.ErrorIs(t, err, ErrChainMismatch)
	assert.ErrorIs(t, other.Save("Lottery", testRecord()), ErrChainMismatch)
	_, err = other.Names()
	assert.ErrorIs(t, err, ErrChainMismatch)

	// clearing releases the directory for the new chain
	require.NoError(t, other.Clear())
	assert.NoError(t, other.Save("Lottery", testRecord()))
}

func TestRegistry_CorruptFiles(t *testing.T) {
	r := NewRegistry(t.TempDir(), "sepolia", 11155111)
	require.NoError(t, os.MkdirAll(r.Dir(), 0755))

	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), "Lottery.json"), []byte("{"), 0644))
	_, err := r.Get("Lottery")
	assert.ErrorContains(t, err, "parse deployment Lottery")

	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), ".chainId"), []byte("abc"), 0644))
	_, err = r.Get("Lottery")
	assert.ErrorContains(t, err, "parse chain id file")
}
