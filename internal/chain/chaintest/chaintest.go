// Package chaintest provides an in-process simulated chain for tests.
package chaintest

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"github.com/Bidon15/lottoctl/internal/accounts"
)

// ChainID is the chain id of the simulated backend.
var ChainID = big.NewInt(1337)

// StartingBalance is the balance of every funded test account (100 ETH).
var StartingBalance = new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))

// Sim is a simulated chain with funded accounts.
type Sim struct {
	Backend  *simulated.Backend
	Client   simulated.Client
	Accounts *accounts.Set
}

// New starts a simulated chain with n funded accounts.
func New(t *testing.T, n int) *Sim {
	t.Helper()

	alloc := types.GenesisAlloc{}
	var accts []*accounts.Account
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		acct := accounts.FromKey(key)
		alloc[acct.Address()] = types.Account{Balance: new(big.Int).Set(StartingBalance)}
		accts = append(accts, acct)
	}

	backend := simulated.NewBackend(alloc)
	t.Cleanup(func() { _ = backend.Close() })

	return &Sim{
		Backend:  backend,
		Client:   backend.Client(),
		Accounts: accounts.NewSet(accts...),
	}
}

// AutoCommit mines a block every interval until the test ends, so code that
// waits for receipts makes progress.
func (s *Sim) AutoCommit(t *testing.T, interval time.Duration) {
	t.Helper()
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.Backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
}

// DeployStub deploys StopContractCode from the deployer account, mines it and
// returns its address. Call it before AutoCommit.
func (s *Sim) DeployStub(t *testing.T) common.Address {
	t.Helper()
	deployer, err := s.Accounts.Deployer()
	if err != nil {
		t.Fatalf("deployer: %v", err)
	}
	opts, err := deployer.TransactOpts(context.Background(), ChainID)
	if err != nil {
		t.Fatalf("transact opts: %v", err)
	}
	addr, _, _, err := bind.DeployContract(opts, abi.ABI{}, StopContractCode, s.Client)
	if err != nil {
		t.Fatalf("deploy stub: %v", err)
	}
	s.Backend.Commit()
	return addr
}

// StopContractCode is creation code that deploys a one-byte STOP contract.
// Constructor arguments appended to it are ignored.
var StopContractCode = []byte{
	0x60, 0x01, // PUSH1 1     size
	0x60, 0x0c, // PUSH1 12    offset of runtime code
	0x60, 0x00, // PUSH1 0     memory destination
	0x39,       // CODECOPY
	0x60, 0x01, // PUSH1 1     size
	0x60, 0x00, // PUSH1 0     offset
	0xf3,       // RETURN
	0x00,       // runtime: STOP
}

// RevertErr mimics the JSON-RPC error a node returns for a reverted call
// carrying data.
func RevertErr(data []byte) error {
	return revertErr(hexutil.Encode(data))
}

type revertErr string

func (e revertErr) Error() string          { return "execution reverted" }
func (e revertErr) ErrorCode() int         { return 3 }
func (e revertErr) ErrorData() interface{} { return string(e) }
