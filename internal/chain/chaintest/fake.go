package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// FakeContract answers eth_call for one contract address from canned
// outputs and reverts. Transactions, receipts and everything else go to the
// embedded client, so sends against a stub contract still get mined.
type FakeContract struct {
	simulated.Client

	Address common.Address
	ABI     abi.ABI

	// FilterLogsFunc replaces FilterLogs when set.
	FilterLogsFunc func(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	// BlockNumberFunc replaces BlockNumber when set.
	BlockNumberFunc func(ctx context.Context) (uint64, error)

	mu      sync.Mutex
	outputs map[string][]interface{}
	reverts map[string]error
	calls   map[string]int
}

// NewFakeContract wraps client for the contract at address.
func NewFakeContract(client simulated.Client, address common.Address, contractABI abi.ABI) *FakeContract {
	return &FakeContract{
		Client:  client,
		Address: address,
		ABI:     contractABI,
		outputs: make(map[string][]interface{}),
		reverts: make(map[string]error),
		calls:   make(map[string]int),
	}
}

// Returns sets the values method returns.
func (f *FakeContract) Returns(method string, values ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reverts, method)
	f.outputs[method] = values
}

// Reverts makes calls to method fail with err.
func (f *FakeContract) Reverts(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverts[method] = err
}

// Calls returns how many times method was called.
func (f *FakeContract) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// RevertData builds the payload of the named custom error.
func (f *FakeContract) RevertData(name string, args ...interface{}) []byte {
	custom, ok := f.ABI.Errors[name]
	if !ok {
		panic(fmt.Sprintf("chaintest: no error %s in abi", name))
	}
	packed, err := custom.Inputs.Pack(args...)
	if err != nil {
		panic(err)
	}
	return append(append([]byte{}, custom.ID[:4]...), packed...)
}

func (f *FakeContract) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if msg.To == nil || *msg.To != f.Address || len(msg.Data) < 4 {
		return f.Client.CallContract(ctx, msg, block)
	}
	method, err := f.ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method.Name]++
	if err, ok := f.reverts[method.Name]; ok {
		return nil, err
	}
	values, ok := f.outputs[method.Name]
	if !ok {
		if len(method.Outputs) > 0 {
			return nil, fmt.Errorf("chaintest: no output set for %s", method.Name)
		}
		return nil, nil
	}
	return method.Outputs.Pack(values...)
}

func (f *FakeContract) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if f.FilterLogsFunc != nil {
		return f.FilterLogsFunc(ctx, q)
	}
	return f.Client.FilterLogs(ctx, q)
}

func (f *FakeContract) BlockNumber(ctx context.Context) (uint64, error) {
	if f.BlockNumberFunc != nil {
		return f.BlockNumberFunc(ctx)
	}
	return f.Client.BlockNumber(ctx)
}

// ReasonData builds an Error(string) revert payload.
func ReasonData(reason string) []byte {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)
}
