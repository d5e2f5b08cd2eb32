package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract is a bound contract whose transactions are simulated before they
// are sent, so reverts surface with their data, and then wait for
// confirmations.
type Contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
	backend Backend

	// Confirmations is how many blocks Transact waits for. Zero means one.
	Confirmations uint64
	// Decode maps errors carrying revert data onto package errors.
	Decode func(error) error
	Logger *slog.Logger
}

// ContractOption configures a Contract.
type ContractOption func(*Contract)

// WithConfirmations sets how many confirmations transactions wait for.
func WithConfirmations(n uint64) ContractOption {
	return func(c *Contract) {
		c.Confirmations = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ContractOption {
	return func(c *Contract) {
		c.Logger = logger
	}
}

// NewContract binds address with the parsed ABI.
func NewContract(address common.Address, parsed abi.ABI, backend Backend, opts ...ContractOption) *Contract {
	c := &Contract{
		address:       address,
		abi:           parsed,
		bound:         bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:       backend,
		Confirmations: 1,
		Logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// ABI returns the contract ABI.
func (c *Contract) ABI() abi.ABI {
	return c.abi
}

// Backend returns the node the contract is bound to.
func (c *Contract) Backend() Backend {
	return c.backend
}

func (c *Contract) decode(err error) error {
	if c.Decode == nil {
		return DecodeRevert(c.abi, err)
	}
	return c.Decode(err)
}

// Call invokes a read-only method at the latest block.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, c.decode(err))
	}
	return out, nil
}

// Transact sends method and waits for the receipt.
func (c *Contract) Transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...interface{}) (*types.Receipt, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{From: opts.From, To: &c.address, Value: opts.Value, Data: input}
	if _, err := c.backend.CallContract(ctx, msg, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", method, c.decode(err))
	}

	txOpts := *opts
	txOpts.Context = ctx
	tx, err := c.bound.RawTransact(&txOpts, input)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, c.decode(err))
	}
	c.Logger.Info("transaction sent",
		slog.String("contract", c.address.Hex()),
		slog.String("method", method),
		slog.String("tx_hash", tx.Hash().Hex()),
	)

	receipt, err := WaitConfirmations(ctx, c.backend, tx, c.Confirmations)
	if err != nil {
		return receipt, fmt.Errorf("%s: %w", method, err)
	}
	c.Logger.Debug("transaction confirmed",
		slog.String("method", method),
		slog.Uint64("block", receipt.BlockNumber.Uint64()),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

// UnpackLog decodes log into out, which must be a struct pointer with
// fields named after the event arguments.
func (c *Contract) UnpackLog(out interface{}, event string, log types.Log) error {
	if err := c.bound.UnpackLog(out, event, log); err != nil {
		return fmt.Errorf("unpack %s: %w", event, err)
	}
	return nil
}

// ReceiptLogs returns the logs of event emitted by this contract in receipt.
func (c *Contract) ReceiptLogs(receipt *types.Receipt, event string) []types.Log {
	id := c.abi.Events[event].ID
	var logs []types.Log
	for _, log := range receipt.Logs {
		if log.Address == c.address && len(log.Topics) > 0 && log.Topics[0] == id {
			logs = append(logs, *log)
		}
	}
	return logs
}

// FilterLogs returns the logs of event in [from, to]. A nil to means the
// latest block.
func (c *Contract) FilterLogs(ctx context.Context, event string, from uint64, to *uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events[event].ID}},
	}
	if to != nil {
		query.ToBlock = new(big.Int).SetUint64(*to)
	}
	logs, err := c.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", event, err)
	}
	return logs, nil
}
