// Package vrfmock is a client for VRFCoordinatorV2Mock, the coordinator used
// on development chains.
package vrfmock

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/lottoctl/internal/chain"
)

// ContractName is the artifact and registry name of the mock.
const ContractName = "VRFCoordinatorV2Mock"

var (
	// BaseFee is the flat LINK premium per request (0.25 LINK).
	BaseFee = big.NewInt(250000000000000000)
	// GasPriceLink is the LINK per gas charged for callbacks.
	GasPriceLink = big.NewInt(1000000000)
	// SubscriptionFundAmount is what development deployments fund a new
	// subscription with (1 LINK).
	SubscriptionFundAmount = big.NewInt(1000000000000000000)
)

var (
	ErrNonexistentRequest  = errors.New("vrfmock: nonexistent request")
	ErrInvalidSubscription = errors.New("vrfmock: invalid subscription")
	ErrInvalidConsumer     = errors.New("vrfmock: invalid consumer")
	ErrInsufficientBalance = errors.New("vrfmock: insufficient balance")
	ErrMustBeSubOwner      = errors.New("vrfmock: must be subscription owner")
	ErrEventNotFound       = errors.New("vrfmock: event not found")
)

//go:embed vrfmock.abi.json
var abiJSON string

// ParsedABI returns the mock coordinator ABI.
func ParsedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}

// ConstructorArgs returns the deployment arguments: base fee and gas price link.
func ConstructorArgs() []interface{} {
	return []interface{}{new(big.Int).Set(BaseFee), new(big.Int).Set(GasPriceLink)}
}

// Subscription is the state returned by getSubscription.
type Subscription struct {
	Balance   *big.Int
	ReqCount  uint64
	Owner     common.Address
	Consumers []common.Address
}

// SubscriptionCreated is emitted by createSubscription.
type SubscriptionCreated struct {
	SubId uint64
	Owner common.Address
	Raw   types.Log
}

// Coordinator talks to a deployed VRFCoordinatorV2Mock.
type Coordinator struct {
	contract *chain.Contract
	abi      abi.ABI
}

// New binds the mock deployed at address.
func New(address common.Address, backend chain.Backend, opts ...chain.ContractOption) (*Coordinator, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse vrf mock abi: %w", err)
	}
	c := &Coordinator{
		contract: chain.NewContract(address, parsed, backend, opts...),
		abi:      parsed,
	}
	c.contract.Decode = c.decode
	return c, nil
}

// Address returns the contract address.
func (c *Coordinator) Address() common.Address {
	return c.contract.Address()
}

// CreateSubscription creates a subscription owned by the sender and returns
// its id from the SubscriptionCreated event.
func (c *Coordinator) CreateSubscription(ctx context.Context, opts *bind.TransactOpts) (uint64, *types.Receipt, error) {
	receipt, err := c.contract.Transact(ctx, opts, "createSubscription")
	if err != nil {
		return 0, nil, err
	}
	logs := c.contract.ReceiptLogs(receipt, "SubscriptionCreated")
	if len(logs) == 0 {
		return 0, receipt, fmt.Errorf("%w: SubscriptionCreated in %s", ErrEventNotFound, receipt.TxHash.Hex())
	}
	ev := SubscriptionCreated{Raw: logs[0]}
	if err := c.contract.UnpackLog(&ev, "SubscriptionCreated", logs[0]); err != nil {
		return 0, receipt, err
	}
	return ev.SubId, receipt, nil
}

// FundSubscription credits amount juels of LINK to a subscription.
func (c *Coordinator) FundSubscription(ctx context.Context, opts *bind.TransactOpts, subID uint64, amount *big.Int) (*types.Receipt, error) {
	return c.contract.Transact(ctx, opts, "fundSubscription", subID, amount)
}

// AddConsumer allows consumer to request randomness from a subscription.
func (c *Coordinator) AddConsumer(ctx context.Context, opts *bind.TransactOpts, subID uint64, consumer common.Address) (*types.Receipt, error) {
	return c.contract.Transact(ctx, opts, "addConsumer", subID, consumer)
}

// ConsumerIsAdded reports whether consumer belongs to a subscription.
func (c *Coordinator) ConsumerIsAdded(ctx context.Context, subID uint64, consumer common.Address) (bool, error) {
	out, err := c.contract.Call(ctx, "consumerIsAdded", subID, consumer)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// FulfillRandomWords answers requestID by calling back consumer, the way the
// real coordinator would.
func (c *Coordinator) FulfillRandomWords(ctx context.Context, opts *bind.TransactOpts, requestID *big.Int, consumer common.Address) (*types.Receipt, error) {
	return c.contract.Transact(ctx, opts, "fulfillRandomWords", requestID, consumer)
}

// GetSubscription returns the state of a subscription.
func (c *Coordinator) GetSubscription(ctx context.Context, subID uint64) (*Subscription, error) {
	out, err := c.contract.Call(ctx, "getSubscription", subID)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		Balance:   *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		ReqCount:  *abi.ConvertType(out[1], new(uint64)).(*uint64),
		Owner:     *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
		Consumers: *abi.ConvertType(out[3], new([]common.Address)).(*[]common.Address),
	}, nil
}

func (c *Coordinator) decode(err error) error {
	decoded := chain.DecodeRevert(c.abi, err)
	var revert *chain.RevertError
	if !errors.As(decoded, &revert) {
		return err
	}
	switch {
	case revert.Reason == "nonexistent request":
		return fmt.Errorf("%w: %w", ErrNonexistentRequest, revert)
	case revert.Name == "InvalidSubscription":
		return fmt.Errorf("%w: %w", ErrInvalidSubscription, revert)
	case revert.Name == "InvalidConsumer":
		return fmt.Errorf("%w: %w", ErrInvalidConsumer, revert)
	case revert.Name == "InsufficientBalance":
		return fmt.Errorf("%w: %w", ErrInsufficientBalance, revert)
	case revert.Name == "MustBeSubOwner":
		return fmt.Errorf("%w: %w", ErrMustBeSubOwner, revert)
	}
	return revert
}
