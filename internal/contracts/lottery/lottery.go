// Package lottery is a typed client for the deployed lottery contract.
package lottery

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/lottoctl/internal/chain"
)

// ContractName is the artifact and registry name of the lottery.
const ContractName = "Lottery"

//go:embed lottery.abi.json
var abiJSON string

// ParsedABI returns the lottery ABI.
func ParsedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}

// State is the lottery state enum.
type State uint8

const (
	Open        State = 0
	Calculating State = 1
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Calculating:
		return "calculating"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// PollInterval is how often WaitForWinnerPicked queries logs.
var PollInterval = 2 * time.Second

// Lottery talks to one deployed lottery contract.
type Lottery struct {
	contract *chain.Contract
	abi      abi.ABI
}

// New binds the lottery deployed at address.
func New(address common.Address, backend chain.Backend, opts ...chain.ContractOption) (*Lottery, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse lottery abi: %w", err)
	}
	l := &Lottery{
		contract: chain.NewContract(address, parsed, backend, opts...),
		abi:      parsed,
	}
	l.contract.Decode = l.decode
	return l, nil
}

// Address returns the contract address.
func (l *Lottery) Address() common.Address {
	return l.contract.Address()
}

// Enter pays value into the lottery and waits for the receipt.
func (l *Lottery) Enter(ctx context.Context, opts *bind.TransactOpts, value *big.Int) (*types.Receipt, error) {
	payable := *opts
	payable.Value = value
	return l.contract.Transact(ctx, &payable, "enterLottery")
}

// CheckUpkeep runs checkUpkeep as a read-only call.
func (l *Lottery) CheckUpkeep(ctx context.Context, data []byte) (bool, []byte, error) {
	if data == nil {
		data = []byte{}
	}
	out, err := l.contract.Call(ctx, "checkUpkeep", data)
	if err != nil {
		return false, nil, err
	}
	needed := *abi.ConvertType(out[0], new(bool)).(*bool)
	performData := *abi.ConvertType(out[1], new([]byte)).(*[]byte)
	return needed, performData, nil
}

// PerformUpkeep triggers the winner request and returns the VRF request id
// from the RequestedLotteryWinner event.
func (l *Lottery) PerformUpkeep(ctx context.Context, opts *bind.TransactOpts, data []byte) (*types.Receipt, *big.Int, error) {
	if data == nil {
		data = []byte{}
	}
	receipt, err := l.contract.Transact(ctx, opts, "performUpkeep", data)
	if err != nil {
		return nil, nil, err
	}
	requests, err := l.RequestedLotteryWinnerEvents(receipt)
	if err != nil {
		return receipt, nil, err
	}
	if len(requests) == 0 {
		return receipt, nil, fmt.Errorf("%w: RequestedLotteryWinner in %s", ErrEventNotFound, receipt.TxHash.Hex())
	}
	return receipt, requests[0].RequestId, nil
}

// EntranceFee returns the fee required to enter.
func (l *Lottery) EntranceFee(ctx context.Context) (*big.Int, error) {
	return l.callBig(ctx, "getEntranceFee")
}

// State returns the current lottery state.
func (l *Lottery) State(ctx context.Context) (State, error) {
	out, err := l.contract.Call(ctx, "getLotteryState")
	if err != nil {
		return 0, err
	}
	return State(*abi.ConvertType(out[0], new(uint8)).(*uint8)), nil
}

// Interval returns the upkeep interval in seconds.
func (l *Lottery) Interval(ctx context.Context) (*big.Int, error) {
	return l.callBig(ctx, "getInterval")
}

// Player returns the entrant at index.
func (l *Lottery) Player(ctx context.Context, index uint64) (common.Address, error) {
	return l.callAddress(ctx, "getPlayer", new(big.Int).SetUint64(index))
}

// LastTimestamp returns the block timestamp of the last draw or deployment.
func (l *Lottery) LastTimestamp(ctx context.Context) (*big.Int, error) {
	return l.callBig(ctx, "getLastTimeStamp")
}

// RecentWinner returns the last winner.
func (l *Lottery) RecentWinner(ctx context.Context) (common.Address, error) {
	return l.callAddress(ctx, "getRecentWinner")
}

// NumberOfPlayers returns how many entrants the current round has.
func (l *Lottery) NumberOfPlayers(ctx context.Context) (*big.Int, error) {
	return l.callBig(ctx, "getNumberOfPlayers")
}

// Players returns every entrant of the current round.
func (l *Lottery) Players(ctx context.Context) ([]common.Address, error) {
	n, err := l.NumberOfPlayers(ctx)
	if err != nil {
		return nil, err
	}
	players := make([]common.Address, 0, n.Uint64())
	for i := uint64(0); i < n.Uint64(); i++ {
		p, err := l.Player(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("player %d: %w", i, err)
		}
		players = append(players, p)
	}
	return players, nil
}

func (l *Lottery) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := l.contract.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (l *Lottery) callAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	out, err := l.contract.Call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
