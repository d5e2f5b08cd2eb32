// Package suite runs the lottery's behavioural checks against a deployed
// contract: the unit suite on development chains and the staging suite on
// live networks.
package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/lottoctl/internal/accounts"
	"github.com/Bidon15/lottoctl/internal/contracts/lottery"
	"github.com/Bidon15/lottoctl/internal/networks"
)

// DefaultWinnerTimeout bounds the wait for WinnerPicked on live networks.
const DefaultWinnerTimeout = 10 * time.Minute

var (
	ErrWrongNetwork = errors.New("suite: wrong network class")
	ErrMissingEnv   = errors.New("suite: incomplete environment")
)

// Lottery is the contract surface the checks drive. *lottery.Lottery
// implements it.
type Lottery interface {
	Address() common.Address
	Enter(ctx context.Context, opts *bind.TransactOpts, value *big.Int) (*types.Receipt, error)
	CheckUpkeep(ctx context.Context, data []byte) (bool, []byte, error)
	PerformUpkeep(ctx context.Context, opts *bind.TransactOpts, data []byte) (*types.Receipt, *big.Int, error)
	EntranceFee(ctx context.Context) (*big.Int, error)
	State(ctx context.Context) (lottery.State, error)
	Interval(ctx context.Context) (*big.Int, error)
	Player(ctx context.Context, index uint64) (common.Address, error)
	LastTimestamp(ctx context.Context) (*big.Int, error)
	RecentWinner(ctx context.Context) (common.Address, error)
	NumberOfPlayers(ctx context.Context) (*big.Int, error)
	LotteryEnterEvents(receipt *types.Receipt) ([]lottery.LotteryEnter, error)
	WaitForWinnerPicked(ctx context.Context, fromBlock uint64) (*lottery.WinnerPicked, error)
}

// Coordinator fulfils randomness requests; *vrfmock.Coordinator implements it.
type Coordinator interface {
	FulfillRandomWords(ctx context.Context, opts *bind.TransactOpts, requestID *big.Int, consumer common.Address) (*types.Receipt, error)
}

// Node controls the clock and state of a development node; *chain.DevNode
// implements it.
type Node interface {
	IncreaseTime(ctx context.Context, seconds uint64) error
	Mine(ctx context.Context) error
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
}

// Chain reads balances, height and block time.
type Chain interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Env is what the checks run against.
type Env struct {
	Network  *networks.Network
	Lottery  Lottery
	Chain    Chain
	Accounts *accounts.Set

	// Coordinator and Node are required by the unit suite only.
	Coordinator Coordinator
	Node        Node

	// WinnerTimeout bounds the staging wait; zero uses DefaultWinnerTimeout.
	WinnerTimeout time.Duration
	Logger        *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) winnerTimeout() time.Duration {
	if e.WinnerTimeout <= 0 {
		return DefaultWinnerTimeout
	}
	return e.WinnerTimeout
}

func (e *Env) opts(ctx context.Context, acct *accounts.Account) (*bind.TransactOpts, error) {
	return acct.TransactOpts(ctx, new(big.Int).SetUint64(e.Network.ChainID))
}

func (e *Env) deployerOpts(ctx context.Context) (*accounts.Account, *bind.TransactOpts, error) {
	acct, err := e.Accounts.Deployer()
	if err != nil {
		return nil, nil, err
	}
	opts, err := e.opts(ctx, acct)
	if err != nil {
		return nil, nil, err
	}
	return acct, opts, nil
}

// Check is one named behaviour.
type Check struct {
	Name string
	Run  func(ctx context.Context, env *Env) error
}

// Result is the outcome of one check.
type Result struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Report collects the results of a suite run.
type Report struct {
	Suite   string   `json:"suite"`
	Network string   `json:"network"`
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// RunUnit runs the unit checks whose name contains filter (all when empty).
// Each check runs against a snapshot of the node taken before it and
// reverted after it, so checks never see each other's transactions.
func RunUnit(ctx context.Context, env *Env, filter string) (*Report, error) {
	if !env.Network.IsDevelopment() {
		return nil, fmt.Errorf("%w: unit checks run on development networks only, %s is live", ErrWrongNetwork, env.Network.Name)
	}
	if env.Node == nil || env.Coordinator == nil {
		return nil, fmt.Errorf("%w: unit checks need a dev node and the mock coordinator", ErrMissingEnv)
	}
	return run(ctx, env, "unit", filterChecks(UnitChecks(), filter), true)
}

// RunStaging runs the staging checks against a live network.
func RunStaging(ctx context.Context, env *Env, filter string) (*Report, error) {
	if env.Network.IsDevelopment() {
		return nil, fmt.Errorf("%w: staging checks run on live networks only, %s is a development chain", ErrWrongNetwork, env.Network.Name)
	}
	return run(ctx, env, "staging", filterChecks(StagingChecks(), filter), false)
}

func filterChecks(checks []Check, filter string) []Check {
	if filter == "" {
		return checks
	}
	var out []Check
	for _, c := range checks {
		if strings.Contains(c.Name, filter) {
			out = append(out, c)
		}
	}
	return out
}

func run(ctx context.Context, env *Env, name string, checks []Check, isolate bool) (*Report, error) {
	if env.Lottery == nil || env.Chain == nil || env.Accounts == nil {
		return nil, fmt.Errorf("%w: lottery, chain and accounts are required", ErrMissingEnv)
	}
	log := env.logger()
	report := &Report{Suite: name, Network: env.Network.Name}

	for _, check := range checks {
		var snapshot string
		if isolate {
			id, err := env.Node.Snapshot(ctx)
			if err != nil {
				return report, fmt.Errorf("before %q: %w", check.Name, err)
			}
			snapshot = id
		}

		start := time.Now()
		err := check.Run(ctx, env)
		result := Result{Name: check.Name, Passed: err == nil, Duration: time.Since(start), Err: err}
		if err != nil {
			result.Error = err.Error()
			report.Failed++
			log.Warn("check failed", slog.String("check", check.Name), slog.String("error", err.Error()))
		} else {
			report.Passed++
			log.Info("check passed", slog.String("check", check.Name), slog.Duration("duration", result.Duration))
		}
		report.Results = append(report.Results, result)

		if isolate {
			if err := env.Node.Revert(ctx, snapshot); err != nil {
				return report, fmt.Errorf("after %q: %w", check.Name, err)
			}
		}
	}
	return report, nil
}

// expectErr fails unless err matches target.
func expectErr(what string, err, target error) error {
	if err == nil {
		return fmt.Errorf("%s: expected %v, got success", what, target)
	}
	if !errors.Is(err, target) {
		return fmt.Errorf("%s: expected %v, got %w", what, target, err)
	}
	return nil
}

// gasCost is what a receipt's sender paid for gas.
func gasCost(receipt *types.Receipt) *big.Int {
	if receipt == nil || receipt.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
}
