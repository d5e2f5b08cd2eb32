package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/lottoctl/internal/accounts"
	"github.com/Bidon15/lottoctl/internal/artifacts"
	"github.com/Bidon15/lottoctl/internal/chain"
	"github.com/Bidon15/lottoctl/internal/contracts/lottery"
	"github.com/Bidon15/lottoctl/internal/contracts/vrfmock"
	"github.com/Bidon15/lottoctl/internal/networks"
	"github.com/Bidon15/lottoctl/internal/verify"
)

// Coordinator is the subscription management a development deployment needs
// from the mock VRF coordinator.
type Coordinator interface {
	CreateSubscription(ctx context.Context, opts *bind.TransactOpts) (uint64, *types.Receipt, error)
	FundSubscription(ctx context.Context, opts *bind.TransactOpts, subID uint64, amount *big.Int) (*types.Receipt, error)
	AddConsumer(ctx context.Context, opts *bind.TransactOpts, subID uint64, consumer common.Address) (*types.Receipt, error)
}

// Verifier submits a deployed contract to a block explorer.
type Verifier interface {
	Verify(ctx context.Context, req *verify.Request) (*verify.Result, error)
}

// Env is what deployment steps run against.
type Env struct {
	Network  *networks.Network
	Accounts *accounts.Set
	Backend  chain.Backend
	Deployer *Deployer
	// Verifier is nil when verification is disabled.
	Verifier Verifier
	Logger   *slog.Logger

	// NewCoordinator binds the mock coordinator; nil uses vrfmock.New.
	NewCoordinator func(address common.Address) (Coordinator, error)
}

func (e *Env) coordinator(address common.Address) (Coordinator, error) {
	if e.NewCoordinator != nil {
		return e.NewCoordinator(address)
	}
	return vrfmock.New(address, e.Backend, chain.WithLogger(e.logger()))
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) deployerOpts(ctx context.Context) (*accounts.Account, *bind.TransactOpts, error) {
	acct, err := e.Accounts.Deployer()
	if err != nil {
		return nil, nil, err
	}
	opts, err := acct.TransactOpts(ctx, new(big.Int).SetUint64(e.Network.ChainID))
	if err != nil {
		return nil, nil, err
	}
	return acct, opts, nil
}

// VerificationEnabled reports whether deployments on n are submitted to the
// explorer: only live networks, and only with an API key.
func VerificationEnabled(n *networks.Network, apiKey string) bool {
	return !n.IsDevelopment() && apiKey != ""
}

// Step is one tagged deployment script.
type Step struct {
	Name string
	Tags []string
	// Skip reports whether the step does not apply to the network.
	Skip func(*Env) bool
	Run  func(ctx context.Context, env *Env) error
}

// HasTag reports whether the step carries any of tags. No tags matches
// every step.
func (s Step) HasTag(tags ...string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range s.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// DefaultSteps returns the lottery deployment in order.
func DefaultSteps() []Step {
	return []Step{
		{
			Name: "00-deploy-mocks",
			Tags: []string{"all", "mocks"},
			Skip: func(env *Env) bool { return !env.Network.IsDevelopment() },
			Run:  deployMocks,
		},
		{
			Name: "01-deploy-lottery",
			Tags: []string{"all", "lottery"},
			Run:  deployLottery,
		},
	}
}

// StepResult reports one step of a run.
type StepResult struct {
	Name     string        `json:"name"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Run executes the steps that carry any of tags, in order, and stops at the
// first failure.
func Run(ctx context.Context, env *Env, steps []Step, tags ...string) ([]StepResult, error) {
	log := env.logger()
	var results []StepResult
	for _, step := range steps {
		if !step.HasTag(tags...) {
			continue
		}
		if step.Skip != nil && step.Skip(env) {
			log.Debug("skipping deployment step",
				slog.String("step", step.Name),
				slog.String("network", env.Network.Name),
			)
			results = append(results, StepResult{Name: step.Name, Skipped: true})
			continue
		}

		log.Info("running deployment step", slog.String("step", step.Name))
		start := time.Now()
		if err := step.Run(ctx, env); err != nil {
			return results, fmt.Errorf("step %s: %w", step.Name, err)
		}
		results = append(results, StepResult{Name: step.Name, Duration: time.Since(start)})
	}
	return results, nil
}

func deployMocks(ctx context.Context, env *Env) error {
	acct, err := env.Accounts.Deployer()
	if err != nil {
		return err
	}
	env.logger().Info("development network detected, deploying mocks",
		slog.String("network", env.Network.Name),
	)
	_, err = env.Deployer.Deploy(ctx, vrfmock.ContractName, Options{
		From:              acct,
		Args:              vrfmock.ConstructorArgs(),
		WaitConfirmations: 1,
	})
	return err
}

func deployLottery(ctx context.Context, env *Env) error {
	n := env.Network
	acct, opts, err := env.deployerOpts(ctx)
	if err != nil {
		return err
	}

	var (
		coordinatorAddr common.Address
		subscriptionID  uint64
		mock            Coordinator
	)
	if n.IsDevelopment() {
		rec, err := env.Deployer.Registry().Get(vrfmock.ContractName)
		if err != nil {
			return fmt.Errorf("mock coordinator: %w", err)
		}
		coordinatorAddr = rec.Address
		mock, err = env.coordinator(coordinatorAddr)
		if err != nil {
			return err
		}
		subscriptionID, _, err = mock.CreateSubscription(ctx, opts)
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		if _, err := mock.FundSubscription(ctx, opts, subscriptionID, vrfmock.SubscriptionFundAmount); err != nil {
			return fmt.Errorf("fund subscription %d: %w", subscriptionID, err)
		}
	} else {
		coordinatorAddr = n.Coordinator()
		subscriptionID = n.SubscriptionID
	}

	fee, err := n.EntranceFeeWei()
	if err != nil {
		return err
	}
	args := []interface{}{
		coordinatorAddr,
		fee,
		n.KeyHashBytes(),
		subscriptionID,
		n.CallbackGasLimit,
		new(big.Int).SetUint64(n.Interval),
	}

	res, err := env.Deployer.Deploy(ctx, lottery.ContractName, Options{
		From:              acct,
		Args:              args,
		WaitConfirmations: n.Confirmations(),
	})
	if err != nil {
		return err
	}

	if mock != nil {
		if _, err := mock.AddConsumer(ctx, opts, subscriptionID, res.Record.Address); err != nil {
			return fmt.Errorf("add consumer: %w", err)
		}
	}

	if env.Verifier != nil && !n.IsDevelopment() {
		env.logger().Info("verifying contract", slog.String("address", res.Record.Address.Hex()))
		if _, err := VerifyRecord(ctx, env.Verifier, env.Deployer.Store(), lottery.ContractName, res.Record); err != nil {
			return err
		}
	}
	return nil
}

// VerifyRecord submits a recorded deployment of the named artifact.
func VerifyRecord(ctx context.Context, v Verifier, store *artifacts.Store, name string, rec *Record) (*verify.Result, error) {
	art, err := store.Load(name)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", name, err)
	}
	req, err := verify.NewRequest(art, rec.Address, rec.ConstructorArgs)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", name, err)
	}
	result, err := v.Verify(ctx, req)
	if err != nil {
		return result, fmt.Errorf("verify %s: %w", name, err)
	}
	return result, nil
}
