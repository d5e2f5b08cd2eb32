// Package deploy deploys contracts from build artifacts, records them in a
// per-network registry and runs the tagged deployment steps.
package deploy

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/Bidon15/lottoctl/internal/accounts"
	"github.com/Bidon15/lottoctl/internal/artifacts"
	"github.com/Bidon15/lottoctl/internal/chain"
)

// Deployer deploys artifacts and keeps the registry current.
type Deployer struct {
	backend  chain.Backend
	chainID  *big.Int
	store    *artifacts.Store
	registry *Registry
	logger   *slog.Logger

	// Reset forces a fresh deployment even when a matching record exists.
	Reset bool
}

// NewDeployer creates a deployer for chainID.
func NewDeployer(backend chain.Backend, chainID *big.Int, store *artifacts.Store, registry *Registry, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		backend:  backend,
		chainID:  chainID,
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the deployment registry.
func (d *Deployer) Registry() *Registry {
	return d.registry
}

// Store returns the artifact store.
func (d *Deployer) Store() *artifacts.Store {
	return d.store
}

// Options are the parameters of one deployment.
type Options struct {
	From              *accounts.Account
	Args              []interface{}
	WaitConfirmations uint64
}

// Result is the outcome of Deploy.
type Result struct {
	Name    string
	Record  *Record
	Reused  bool
	Receipt *types.Receipt
}

// Deploy deploys the artifact called name with the given constructor
// arguments, waits for confirmations and records it. A recorded deployment
// with the same bytecode and arguments whose code is still on chain is
// reused unless Reset is set.
func (d *Deployer) Deploy(ctx context.Context, name string, opts Options) (*Result, error) {
	if opts.From == nil {
		return nil, fmt.Errorf("deploy %s: no deployer account", name)
	}
	art, err := d.store.Load(name)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	parsed, err := art.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	code, err := art.BytecodeBytes()
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	codeHash, err := art.BytecodeHash()
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	args, err := coerceArgs(parsed, opts.Args)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	argStrings := formatArgs(args)

	if !d.Reset {
		existing, err := d.reusable(ctx, name, codeHash, argStrings)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			d.logger.Info("reusing deployment",
				slog.String("contract", name),
				slog.String("address", existing.Address.Hex()),
			)
			return &Result{Name: name, Record: existing, Reused: true}, nil
		}
	}

	encodedArgs, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: encode constructor: %w", name, err)
	}

	txOpts, err := opts.From.TransactOpts(ctx, d.chainID)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	d.logger.Info("deploying contract",
		slog.String("contract", name),
		slog.String("from", opts.From.Address().Hex()),
		slog.Any("args", argStrings),
	)
	address, tx, _, err := bind.DeployContract(txOpts, parsed, code, d.backend, args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, chain.DecodeRevert(parsed, err))
	}
	d.logger.Info("deployment transaction sent",
		slog.String("contract", name),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.String("address", address.Hex()),
	)

	receipt, err := chain.WaitConfirmations(ctx, d.backend, tx, opts.WaitConfirmations)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	rec := &Record{
		ID:              uuid.New(),
		Address:         address,
		ABI:             art.ABI,
		TransactionHash: tx.Hash(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
		Deployer:        opts.From.Address(),
		Args:            argStrings,
		ConstructorArgs: hex.EncodeToString(encodedArgs),
		BytecodeHash:    codeHash,
		DeployedAt:      time.Now().UTC(),
	}
	if err := d.registry.Save(name, rec); err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	d.logger.Info("contract deployed",
		slog.String("contract", name),
		slog.String("address", address.Hex()),
		slog.Uint64("block", rec.BlockNumber),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return &Result{Name: name, Record: rec, Receipt: receipt}, nil
}

func (d *Deployer) reusable(ctx context.Context, name, codeHash string, args []string) (*Record, error) {
	existing, err := d.registry.Get(name)
	if errors.Is(err, ErrNotDeployed) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	if existing.BytecodeHash != codeHash || !slices.Equal(existing.Args, args) {
		return nil, nil
	}
	onChain, err := d.backend.CodeAt(ctx, existing.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: check existing code: %w", name, err)
	}
	if len(onChain) == 0 {
		// recorded on a chain that was since reset
		return nil, nil
	}
	return existing, nil
}
