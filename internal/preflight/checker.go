// Package preflight provides pre-deployment validation checks.
package preflight

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/lottoctl/internal/chain"
	"github.com/Bidon15/lottoctl/internal/networks"
)

// DefaultTimeout is the default timeout for RPC calls.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckRPCReachable verifies the RPC endpoint is reachable.
	CheckRPCReachable CheckName = "rpc_reachable"
	// CheckChainIDMatch verifies the node serves the selected network.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckDeployerBalance verifies the deployer has sufficient funds.
	CheckDeployerBalance CheckName = "deployer_balance"
)

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName              `json:"name"`
	Passed  bool                   `json:"passed"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Request contains the parameters for pre-flight checks.
type Request struct {
	Network  *networks.Network
	RPCURL   string
	Deployer common.Address
}

// Report contains the results of all pre-flight checks.
type Report struct {
	OK                 bool          `json:"ok"`
	Network            string        `json:"network"`
	Checks             []CheckResult `json:"checks"`
	DeployerAddress    string        `json:"deployer_address"`
	RequiredFundingETH string        `json:"required_funding_eth"`
	CurrentBalanceETH  string        `json:"current_balance_eth,omitempty"`
}

// Node is the part of a node connection the checks use.
type Node interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// DialFunc opens a node connection.
type DialFunc func(ctx context.Context, url string) (Node, error)

func dialChain(ctx context.Context, url string) (Node, error) {
	client, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Checker performs pre-flight validation checks.
type Checker struct {
	timeout time.Duration
	dial    DialFunc
}

// NewChecker creates a new pre-flight checker.
func NewChecker() *Checker {
	return &Checker{
		timeout: DefaultTimeout,
		dial:    dialChain,
	}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// WithDialer replaces how the checker connects to the node.
func (c *Checker) WithDialer(dial DialFunc) *Checker {
	c.dial = dial
	return c
}

// RunChecks performs all pre-flight checks and returns the results.
// A failed check is reported in the Report, not as an error.
func (c *Checker) RunChecks(ctx context.Context, req *Request) (*Report, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := &Report{
		OK:              true,
		Network:         req.Network.Name,
		Checks:          make([]CheckResult, 0, 3),
		DeployerAddress: req.Deployer.Hex(),
	}

	requiredWei := RequiredFunding(req.Network)
	report.RequiredFundingETH = networks.FormatEther(requiredWei)

	node, reachable := c.checkRPCReachable(rpcCtx, req.RPCURL)
	report.Checks = append(report.Checks, reachable)
	if !reachable.Passed {
		report.OK = false
		return report, nil
	}
	if closer, ok := node.(interface{ Close() }); ok {
		defer closer.Close()
	}

	chainIDResult := c.checkChainIDMatch(rpcCtx, node, req.Network.ChainID)
	report.Checks = append(report.Checks, chainIDResult)
	if !chainIDResult.Passed {
		report.OK = false
	}

	balanceResult := c.checkDeployerBalance(rpcCtx, node, req.Deployer, requiredWei)
	report.Checks = append(report.Checks, balanceResult)
	if !balanceResult.Passed {
		report.OK = false
	}
	if haveETH, ok := balanceResult.Details["have_eth"].(string); ok {
		report.CurrentBalanceETH = haveETH
	}

	return report, nil
}

// Failed returns the checks that did not pass.
func (r *Report) Failed() []CheckResult {
	var failed []CheckResult
	for _, check := range r.Checks {
		if !check.Passed {
			failed = append(failed, check)
		}
	}
	return failed
}

func (c *Checker) validateRequest(req *Request) error {
	if req == nil || req.Network == nil {
		return fmt.Errorf("network is required")
	}
	if req.RPCURL == "" {
		return fmt.Errorf("rpc url is required for %s", req.Network.Name)
	}
	if req.Deployer == (common.Address{}) {
		return fmt.Errorf("deployer address is required")
	}
	return nil
}

func (c *Checker) checkRPCReachable(ctx context.Context, rpcURL string) (Node, CheckResult) {
	result := CheckResult{
		Name: CheckRPCReachable,
	}

	node, err := c.dial(ctx, rpcURL)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to connect to RPC: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return nil, result
	}

	// dialing http endpoints is lazy, so make one call
	if _, err := node.ChainID(ctx); err != nil {
		if closer, ok := node.(interface{ Close() }); ok {
			closer.Close()
		}
		result.Message = fmt.Sprintf("RPC connection failed: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return nil, result
	}

	result.Passed = true
	result.Message = "Connected to RPC successfully"
	return node, result
}

func (c *Checker) checkChainIDMatch(ctx context.Context, node Node, expectedChainID uint64) CheckResult {
	result := CheckResult{
		Name: CheckChainIDMatch,
	}

	actualChainID, err := node.ChainID(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get chain ID: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return result
	}

	if !actualChainID.IsUint64() || actualChainID.Uint64() != expectedChainID {
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %d, got %s", expectedChainID, actualChainID)
		result.Details = map[string]interface{}{
			"expected": expectedChainID,
			"actual":   actualChainID.String(),
		}
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %d confirmed", expectedChainID)
	result.Details = map[string]interface{}{
		"chain_id": expectedChainID,
	}
	return result
}

func (c *Checker) checkDeployerBalance(ctx context.Context, node Node, deployer common.Address, requiredWei *big.Int) CheckResult {
	result := CheckResult{
		Name: CheckDeployerBalance,
	}

	balance, err := node.BalanceAt(ctx, deployer, nil)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get deployer balance: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return result
	}

	haveETH := networks.FormatEther(balance)
	needETH := networks.FormatEther(requiredWei)
	result.Details = map[string]interface{}{
		"have_wei": balance.String(),
		"need_wei": requiredWei.String(),
		"have_eth": haveETH,
		"need_eth": needETH,
	}

	if balance.Cmp(requiredWei) < 0 {
		result.Message = fmt.Sprintf("Insufficient deployer balance: have %s ETH, need %s ETH", haveETH, needETH)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Deployer has sufficient balance: %s ETH", haveETH)
	return result
}

// RequiredFunding returns the minimum deployer balance for a network.
// Development chains need nothing.
func RequiredFunding(n *networks.Network) *big.Int {
	switch {
	case n.IsDevelopment():
		return new(big.Int)
	case n.ChainID == 1:
		// 0.5 ETH
		return new(big.Int).Mul(big.NewInt(5), big.NewInt(1e17))
	default:
		// 0.05 ETH
		return new(big.Int).Mul(big.NewInt(5), big.NewInt(1e16))
	}
}

// GetNetworkName returns a human-readable name for a chain ID.
func GetNetworkName(chainID uint64) string {
	switch chainID {
	case 1:
		return "Ethereum Mainnet"
	case 11155111:
		return "Sepolia"
	case 5:
		return "Goerli (deprecated)"
	case 31337:
		return "Local dev node"
	default:
		return fmt.Sprintf("Chain %d", chainID)
	}
}
