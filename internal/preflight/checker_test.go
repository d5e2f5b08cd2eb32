package preflight

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/lottoctl/internal/chain/chaintest"
	"github.com/Bidon15/lottoctl/internal/networks"
)

func simNetwork(name string) *networks.Network {
	return &networks.Network{
		ChainID:          chaintest.ChainID.Uint64(),
		Name:             name,
		EntranceFee:      "0.01",
		KeyHash:          "0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc",
		VRFCoordinatorV2: "0x8103B0A8A00be2DDC778e6e7eaa21791Cd364625",
		SubscriptionID:   1,
		CallbackGasLimit: 500000,
		Interval:         30,
	}
}

// unclosable hides Close so the checker leaves the shared simulated client open.
type unclosable struct{ Node }

func simDialer(sim *chaintest.Sim) DialFunc {
	return func(ctx context.Context, url string) (Node, error) {
		return unclosable{sim.Client}, nil
	}
}

func TestNewChecker(t *testing.T) {
	checker := NewChecker()
	assert.NotNil(t, checker)
	assert.Equal(t, DefaultTimeout, checker.timeout)
	assert.NotNil(t, checker.dial)
}

func TestChecker_WithTimeout(t *testing.T) {
	checker := NewChecker().WithTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, checker.timeout)
}

func TestChecker_ValidateRequest(t *testing.T) {
	checker := NewChecker()
	deployer := common.HexToAddress("0x1234567890123456789012345678901234567890")

	tests := []struct {
		name    string
		req     *Request
		wantErr string
	}{
		{
			name:    "valid request",
			req:     &Request{Network: simNetwork("sim"), RPCURL: "http://127.0.0.1:8545", Deployer: deployer},
			wantErr: "",
		},
		{
			name:    "missing network",
			req:     &Request{RPCURL: "http://127.0.0.1:8545", Deployer: deployer},
			wantErr: "network is required",
		},
		{
			name:    "missing rpc url",
			req:     &Request{Network: simNetwork("sim"), Deployer: deployer},
			wantErr: "rpc url is required",
		},
		{
			name:    "missing deployer",
			req:     &Request{Network: simNetwork("sim"), RPCURL: "http://127.0.0.1:8545"},
			wantErr: "deployer address is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checker.validateRequest(tc.req)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestChecker_RunChecks_AllPass(t *testing.T) {
	sim := chaintest.New(t, 1)
	deployer, err := sim.Accounts.Deployer()
	require.NoError(t, err)

	report, err := NewChecker().WithDialer(simDialer(sim)).RunChecks(context.Background(), &Request{
		Network:  simNetwork("sim"),
		RPCURL:   "sim://",
		Deployer: deployer.Address(),
	})
	require.NoError(t, err)

	assert.True(t, report.OK)
	require.Len(t, report.Checks, 3)
	assert.Empty(t, report.Failed())
	assert.Equal(t, "0.05", report.RequiredFundingETH)
	assert.Equal(t, "100", report.CurrentBalanceETH)
}

func TestChecker_RunChecks_ChainIDMismatch(t *testing.T) {
	sim := chaintest.New(t, 1)
	deployer, err := sim.Accounts.Deployer()
	require.NoError(t, err)

	network := simNetwork("sim")
	network.ChainID = 11155111

	report, err := NewChecker().WithDialer(simDialer(sim)).RunChecks(context.Background(), &Request{
		Network:  network,
		RPCURL:   "sim://",
		Deployer: deployer.Address(),
	})
	require.NoError(t, err)

	assert.False(t, report.OK)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, CheckChainIDMatch, failed[0].Name)
	assert.Contains(t, failed[0].Message, "expected 11155111, got 1337")
}

func TestChecker_RunChecks_InsufficientBalance(t *testing.T) {
	sim := chaintest.New(t, 1)
	unfunded := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	report, err := NewChecker().WithDialer(simDialer(sim)).RunChecks(context.Background(), &Request{
		Network:  simNetwork("sim"),
		RPCURL:   "sim://",
		Deployer: unfunded,
	})
	require.NoError(t, err)

	assert.False(t, report.OK)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, CheckDeployerBalance, failed[0].Name)
	assert.Equal(t, "0", failed[0].Details["have_eth"])
}

func TestChecker_RunChecks_DevelopmentSkipsFunding(t *testing.T) {
	sim := chaintest.New(t, 1)
	unfunded := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	report, err := NewChecker().WithDialer(simDialer(sim)).RunChecks(context.Background(), &Request{
		Network:  simNetwork("localhost"),
		RPCURL:   "sim://",
		Deployer: unfunded,
	})
	require.NoError(t, err)

	assert.True(t, report.OK)
	assert.Equal(t, "0", report.RequiredFundingETH)
}

func TestChecker_RunChecks_Unreachable(t *testing.T) {
	dial := func(ctx context.Context, url string) (Node, error) {
		return nil, errors.New("connection refused")
	}

	report, err := NewChecker().WithDialer(dial).RunChecks(context.Background(), &Request{
		Network:  simNetwork("sim"),
		RPCURL:   "http://127.0.0.1:1",
		Deployer: common.HexToAddress("0x1234567890123456789012345678901234567890"),
	})
	require.NoError(t, err)

	assert.False(t, report.OK)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, CheckRPCReachable, report.Checks[0].Name)
	assert.Contains(t, report.Checks[0].Message, "connection refused")
}

func TestRequiredFunding(t *testing.T) {
	tests := []struct {
		name    string
		network *networks.Network
		want    string
	}{
		{name: "mainnet", network: &networks.Network{ChainID: 1, Name: "mainnet"}, want: "500000000000000000"},
		{name: "sepolia", network: &networks.Network{ChainID: 11155111, Name: "sepolia"}, want: "50000000000000000"},
		{name: "localhost", network: &networks.Network{ChainID: 31337, Name: "localhost"}, want: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			want, ok := new(big.Int).SetString(tc.want, 10)
			require.True(t, ok)
			assert.Equal(t, 0, RequiredFunding(tc.network).Cmp(want))
		})
	}
}

func TestGetNetworkName(t *testing.T) {
	tests := []struct {
		chainID  uint64
		expected string
	}{
		{1, "Ethereum Mainnet"},
		{11155111, "Sepolia"},
		{5, "Goerli (deprecated)"},
		{31337, "Local dev node"},
		{999999, "Chain 999999"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, GetNetworkName(tc.chainID))
		})
	}
}
