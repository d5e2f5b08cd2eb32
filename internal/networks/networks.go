// Package networks holds the per-chain lottery configuration table.
package networks

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var defaultNetworksYAML []byte

// DevelopmentChains are the network names that run against a local dev node
// with a mocked VRF coordinator.
var DevelopmentChains = []string{"hardhat", "localhost"}

// DefaultBlockConfirmations is used when a network does not set block_confirmations.
const DefaultBlockConfirmations = 1

var (
	ErrUnknownNetwork = errors.New("networks: unknown network")
	ErrInvalidNetwork = errors.New("networks: invalid network configuration")
)

// Network is one row of the configuration table.
type Network struct {
	ChainID            uint64   `yaml:"chain_id" json:"chain_id" validate:"required"`
	Name               string   `yaml:"name" json:"name" validate:"required"`
	Aliases            []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	RPCURL             string   `yaml:"rpc_url,omitempty" json:"rpc_url,omitempty"`
	EntranceFee        string   `yaml:"entrance_fee" json:"entrance_fee" validate:"required"`
	KeyHash            string   `yaml:"key_hash" json:"key_hash" validate:"required,len=66,startswith=0x,hexadecimal"`
	VRFCoordinatorV2   string   `yaml:"vrf_coordinator_v2,omitempty" json:"vrf_coordinator_v2,omitempty" validate:"omitempty,eth_addr"`
	SubscriptionID     uint64   `yaml:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	CallbackGasLimit   uint32   `yaml:"callback_gas_limit" json:"callback_gas_limit" validate:"required"`
	Interval           uint64   `yaml:"interval" json:"interval" validate:"required"`
	BlockConfirmations uint64   `yaml:"block_confirmations,omitempty" json:"block_confirmations,omitempty"`
	ExplorerAPIURL     string   `yaml:"explorer_api_url,omitempty" json:"explorer_api_url,omitempty" validate:"omitempty,url"`
}

// IsDevelopment reports whether the network is a local development chain.
func (n *Network) IsDevelopment() bool {
	for _, dev := range DevelopmentChains {
		if n.Name == dev {
			return true
		}
		for _, alias := range n.Aliases {
			if alias == dev {
				return true
			}
		}
	}
	return false
}

// EntranceFeeWei returns the entrance fee in wei.
func (n *Network) EntranceFeeWei() (*big.Int, error) {
	fee, err := ParseEther(n.EntranceFee)
	if err != nil {
		return nil, fmt.Errorf("%s entrance_fee: %w", n.Name, err)
	}
	return fee, nil
}

// KeyHashBytes returns the VRF gas lane as a bytes32.
func (n *Network) KeyHashBytes() [32]byte {
	return common.HexToHash(n.KeyHash)
}

// Coordinator returns the configured VRF coordinator address.
func (n *Network) Coordinator() common.Address {
	return common.HexToAddress(n.VRFCoordinatorV2)
}

// IntervalDuration returns the upkeep interval as a duration.
func (n *Network) IntervalDuration() time.Duration {
	return time.Duration(n.Interval) * time.Second
}

// Confirmations returns the number of block confirmations to wait for.
func (n *Network) Confirmations() uint64 {
	if n.BlockConfirmations == 0 {
		return DefaultBlockConfirmations
	}
	return n.BlockConfirmations
}

var validate = newValidator()

// newValidator reports fields by their YAML key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the fields the deploy step needs.
func (n *Network) Validate() error {
	var problems []string
	if err := validate.Struct(n); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return fmt.Errorf("%w: %s: %v", ErrInvalidNetwork, n.Name, err)
		}
		problems = append(problems, formatFieldErrors(fieldErrors)...)
	}
	if n.EntranceFee != "" {
		if _, err := ParseEther(n.EntranceFee); err != nil {
			problems = append(problems, fmt.Sprintf("entrance_fee: %v", err))
		}
	}
	if !n.IsDevelopment() {
		if n.VRFCoordinatorV2 == "" {
			problems = append(problems, "vrf_coordinator_v2 must be an address on live networks")
		}
		if n.SubscriptionID == 0 {
			problems = append(problems, "subscription_id is required on live networks")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrInvalidNetwork, n.Name, strings.Join(problems, "; "))
	}
	return nil
}

func formatFieldErrors(fieldErrors validator.ValidationErrors) []string {
	out := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		field := fe.Field()
		switch {
		case fe.Tag() == "required":
			out = append(out, field+" is required")
		case field == "key_hash":
			out = append(out, "key_hash must be a 32-byte hex string")
		case fe.Tag() == "eth_addr":
			out = append(out, field+" must be an address")
		case fe.Tag() == "url":
			out = append(out, field+" must be a valid URL")
		default:
			out = append(out, field+" is invalid")
		}
	}
	return out
}

// Table is the network configuration keyed by chain id.
type Table struct {
	byChainID map[uint64]*Network
}

type tableFile struct {
	Networks []*Network `yaml:"networks"`
}

// Default returns the embedded network table.
func Default() (*Table, error) {
	return Parse(defaultNetworksYAML)
}

// Parse builds a table from YAML.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse networks: %w", err)
	}
	t := &Table{byChainID: make(map[uint64]*Network, len(f.Networks))}
	for i, n := range f.Networks {
		if n == nil || n.ChainID == 0 {
			return nil, fmt.Errorf("%w: entry %d has no chain_id", ErrInvalidNetwork, i)
		}
		t.byChainID[n.ChainID] = n
	}
	return t, nil
}

// Load returns the embedded table with the entries of path layered on top.
// An empty path returns the embedded table.
func Load(path string) (*Table, error) {
	t, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return nil, err
	}
	t.Merge(overrides)
	return t, nil
}

// Merge replaces entries of t with the entries of other, by chain id.
func (t *Table) Merge(other *Table) {
	for id, n := range other.byChainID {
		t.byChainID[id] = n
	}
}

// Add inserts or replaces a network.
func (t *Table) Add(n *Network) {
	if t.byChainID == nil {
		t.byChainID = make(map[uint64]*Network)
	}
	t.byChainID[n.ChainID] = n
}

// ByChainID looks a network up by chain id.
func (t *Table) ByChainID(id uint64) (*Network, error) {
	n, ok := t.byChainID[id]
	if !ok {
		return nil, fmt.Errorf("%w: chain id %d", ErrUnknownNetwork, id)
	}
	return n, nil
}

// ByName looks a network up by name or alias.
func (t *Table) ByName(name string) (*Network, error) {
	for _, n := range t.List() {
		if n.Name == name {
			return n, nil
		}
		for _, alias := range n.Aliases {
			if alias == name {
				return n, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}

// Resolve accepts either a network name or a decimal chain id.
func (t *Table) Resolve(nameOrID string) (*Network, error) {
	if id, err := strconv.ParseUint(nameOrID, 10, 64); err == nil {
		return t.ByChainID(id)
	}
	return t.ByName(nameOrID)
}

// List returns all networks ordered by chain id.
func (t *Table) List() []*Network {
	out := make([]*Network, 0, len(t.byChainID))
	for _, n := range t.byChainID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
