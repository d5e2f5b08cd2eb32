package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	ErrNotDeployed   = errors.New("deploy: no deployment recorded")
	ErrChainMismatch = errors.New("deploy: registry belongs to another chain")
)

// Record is a deployed contract, stored as deployments/<network>/<Name>.json.
type Record struct {
	ID              uuid.UUID       `json:"id"`
	Address         common.Address  `json:"address"`
	ABI             json.RawMessage `json:"abi"`
	TransactionHash common.Hash     `json:"transactionHash"`
	BlockNumber     uint64          `json:"blockNumber"`
	Deployer        common.Address  `json:"deployer"`
	Args            []string        `json:"args"`
	// ConstructorArgs is the ABI encoded constructor input, hex without 0x.
	ConstructorArgs string    `json:"constructorArgs"`
	BytecodeHash    string    `json:"bytecodeHash"`
	DeployedAt      time.Time `json:"deployedAt"`
}

// Registry stores deployment records of one network.
type Registry struct {
	root    string
	network string
	chainID uint64
}

// NewRegistry returns the registry for network under root.
func NewRegistry(root, network string, chainID uint64) *Registry {
	return &Registry{root: root, network: network, chainID: chainID}
}

// Dir returns the network directory.
func (r *Registry) Dir() string {
	return filepath.Join(r.root, r.network)
}

func (r *Registry) path(name string) string {
	return filepath.Join(r.Dir(), name+".json")
}

func (r *Registry) chainIDPath() string {
	return filepath.Join(r.Dir(), ".chainId")
}

// Get returns the record for name.
func (r *Registry) Get(name string) (*Record, error) {
	if err := r.checkChainID(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s on %s", ErrNotDeployed, name, r.network)
		}
		return nil, fmt.Errorf("read deployment %s: %w", name, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse deployment %s: %w", name, err)
	}
	return &rec, nil
}

// Save writes the record for name, claiming the directory for the chain id.
func (r *Registry) Save(name string, rec *Record) error {
	if err := r.checkChainID(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.Dir(), 0755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	if err := os.WriteFile(r.chainIDPath(), []byte(strconv.FormatUint(r.chainID, 10)), 0644); err != nil {
		return fmt.Errorf("write chain id: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode deployment %s: %w", name, err)
	}
	tmp := r.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write deployment %s: %w", name, err)
	}
	if err := os.Rename(tmp, r.path(name)); err != nil {
		return fmt.Errorf("write deployment %s: %w", name, err)
	}
	return nil
}

// Names lists the recorded contract names.
func (r *Registry) Names() ([]string, error) {
	if err := r.checkChainID(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.Dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Clear removes every record of the network.
func (r *Registry) Clear() error {
	if err := os.RemoveAll(r.Dir()); err != nil {
		return fmt.Errorf("clear deployments: %w", err)
	}
	return nil
}

func (r *Registry) checkChainID() error {
	data, err := os.ReadFile(r.chainIDPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	got, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("parse chain id file: %w", err)
	}
	if got != r.chainID {
		return fmt.Errorf("%w: %s holds chain %d, expected %d", ErrChainMismatch, r.Dir(), got, r.chainID)
	}
	return nil
}
