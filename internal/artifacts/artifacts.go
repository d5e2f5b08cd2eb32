// Package artifacts loads compiled contract artifacts produced by Hardhat or Foundry.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNotFound      = errors.New("artifacts: artifact not found")
	ErrEmptyBytecode = errors.New("artifacts: empty bytecode")
)

// ContractArtifact represents a compiled Solidity contract with ABI and bytecode.
type ContractArtifact struct {
	ContractName     string          `json:"contractName,omitempty"`
	SourceName       string          `json:"sourceName,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         Bytecode        `json:"bytecode"`
	DeployedBytecode Bytecode        `json:"deployedBytecode,omitempty"`

	// Path is the file the artifact was read from.
	Path string `json:"-"`
}

// Bytecode holds hex bytecode. Hardhat writes a plain string, Foundry an
// object with an "object" field; both decode here.
type Bytecode struct {
	Object string `json:"object"`
}

// UnmarshalJSON accepts both artifact layouts.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.Object)
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode bytecode: %w", err)
	}
	b.Object = obj.Object
	return nil
}

// ParsedABI parses the artifact ABI.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	if len(a.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("%s: missing abi", a.name())
	}
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%s: parse abi: %w", a.name(), err)
	}
	return parsed, nil
}

// BytecodeBytes returns the creation bytecode.
func (a *ContractArtifact) BytecodeBytes() ([]byte, error) {
	code := strings.TrimSpace(a.Bytecode.Object)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBytecode, a.name())
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	if strings.Contains(code, "__") {
		return nil, fmt.Errorf("%s: bytecode has unlinked library placeholders", a.name())
	}
	decoded, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("%s: decode bytecode: %w", a.name(), err)
	}
	return decoded, nil
}

// BytecodeHash is the keccak256 of the creation bytecode, used to detect
// changed artifacts between deployments.
func (a *ContractArtifact) BytecodeHash() (string, error) {
	code, err := a.BytecodeBytes()
	if err != nil {
		return "", err
	}
	return crypto.Keccak256Hash(code).Hex(), nil
}

// FullyQualifiedName returns "source.sol:Contract" when the source is known.
func (a *ContractArtifact) FullyQualifiedName() string {
	if a.SourceName == "" {
		return a.name()
	}
	return a.SourceName + ":" + a.name()
}

func (a *ContractArtifact) name() string {
	if a.ContractName != "" {
		return a.ContractName
	}
	if a.Path != "" {
		return strings.TrimSuffix(filepath.Base(a.Path), ".json")
	}
	return "contract"
}

// Parse decodes an artifact from JSON.
func Parse(data []byte) (*ContractArtifact, error) {
	var artifact ContractArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	return &artifact, nil
}

// LoadFile reads a single artifact file.
func LoadFile(path string) (*ContractArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	artifact, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	artifact.Path = path
	if artifact.ContractName == "" {
		artifact.ContractName = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return artifact, nil
}

// Store finds artifacts by contract name under a build output directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir (Hardhat "artifacts" or Foundry "out").
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load finds <name>.json anywhere below the store root, skipping debug files
// and build-info.
func (s *Store) Load(name string) (*ContractArtifact, error) {
	direct := filepath.Join(s.dir, name+".json")
	if _, err := os.Stat(direct); err == nil {
		return LoadFile(direct)
	}

	var found string
	errStop := errors.New("stop")
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name+".json" {
			found = path
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.dir)
		}
		return nil, fmt.Errorf("search artifacts: %w", err)
	}
	if found == "" {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.dir)
	}
	return LoadFile(found)
}
