package verify

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/lottoctl/internal/artifacts"
)

// Request is one source verification job.
type Request struct {
	Address common.Address
	// ContractName is fully qualified: "contracts/Lottery.sol:Lottery".
	ContractName string
	// CompilerVersion is the long solc version, "v0.8.7+commit.e28d00a7".
	CompilerVersion string
	// SourceCode is the solc standard JSON input.
	SourceCode string
	// ConstructorArgs is the ABI encoded constructor input, hex without 0x.
	ConstructorArgs string
}

func (r *Request) validate() error {
	var problems []string
	if r.Address == (common.Address{}) {
		problems = append(problems, "address is required")
	}
	if r.ContractName == "" {
		problems = append(problems, "contract name is required")
	}
	if r.CompilerVersion == "" {
		problems = append(problems, "compiler version is required")
	}
	if r.SourceCode == "" {
		problems = append(problems, "source code is required")
	}
	if len(problems) > 0 {
		return errors.New("verify: invalid request: " + strings.Join(problems, "; "))
	}
	return nil
}

// EncodeConstructorArgs ABI encodes args against the constructor of parsed.
func EncodeConstructorArgs(parsed abi.ABI, args ...interface{}) (string, error) {
	packed, err := parsed.Pack("", args...)
	if err != nil {
		return "", fmt.Errorf("encode constructor args: %w", err)
	}
	return hex.EncodeToString(packed), nil
}

// NewRequest builds a job for a deployed artifact from its build info.
// encodedArgs is the hex constructor input without 0x.
func NewRequest(art *artifacts.ContractArtifact, address common.Address, encodedArgs string) (*Request, error) {
	info, err := art.BuildInfo()
	if err != nil {
		return nil, err
	}
	return &Request{
		Address:         address,
		ContractName:    art.FullyQualifiedName(),
		CompilerVersion: info.CompilerVersion(),
		SourceCode:      string(info.Input),
		ConstructorArgs: strings.TrimPrefix(encodedArgs, "0x"),
	}, nil
}
