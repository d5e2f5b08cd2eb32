package chain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertError is a decoded contract revert.
type RevertError struct {
	// Name is the custom error name, empty for revert strings and panics.
	Name string
	// Args are the custom error arguments in declaration order.
	Args []interface{}
	// Reason is the Error(string) message or the panic description.
	Reason string
	// Data is the raw revert payload.
	Data []byte
}

func (e *RevertError) Error() string {
	switch {
	case e.Name != "":
		if len(e.Args) == 0 {
			return fmt.Sprintf("execution reverted: %s()", e.Name)
		}
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = fmt.Sprint(a)
		}
		return fmt.Sprintf("execution reverted: %s(%s)", e.Name, strings.Join(args, ", "))
	case e.Reason != "":
		return "execution reverted: " + e.Reason
	default:
		return "execution reverted"
	}
}

// RevertData extracts the revert payload carried by a JSON-RPC error.
func RevertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		b, err := hexutil.Decode(data)
		if err != nil {
			return nil, false
		}
		return b, true
	case []byte:
		return data, true
	default:
		return nil, false
	}
}

// DecodeRevert turns err into a *RevertError when it carries revert data,
// matching custom errors against contractABI. Other errors are returned as is.
func DecodeRevert(contractABI abi.ABI, err error) error {
	if err == nil {
		return nil
	}
	data, ok := RevertData(err)
	if !ok {
		return err
	}
	revert := &RevertError{Data: data}
	if len(data) < 4 {
		return revert
	}
	for name, custom := range contractABI.Errors {
		if !bytes.Equal(custom.ID[:4], data[:4]) {
			continue
		}
		revert.Name = name
		args, unpackErr := custom.Inputs.Unpack(data[4:])
		if unpackErr == nil {
			revert.Args = args
		}
		return revert
	}
	if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
		revert.Reason = reason
	}
	return revert
}
