package deploy

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// coerceArgs converts args to the Go types go-ethereum packs for the
// constructor inputs of parsed, so callers can pass *big.Int, plain integers
// or strings regardless of the declared widths.
func coerceArgs(parsed abi.ABI, args []interface{}) ([]interface{}, error) {
	inputs := parsed.Constructor.Inputs
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("constructor takes %d arguments, got %d", len(inputs), len(args))
	}
	out := make([]interface{}, len(args))
	for i, input := range inputs {
		v, err := coerce(input.Type, args[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, v interface{}) (interface{}, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return fitInt(t, n)
	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return a, nil
		case string:
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("invalid address %q", a)
			}
			return common.HexToAddress(a), nil
		}
	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	case abi.BytesTy:
		return toBytes(v)
	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}
	default:
		// arrays, tuples and the rest go to the packer as given
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T", v)
}

func toBig(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case string:
		b, ok := new(big.Int).SetString(n, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n)
		}
		return b, nil
	}
	return nil, fmt.Errorf("cannot use %T as integer", v)
}

// inRange reports whether n fits an integer of the given width:
// [-2^(size-1), 2^(size-1)-1] when signed, [0, 2^size-1] otherwise.
func inRange(n *big.Int, size int, signed bool) bool {
	if !signed {
		return n.Sign() >= 0 && n.BitLen() <= size
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(size-1))
	min := new(big.Int).Neg(limit)
	max := limit.Sub(limit, big.NewInt(1))
	return n.Cmp(min) >= 0 && n.Cmp(max) <= 0
}

// fitInt range checks n and returns the native type for widths up to 64
// bits, *big.Int above.
func fitInt(t abi.Type, n *big.Int) (interface{}, error) {
	signed := t.T == abi.IntTy
	if !signed && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", n)
	}
	if !inRange(n, t.Size, signed) {
		return nil, fmt.Errorf("value %s overflows %s", n, t.String())
	}
	if t.Size > 64 {
		return n, nil
	}
	if signed {
		switch t.Size {
		case 8:
			return int8(n.Int64()), nil
		case 16:
			return int16(n.Int64()), nil
		case 32:
			return int32(n.Int64()), nil
		case 64:
			return n.Int64(), nil
		}
	} else {
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
	}
	// odd widths such as uint24 are packed from *big.Int
	return n, nil
}

func toBytes(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case [32]byte:
		return b[:], nil
	case common.Hash:
		return b.Bytes(), nil
	case string:
		decoded, err := hexutil.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", b, err)
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("cannot use %T as bytes", v)
}

// formatArg renders an argument for the registry.
func formatArg(v interface{}) string {
	switch a := v.(type) {
	case common.Address:
		return a.Hex()
	case *big.Int:
		return a.String()
	case [32]byte:
		return hexutil.Encode(a[:])
	case []byte:
		return hexutil.Encode(a)
	case string:
		return a
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return hexutil.Encode(b)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func formatArgs(args []interface{}) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = formatArg(a)
	}
	return out
}
