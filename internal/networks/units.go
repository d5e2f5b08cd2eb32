package networks

import (
	"fmt"
	"math/big"
	"strings"
)

const etherDecimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(etherDecimals), nil)

// ParseEther converts a decimal ether amount ("0.01") to wei.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty ether amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative ether amount %q", s)
	}
	if strings.ContainsAny(s, "+_") {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > etherDecimals {
		return nil, fmt.Errorf("ether amount %q has more than %d decimals", s, etherDecimals)
	}

	wei, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", etherDecimals-len(frac)), 10)
	if !ok {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	return wei, nil
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(wei)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	q, r := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	digits := r.String()
	frac := strings.Repeat("0", etherDecimals-len(digits)) + digits
	return sign + q.String() + "." + strings.TrimRight(frac, "0")
}
