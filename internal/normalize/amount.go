package normalize

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

var (
	ErrEmptyAmount    = errors.New("empty amount")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
)

// ParseAmount parses an unsigned 256-bit quantity given in decimal or 0x-hex form.
func ParseAmount(raw string) (*big.Int, error) {
	value, err := ParseSigned(raw)
	if err != nil {
		return nil, err
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, raw)
	}
	return value, nil
}

// ParseSigned parses a signed 256-bit quantity given in decimal or 0x-hex form.
func ParseSigned(raw string) (*big.Int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, ErrEmptyAmount
	}
	negative := strings.HasPrefix(value, "-")
	if negative {
		value = value[1:]
		if value == "" || strings.HasPrefix(value, "-") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
		}
	}
	parsed, ok := math.ParseBig256(value)
	if !ok || parsed == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
	if negative {
		parsed.Neg(parsed)
	}
	return parsed, nil
}

// AmountsMatch compares two amounts exactly. Each side may be a *big.Int, a
// big.Int, a decimal or 0x-hex string, or a Go integer.
func AmountsMatch(a, b any) Check {
	left, check := toBig(a)
	if !check.OK {
		return check
	}
	right, check := toBig(b)
	if !check.OK {
		return check
	}
	if left.Cmp(right) != 0 {
		return fail(ReasonDifferentValues)
	}
	return pass(ReasonExactMatch)
}

func toBig(v any) (*big.Int, Check) {
	switch value := v.(type) {
	case nil:
		return nil, fail(ReasonMissingValue)
	case *big.Int:
		if value == nil {
			return nil, fail(ReasonConversionError)
		}
		return value, pass("")
	case big.Int:
		return &value, pass("")
	case string:
		parsed, err := ParseSigned(value)
		if err != nil {
			if errors.Is(err, ErrEmptyAmount) {
				return nil, fail(ReasonMissingValue)
			}
			return nil, fail(ReasonConversionError)
		}
		return parsed, pass("")
	case int:
		return big.NewInt(int64(value)), pass("")
	case int64:
		return big.NewInt(value), pass("")
	case uint64:
		return new(big.Int).SetUint64(value), pass("")
	default:
		return nil, fail(ReasonConversionError)
	}
}
