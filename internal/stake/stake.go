// Package stake computes counter-stake requirements and converts on-chain
// integers to and from their human display form. All arithmetic is exact:
// big.Int for wire amounts, shopspring/decimal for display values.
package stake

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bridgewatch/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultCoefficient is the counter-stake ratio in percent.
const DefaultCoefficient = 150

// DisplayPrecision is the number of decimals shown to users.
const DisplayPrecision = 6

// maxDecimals keeps 10^decimals inside the uint256 range.
const maxDecimals = 77

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNegativeAmount    = errors.New("negative amount")
	ErrInvalidDecimals   = errors.New("invalid token decimals")
	ErrInvalidMultiplier = errors.New("invalid display multiplier")
	ErrClaimClosed       = errors.New("claim is closed for challenges")
	ErrInvalidStake      = errors.New("invalid claim stake")
	ErrInvalidOutcome    = errors.New("invalid claim outcome")
)

var hundred = big.NewInt(100)

// Calculator computes required stakes for a given coefficient (percent).
// A zero Coefficient means DefaultCoefficient.
type Calculator struct {
	Coefficient uint64
}

// Required returns floor(S * coef / 100) + 1. The +1 keeps the increment
// positive when S is zero. A nil stake counts as zero.
func (c Calculator) Required(leading *big.Int) *big.Int {
	coef := c.Coefficient
	if coef == 0 {
		coef = DefaultCoefficient
	}
	required := new(big.Int)
	if leading != nil {
		required.Mul(leading, new(big.Int).SetUint64(coef))
		required.Quo(required, hundred)
	}
	return required.Add(required, big.NewInt(1))
}

// RequiredStake applies the default coefficient.
func RequiredStake(leading *big.Int) *big.Int {
	return Calculator{}.Required(leading)
}

// Challenge describes what it takes to flip a claim's current outcome.
type Challenge struct {
	Outcome   domain.Outcome `json:"outcome"`
	Leading   *big.Int       `json:"leading_stake"`
	Required  *big.Int       `json:"required_stake"`
	Staked    *big.Int       `json:"already_staked"`
	Remaining *big.Int       `json:"remaining"`
}

// ChallengeQuote prices a challenge against the claim's current outcome.
// Finished, withdrawn or expired claims return ErrClaimClosed. A stake or
// outcome that failed to decode is never read as zero: the quote is refused
// with ErrInvalidStake or ErrInvalidOutcome. An absent stake counts as zero.
func (c Calculator) ChallengeQuote(claim domain.Claim, now time.Time) (Challenge, error) {
	if claim.Finished || claim.Withdrawn {
		return Challenge{}, fmt.Errorf("claim %s: %w", claim.ClaimNum, ErrClaimClosed)
	}
	if claim.ExpiryTS > 0 && now.Unix() >= claim.ExpiryTS {
		return Challenge{}, fmt.Errorf("claim %s expired at %d: %w", claim.ClaimNum, claim.ExpiryTS, ErrClaimClosed)
	}
	for _, field := range []string{domain.FieldYesStake, domain.FieldNoStake} {
		if claim.FieldInvalid(field) {
			return Challenge{}, fmt.Errorf("claim %s %s: %w", claim.ClaimNum, field, ErrInvalidStake)
		}
	}
	if claim.FieldInvalid(domain.FieldCurrentOutcome) ||
		(claim.CurrentOutcome != domain.OutcomeYes && claim.CurrentOutcome != domain.OutcomeNo) {
		return Challenge{}, fmt.Errorf("claim %s outcome %q: %w", claim.ClaimNum, claim.CurrentOutcome, ErrInvalidOutcome)
	}

	leading := claim.StakeOn(claim.CurrentOutcome)
	outcome := claim.CurrentOutcome.Opposite()
	staked := claim.StakeOn(outcome)
	required := c.Required(leading)

	remaining := new(big.Int).Sub(required, staked)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return Challenge{
		Outcome:   outcome,
		Leading:   leading,
		Required:  required,
		Staked:    staked,
		Remaining: remaining,
	}, nil
}

// Quotation is a required stake together with its display string.
type Quotation struct {
	Required *big.Int `json:"required_stake"`
	Display  string   `json:"display"`
}

// Quote computes the required stake over leading and formats it for display.
// A nil multiplier means the token has none.
func (c Calculator) Quote(leading *big.Int, decimals uint8, multiplier *decimal.Decimal) (Quotation, error) {
	if leading != nil && leading.Sign() < 0 {
		return Quotation{}, ErrNegativeAmount
	}
	required := c.Required(leading)
	display, err := FormatDisplay(required, decimals, multiplier)
	if err != nil {
		return Quotation{}, err
	}
	return Quotation{Required: required, Display: display}, nil
}

// Quote uses the default coefficient.
func Quote(leading *big.Int, decimals uint8, multiplier *decimal.Decimal) (Quotation, error) {
	return Calculator{}.Quote(leading, decimals, multiplier)
}

// FormatDisplay scales an on-chain integer by the token decimals, applies the
// display multiplier and rounds to DisplayPrecision with trailing zeros trimmed.
func FormatDisplay(amount *big.Int, decimals uint8, multiplier *decimal.Decimal) (string, error) {
	if amount == nil {
		return "", ErrInvalidAmount
	}
	if amount.Sign() < 0 {
		return "", ErrNegativeAmount
	}
	if decimals > maxDecimals {
		return "", fmt.Errorf("%d: %w", decimals, ErrInvalidDecimals)
	}
	value := decimal.NewFromBigInt(amount, -int32(decimals))
	if multiplier != nil {
		if multiplier.Sign() <= 0 {
			return "", ErrInvalidMultiplier
		}
		value = value.Mul(*multiplier)
	}
	return value.Round(DisplayPrecision).String(), nil
}

// ParseDisplay is the inverse of FormatDisplay. The value is divided by the
// multiplier and re-rounded to the token decimals before it is shifted into a
// wire integer.
func ParseDisplay(input string, decimals uint8, multiplier *decimal.Decimal) (*big.Int, error) {
	if decimals > maxDecimals {
		return nil, fmt.Errorf("%d: %w", decimals, ErrInvalidDecimals)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", input, ErrInvalidAmount)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%q: %w", input, ErrNegativeAmount)
	}
	places := int32(decimals)
	if multiplier != nil {
		if multiplier.Sign() <= 0 {
			return nil, ErrInvalidMultiplier
		}
		value = value.DivRound(*multiplier, places)
	}
	return value.Round(places).Shift(places).BigInt(), nil
}

// ParseMultiplier reads an optional multiplier; an empty string means none.
func ParseMultiplier(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	m, err := decimal.NewFromString(raw)
	if err != nil || m.Sign() <= 0 {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidMultiplier)
	}
	return &m, nil
}
