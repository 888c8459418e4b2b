package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point scale of STRK and the vault share token.
const TokenDecimals = 18

var (
	u128Mask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	u256Max  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", raw, ErrInvalidAmount)
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("amount %q is negative: %w", raw, ErrInvalidAmount)
	}

	return amount, nil
}

// ToChainUnits scales a token amount to its integer on-chain representation,
// truncating anything beyond 18 fractional digits, rendered in base 10.
func ToChainUnits(amount decimal.Decimal) (string, error) {
	units, err := ChainUnitsInt(amount)
	if err != nil {
		return "", err
	}
	return units.String(), nil
}

func ChainUnitsInt(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative: %w", amount, ErrInvalidAmount)
	}

	units := amount.Shift(TokenDecimals).Truncate(0).BigInt()
	if units.Cmp(u256Max) > 0 {
		return nil, fmt.Errorf("amount %s overflows u256: %w", amount, ErrInvalidAmount)
	}

	return units, nil
}

// FromChainUnits parses an unsigned integer given as 0x-hex or base-10 and
// scales it down by 10^18.
func FromChainUnits(raw string) (decimal.Decimal, error) {
	value, err := ParseUint(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return FromChainInt(value), nil
}

func FromChainInt(value *big.Int) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -TokenDecimals)
}

func ParseUint(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	base := 10
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
		base = 16
		if trimmed == "" {
			trimmed = "0"
		}
	}

	value, ok := new(big.Int).SetString(trimmed, base)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("parse unsigned integer %q: %w", raw, ErrInvalidAmount)
	}

	return value, nil
}

// SplitU256 returns the (low, high) 128-bit limbs Cairo uses for u256.
func SplitU256(value *big.Int) (*big.Int, *big.Int, error) {
	if value == nil || value.Sign() < 0 || value.Cmp(u256Max) > 0 {
		return nil, nil, fmt.Errorf("value out of u256 range: %w", ErrInvalidAmount)
	}

	low := new(big.Int).And(value, u128Mask)
	high := new(big.Int).Rsh(value, 128)
	return low, high, nil
}

func JoinU256(low, high *big.Int) *big.Int {
	out := new(big.Int).Lsh(high, 128)
	return out.Or(out, low)
}

// U256Calldata encodes value as two hex felts, low limb first.
func U256Calldata(value *big.Int) ([]string, error) {
	low, high, err := SplitU256(value)
	if err != nil {
		return nil, err
	}
	return []string{HexFelt(low), HexFelt(high)}, nil
}

func HexFelt(value *big.Int) string {
	return "0x" + value.Text(16)
}

func FormatAmount(amount decimal.Decimal) string {
	return amount.String()
}
