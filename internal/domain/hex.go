package domain

import (
	"fmt"
	"strings"
)

const (
	maxFeltHexDigits       = 64
	minPrivateKeyHexDigits = 32
)

// NormalizeAddress lower-cases a 0x-prefixed felt and strips leading zeros
// so that addresses compare equal regardless of padding.
func NormalizeAddress(raw string) (string, error) {
	digits, err := hexDigits(raw, 1)
	if err != nil {
		return "", fmt.Errorf("address %q: %w", raw, ErrInvalidAddress)
	}

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "", fmt.Errorf("address %q is zero: %w", raw, ErrInvalidAddress)
	}

	return "0x" + digits, nil
}

func ValidatePrivateKey(raw string) (string, error) {
	digits, err := hexDigits(raw, minPrivateKeyHexDigits)
	if err != nil {
		return "", ErrInvalidPrivateKey
	}
	if strings.Trim(digits, "0") == "" {
		return "", ErrInvalidPrivateKey
	}

	return "0x" + digits, nil
}

func hexDigits(raw string, minDigits int) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(trimmed, "0x") {
		return "", fmt.Errorf("missing 0x prefix")
	}

	digits := trimmed[2:]
	if len(digits) < minDigits || len(digits) > maxFeltHexDigits {
		return "", fmt.Errorf("expected %d to %d hex digits, got %d", minDigits, maxFeltHexDigits, len(digits))
	}
	for _, r := range digits {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("invalid hex digit %q", r)
		}
	}

	return digits, nil
}
