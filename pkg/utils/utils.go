package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseUnitDecimals is the number of decimal places between the smallest unit
// and the display unit.
const BaseUnitDecimals = 18

// UnitSuffix is appended to every formatted balance.
const UnitSuffix = " KAI"

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortAddress renders 0x1234...abcd for long addresses.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

// ParseUnits parses a decimal integer string of smallest units and scales it
// down by decimals. The result is exact.
func ParseUnits(raw string, decimals int32) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid integer amount %q", raw)
	}
	return decimal.NewFromBigInt(n, -decimals), nil
}

// FormatUnits renders raw (an integer count of smallest units) in display
// units with grouped integer digits, trailing fractional zeros removed and
// suffix appended. Empty input yields empty output.
func FormatUnits(raw string, decimals int32, suffix string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	d, err := ParseUnits(raw, decimals)
	if err != nil {
		return "", err
	}
	return AddCommas(d.String()) + suffix, nil
}

// FormatBalance formats a raw balance in the smallest unit as KAI.
// Invalid input renders as an empty string.
func FormatBalance(raw string) string {
	s, err := FormatUnits(raw, BaseUnitDecimals, UnitSuffix)
	if err != nil {
		return ""
	}
	return s
}

func FormatFloat(f float64, decimals int) string {
	return AddCommas(fmt.Sprintf("%.*f", decimals, f))
}
