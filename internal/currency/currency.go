// Package currency formats Franc CFA amounts.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Symbol = "FCFA"
	Code   = "XAF"
)

// FormatDecimal renders d rounded to a whole franc with space-separated
// thousands, e.g. "5 000 FCFA".
func FormatDecimal(d decimal.Decimal, withSymbol bool) string {
	out := group(d.Round(0).String())
	if withSymbol {
		out += " " + Symbol
	}
	return out
}

// FormatInt is FormatDecimal for whole amounts.
func FormatInt(amount int64, withSymbol bool) string {
	return FormatDecimal(decimal.NewFromInt(amount), withSymbol)
}

func group(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}
