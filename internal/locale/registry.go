package locale

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Code identifies a supported country context.
type Code string

const (
	CodeIndia Code = "IN"
	CodeNepal Code = "NP"
)

// DefaultCode is selected whenever nothing better is known.
const DefaultCode = CodeNepal

// Country is an immutable country context. Values are only ever obtained
// from the registry.
type Country struct {
	Code                 Code   `json:"code"`
	Name                 string `json:"name"`
	Flag                 string `json:"flag"`
	CurrencySymbol       string `json:"currency_symbol"`
	CurrencyCode         string `json:"currency_code"`
	PhonePrefix          string `json:"phone_prefix"`
	NationalNumberLength int    `json:"national_number_length"`
	SellerSignup         bool   `json:"seller_signup"`

	symbolSeparator string
}

var registry = []Country{
	{
		Code:                 CodeIndia,
		Name:                 "India",
		Flag:                 "🇮🇳",
		CurrencySymbol:       "₹",
		CurrencyCode:         "INR",
		PhonePrefix:          "+91",
		NationalNumberLength: 10,
		SellerSignup:         true,
	},
	{
		Code:                 CodeNepal,
		Name:                 "Nepal",
		Flag:                 "🇳🇵",
		CurrencySymbol:       "Rs.",
		CurrencyCode:         "NPR",
		PhonePrefix:          "+977",
		NationalNumberLength: 10,
		symbolSeparator:      " ",
	},
}

// Lookup returns the registry entry for code.
func Lookup(code string) (Country, bool) {
	for _, c := range registry {
		if string(c.Code) == code {
			return c, true
		}
	}
	return Country{}, false
}

// MustLookup is Lookup for codes known at compile time.
func MustLookup(code Code) Country {
	c, ok := Lookup(string(code))
	if !ok {
		panic("locale: unknown country code " + string(code))
	}
	return c
}

// All returns the registry in insertion order. The slice is a copy.
func All() []Country {
	out := make([]Country, len(registry))
	copy(out, registry)
	return out
}

// Default returns the fallback context.
func Default() Country {
	return MustLookup(DefaultCode)
}

// IsZero reports whether c was not obtained from the registry.
func (c Country) IsZero() bool {
	return c.Code == ""
}

// FormatAmount renders a price in this context's currency, e.g. "₹2,999" or
// "Rs. 1,250.5".
func (c Country) FormatAmount(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	neg := rounded.IsNegative()
	if neg {
		rounded = rounded.Neg()
	}

	whole := rounded.Truncate(0)
	frac := rounded.Sub(whole)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(c.CurrencySymbol)
	b.WriteString(c.symbolSeparator)
	b.WriteString(groupThousands(whole.String()))
	if !frac.IsZero() {
		// "0.5" -> ".5"
		b.WriteString(strings.TrimPrefix(frac.String(), "0"))
	}
	return b.String()
}

// Discounted applies a whole-percent discount to price.
func Discounted(price decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return price
	}
	off := price.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100))
	return price.Sub(off)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
