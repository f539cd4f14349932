package money

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// JSONAmount renders a currency amount as a quoted JSON string at the fixed
// currency scale. Default decimal marshalling trims trailing zeros, so a
// stored 6172.50 would otherwise cross the boundary as "6172.5".
func JSONAmount(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(strconv.Quote(d.StringFixed(CurrencyScale)))
}

// JSONRate renders a percentage, exchange rate or per-unit price with at most
// RateScale fractional digits.
func JSONRate(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(strconv.Quote(d.Round(RateScale).String()))
}
