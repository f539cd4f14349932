// Package landedcost converts a foreign-currency supplier invoice into a fully
// taxed, fully loaded domestic cost. The five-tax cascade mirrors the Brazilian
// import-duty dependency chain: II on CIF, IPI on CIF plus II, PIS and COFINS on
// CIF alone, and ICMS grossed up on a base that includes itself.
package landedcost

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// Input collects everything the cascade needs. Rates are percentages (0-100),
// fees and ancillary costs are domestic-currency amounts.
type Input struct {
	InvoiceForeign decimal.Decimal `json:"invoice_foreign"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`

	IIRate     decimal.Decimal `json:"ii_rate"`
	IPIRate    decimal.Decimal `json:"ipi_rate"`
	PISRate    decimal.Decimal `json:"pis_rate"`
	COFINSRate decimal.Decimal `json:"cofins_rate"`
	ICMSRate   decimal.Decimal `json:"icms_rate"`

	AFRMM    decimal.Decimal `json:"afrmm"`
	Siscomex decimal.Decimal `json:"siscomex"`

	Freight   decimal.Decimal `json:"freight"`
	Insurance decimal.Decimal `json:"insurance"`
	Brokerage decimal.Decimal `json:"brokerage"`
	PortFees  decimal.Decimal `json:"port_fees"`
	Storage   decimal.Decimal `json:"storage"`

	// NetQuantity is the net weight or unit count dividing the grand total.
	NetQuantity decimal.Decimal `json:"net_quantity"`
}

// MarshalJSON renders amounts at the fixed currency scale and rates with up to
// four fractional digits; the quantity keeps its entered precision.
func (in Input) MarshalJSON() ([]byte, error) {
	type alias Input
	return json.Marshal(struct {
		alias
		InvoiceForeign json.RawMessage `json:"invoice_foreign"`
		ExchangeRate   json.RawMessage `json:"exchange_rate"`
		IIRate         json.RawMessage `json:"ii_rate"`
		IPIRate        json.RawMessage `json:"ipi_rate"`
		PISRate        json.RawMessage `json:"pis_rate"`
		COFINSRate     json.RawMessage `json:"cofins_rate"`
		ICMSRate       json.RawMessage `json:"icms_rate"`
		AFRMM          json.RawMessage `json:"afrmm"`
		Siscomex       json.RawMessage `json:"siscomex"`
		Freight        json.RawMessage `json:"freight"`
		Insurance      json.RawMessage `json:"insurance"`
		Brokerage      json.RawMessage `json:"brokerage"`
		PortFees       json.RawMessage `json:"port_fees"`
		Storage        json.RawMessage `json:"storage"`
	}{
		alias:          alias(in),
		InvoiceForeign: money.JSONAmount(in.InvoiceForeign),
		ExchangeRate:   money.JSONRate(in.ExchangeRate),
		IIRate:         money.JSONRate(in.IIRate),
		IPIRate:        money.JSONRate(in.IPIRate),
		PISRate:        money.JSONRate(in.PISRate),
		COFINSRate:     money.JSONRate(in.COFINSRate),
		ICMSRate:       money.JSONRate(in.ICMSRate),
		AFRMM:          money.JSONAmount(in.AFRMM),
		Siscomex:       money.JSONAmount(in.Siscomex),
		Freight:        money.JSONAmount(in.Freight),
		Insurance:      money.JSONAmount(in.Insurance),
		Brokerage:      money.JSONAmount(in.Brokerage),
		PortFees:       money.JSONAmount(in.PortFees),
		Storage:        money.JSONAmount(in.Storage),
	})
}

// TaxBreakdown holds the per-tax amounts rounded to currency scale.
type TaxBreakdown struct {
	II     decimal.Decimal `json:"ii"`
	IPI    decimal.Decimal `json:"ipi"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
	ICMS   decimal.Decimal `json:"icms"`
	// Total is the five tax amounts plus the AFRMM and Siscomex flat fees.
	Total decimal.Decimal `json:"total"`
}

// MarshalJSON renders every tax amount at the fixed currency scale.
func (t TaxBreakdown) MarshalJSON() ([]byte, error) {
	type alias TaxBreakdown
	return json.Marshal(struct {
		alias
		II     json.RawMessage `json:"ii"`
		IPI    json.RawMessage `json:"ipi"`
		PIS    json.RawMessage `json:"pis"`
		COFINS json.RawMessage `json:"cofins"`
		ICMS   json.RawMessage `json:"icms"`
		Total  json.RawMessage `json:"total"`
	}{
		alias:  alias(t),
		II:     money.JSONAmount(t.II),
		IPI:    money.JSONAmount(t.IPI),
		PIS:    money.JSONAmount(t.PIS),
		COFINS: money.JSONAmount(t.COFINS),
		ICMS:   money.JSONAmount(t.ICMS),
		Total:  money.JSONAmount(t.Total),
	})
}

// Result is the full landed-cost statement. Total always equals InvoiceBRL plus
// Taxes.Total plus the five ancillary components; it is derived, never settable.
type Result struct {
	InvoiceBRL decimal.Decimal `json:"invoice_brl"`
	Taxes      TaxBreakdown    `json:"taxes"`
	Freight    decimal.Decimal `json:"freight"`
	Insurance  decimal.Decimal `json:"insurance"`
	Brokerage  decimal.Decimal `json:"brokerage"`
	PortFees   decimal.Decimal `json:"port_fees"`
	Storage    decimal.Decimal `json:"storage"`
	Total      decimal.Decimal `json:"total"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// MarshalJSON renders every statement line at the fixed currency scale.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		InvoiceBRL json.RawMessage `json:"invoice_brl"`
		Freight    json.RawMessage `json:"freight"`
		Insurance  json.RawMessage `json:"insurance"`
		Brokerage  json.RawMessage `json:"brokerage"`
		PortFees   json.RawMessage `json:"port_fees"`
		Storage    json.RawMessage `json:"storage"`
		Total      json.RawMessage `json:"total"`
		UnitCost   json.RawMessage `json:"unit_cost"`
	}{
		alias:      alias(r),
		InvoiceBRL: money.JSONAmount(r.InvoiceBRL),
		Freight:    money.JSONAmount(r.Freight),
		Insurance:  money.JSONAmount(r.Insurance),
		Brokerage:  money.JSONAmount(r.Brokerage),
		PortFees:   money.JSONAmount(r.PortFees),
		Storage:    money.JSONAmount(r.Storage),
		Total:      money.JSONAmount(r.Total),
		UnitCost:   money.JSONAmount(r.UnitCost),
	})
}

// Calculate runs the cascade. It is pure and idempotent: identical inputs yield
// identical outputs, and no partial result is ever produced on error.
func Calculate(in Input) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}

	invoiceBRL := in.InvoiceForeign.Mul(in.ExchangeRate)

	// Intermediates stay unrounded so later bases do not compound rounding error.
	ii := money.ApplyRate(invoiceBRL, in.IIRate)
	ipi := money.ApplyRate(invoiceBRL.Add(ii), in.IPIRate)
	pis := money.ApplyRate(invoiceBRL, in.PISRate)
	cofins := money.ApplyRate(invoiceBRL, in.COFINSRate)
	icms := money.GrossUp(invoiceBRL.Add(ii).Add(ipi), in.ICMSRate)

	taxes := TaxBreakdown{
		II:     money.RoundCurrency(ii),
		IPI:    money.RoundCurrency(ipi),
		PIS:    money.RoundCurrency(pis),
		COFINS: money.RoundCurrency(cofins),
		ICMS:   money.RoundCurrency(icms),
	}
	taxes.Total = taxes.II.
		Add(taxes.IPI).
		Add(taxes.PIS).
		Add(taxes.COFINS).
		Add(taxes.ICMS).
		Add(money.RoundCurrency(in.AFRMM)).
		Add(money.RoundCurrency(in.Siscomex))

	res := Result{
		InvoiceBRL: money.RoundCurrency(invoiceBRL),
		Taxes:      taxes,
		Freight:    money.RoundCurrency(in.Freight),
		Insurance:  money.RoundCurrency(in.Insurance),
		Brokerage:  money.RoundCurrency(in.Brokerage),
		PortFees:   money.RoundCurrency(in.PortFees),
		Storage:    money.RoundCurrency(in.Storage),
	}
	res.Total = res.InvoiceBRL.
		Add(res.Taxes.Total).
		Add(res.Freight).
		Add(res.Insurance).
		Add(res.Brokerage).
		Add(res.PortFees).
		Add(res.Storage)

	unit, err := money.DivideByQuantity(res.Total, in.NetQuantity)
	if err != nil {
		return Result{}, err
	}
	res.UnitCost = unit
	return res, nil
}

func validate(in Input) error {
	if in.InvoiceForeign.IsNegative() {
		return fmt.Errorf("landedcost: negative invoice amount: %w", shared.ErrValidation)
	}
	if in.ExchangeRate.Sign() <= 0 {
		return fmt.Errorf("landedcost: exchange rate must be positive: %w", shared.ErrValidation)
	}
	rates := []struct {
		name string
		pct  decimal.Decimal
	}{
		{"ii", in.IIRate},
		{"ipi", in.IPIRate},
		{"pis", in.PISRate},
		{"cofins", in.COFINSRate},
		{"icms", in.ICMSRate},
	}
	for _, r := range rates {
		if err := money.ValidatePercent(r.name, r.pct); err != nil {
			return err
		}
	}
	// The gross-up denominator vanishes at 100%; reject instead of dividing.
	if in.ICMSRate.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("landedcost: icms rate %s leaves no gross-up base: %w", in.ICMSRate, shared.ErrInvalidTaxRate)
	}
	amounts := []struct {
		name string
		amt  decimal.Decimal
	}{
		{"afrmm", in.AFRMM},
		{"siscomex", in.Siscomex},
		{"freight", in.Freight},
		{"insurance", in.Insurance},
		{"brokerage", in.Brokerage},
		{"port fees", in.PortFees},
		{"storage", in.Storage},
	}
	for _, a := range amounts {
		if a.amt.IsNegative() {
			return fmt.Errorf("landedcost: negative %s: %w", a.name, shared.ErrInvalidTaxRate)
		}
	}
	if in.NetQuantity.Sign() <= 0 {
		return fmt.Errorf("landedcost: net quantity %s: %w", in.NetQuantity, shared.ErrInvalidQuantity)
	}
	return nil
}
