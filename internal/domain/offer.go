package domain

import "math"

// OfferComponents is one concrete proposal on the table. Unit price is
// quoted in the vendor's billing cadence; the pricing package normalizes
// before computing TCO.
type OfferComponents struct {
	UnitPrice       float64            `yaml:"unit_price" json:"unit_price"`
	Currency        string             `yaml:"currency" json:"currency"`
	Quantity        int                `yaml:"quantity" json:"quantity"`
	TermMonths      int                `yaml:"term_months" json:"term_months"`
	Payment         PaymentTerms       `yaml:"payment" json:"payment"`
	ValueAdds       map[string]float64 `yaml:"value_adds,omitempty" json:"value_adds,omitempty"`
	DeliveryDays    int                `yaml:"delivery_days,omitempty" json:"delivery_days,omitempty"`
	PrepayDiscount  float64            `yaml:"prepay_discount,omitempty" json:"prepay_discount,omitempty"` // fraction, e.g. 0.05
}

// Clone returns a deep copy so generators never alias the value-add map.
func (o OfferComponents) Clone() OfferComponents {
	out := o
	if o.ValueAdds != nil {
		out.ValueAdds = make(map[string]float64, len(o.ValueAdds))
		for k, v := range o.ValueAdds {
			out.ValueAdds[k] = v
		}
	}
	return out
}

// ValueAddTotal sums the monetary value of all attached credits.
func (o OfferComponents) ValueAddTotal() float64 {
	total := 0.0
	for _, v := range o.ValueAdds {
		total += v
	}
	return total
}

// PriceDelta is the absolute unit-price movement between two offers.
func PriceDelta(a, b OfferComponents) float64 {
	return math.Abs(a.UnitPrice - b.UnitPrice)
}

// OfferScore is the per-offer metric bundle. All dimensions except TCO
// live in [0,1].
type OfferScore struct {
	SpecMatch  float64 `json:"spec_match"`
	Compliance float64 `json:"compliance"`
	TCO        float64 `json:"tco"`
	TCOFit     float64 `json:"tco_fit"`
	Risk       float64 `json:"risk"`
	Time       float64 `json:"time"`
	Utility    float64 `json:"utility"`
}
