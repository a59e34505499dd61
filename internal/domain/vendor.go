package domain

import "sort"

// PriceTier maps a minimum quantity bracket to a list unit price.
type PriceTier struct {
	MinQuantity int     `yaml:"min_quantity" json:"min_quantity"`
	UnitPrice   float64 `yaml:"unit_price" json:"unit_price"`
}

// VendorGuardrails are the vendor-side hard constraints a seller agent
// will never cross with its own offers.
type VendorGuardrails struct {
	PriceFloor          float64        `yaml:"price_floor" json:"price_floor"`
	PaymentTermsAllowed []PaymentTerms `yaml:"payment_terms_allowed" json:"payment_terms_allowed"`
	TermMonthsOffered   []int          `yaml:"term_months_offered" json:"term_months_offered"`
}

// AllowsPayment reports whether the vendor accepts the given payment term.
// An empty allow-list means any term is acceptable.
func (g VendorGuardrails) AllowsPayment(p PaymentTerms) bool {
	if len(g.PaymentTermsAllowed) == 0 {
		return true
	}
	for _, allowed := range g.PaymentTermsAllowed {
		if allowed == p {
			return true
		}
	}
	return false
}

// OffersTerm reports whether the vendor sells the given contract length.
func (g VendorGuardrails) OffersTerm(months int) bool {
	if len(g.TermMonthsOffered) == 0 {
		return true
	}
	for _, t := range g.TermMonthsOffered {
		if t == months {
			return true
		}
	}
	return false
}

// ExchangePolicy encodes the vendor's trade rates: how much list price
// the vendor will give up per concession step on the other dimensions.
type ExchangePolicy struct {
	PricePctPerTermStep    float64 `yaml:"price_pct_per_term_step" json:"price_pct_per_term_step"`
	PricePctPerPaymentStep float64 `yaml:"price_pct_per_payment_step" json:"price_pct_per_payment_step"`
	PricePctPerValueAdd    float64 `yaml:"price_pct_per_value_add" json:"price_pct_per_value_add"`
}

// Reliability holds the vendor's delivery statistics.
type Reliability struct {
	SLA    float64 `yaml:"sla" json:"sla"`
	Uptime float64 `yaml:"uptime" json:"uptime"`
}

// Composite collapses reliability into a single comparable value.
func (r Reliability) Composite() float64 {
	return 0.5*r.SLA + 0.5*r.Uptime
}

// VendorProfile is a counterparty. Immutable during a session and safe
// to share across concurrent sessions.
type VendorProfile struct {
	ID             string           `yaml:"id" json:"id"`
	Name           string           `yaml:"name" json:"name"`
	Capabilities   []string         `yaml:"capabilities" json:"capabilities"`
	Certifications []string         `yaml:"certifications" json:"certifications"`
	Regions        []string         `yaml:"regions" json:"regions"`
	Currency       string           `yaml:"currency" json:"currency"`
	Cadence        BillingCadence   `yaml:"cadence" json:"cadence"`
	PriceTiers     []PriceTier      `yaml:"price_tiers" json:"price_tiers"`
	Guardrails     VendorGuardrails `yaml:"guardrails" json:"guardrails"`
	Reliability    Reliability      `yaml:"reliability" json:"reliability"`
	RiskLevel      RiskLevel        `yaml:"risk_level" json:"risk_level"`
	Exchange       ExchangePolicy   `yaml:"exchange" json:"exchange"`
	LeadTimeDays   int              `yaml:"lead_time_days" json:"lead_time_days"`
}

// ListPrice returns the list unit price for the given quantity, picking
// the highest tier whose bracket the quantity reaches. With no tiers the
// list price is zero and the vendor cannot quote.
func (v *VendorProfile) ListPrice(quantity int) float64 {
	if len(v.PriceTiers) == 0 {
		return 0
	}
	tiers := make([]PriceTier, len(v.PriceTiers))
	copy(tiers, v.PriceTiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinQuantity < tiers[j].MinQuantity })

	price := tiers[0].UnitPrice
	for _, t := range tiers {
		if quantity >= t.MinQuantity {
			price = t.UnitPrice
		}
	}
	return price
}

// HasCertification reports whether the vendor holds the named certification.
func (v *VendorProfile) HasCertification(cert string) bool {
	for _, c := range v.Certifications {
		if c == cert {
			return true
		}
	}
	return false
}

// HasCapability reports whether the vendor covers the named capability tag.
func (v *VendorProfile) HasCapability(tag string) bool {
	for _, c := range v.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// ServesRegion reports whether the vendor operates in the named region.
// Vendors with no declared regions are treated as global.
func (v *VendorProfile) ServesRegion(region string) bool {
	if len(v.Regions) == 0 || region == "" {
		return true
	}
	for _, r := range v.Regions {
		if r == region {
			return true
		}
	}
	return false
}
