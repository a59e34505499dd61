package domain

// PolicyContext carries the buyer-side hard limits attached to a request.
type PolicyContext struct {
	BudgetCap     float64 `yaml:"budget_cap" json:"budget_cap"`
	RiskThreshold float64 `yaml:"risk_threshold" json:"risk_threshold"`
}

// Request is a procurement intent. It is immutable once negotiation
// begins; the engine only ever reads it.
type Request struct {
	ID           string         `yaml:"id" json:"id"`
	Category     string         `yaml:"category" json:"category"`
	Description  string         `yaml:"description" json:"description"`
	Quantity     int            `yaml:"quantity" json:"quantity"`
	BudgetMax    float64        `yaml:"budget_max" json:"budget_max"` // annualized ceiling
	Currency     string         `yaml:"currency" json:"currency"`
	Cadence      BillingCadence `yaml:"cadence" json:"cadence"`
	MustHaves    []string       `yaml:"must_haves" json:"must_haves"`
	NiceToHaves  []string       `yaml:"nice_to_haves" json:"nice_to_haves"`
	Compliance   []string       `yaml:"compliance" json:"compliance"` // required certification tags
	Policy       PolicyContext  `yaml:"policy" json:"policy"`
	Region       string         `yaml:"region,omitempty" json:"region,omitempty"`
	TimelineDays int            `yaml:"timeline_days,omitempty" json:"timeline_days,omitempty"`
}

// CeilingUnitPrice is the annual budget expressed per unit, the hard
// upper bound the buyer can pay per unit per year.
func (r *Request) CeilingUnitPrice() float64 {
	if r.Quantity <= 0 {
		return 0
	}
	return r.BudgetMax / float64(r.Quantity)
}

// EffectiveBudget pro-rates the annual budget cap over the contract term.
func (r *Request) EffectiveBudget(termMonths int) float64 {
	if termMonths <= 0 {
		return r.BudgetMax
	}
	return r.BudgetMax * float64(termMonths) / 12.0
}

// CeilingInCadence expresses the budget ceiling in the given billing
// cadence, the unit a vendor's quotes are denominated in. Comparing the
// annual ceiling against a monthly quote would make every monthly offer
// look affordable.
func (r *Request) CeilingInCadence(c BillingCadence) float64 {
	return r.CeilingUnitPrice() / c.AnnualFactor()
}

// TargetUnitPrice is the buyer's settlement target, in the cadence the
// list price is quoted in. It sits a few percent under the budget
// ceiling so acceptance leaves headroom, and never above the vendor's
// list price.
func (r *Request) TargetUnitPrice(listPrice float64, c BillingCadence) float64 {
	ceiling := r.CeilingInCadence(c)
	if ceiling <= 0 || ceiling > listPrice {
		ceiling = listPrice
	}
	return ceiling * 0.94
}
