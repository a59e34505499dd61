// Package policy validates offers against buyer-side policy and
// vendor-side guardrails, producing structured violation lists.
package policy

import (
	"fmt"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/pricing"
)

// Violation codes. The engine and tests match on these, not on detail text.
const (
	CodeBudgetCapBreach    = "budget_cap_breach"
	CodeMissingCert        = "missing_certification"
	CodeMixedCurrency      = "mixed_currency"
	CodeUnsupportedRegion  = "unsupported_region"
	CodeTimelineViolation  = "timeline_violation"
	CodePriceBelowFloor    = "price_below_floor"
	CodePriceAboveListCap  = "price_above_list_cap"
	CodePaymentNotAllowed  = "payment_terms_not_allowed"
	CodeTermNotOffered     = "term_not_offered"
)

// ListPriceCap is the tolerated premium over list: offers above
// list * 1.1 are flagged, never silently clamped.
const ListPriceCap = 1.1

// Checker runs the policy and guardrail checks. Pure and reentrant;
// calling it twice on the same offer yields identical violation sets.
type Checker struct {
	calc *pricing.Calculator
	mode domain.RunMode
}

// NewChecker constructs a checker for the given run mode.
func NewChecker(calc *pricing.Calculator, mode domain.RunMode) (*Checker, error) {
	switch mode {
	case domain.RunModeSimulation, domain.RunModeEnforce:
	case "":
		mode = domain.RunModeSimulation
	default:
		return nil, fmt.Errorf("%w: unknown run mode %q", domain.ErrConfig, mode)
	}
	return &Checker{calc: calc, mode: mode}, nil
}

// Mode returns the configured run mode.
func (c *Checker) Mode() domain.RunMode { return c.mode }

// PrecheckRequest rejects statically invalid requests before any
// session starts.
func (c *Checker) PrecheckRequest(req *domain.Request) error {
	if req.BudgetMax <= 0 {
		return fmt.Errorf("%w: request %s has non-positive budget %.2f", domain.ErrPolicyViolation, req.ID, req.BudgetMax)
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: request %s has non-positive quantity %d", domain.ErrPolicyViolation, req.ID, req.Quantity)
	}
	return nil
}

// CheckPolicy runs the request-side checks: budget cap, compliance
// certifications, currency, region, and timeline.
func (c *Checker) CheckPolicy(req *domain.Request, vendor *domain.VendorProfile, offer domain.OfferComponents) ([]domain.Violation, error) {
	var violations []domain.Violation

	if offer.Currency != "" && req.Currency != "" && offer.Currency != req.Currency {
		violations = append(violations, domain.Violation{
			Code:     CodeMixedCurrency,
			Source:   domain.SourcePolicy,
			Severity: domain.SeverityHard,
			Detail:   fmt.Sprintf("offer currency %s does not match request currency %s", offer.Currency, req.Currency),
		})
		// No meaningful TCO comparison across currencies.
		return violations, nil
	}

	tco, err := c.calc.TCO(offer, vendor.Cadence)
	if err != nil {
		return nil, err
	}
	budget := req.EffectiveBudget(offer.TermMonths)
	if tco > budget {
		violations = append(violations, domain.Violation{
			Code:      CodeBudgetCapBreach,
			Source:    domain.SourcePolicy,
			Severity:  domain.SeverityHard,
			Detail:    fmt.Sprintf("TCO %.2f exceeds budget cap %.2f", tco, budget),
			Value:     tco,
			Threshold: budget,
		})
	}

	for _, cert := range req.Compliance {
		if !vendor.HasCertification(cert) {
			violations = append(violations, domain.Violation{
				Code:     CodeMissingCert,
				Source:   domain.SourcePolicy,
				Severity: domain.SeverityHard,
				Detail:   fmt.Sprintf("missing_certification: %s", cert),
			})
		}
	}

	if !vendor.ServesRegion(req.Region) {
		violations = append(violations, domain.Violation{
			Code:     CodeUnsupportedRegion,
			Source:   domain.SourcePolicy,
			Severity: domain.SeverityHard,
			Detail:   fmt.Sprintf("vendor %s does not serve region %s", vendor.ID, req.Region),
		})
	}

	if req.TimelineDays > 0 && offer.DeliveryDays > req.TimelineDays {
		violations = append(violations, domain.Violation{
			Code:      CodeTimelineViolation,
			Source:    domain.SourcePolicy,
			Severity:  domain.SeveritySoft,
			Detail:    fmt.Sprintf("delivery in %d days misses the %d day timeline", offer.DeliveryDays, req.TimelineDays),
			Value:     float64(offer.DeliveryDays),
			Threshold: float64(req.TimelineDays),
		})
	}

	return violations, nil
}

// CheckGuardrails runs the vendor-side checks: price floor, list-price
// cap, allowed payment terms, and offered contract lengths.
func (c *Checker) CheckGuardrails(vendor *domain.VendorProfile, offer domain.OfferComponents) []domain.Violation {
	var violations []domain.Violation
	list := vendor.ListPrice(offer.Quantity)

	if offer.UnitPrice < vendor.Guardrails.PriceFloor {
		violations = append(violations, domain.Violation{
			Code:      CodePriceBelowFloor,
			Source:    domain.SourceGuardrail,
			Severity:  domain.SeverityHard,
			Detail:    fmt.Sprintf("unit price %.2f below vendor floor %.2f", offer.UnitPrice, vendor.Guardrails.PriceFloor),
			Value:     offer.UnitPrice,
			Threshold: vendor.Guardrails.PriceFloor,
		})
	}

	if list > 0 && offer.UnitPrice > list*ListPriceCap {
		violations = append(violations, domain.Violation{
			Code:      CodePriceAboveListCap,
			Source:    domain.SourceGuardrail,
			Severity:  domain.SeverityHard,
			Detail:    fmt.Sprintf("unit price %.2f above list cap %.2f", offer.UnitPrice, list*ListPriceCap),
			Value:     offer.UnitPrice,
			Threshold: list * ListPriceCap,
		})
	}

	if !vendor.Guardrails.AllowsPayment(offer.Payment) {
		violations = append(violations, domain.Violation{
			Code:     CodePaymentNotAllowed,
			Source:   domain.SourceGuardrail,
			Severity: domain.SeverityHard,
			Detail:   fmt.Sprintf("payment terms %s not in vendor allow-list", offer.Payment),
		})
	}

	if !vendor.Guardrails.OffersTerm(offer.TermMonths) {
		violations = append(violations, domain.Violation{
			Code:      CodeTermNotOffered,
			Source:    domain.SourceGuardrail,
			Severity:  domain.SeverityHard,
			Detail:    fmt.Sprintf("vendor does not offer a %d month term", offer.TermMonths),
			Value:     float64(offer.TermMonths),
			Threshold: 0,
		})
	}

	return violations
}

// CheckOffer is the combined pure validation surface: policy plus
// guardrails for one offer.
func (c *Checker) CheckOffer(req *domain.Request, vendor *domain.VendorProfile, offer domain.OfferComponents) ([]domain.Violation, error) {
	violations, err := c.CheckPolicy(req, vendor, offer)
	if err != nil {
		return nil, err
	}
	return append(violations, c.CheckGuardrails(vendor, offer)...), nil
}

// Eligible reports whether an offer may become the session's final
// accepted offer: no HARD violation of any kind.
func Eligible(violations []domain.Violation) bool {
	return !domain.HasHard(violations)
}
