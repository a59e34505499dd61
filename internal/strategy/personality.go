// Package strategy selects the next bargaining move from round context,
// personality, and the opponent model.
package strategy

import (
	"fmt"

	"github.com/procurehub/dealengine/internal/domain"
)

// Preset names for the seven built-in personalities.
const (
	PresetAggressive    = "aggressive"
	PresetCooperative   = "cooperative"
	PresetStrategic     = "strategic"
	PresetOpportunistic = "opportunistic"
	PresetPremium       = "premium"
	PresetVolumeFocused = "volume_focused"
	PresetRelationship  = "relationship"
)

var presets = map[string]domain.Personality{
	PresetAggressive: {
		ConcessionWillingness: 0.2, FloorFlexibility: 0.1, PressureSensitivity: 0.3,
		RelationshipFocus: 0.2, CompetitiveResponse: 0.8, RiskTolerance: 0.7,
		Patience: 0.2, ValueEmphasis: 0.5,
	},
	PresetCooperative: {
		ConcessionWillingness: 0.8, FloorFlexibility: 0.5, PressureSensitivity: 0.6,
		RelationshipFocus: 0.7, CompetitiveResponse: 0.4, RiskTolerance: 0.4,
		Patience: 0.6, ValueEmphasis: 0.4,
	},
	PresetStrategic: {
		ConcessionWillingness: 0.5, FloorFlexibility: 0.4, PressureSensitivity: 0.4,
		RelationshipFocus: 0.5, CompetitiveResponse: 0.6, RiskTolerance: 0.5,
		Patience: 0.8, ValueEmphasis: 0.6,
	},
	PresetOpportunistic: {
		ConcessionWillingness: 0.6, FloorFlexibility: 0.6, PressureSensitivity: 0.8,
		RelationshipFocus: 0.3, CompetitiveResponse: 0.7, RiskTolerance: 0.8,
		Patience: 0.3, ValueEmphasis: 0.3,
	},
	PresetPremium: {
		ConcessionWillingness: 0.3, FloorFlexibility: 0.2, PressureSensitivity: 0.3,
		RelationshipFocus: 0.5, CompetitiveResponse: 0.3, RiskTolerance: 0.4,
		Patience: 0.7, ValueEmphasis: 0.9,
	},
	PresetVolumeFocused: {
		ConcessionWillingness: 0.7, FloorFlexibility: 0.6, PressureSensitivity: 0.5,
		RelationshipFocus: 0.4, CompetitiveResponse: 0.8, RiskTolerance: 0.6,
		Patience: 0.4, ValueEmphasis: 0.3,
	},
	PresetRelationship: {
		ConcessionWillingness: 0.7, FloorFlexibility: 0.5, PressureSensitivity: 0.5,
		RelationshipFocus: 0.9, CompetitiveResponse: 0.3, RiskTolerance: 0.4,
		Patience: 0.7, ValueEmphasis: 0.5,
	},
}

// Preset returns the named personality preset.
func Preset(name string) (domain.Personality, error) {
	p, ok := presets[name]
	if !ok {
		return domain.Personality{}, fmt.Errorf("%w: unknown personality preset %q", domain.ErrConfig, name)
	}
	return p, nil
}

// PresetNames lists the available presets.
func PresetNames() []string {
	return []string{
		PresetAggressive, PresetCooperative, PresetStrategic, PresetOpportunistic,
		PresetPremium, PresetVolumeFocused, PresetRelationship,
	}
}

// VendorContext captures the selling-side situation used for urgency
// adjustment and the competitive branches of the decision table.
type VendorContext struct {
	CapacityUtilization float64 `yaml:"capacity_utilization" json:"capacity_utilization"`
	QuarterPosition     float64 `yaml:"quarter_position" json:"quarter_position"` // 0 start .. 1 quarter end
	YearPosition        float64 `yaml:"year_position" json:"year_position"`
	PipelineStrength    float64 `yaml:"pipeline_strength" json:"pipeline_strength"`
	CompetitivePressure float64 `yaml:"competitive_pressure" json:"competitive_pressure"`
	DealImportance      float64 `yaml:"deal_importance" json:"deal_importance"`
}

// Urgency collapses the context into a single sell-side urgency scalar.
func (c VendorContext) Urgency() float64 {
	u := 0.3*c.QuarterPosition*c.QuarterPosition +
		0.2*c.YearPosition*c.YearPosition +
		0.3*(1.0-c.PipelineStrength) +
		0.2*(1.0-c.CapacityUtilization)
	return clamp01(u)
}

// AdjustForContext returns a new personality with the urgency-scaled
// traits raised and patience lowered. The input is never mutated.
func AdjustForContext(p domain.Personality, ctx VendorContext) domain.Personality {
	u := ctx.Urgency()
	out := p
	out.ConcessionWillingness = clamp01(p.ConcessionWillingness * (1.0 + u))
	out.PressureSensitivity = clamp01(p.PressureSensitivity * (1.0 + u))
	out.RiskTolerance = clamp01(p.RiskTolerance * (1.0 + u))
	out.Patience = clamp01(p.Patience * (1.0 - u))
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
