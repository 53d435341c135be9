package attainment

import "github.com/trezcool/outcomes/core"

// Policy holds the PO attainment and compliance cut-offs.
type Policy struct {
	// POTarget is the PO target attainment, and the Level 1 cut-off.
	POTarget     float64 `json:"target_attainment" validate:"percent"`
	Level2Cutoff float64 `json:"level2_cutoff" validate:"percent,gtefield=POTarget"`
	Level3Cutoff float64 `json:"level3_cutoff" validate:"percent,gtefield=Level2Cutoff"`
	// ComplianceThreshold is the minimum compliance score (percent of POs on target).
	ComplianceThreshold float64 `json:"compliance_threshold" validate:"percent"`
	// CoverageAdvice is the mean CO coverage (percent) under which more mappings are advised.
	CoverageAdvice float64 `json:"coverage_advice" validate:"percent"`
	// MappingLevelAdvice is the mean mapping level under which stronger correlations are advised.
	MappingLevelAdvice float64 `json:"mapping_level_advice" validate:"min=0,max=3"`
}

func DefaultPolicy() Policy {
	return Policy{
		POTarget:            60,
		Level2Cutoff:        65,
		Level3Cutoff:        80,
		ComplianceThreshold: 60,
		CoverageAdvice:      80,
		MappingLevelAdvice:  2,
	}
}

// PolicyFromConfig builds a Policy from the app config, falling back to the defaults when invalid.
func PolicyFromConfig(conf core.AttainmentConfig) (Policy, error) {
	p := Policy{
		POTarget:            conf.POTarget,
		Level2Cutoff:        conf.Level2Cutoff,
		Level3Cutoff:        conf.Level3Cutoff,
		ComplianceThreshold: conf.ComplianceThreshold,
		CoverageAdvice:      conf.CoverageAdvice,
		MappingLevelAdvice:  conf.MappingLevelAdvice,
	}
	if err := core.Validate.Struct(p); err != nil {
		return DefaultPolicy(), err
	}
	return p, nil
}

// Status buckets a PO attainment percentage.
func (p Policy) Status(actual float64) string {
	switch {
	case actual >= p.Level3Cutoff:
		return StatusLevel3
	case actual >= p.Level2Cutoff:
		return StatusLevel2
	case actual >= p.POTarget:
		return StatusLevel1
	default:
		return StatusNotAttained
	}
}
