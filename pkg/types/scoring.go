package types

import "math"

// Band is one of the three standard risk bands shared by analytical tools.
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

const (
	HighThreshold   = 0.6
	MediumThreshold = 0.3
)

type Verdict string

const (
	VerdictVulnerable            Verdict = "VULNERABLE"
	VerdictPotentiallyVulnerable Verdict = "POTENTIALLY_VULNERABLE"
	VerdictProtected             Verdict = "PROTECTED"

	VerdictPhishing   Verdict = "PHISHING"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictLegitimate Verdict = "LEGITIMATE"
)

// VerdictFamily selects the vocabulary a tool reports its band in.
type VerdictFamily int

const (
	VulnerabilityVerdicts VerdictFamily = iota
	PhishingVerdicts
)

func BandFor(score float64) Band {
	switch {
	case score > HighThreshold:
		return BandHigh
	case score > MediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

func (f VerdictFamily) Verdict(b Band) Verdict {
	if f == PhishingVerdicts {
		switch b {
		case BandHigh:
			return VerdictPhishing
		case BandMedium:
			return VerdictSuspicious
		}
		return VerdictLegitimate
	}
	switch b {
	case BandHigh:
		return VerdictVulnerable
	case BandMedium:
		return VerdictPotentiallyVulnerable
	}
	return VerdictProtected
}

// Check is one weighted condition that contributed to a score.
type Check struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

// Score accumulates weighted checks. The zero value is ready to use.
type Score struct {
	total  float64
	checks []Check
}

// Add records a check. The weight counts only when hit is true.
func (s *Score) Add(name string, weight float64, hit bool, detail string) {
	if weight < 0 {
		weight = 0
	}
	c := Check{Name: name, Passed: !hit, Detail: detail}
	if hit {
		c.Weight = weight
		s.total += weight
	}
	s.checks = append(s.checks, c)
}

// Note records an observation that does not affect the score.
func (s *Score) Note(name string, detail string) {
	s.checks = append(s.checks, Check{Name: name, Passed: true, Detail: detail})
}

// Value returns the clamped score rounded to two decimals.
func (s *Score) Value() float64 {
	v := math.Min(math.Max(s.total, 0), 1)
	return math.Round(v*100) / 100
}

func (s *Score) Band() Band {
	return BandFor(s.Value())
}

func (s *Score) Checks() []Check {
	out := make([]Check, len(s.checks))
	copy(out, s.checks)
	return out
}

// Assessment is the analytical summary shared by scoring tools.
type Assessment struct {
	Verdict         Verdict
	RiskScore       float64
	Recommendations []string
}

// Assess picks the verdict and band-specific recommendations for s.
func Assess(s *Score, family VerdictFamily, recs map[Band][]string) Assessment {
	band := s.Band()
	out := Assessment{
		Verdict:         family.Verdict(band),
		RiskScore:       s.Value(),
		Recommendations: append([]string{}, recs[band]...),
	}
	return out
}

// Apply copies the assessment into a summary record.
func (a Assessment) Apply(r Record) Record {
	if r == nil {
		r = Record{}
	}
	r["verdict"] = string(a.Verdict)
	r["risk_score"] = a.RiskScore
	r["recommendations"] = a.Recommendations
	return r
}
