package gatekeeper

import "banking-service/internal/config"

// Policy names
const (
	PolicyStrict  = "STRICT"
	PolicyDefault = "DEFAULT"
	PolicyRelaxed = "RELAXED"
)

// Policy is an immutable rate-limit policy: a sustained rate in tokens per
// minute and a burst capacity (the bucket's initial and maximum token count).
type Policy struct {
	Name          string
	RatePerMinute float64
	Burst         int
}

// PolicySet holds the three process-wide policies.
type PolicySet struct {
	Strict  Policy
	Default Policy
	Relaxed Policy
}

// NewPolicySet builds the policy set from configuration.
func NewPolicySet(cfg config.RateLimitConfig) PolicySet {
	return PolicySet{
		Strict:  Policy{Name: PolicyStrict, RatePerMinute: cfg.Strict.RatePerMinute, Burst: cfg.Strict.Burst},
		Default: Policy{Name: PolicyDefault, RatePerMinute: cfg.Default.RatePerMinute, Burst: cfg.Default.Burst},
		Relaxed: Policy{Name: PolicyRelaxed, RatePerMinute: cfg.Relaxed.RatePerMinute, Burst: cfg.Relaxed.Burst},
	}
}
