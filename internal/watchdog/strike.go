package watchdog

// strikePolicy is the two-stage escalation policy: every missed window is a
// strike, and reaching the threshold escalates exactly once until Reset.
type strikePolicy struct {
	threshold int
	strikes   int
	escalated bool
}

func newStrikePolicy(threshold int) strikePolicy {
	if threshold <= 0 {
		threshold = 1
	}
	return strikePolicy{threshold: threshold}
}

// Observe records one inspection. missed reports whether a full timeout
// window passed without a feed. It returns escalate=true only on the
// inspection that first reaches the threshold.
func (p *strikePolicy) Observe(missed bool) (escalate bool) {
	if !missed {
		return false
	}

	p.strikes++
	if p.strikes >= p.threshold && !p.escalated {
		p.escalated = true
		return true
	}
	return false
}

// Reset clears the tally and re-arms escalation. It returns the number of
// strikes that were pending.
func (p *strikePolicy) Reset() (pending int) {
	pending = p.strikes
	p.strikes = 0
	p.escalated = false
	return pending
}
