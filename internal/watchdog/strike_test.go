package watchdog

import "testing"

func TestStrikePolicyEscalatesAtThreshold(t *testing.T) {
	p := newStrikePolicy(3)

	if p.Observe(true) {
		t.Fatal("escalation should not trigger on first strike")
	}
	if p.Observe(true) {
		t.Fatal("escalation should not trigger on second strike")
	}
	if !p.Observe(true) {
		t.Fatal("escalation should trigger on third strike")
	}
}

func TestStrikePolicyEscalatesOncePerStall(t *testing.T) {
	p := newStrikePolicy(2)

	p.Observe(true)
	if !p.Observe(true) {
		t.Fatal("expected escalation on second strike")
	}
	for i := 0; i < 10; i++ {
		if p.Observe(true) {
			t.Fatalf("escalation repeated on strike %d of the same stall", i+3)
		}
	}

	if pending := p.Reset(); pending != 12 {
		t.Fatalf("expected 12 pending strikes, got %d", pending)
	}
	p.Observe(true)
	if !p.Observe(true) {
		t.Fatal("expected escalation to re-arm after reset")
	}
}

func TestStrikePolicyIgnoresHealthyInspections(t *testing.T) {
	p := newStrikePolicy(2)

	p.Observe(true)
	for i := 0; i < 5; i++ {
		if p.Observe(false) {
			t.Fatal("healthy inspection should never escalate")
		}
	}
	if p.strikes != 1 {
		t.Fatalf("healthy inspections should not change the tally, got %d", p.strikes)
	}
}

func TestStrikePolicyDefaultThreshold(t *testing.T) {
	p := newStrikePolicy(0)

	if !p.Observe(true) {
		t.Fatal("zero threshold should default to escalating on the first strike")
	}
}
