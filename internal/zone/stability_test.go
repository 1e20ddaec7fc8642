package zone

import (
	"testing"
	"time"
)

func TestStabilityLimit(t *testing.T) {
	limit, ok := StabilityLimit(scenarioParams())
	if !ok {
		t.Fatal("eigen decomposition failed")
	}
	// Fastest thermal mode is λ ≈ -2.71e-4 1/s, so 2/|λ| ≈ 7380 s.
	if limit < 7300*time.Second || limit > 7450*time.Second {
		t.Fatalf("StabilityLimit() = %v, want about 2h03m", limit)
	}
}

func TestStabilityLimitCoversDefaults(t *testing.T) {
	p := DefaultParams()
	limit, ok := StabilityLimit(p)
	if !ok {
		t.Fatal("eigen decomposition failed")
	}
	if p.Step >= limit {
		t.Fatalf("default step %v is not below the stability limit %v", p.Step, limit)
	}
}

func TestStabilityLimitIncludesCO2Decay(t *testing.T) {
	p := scenarioParams()
	p.InfiltrationRate = 36 // λ = -0.01 1/s, limit 200 s
	limit, ok := StabilityLimit(p)
	if !ok {
		t.Fatal("eigen decomposition failed")
	}
	if limit < 199*time.Second || limit > 201*time.Second {
		t.Fatalf("StabilityLimit() = %v, want 200s", limit)
	}
}

func TestTimeConstants(t *testing.T) {
	wo, wa, aw, ao := TimeConstants(scenarioParams())
	want := []time.Duration{40000 * time.Second, 20000 * time.Second, 5000 * time.Second, 50000 * time.Second}
	for i, got := range []time.Duration{wo, wa, aw, ao} {
		if got != want[i] {
			t.Errorf("time constant %d = %v, want %v", i, got, want[i])
		}
	}
}
