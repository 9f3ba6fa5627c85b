package backoff

import (
	"testing"
	"time"
)

func TestExponentialJitterNoJitter(t *testing.T) {
	s := ExponentialJitterStrategy{}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
	}

	for _, tt := range tests {
		got := s.Calculate(tt.attempt, time.Second, 30*time.Second, 2.0, 0)
		if got != tt.want {
			t.Errorf("Calculate(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialJitterNegativeAttempt(t *testing.T) {
	s := ExponentialJitterStrategy{}

	got := s.Calculate(-5, time.Second, 30*time.Second, 2.0, 0)
	if got != time.Second {
		t.Errorf("Expected negative attempt treated as 0, got %v", got)
	}
}

func TestExponentialJitterOverflowClamp(t *testing.T) {
	s := ExponentialJitterStrategy{}

	got := s.Calculate(1000, time.Second, 30*time.Second, 2.0, 0)
	if got != 30*time.Second {
		t.Errorf("Expected huge attempt capped at maxDelay, got %v", got)
	}
}

func TestExponentialJitterBounds(t *testing.T) {
	s := ExponentialJitterStrategy{}

	for i := 0; i < 200; i++ {
		got := s.Calculate(1, time.Second, 30*time.Second, 2.0, 0.25)
		if got < 1500*time.Millisecond || got > 2500*time.Millisecond {
			t.Fatalf("Jittered delay %v outside [1.5s, 2.5s]", got)
		}
	}
}

func TestExponentialJitterNeverExceedsMax(t *testing.T) {
	s := ExponentialJitterStrategy{}

	for i := 0; i < 200; i++ {
		got := s.Calculate(10, time.Second, 30*time.Second, 2.0, 0.25)
		if got > 30*time.Second {
			t.Fatalf("Jittered delay %v exceeds maxDelay", got)
		}
		if got < 0 {
			t.Fatalf("Jittered delay %v is negative", got)
		}
	}
}

func TestDecorrelatedJitterFirstAttempt(t *testing.T) {
	s := DecorrelatedJitterStrategy{}

	got := s.Calculate(0, time.Second, 30*time.Second, 2.0, 0)
	if got != time.Second {
		t.Errorf("Expected initialDelay for attempt 0, got %v", got)
	}
}

func TestDecorrelatedJitterRange(t *testing.T) {
	s := DecorrelatedJitterStrategy{}

	for i := 0; i < 200; i++ {
		got := s.Calculate(3, time.Second, 30*time.Second, 2.0, 0)
		if got < time.Second || got > 30*time.Second {
			t.Fatalf("Decorrelated delay %v outside [1s, 30s]", got)
		}
	}
}

func TestCalculatorDelegates(t *testing.T) {
	c := NewCalculator(ExponentialJitterStrategy{})

	got := c.Calculate(2, time.Second, 30*time.Second, 2.0, 0)
	if got != 4*time.Second {
		t.Errorf("Calculate(2) = %v, want 4s", got)
	}
}

func TestCalculatorSetStrategy(t *testing.T) {
	c := GetExponentialJitterCalculator()
	if _, ok := c.GetStrategy().(ExponentialJitterStrategy); !ok {
		t.Errorf("Expected ExponentialJitterStrategy, got %T", c.GetStrategy())
	}

	c.SetStrategy(DecorrelatedJitterStrategy{})
	if _, ok := c.GetStrategy().(DecorrelatedJitterStrategy); !ok {
		t.Errorf("Expected DecorrelatedJitterStrategy after SetStrategy, got %T", c.GetStrategy())
	}
}

func TestSecureFloat64Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := secureFloat64()
		if v < 0 || v >= 1 {
			t.Fatalf("secureFloat64() = %v, want [0, 1)", v)
		}
	}
}

func TestPow(t *testing.T) {
	tests := []struct {
		base     float64
		exponent int
		want     float64
	}{
		{2.0, 0, 1.0},
		{2.0, 3, 8.0},
		{1.5, 2, 2.25},
	}

	for _, tt := range tests {
		if got := Pow(tt.base, tt.exponent); got != tt.want {
			t.Errorf("Pow(%v, %d) = %v, want %v", tt.base, tt.exponent, got, tt.want)
		}
	}
}
