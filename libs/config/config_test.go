package config

import (
	"testing"
	"time"
)

func TestPositiveInt(t *testing.T) {
	t.Setenv("SEARCH_MAX_WORKERS", "")
	n, err := PositiveInt("SEARCH_MAX_WORKERS", 8)
	if err != nil || n != 8 {
		t.Fatalf("expected fallback 8, got %d (%v)", n, err)
	}

	t.Setenv("SEARCH_MAX_WORKERS", "0")
	if _, err := PositiveInt("SEARCH_MAX_WORKERS", 8); err == nil {
		t.Fatalf("expected error for zero")
	}

	t.Setenv("SEARCH_MAX_WORKERS", " 12 ")
	n, err = PositiveInt("SEARCH_MAX_WORKERS", 8)
	if err != nil || n != 12 {
		t.Fatalf("expected 12, got %d (%v)", n, err)
	}
}

func TestMinutesAndMillis(t *testing.T) {
	t.Setenv("SLOT_STEP_MINUTES", "15")
	d, err := Minutes("SLOT_STEP_MINUTES", 30*time.Minute)
	if err != nil || d != 15*time.Minute {
		t.Fatalf("expected 15m, got %s (%v)", d, err)
	}

	t.Setenv("SEARCH_BUDGET_MS", "")
	d, err = Millis("SEARCH_BUDGET_MS", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("expected 3s fallback, got %s (%v)", d, err)
	}
}

func TestRatio(t *testing.T) {
	t.Setenv("SELECTION_MIN_CONFIDENCE", "1.5")
	if _, err := Ratio("SELECTION_MIN_CONFIDENCE", 0.8); err == nil {
		t.Fatalf("expected error for out of range ratio")
	}
	t.Setenv("SELECTION_MIN_CONFIDENCE", "0.75")
	f, err := Ratio("SELECTION_MIN_CONFIDENCE", 0.8)
	if err != nil || f != 0.75 {
		t.Fatalf("expected 0.75, got %v (%v)", f, err)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "off")
	if Bool("OTEL_ENABLED", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("OTEL_ENABLED", "maybe")
	if !Bool("OTEL_ENABLED", true) {
		t.Fatalf("expected fallback true")
	}

	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test, ,http://b.test")
	got := List("CORS_ALLOWED_ORIGINS")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected list %v", got)
	}
}
