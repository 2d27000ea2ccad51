package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("RP_TEST_BOOL", "yes")
	if !ParseBoolEnv("RP_TEST_BOOL", false) {
		t.Error("expected yes to parse as true")
	}
	t.Setenv("RP_TEST_BOOL", "off")
	if ParseBoolEnv("RP_TEST_BOOL", true) {
		t.Error("expected off to parse as false")
	}
	t.Setenv("RP_TEST_BOOL", "banana")
	if !ParseBoolEnv("RP_TEST_BOOL", true) {
		t.Error("invalid value must fall back to default")
	}
	if ParseBoolEnv("RP_TEST_BOOL_UNSET", false) {
		t.Error("unset value must fall back to default")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("RP_TEST_INT", "42")
	if got := ParseIntEnv("RP_TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	t.Setenv("RP_TEST_INT", "not a number")
	if got := ParseIntEnv("RP_TEST_INT", 7); got != 7 {
		t.Errorf("invalid value must fall back to default, got %d", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("RP_TEST_DUR", "90")
	if got := ParseDurationEnv("RP_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("bare integer must parse as seconds, got %s", got)
	}
	t.Setenv("RP_TEST_DUR", "2m30s")
	if got := ParseDurationEnv("RP_TEST_DUR", time.Minute); got != 2*time.Minute+30*time.Second {
		t.Errorf("got %s, want 2m30s", got)
	}
	t.Setenv("RP_TEST_DUR", "eventually")
	if got := ParseDurationEnv("RP_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("invalid value must fall back to default, got %s", got)
	}
}
