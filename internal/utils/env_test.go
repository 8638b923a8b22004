package utils

import "testing"

func TestSafeEnv(t *testing.T) {
	t.Setenv("OPROS_TEST_KEY", "set")
	if v := SafeEnv("OPROS_TEST_KEY", "fallback"); v != "set" {
		t.Fatalf("SafeEnv with value = %q, want set", v)
	}
	t.Setenv("OPROS_TEST_KEY", "")
	if v := SafeEnv("OPROS_TEST_KEY", "fallback"); v != "fallback" {
		t.Fatalf("SafeEnv with empty value = %q, want fallback", v)
	}
	if v := SafeEnv("OPROS_TEST_MISSING", "fallback"); v != "fallback" {
		t.Fatalf("SafeEnv missing key = %q, want fallback", v)
	}
}
