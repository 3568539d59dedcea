package service

import "testing"

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("21:05")
	if err != nil {
		t.Fatal(err)
	}
	if spec != "0 5 21 * * *" {
		t.Fatalf("spec = %q", spec)
	}
}

func TestBuildDailySpecRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "21", "25:00", "12:61", "ab:cd", "1:2:3"} {
		if _, err := buildDailySpec(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
