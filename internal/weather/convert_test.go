package weather

import "testing"

func TestToCelsius(t *testing.T) {
	tests := []struct {
		kelvin string
		want   string
	}{
		{"300.00", "26.84"},
		{"300", "26.84"},
		{"273.16", "0.00"},
		{"273.15", "-0.01"},
		{"0", "-273.16"},
		{"310.5", "37.34"},
		{"1e3", "726.84"},
		{"273.159", "0.00"},
		{"273.1649", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.kelvin, func(t *testing.T) {
			got, err := ToCelsius(tt.kelvin)
			if err != nil {
				t.Fatalf("ToCelsius(%q): %v", tt.kelvin, err)
			}
			if got != tt.want {
				t.Errorf("ToCelsius(%q) = %q, want %q", tt.kelvin, got, tt.want)
			}
		})
	}
}

func TestToCelsius_Idempotent(t *testing.T) {
	first, err := ToCelsius("288.71")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, _ := ToCelsius("288.71")
		if again != first {
			t.Fatalf("run %d: %q != %q", i, again, first)
		}
	}
}

func TestToCelsius_NotNumeric(t *testing.T) {
	for _, in := range []string{"", "warm", "300k", "NaN-ish"} {
		if _, err := ToCelsius(in); err == nil {
			t.Errorf("ToCelsius(%q): expected error", in)
		}
	}
}
