package utils

import "testing"

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		pin   string
		valid bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12345a", false},
		{"", false},
		{"12 456", false},
	}

	for _, tt := range tests {
		if got := ValidatePIN(tt.pin); got != tt.valid {
			t.Errorf("ValidatePIN(%q) = %v, want %v", tt.pin, got, tt.valid)
		}
	}
}

func TestGeneratePINProducesValidPINs(t *testing.T) {
	for i := 0; i < 20; i++ {
		pin, err := GeneratePIN()
		if err != nil {
			t.Fatalf("failed to generate pin: %v", err)
		}
		if !ValidatePIN(pin) {
			t.Errorf("generated pin %q is not valid", pin)
		}
	}
}
