package utils

import "github.com/sethvargo/go-password/password"

// PinLength is the number of digits in a generated profile PIN.
const PinLength = 6

// GeneratePIN returns a random numeric PIN for a new profile.
func GeneratePIN() (string, error) {
	return password.Generate(PinLength, PinLength, 0, false, true)
}

// ValidatePIN checks if a string is a valid 6-digit PIN.
func ValidatePIN(pin string) bool {
	if len(pin) != PinLength {
		return false
	}

	for _, char := range pin {
		if char < '0' || char > '9' {
			return false
		}
	}

	return true
}
