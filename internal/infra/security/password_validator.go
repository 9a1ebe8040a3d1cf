package security

import (
	"fmt"

	"github.com/nbutton23/zxcvbn-go"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	minPasswordScore  = 2
)

// ValidatePassword enforces length bounds and a minimum zxcvbn strength
// score. Username is fed in as user input so passwords derived from it are
// penalized.
func ValidatePassword(password, username string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("password must be at most %d characters", maxPasswordLength)
	}

	result := zxcvbn.PasswordStrength(password, []string{username})
	if result.Score < minPasswordScore {
		return fmt.Errorf("password is too weak")
	}
	return nil
}
