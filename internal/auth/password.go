// Package auth covers credentials, tokens, role permissions and request rate
// limiting for the service.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/rosterly/rosterd/internal/domain"
)

const bcryptCost = 12

// HashPassword returns a bcrypt hash of the plaintext.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the complexity policy. It returns a validation
// error listing every unmet requirement so the client can show them all.
func ValidatePassword(password string) error {
	var problems []string
	if len(password) < 8 {
		problems = append(problems, "must be at least 8 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	if !special {
		problems = append(problems, "must contain a special character")
	}
	if len(problems) > 0 {
		return domain.Validation("password does not meet the policy",
			map[string]string{"password": strings.Join(problems, "; ")})
	}
	return nil
}

// CheckReuse returns an error when the candidate matches any of the retained
// previous hashes.
func CheckReuse(password string, previousHashes []string) error {
	for _, h := range previousHashes {
		if CheckPassword(h, password) {
			return domain.Validation("password was used recently", map[string]string{
				"password": fmt.Sprintf("must differ from the last %d passwords", domain.PasswordHistoryDepth),
			})
		}
	}
	return nil
}

const (
	resetUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	resetLower   = "abcdefghijkmnopqrstuvwxyz"
	resetDigits  = "23456789"
	resetSpecial = "!@#$%^&*"
	resetLength  = 14
)

// GenerateResetPassword produces a random password that satisfies the
// complexity policy, for administrative resets. The result always contains
// at least one character from each class.
func GenerateResetPassword() (string, error) {
	classes := []string{resetUpper, resetLower, resetDigits, resetSpecial}
	all := strings.Join(classes, "")

	chars := make([]byte, 0, resetLength)
	for _, class := range classes {
		c, err := randomFrom(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < resetLength {
		c, err := randomFrom(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates so the mandatory class characters are not predictably
	// positioned at the front.
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle reset password: %w", err)
		}
		j := n.Int64()
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars), nil
}

func randomFrom(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("generate reset password: %w", err)
	}
	return set[n.Int64()], nil
}
