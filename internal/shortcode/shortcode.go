// Package shortcode generates random link aliases.
package shortcode

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set used for generated aliases. Custom
// back-halves are restricted to the same set plus '-' and '_'.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is used when no length is configured.
const DefaultLength = 7

// Generate returns a random alias of exactly length characters drawn
// uniformly from Alphabet, backed by a cryptographic random source.
// It never checks uniqueness; collisions are the caller's concern.
func Generate(length int) (string, error) {
	const op = "shortcode.Generate"

	code, err := gonanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// Valid reports whether code is acceptable as a user-chosen custom
// back-half: 3 to 30 characters from Alphabet, '-' or '_'.
func Valid(code string) bool {
	if len(code) < 3 || len(code) > 30 {
		return false
	}

	for _, c := range code {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}

	return true
}
