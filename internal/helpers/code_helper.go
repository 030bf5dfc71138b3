package helpers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	ticketCodePrefix   = "EVT-"
	ticketCodeLength   = 8
	ticketCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	slugSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	slugSuffixLength   = 5
)

var (
	nonWordChars  = regexp.MustCompile(`[^\w\-]+`)
	repeatedDash  = regexp.MustCompile(`-{2,}`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateTicketCode returns a human readable code such as EVT-7QK2M9XA.
func GenerateTicketCode() (string, error) {
	suffix, err := randomString(ticketCodeAlphabet, ticketCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate ticket code: %w", err)
	}
	return ticketCodePrefix + suffix, nil
}

func Slugify(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	slug = nonWordChars.ReplaceAllString(slug, "")
	slug = repeatedDash.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// GenerateSlug slugifies title and appends a short random suffix so two events
// with the same title still get distinct slugs.
func GenerateSlug(title string) (string, error) {
	suffix, err := randomString(slugSuffixAlphabet, slugSuffixLength)
	if err != nil {
		return "", fmt.Errorf("generate slug: %w", err)
	}
	base := Slugify(title)
	if base == "" {
		return suffix, nil
	}
	return base + "-" + suffix, nil
}
