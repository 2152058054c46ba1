package enterprise

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/hugh/orchestra/internal/database/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const (
	KeyLength    = 16
	suffixLength = 8
	maxKeyTries  = 10
	alphabet     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrKeyExhausted = errors.New("could not generate a unique enterprise key")

// Slug lower-cases name, strips diacritics and joins alphanumeric runs with
// single dashes.
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// GenerateKey hashes the slug of name with a random suffix and keeps the
// first 16 hex characters.
func GenerateKey(name string) (string, error) {
	suffix, err := randomString(suffixLength)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(Slug(name) + "-" + suffix))
	return hex.EncodeToString(sum[:])[:KeyLength], nil
}

// UniqueKey generates keys until one is unused.
func UniqueKey(ctx context.Context, db *gorm.DB, name string) (string, error) {
	for i := 0; i < maxKeyTries; i++ {
		key, err := GenerateKey(name)
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.WithContext(ctx).Unscoped().Model(&models.Enterprise{}).
			Where(map[string]interface{}{"key": key}).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("checking enterprise key: %w", err)
		}
		if count == 0 {
			return key, nil
		}
	}
	return "", ErrKeyExhausted
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
