package dedup

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ContentHash derives the identity hash of an article body. Whitespace runs
// are collapsed and the text is NFC-normalized first, so cosmetic reflows of
// the same content hash identically.
func ContentHash(body string) string {
	normalized := norm.NFC.String(body)
	collapsed := strings.Join(strings.Fields(normalized), " ")
	sum := sha256.Sum256([]byte(collapsed))
	return fmt.Sprintf("%x", sum)
}
