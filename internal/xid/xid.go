package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixPosting  = "pst"
	PrefixCustomer = "cust"
)

// New returns an opaque, sortable identifier such as "pst_01h2xcejqtf2nbrexx3vqjhp41".
func New(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err == nil {
		return tid.String()
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%d%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// Sequence formats a human-readable id, e.g. Sequence("INV", 42) == "INV-000042".
func Sequence(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

// CategoryPrefix derives the SKU prefix from a category id: the first three
// letters upper-cased, or "ITM" when the id has fewer than three letters.
func CategoryPrefix(categoryID string) string {
	var b strings.Builder
	for _, r := range categoryID {
		if b.Len() == 3 {
			break
		}
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() < 3 {
		return "ITM"
	}
	return b.String()
}

// SKUCounter names the sequence counter backing a SKU prefix.
func SKUCounter(prefix string) string {
	return "sku:" + prefix
}
