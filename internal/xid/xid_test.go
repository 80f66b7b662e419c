package xid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIsZeroPadded(t *testing.T) {
	assert.Equal(t, "INV-000042", Sequence("INV", 42))
	assert.Equal(t, "ORD-000007", Sequence("ORD", 7))
	assert.Equal(t, "INV-1234567", Sequence("INV", 1234567))
}

func TestCategoryPrefix(t *testing.T) {
	cases := map[string]string{
		"rings":        "RIN",
		"bullion-coin": "BUL",
		"Necklaces":    "NEC",
		"a1":           "ITM",
		"":             "ITM",
		"ear-rings":    "EAR",
	}
	for in, want := range cases {
		assert.Equal(t, want, CategoryPrefix(in), in)
	}
}

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New(PrefixPosting)
	b := New(PrefixPosting)
	assert.True(t, strings.HasPrefix(a, PrefixPosting+"_"), a)
	assert.NotEqual(t, a, b)
}
