package lifecycle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode("")
	require.NoError(t, err)
	assert.Len(t, code, bareCodeLength)

	code, err = GenerateCode("vip")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(code, "VIP-"), code)
	assert.Len(t, code, len("VIP-")+suffixLength)

	for i := 0; i < 200; i++ {
		code, err := GenerateCode("")
		require.NoError(t, err)
		assert.NotContainsf(t, code, "O", "ambiguous character in %s", code)
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "L")
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"gala":             "GALA",
		"gala-2026":        "GALA2026",
		"  a b c ":         "ABC",
		"verylongprefix12": "VERYLONGPR",
		"éte":              "TE",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePrefix(in), in)
	}
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "962791234567", PhoneDigits("+962 (79) 123-4567"))
	assert.Equal(t, "", PhoneDigits("n/a"))
}
