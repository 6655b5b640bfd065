package domain

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSerialized(t *testing.T) string {
	t.Helper()
	ev := EncryptedValue{
		Version:    3,
		Nonce:      make([]byte, NonceSize),
		Ciphertext: make([]byte, TagSize+10),
	}
	return ev.String()
}

func TestEncryptedValueRoundTrip(t *testing.T) {
	nonce := []byte("twelve-bytes")
	require.Len(t, nonce, NonceSize)

	original := EncryptedValue{
		Version:    42,
		Nonce:      nonce,
		Ciphertext: append([]byte("ciphertext-body!"), make([]byte, TagSize)...),
	}

	serialized := original.String()
	assert.True(t, strings.HasPrefix(serialized, "v42:"))
	assert.NotContains(t, serialized, "\x00")

	parsed, err := ParseEncryptedValue(serialized)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseEncryptedValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"missing prefix", "3:YWJj:YWJj"},
		{"missing segments", "v3:YWJj"},
		{"non-numeric label", "vX:YWJj:YWJj"},
		{"negative label", "v-1:YWJj:YWJj"},
		{"bad nonce base64", "v1:!!!:YWJj"},
		{"wrong nonce size", "v1:" + base64.StdEncoding.EncodeToString([]byte("short")) + ":YWJj"},
		{"bad ciphertext base64", "v1:" + base64.StdEncoding.EncodeToString(make([]byte, NonceSize)) + ":!!!"},
		{
			"ciphertext shorter than tag",
			"v1:" + base64.StdEncoding.EncodeToString(make([]byte, NonceSize)) +
				":" + base64.StdEncoding.EncodeToString(make([]byte, TagSize-1)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEncryptedValue(tt.input)
			assert.ErrorIs(t, err, ErrMalformedValue)
		})
	}

	t.Run("valid value parses", func(t *testing.T) {
		_, err := ParseEncryptedValue(validSerialized(t))
		assert.NoError(t, err)
	})
}

func TestVersionLabel(t *testing.T) {
	label, err := VersionLabel(validSerialized(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), label)

	_, err = VersionLabel("plaintext")
	assert.ErrorIs(t, err, ErrMalformedValue)

	_, err = VersionLabel("v:")
	assert.ErrorIs(t, err, ErrMalformedValue)
}
