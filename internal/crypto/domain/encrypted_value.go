package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// EncryptedValue is the parsed form of a serialized encrypted field.
//
// The wire format is a bit-exact contract shared by every call site:
//
//	v<label>:<base64 nonce>:<base64 ciphertext+tag>
//
// ASCII only, no embedded NUL bytes. The label is the decimal key version,
// the nonce is 12 bytes and the ciphertext carries the 16-byte tag appended
// by the AEAD. All parsing goes through ParseEncryptedValue; nothing else in
// the codebase splits these strings by hand.
type EncryptedValue struct {
	Version    uint64
	Nonce      []byte
	Ciphertext []byte
}

// String serializes the value into the canonical wire format.
func (e EncryptedValue) String() string {
	return fmt.Sprintf(
		"v%d:%s:%s",
		e.Version,
		base64.StdEncoding.EncodeToString(e.Nonce),
		base64.StdEncoding.EncodeToString(e.Ciphertext),
	)
}

// ParseEncryptedValue parses a serialized encrypted field, validating the
// version label, segment structure, base64 encoding and AEAD size invariants.
// Returns ErrMalformedValue for anything that deviates from the contract.
func ParseEncryptedValue(serialized string) (EncryptedValue, error) {
	var ev EncryptedValue

	if !strings.HasPrefix(serialized, "v") {
		return ev, fmt.Errorf("%w: missing version prefix", ErrMalformedValue)
	}

	parts := strings.SplitN(serialized[1:], ":", 3)
	if len(parts) != 3 {
		return ev, fmt.Errorf("%w: expected 3 segments", ErrMalformedValue)
	}

	version, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return ev, fmt.Errorf("%w: bad version label %q", ErrMalformedValue, parts[0])
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return ev, fmt.Errorf("%w: bad nonce encoding", ErrMalformedValue)
	}
	if len(nonce) != NonceSize {
		return ev, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrMalformedValue, NonceSize, len(nonce))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return ev, fmt.Errorf("%w: bad ciphertext encoding", ErrMalformedValue)
	}
	if len(ciphertext) < TagSize {
		return ev, fmt.Errorf("%w: ciphertext shorter than tag", ErrMalformedValue)
	}

	ev.Version = version
	ev.Nonce = nonce
	ev.Ciphertext = ciphertext
	return ev, nil
}

// VersionPrefix returns the serialized prefix for a version label, including
// the trailing delimiter. SQL version guards match on this prefix.
func VersionPrefix(label uint64) string {
	return "v" + strconv.FormatUint(label, 10) + ":"
}

// VersionLabel extracts just the version label from a serialized value without
// decoding the payload. Used by migration queries and the optimistic re-check
// during rotation.
func VersionLabel(serialized string) (uint64, error) {
	if !strings.HasPrefix(serialized, "v") {
		return 0, fmt.Errorf("%w: missing version prefix", ErrMalformedValue)
	}
	idx := strings.IndexByte(serialized, ':')
	if idx < 2 {
		return 0, fmt.Errorf("%w: missing version delimiter", ErrMalformedValue)
	}
	version, err := strconv.ParseUint(serialized[1:idx], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad version label", ErrMalformedValue)
	}
	return version, nil
}
