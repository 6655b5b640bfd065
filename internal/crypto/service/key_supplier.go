package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	apperrors "github.com/medvault/phivault/internal/errors"

	// Register KMS provider drivers for secrets.OpenKeeper URIs.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// EnvKeySupplier supplies field keys from the FIELD_KEYS environment variable.
//
// Format: comma-separated "label:base64key" entries, e.g.
//
//	FIELD_KEYS="1:YWJj...,2:MTIz..."
//
// Each key must decode to exactly 32 bytes. Intended for development and test
// environments; production deployments should use KeeperKeySupplier so key
// material at rest stays wrapped by a KMS.
type EnvKeySupplier struct {
	keys map[uint64][]byte
}

// LoadEnvKeySupplier parses FIELD_KEYS and returns a supplier over the decoded
// keys. Malformed entries refuse startup with a configuration error.
func LoadEnvKeySupplier() (*EnvKeySupplier, error) {
	raw := os.Getenv("FIELD_KEYS")
	if raw == "" {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, "FIELD_KEYS not set")
	}

	supplier := &EnvKeySupplier{keys: make(map[uint64][]byte)}

	for _, part := range strings.Split(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: malformed FIELD_KEYS entry %q", apperrors.ErrConfiguration, part)
		}

		label, err := strconv.ParseUint(p[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad key label %q", apperrors.ErrConfiguration, p[0])
		}

		key, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64 for key %d: %v", apperrors.ErrConfiguration, label, err)
		}
		if len(key) != cryptoDomain.KeySize {
			cryptoDomain.Zero(key)
			return nil, fmt.Errorf(
				"%w: key %d must be %d bytes, got %d",
				cryptoDomain.ErrInvalidKeySize,
				label,
				cryptoDomain.KeySize,
				len(key),
			)
		}

		if _, ok := supplier.keys[label]; ok {
			return nil, fmt.Errorf("%w: %d", cryptoDomain.ErrDuplicateVersion, label)
		}
		supplier.keys[label] = key
	}

	return supplier, nil
}

// GetKey returns the raw key bytes for a version label.
func (s *EnvKeySupplier) GetKey(_ context.Context, label uint64) ([]byte, error) {
	key, ok := s.keys[label]
	if !ok {
		return nil, fmt.Errorf("%w: %d", cryptoDomain.ErrUnknownVersion, label)
	}
	return key, nil
}

// ListVersions returns all supplied version labels in ascending order.
func (s *EnvKeySupplier) ListVersions(_ context.Context) ([]uint64, error) {
	labels := make([]uint64, 0, len(s.keys))
	for label := range s.keys {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels, nil
}

// Close zeroes all supplied key material.
func (s *EnvKeySupplier) Close() {
	for _, key := range s.keys {
		cryptoDomain.Zero(key)
	}
	s.keys = make(map[uint64][]byte)
}

// KeeperKeySupplier supplies field keys whose material is stored wrapped by a
// KMS and unwrapped through a gocloud.dev secrets.Keeper.
//
// The wrapped entries come from FIELD_KEYS_WRAPPED using the same
// "label:base64" format, where the base64 payload is keeper ciphertext rather
// than raw key bytes. Supported keeper URIs: gcpkms://, awskms://,
// azurekeyvault://, hashivault://, base64key://.
type KeeperKeySupplier struct {
	keeper  *secrets.Keeper
	wrapped map[uint64][]byte
}

// NewKeeperKeySupplier opens the keeper for keyURI and parses
// FIELD_KEYS_WRAPPED. Keys are unwrapped lazily on GetKey so a missing KMS
// permission surfaces per-version, not at startup.
func NewKeeperKeySupplier(ctx context.Context, keyURI string) (*KeeperKeySupplier, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}

	raw := os.Getenv("FIELD_KEYS_WRAPPED")
	if raw == "" {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, "FIELD_KEYS_WRAPPED not set")
	}

	supplier := &KeeperKeySupplier{keeper: keeper, wrapped: make(map[uint64][]byte)}

	for _, part := range strings.Split(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: malformed FIELD_KEYS_WRAPPED entry %q", apperrors.ErrConfiguration, part)
		}
		label, err := strconv.ParseUint(p[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad key label %q", apperrors.ErrConfiguration, p[0])
		}
		wrapped, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64 for key %d: %v", apperrors.ErrConfiguration, label, err)
		}
		supplier.wrapped[label] = wrapped
	}

	return supplier, nil
}

// GetKey unwraps and returns the raw key bytes for a version label.
func (s *KeeperKeySupplier) GetKey(ctx context.Context, label uint64) ([]byte, error) {
	wrapped, ok := s.wrapped[label]
	if !ok {
		return nil, fmt.Errorf("%w: %d", cryptoDomain.ErrUnknownVersion, label)
	}

	key, err := s.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key %d: %w", label, err)
	}
	if len(key) != cryptoDomain.KeySize {
		cryptoDomain.Zero(key)
		return nil, fmt.Errorf(
			"%w: unwrapped key %d must be %d bytes, got %d",
			cryptoDomain.ErrInvalidKeySize,
			label,
			cryptoDomain.KeySize,
			len(key),
		)
	}

	return key, nil
}

// ListVersions returns all wrapped version labels in ascending order.
func (s *KeeperKeySupplier) ListVersions(_ context.Context) ([]uint64, error) {
	labels := make([]uint64, 0, len(s.wrapped))
	for label := range s.wrapped {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels, nil
}

// Close closes the underlying keeper.
func (s *KeeperKeySupplier) Close() error {
	return s.keeper.Close()
}
