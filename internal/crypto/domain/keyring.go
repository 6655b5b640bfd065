package domain

import (
	"fmt"
	"sync"
	"time"
)

// KeyRing is the key registry: it maps version labels to key versions and
// tracks which single version holds the write-current role.
//
// Invariants enforced here:
//   - exactly one version has RoleWriteCurrent at any time
//   - promoting a new write-current demotes the previous one to RoleReadOnly,
//     never straight to RoleRetired
//   - a retired version never becomes write-current again
//
// Thread safety: all methods are safe for concurrent use. The write-current
// pointer is swapped atomically under the ring's lock so a concurrent
// ResolveForEncrypt sees either the old or the new version, never neither.
type KeyRing struct {
	mu           sync.RWMutex
	writeLabel   uint64
	keys         map[uint64]*KeyVersion
	minDistRatio float64
}

// NewKeyRing creates an empty KeyRing. minDistinctRatio is the strength
// threshold applied to every registered key (see ValidateKeyStrength).
func NewKeyRing(minDistinctRatio float64) *KeyRing {
	return &KeyRing{
		keys:         make(map[uint64]*KeyVersion),
		minDistRatio: minDistinctRatio,
	}
}

// Register adds a key version to the ring as read-only after validating its
// strength. The first registered version may be promoted with SetCurrentWrite.
func (r *KeyRing) Register(label uint64, key []byte, alg Algorithm) error {
	if err := ValidateKeyStrength(key, r.minDistRatio); err != nil {
		return fmt.Errorf("key version %d: %w", label, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[label]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateVersion, label)
	}

	kv := &KeyVersion{
		Label:     label,
		Algorithm: alg,
		Key:       append([]byte(nil), key...),
		Role:      RoleReadOnly,
	}
	r.keys[label] = kv

	return nil
}

// ResolveForEncrypt returns the single write-current key version. All new
// encryptions must use this version; call sites never hold their own copy of
// the pointer.
func (r *KeyRing) ResolveForEncrypt() (*KeyVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kv, ok := r.keys[r.writeLabel]
	if !ok || kv.Role != RoleWriteCurrent {
		return nil, ErrNoWriteKey
	}

	return kv, nil
}

// ResolveForDecrypt looks up a key version by the explicit label embedded in a
// ciphertext. Retired-but-not-purged versions still resolve, so rows that
// slipped past a rotation remain readable until the version is purged.
func (r *KeyRing) ResolveForDecrypt(label uint64) (*KeyVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kv, ok := r.keys[label]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, label)
	}

	return kv, nil
}

// SetCurrentWrite atomically promotes the given version to write-current and
// demotes the previous write-current version to read-only. Promoting a retired
// version is refused.
func (r *KeyRing) SetCurrentWrite(label uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, ok := r.keys[label]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, label)
	}
	if next.Role == RoleRetired {
		return fmt.Errorf("%w: %d", ErrKeyRetired, label)
	}
	if label == r.writeLabel {
		return nil
	}

	if prev, ok := r.keys[r.writeLabel]; ok && prev.Role == RoleWriteCurrent {
		prev.Role = RoleReadOnly
	}

	next.Role = RoleWriteCurrent
	next.ActivatedAt = time.Now().UTC()
	r.writeLabel = label

	return nil
}

// CurrentWriteLabel returns the label of the write-current version, or false
// if none has been promoted yet.
func (r *KeyRing) CurrentWriteLabel() (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kv, ok := r.keys[r.writeLabel]
	return r.writeLabel, ok && kv.Role == RoleWriteCurrent
}

// Retire marks a read-only version as retired. The write-current version can
// never be retired directly; it must first be demoted by promoting another
// version. Callers are responsible for ensuring no ciphertext rows still
// reference the version (the rotation use case enforces this).
func (r *KeyRing) Retire(label uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kv, ok := r.keys[label]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, label)
	}
	if kv.Role == RoleWriteCurrent {
		return fmt.Errorf("%w: cannot retire the write-current version %d", ErrKeyRetired, label)
	}

	kv.Role = RoleRetired
	return nil
}

// Purge zeroes and removes a retired version's key material. After a purge the
// label no longer resolves for decryption.
func (r *KeyRing) Purge(label uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kv, ok := r.keys[label]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, label)
	}
	if kv.Role != RoleRetired {
		return fmt.Errorf("%w: purge requires a retired version, %d is %s", ErrKeyRetired, label, kv.Role)
	}

	Zero(kv.Key)
	delete(r.keys, label)
	return nil
}

// Labels returns all registered labels with their roles, for status reporting.
func (r *KeyRing) Labels() map[uint64]KeyRole {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[uint64]KeyRole, len(r.keys))
	for label, kv := range r.keys {
		out[label] = kv.Role
	}
	return out
}

// Close securely clears all key material from the ring.
func (r *KeyRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kv := range r.keys {
		Zero(kv.Key)
	}
	r.keys = make(map[uint64]*KeyVersion)
	r.writeLabel = 0
}
