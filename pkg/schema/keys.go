package schema

import (
	"strconv"
	"strings"
)

// NoInstance marks a field reference outside any repeatable context.
const NoInstance = -1

const (
	// KeySeparator joins a field id and its instance index.
	KeySeparator = "#"
	// VerifiedSuffix marks the companion flag of a verifiable field.
	VerifiedSuffix = "_verified"
)

// Key addresses one field value in the store. Fields inside a repeatable
// section carry the zero-based index of the innermost repeatable instance.
type Key struct {
	ID    string
	Index int
}

// FieldKey builds the key for id in the given instance, or the plain key when
// instance is NoInstance.
func FieldKey(id string, instance int) Key {
	if instance < 0 {
		return Key{ID: id, Index: NoInstance}
	}
	return Key{ID: id, Index: instance}
}

// PlainKey is FieldKey(id, NoInstance).
func PlainKey(id string) Key {
	return Key{ID: id, Index: NoInstance}
}

// Indexed reports whether the key addresses a repeatable instance.
func (k Key) Indexed() bool {
	return k.Index >= 0
}

func (k Key) String() string {
	if !k.Indexed() {
		return k.ID
	}
	return k.ID + KeySeparator + strconv.Itoa(k.Index)
}

// Verified returns the store key of the companion verified flag.
func (k Key) Verified() string {
	return VerifiedKey(k.String())
}

// ParseKey splits a composite key. Keys without a numeric suffix are plain.
func ParseKey(raw string) Key {
	idx := strings.LastIndex(raw, KeySeparator)
	if idx <= 0 {
		return PlainKey(raw)
	}
	n, err := strconv.Atoi(raw[idx+1:])
	if err != nil || n < 0 {
		return PlainKey(raw)
	}
	return Key{ID: raw[:idx], Index: n}
}

// VerifiedKey returns the verified flag key for a stored key.
func VerifiedKey(key string) string {
	return key + VerifiedSuffix
}

// IsVerifiedKey reports whether raw is a verified flag and returns the key it
// belongs to.
func IsVerifiedKey(raw string) (string, bool) {
	if !strings.HasSuffix(raw, VerifiedSuffix) || len(raw) == len(VerifiedSuffix) {
		return "", false
	}
	return strings.TrimSuffix(raw, VerifiedSuffix), true
}
