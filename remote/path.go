package remote

import (
	"strings"

	"github.com/google/uuid"

	"github.com/klipach/courier/errs"
)

const forbiddenKeyChars = "/.#$[]"

// Join builds a path from keys, rejecting empty keys and keys containing characters
// that are not allowed in a store key.
func Join(keys ...string) (string, error) {
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			return "", errs.Invalid("path", "empty key")
		}
		if strings.ContainsAny(k, forbiddenKeyChars) {
			return "", errs.Invalid("path", "key "+k+" contains one of "+forbiddenKeyChars)
		}
	}
	return strings.Join(keys, "/"), nil
}

// NewKey returns a server-style key that sorts after every key generated before it.
func NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		return uuid.NewString()
	}
	return id.String()
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func lastKey(path string) string {
	keys := splitPath(path)
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

func parentPath(path string) string {
	keys := splitPath(path)
	if len(keys) <= 1 {
		return ""
	}
	return strings.Join(keys[:len(keys)-1], "/")
}

// related reports whether a change at one path can change the value at the other.
func related(a, b string) bool {
	a, b = strings.Trim(a, "/"), strings.Trim(b, "/")
	if a == b || a == "" || b == "" {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
