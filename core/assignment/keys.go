package assignment

import (
	"net/url"
	"strings"

	"github.com/trezcool/kazi/core"
)

// NormalizeKey URL-unescapes and trims an assignment key.
// Keys that fail to unescape are only trimmed.
func NormalizeKey(key string) string {
	if u, err := url.PathUnescape(key); err == nil {
		key = u
	}
	return strings.TrimSpace(key)
}

// MatchKey finds the key in keys that refers to id.
// An exact match wins; otherwise keys are compared in their normalized form.
func MatchKey(keys []string, id string) (string, bool) {
	for _, k := range keys {
		if k == id {
			return k, true
		}
	}
	want := NormalizeKey(id)
	for _, k := range keys {
		if NormalizeKey(k) == want {
			return k, true
		}
	}
	return "", false
}

// Lookup returns the value stored in m under the key matching id.
func Lookup[V any](m map[string]V, id string) (V, string, bool) {
	if v, ok := m[id]; ok {
		return v, id, true
	}
	k, ok := MatchKey(core.SortedKeys(m), id)
	if !ok {
		var zero V
		return zero, "", false
	}
	return m[k], k, true
}
