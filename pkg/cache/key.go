package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/simple-apps-suite/simple-notes/pkg/pagination"
)

// keyPrefix namespaces every cache key.
const keyPrefix = "pagefetch"

// CacheKey identifies a cached API response.
type CacheKey struct {
	// API is the API selector (e.g., "publicRooms")
	API string

	// Identity is the session identity of the calling client
	Identity string

	// Options are the call options, cursor included
	Options pagination.Options
}

// String generates a deterministic cache key string.
// Format: pagefetch:api:identity-digest:options-digest
//
// Example:
//
//	pagefetch:publicRooms:9f86d081884c:44136fa355b3
func (k CacheKey) String() string {
	return strings.Join([]string{
		keyPrefix,
		k.API,
		digest(k.Identity),
		digest(k.Options.Key()),
	}, ":")
}

// keyPattern matches the keys of every cached response of api, or of every
// API when api is empty.
func keyPattern(api string) string {
	if api == "" {
		return keyPrefix + ":*"
	}
	return keyPrefix + ":" + api + ":*"
}

// digest shortens s so identities and option sets stay out of key names.
func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
