package cache

import (
	"strconv"
	"strings"
	"time"
)

// BytesCache stores encoded API responses with a TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// VersionedKey scopes a response key to one snapshot version so a new
// refresh cycle never serves the previous cycle's body.
func VersionedKey(prefix string, version uint64, parts ...string) string {
	b := strings.Builder{}
	b.WriteString(prefix)
	b.WriteString(":v")
	b.WriteString(strconv.FormatUint(version, 10))
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
