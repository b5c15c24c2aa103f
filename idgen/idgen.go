// Package idgen generates identifiers for stored check records. Stores take a
// Generator as an option so tests can inject deterministic IDs.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// CheckPrefix marks audit record IDs.
const CheckPrefix = "chk_"

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs. They sort by
// creation time, which keeps "most recent first" queries index-friendly.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID from gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator of prefix1, prefix2, ... for tests.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}

// CheckID generates "chk_<uuidv7>" audit record IDs.
var CheckID = Prefixed(CheckPrefix, UUIDv7())
