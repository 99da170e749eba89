// Package ids derives identifiers for stored objects and issued tokens.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ObjectType separates id spaces so a user id and a case id never share a namespace.
type ObjectType string

const (
	ObjectUser ObjectType = "user"
	ObjectCase ObjectType = "case"
)

// Generator produces version 5 UUIDs rooted at the instance's qualified DNS name.
type Generator struct {
	root uuid.UUID
}

func NewGenerator(qualifiedDNS string) *Generator {
	dns := strings.ToLower(strings.TrimSpace(qualifiedDNS))
	return &Generator{root: uuid.NewSHA1(uuid.NameSpaceDNS, []byte(dns))}
}

// New returns a fresh id inside the namespace of objectType. The name component is a
// random v4 UUID, so two calls never yield the same id.
func (g *Generator) New(objectType ObjectType) uuid.UUID {
	namespace := g.Namespace(objectType)
	return uuid.NewSHA1(namespace, []byte(uuid.NewString()))
}

func (g *Generator) NewString(objectType ObjectType) string {
	return g.New(objectType).String()
}

func (g *Generator) Namespace(objectType ObjectType) uuid.UUID {
	return uuid.NewSHA1(g.root, []byte(objectType))
}

// TokenIDs issues lexicographically sortable identifiers used as a token's jti.
// Ids from one source are strictly increasing, even within a millisecond.
type TokenIDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func NewTokenIDs(now func() time.Time) *TokenIDs {
	if now == nil {
		now = time.Now
	}
	return &TokenIDs{entropy: ulid.Monotonic(rand.Reader, 0), now: now}
}

func (t *TokenIDs) New() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t.now()), t.entropy).String()
}
