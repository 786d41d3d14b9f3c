package anonymize

import (
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// Scope identifies the UID role a mapping belongs to. Two identical original
// values in different scopes map to two distinct replacements.
type Scope int

const (
	ScopeStudy Scope = iota
	ScopeSeries
	ScopeImage
	ScopeFrameOfReference
	ScopeAccession
)

// String returns the configuration-facing name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeStudy:
		return "study"
	case ScopeSeries:
		return "series"
	case ScopeImage:
		return "image"
	case ScopeFrameOfReference:
		return "frame_of_reference"
	case ScopeAccession:
		return "accession"
	default:
		return "unknown"
	}
}

type registryKey struct {
	scope    Scope
	original string
}

// Registry remaps original identifiers to generated replacements,
// consistently for the lifetime of the process. Mappings are never persisted.
// Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[registryKey]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]string)}
}

// Get returns the replacement for original within scope, generating one on
// first sight. The same (scope, original) pair always yields the same value.
func (r *Registry) Get(scope Scope, original string) string {
	key := registryKey{scope: scope, original: original}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[key]; ok {
		return v
	}
	var v string
	if scope == ScopeAccession {
		v = newAccessionToken()
	} else {
		v = newPseudoUID()
	}
	r.entries[key] = v
	return v
}

// Len returns the number of stored mappings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// newPseudoUID derives a fresh UID under the 2.25 UUID root.
func newPseudoUID() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	return "2.25." + n.String()
}

// accessionPrefix marks generated accession numbers while the whole token
// stays within the 16 characters the attribute allows.
const accessionPrefix = "1.98765."

func newAccessionToken() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	token := accessionPrefix + n.String()
	if len(token) > 16 {
		token = token[:16]
	}
	return token
}
