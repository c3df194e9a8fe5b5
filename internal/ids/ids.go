package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// generator mints ULIDs from a single monotonic entropy source, so ids
// created by one process sort in creation order even within the same
// millisecond.
type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *generator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

var defaultGen = &generator{
	entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

// New returns the identifier for a new record: 26 characters,
// lexicographically sortable, safe as a primary key.
func New() string {
	return defaultGen.next()
}
