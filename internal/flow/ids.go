package flow

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Identifier prefixes.
const (
	PrefixApplication    = "APP"
	PrefixServiceRequest = "SR"
	PrefixReceipt        = "RCPT-"
)

const timestampLayout = "200601021504"

// IDs generates receipt and timestamped identifiers.
//
// Timestamped ids carry a minute-resolution timestamp followed by a
// four-digit process-wide counter, so two submissions in the same minute
// never share an id within one process. The counter wraps at 10000.
type IDs struct {
	mu  sync.Mutex
	seq int
}

// NewIDs creates a generator.
func NewIDs() *IDs {
	return &IDs{}
}

// Receipt returns a random receipt id such as RCPT-1A2B3C4D.
func (g *IDs) Receipt() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return PrefixReceipt + strings.ToUpper(hex[:8])
}

// Timestamped returns prefix + yyyymmddhhmm + a four-digit sequence.
func (g *IDs) Timestamped(prefix string, now time.Time) string {
	g.mu.Lock()
	g.seq = (g.seq + 1) % 10000
	seq := g.seq
	g.mu.Unlock()
	return fmt.Sprintf("%s%s%04d", prefix, now.Format(timestampLayout), seq)
}
