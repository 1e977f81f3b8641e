package engine

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// IntentKind classifies a correlated request.
type IntentKind string

const (
	IntentProposal IntentKind = "proposal"
	IntentBuy      IntentKind = "buy"
	IntentSell     IntentKind = "sell"
)

// Intent is what a pending request was sent for.
type Intent struct {
	Kind       IntentKind
	Instrument string
	Direction  domain.Direction
	Stake      float64
	ContractID int64
	SentAt     time.Time
}

// Pending pairs a request identifier with its intent.
type Pending struct {
	ReqID int64
	Intent
}

// Correlator stamps outbound requests with session-unique identifiers and
// remembers which ones are awaiting a response. It is not safe for concurrent
// use; the engine serialises access.
type Correlator struct {
	last    int64
	pending map[string]Intent
}

// NewCorrelator returns a correlator whose first identifier is 1.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]Intent)}
}

// NextID returns the next request identifier.
func (c *Correlator) NextID() int64 {
	c.last++
	return c.last
}

// Track records the intent behind request id.
func (c *Correlator) Track(id int64, in Intent) error {
	k := key(id)
	if _, ok := c.pending[k]; ok {
		return fmt.Errorf("engine: track request %d: already pending", id)
	}
	c.pending[k] = in
	return nil
}

// Resolve removes and returns the intent for id.
func (c *Correlator) Resolve(id int64) (Intent, bool) {
	k := key(id)
	in, ok := c.pending[k]
	if ok {
		delete(c.pending, k)
	}
	return in, ok
}

// Peek returns the intent for id without removing it.
func (c *Correlator) Peek(id int64) (Intent, bool) {
	in, ok := c.pending[key(id)]
	return in, ok
}

// Flush removes every pending entry and returns them in identifier order.
func (c *Correlator) Flush() []Pending {
	out := make([]Pending, 0, len(c.pending))
	for k, in := range c.pending {
		id, _ := strconv.ParseInt(k, 10, 64)
		out = append(out, Pending{ReqID: id, Intent: in})
	}
	clear(c.pending)
	sort.Slice(out, func(i, j int) bool { return out[i].ReqID < out[j].ReqID })
	return out
}

// Len returns the number of pending requests.
func (c *Correlator) Len() int { return len(c.pending) }

// PendingOpens counts requests that may still result in a new position.
func (c *Correlator) PendingOpens() int {
	n := 0
	for _, in := range c.pending {
		if in.Kind == IntentProposal || in.Kind == IntentBuy {
			n++
		}
	}
	return n
}

// Reset starts a new session: identifiers restart at 1 and nothing is pending.
func (c *Correlator) Reset() {
	c.last = 0
	clear(c.pending)
}

func key(id int64) string { return strconv.FormatInt(id, 10) }
