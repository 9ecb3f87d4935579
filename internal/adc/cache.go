package adc

import (
	"math"
	"time"

	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"github.com/benbjohnson/clock"
)

type entry struct {
	value float64
	at    time.Time
}

// Cache keeps the last reading per channel together with the time it was
// taken. Channels are remembered in the order they were first tracked.
// Not safe for concurrent use.
type Cache struct {
	clock   clock.Clock
	entries map[Channel]*entry
	order   []Channel
}

func NewCache(clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.New()
	}
	return &Cache{
		clock:   clk,
		entries: make(map[Channel]*entry),
	}
}

// Track registers ch without a value.
func (c *Cache) Track(ch Channel) {
	if _, ok := c.entries[ch]; ok {
		return
	}
	c.entries[ch] = &entry{value: math.NaN()}
	c.order = append(c.order, ch)
}

// Channels returns the tracked channels in tracking order.
func (c *Cache) Channels() []Channel {
	out := make([]Channel, len(c.order))
	copy(out, c.order)
	return out
}

// Get returns the cached value if it is younger than maxAge.
func (c *Cache) Get(ch Channel, maxAge time.Duration) (float64, bool) {
	e, ok := c.entries[ch]
	if !ok || math.IsNaN(e.value) || maxAge <= 0 {
		return math.NaN(), false
	}
	if c.clock.Since(e.at) >= maxAge {
		return math.NaN(), false
	}
	return e.value, true
}

// Put stores next, smoothed against the previous value by factor (see
// transfer.Filter), and returns what was stored.
func (c *Cache) Put(ch Channel, next, factor float64) (float64, error) {
	c.Track(ch)
	e := c.entries[ch]

	v, err := transfer.Filter(e.value, factor, next)
	if err != nil {
		return math.NaN(), err
	}
	e.value = v
	e.at = c.clock.Now()
	return v, nil
}

// Invalidate forgets every value but keeps the tracked channels.
func (c *Cache) Invalidate() {
	for _, e := range c.entries {
		e.value = math.NaN()
	}
}
