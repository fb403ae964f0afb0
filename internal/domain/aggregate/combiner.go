package aggregate

import "github.com/jules-maulard/clash-royale-analytics/internal/domain/model"

// Sink receives partials drained from a Combiner or forwarded by a Passthrough.
type Sink func(batch []Partial) error

// Combiner pre-aggregates observations inside one worker. Once it holds
// flushSize keys it drains itself to the sink, so it may be applied any
// number of times per key. It is not safe for concurrent use.
type Combiner struct {
	tallies   map[Key]Tally
	flushSize int
	sink      Sink
	err       error
	emitted   int
}

// NewCombiner creates a combiner that drains to sink every flushSize keys.
// A flushSize <= 0 only drains on Flush.
func NewCombiner(flushSize int, sink Sink) *Combiner {
	return &Combiner{tallies: make(map[Key]Tally), flushSize: flushSize, sink: sink}
}

func (c *Combiner) EmitNode(obs model.NodeObservation) {
	c.add(NodeKey(obs.Archetype), Observe(obs.Won))
}

func (c *Combiner) EmitEdge(obs model.EdgeObservation) {
	c.add(EdgeKey(obs.A, obs.B), Observe(obs.WonByA))
}

func (c *Combiner) add(k Key, t Tally) {
	c.tallies[k] = c.tallies[k].Add(t)
	if c.flushSize > 0 && len(c.tallies) >= c.flushSize {
		c.drain()
	}
}

// Len returns the number of keys currently held.
func (c *Combiner) Len() int { return len(c.tallies) }

// Emitted returns the number of partials shipped so far.
func (c *Combiner) Emitted() int { return c.emitted }

// Flush drains the remaining keys and returns the first sink error seen.
func (c *Combiner) Flush() error {
	c.drain()
	return c.err
}

func (c *Combiner) drain() {
	if len(c.tallies) == 0 || c.err != nil {
		return
	}
	batch := make([]Partial, 0, len(c.tallies))
	for k, t := range c.tallies {
		batch = append(batch, Partial{Key: k, Tally: t})
	}
	c.tallies = make(map[Key]Tally, len(batch))
	c.emitted += len(batch)
	c.err = c.sink(batch)
}

// Passthrough forwards every observation as its own partial, batching only
// to amortise sink calls. It stands in for a disabled combiner.
type Passthrough struct {
	batch     []Partial
	batchSize int
	sink      Sink
	err       error
	emitted   int
}

// NewPassthrough creates a Passthrough that ships batches of batchSize partials.
func NewPassthrough(batchSize int, sink Sink) *Passthrough {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Passthrough{batchSize: batchSize, sink: sink}
}

func (p *Passthrough) EmitNode(obs model.NodeObservation) {
	p.add(Partial{Key: NodeKey(obs.Archetype), Tally: Observe(obs.Won)})
}

func (p *Passthrough) EmitEdge(obs model.EdgeObservation) {
	p.add(Partial{Key: EdgeKey(obs.A, obs.B), Tally: Observe(obs.WonByA)})
}

func (p *Passthrough) add(part Partial) {
	p.batch = append(p.batch, part)
	if len(p.batch) >= p.batchSize {
		p.drain()
	}
}

// Emitted returns the number of partials shipped so far.
func (p *Passthrough) Emitted() int { return p.emitted }

// Flush ships the pending batch and returns the first sink error seen.
func (p *Passthrough) Flush() error {
	p.drain()
	return p.err
}

func (p *Passthrough) drain() {
	if len(p.batch) == 0 || p.err != nil {
		return
	}
	batch := p.batch
	p.batch = make([]Partial, 0, p.batchSize)
	p.emitted += len(batch)
	p.err = p.sink(batch)
}
