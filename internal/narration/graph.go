package narration

import (
	"errors"
	"sync"
	"time"
)

// ErrGraphBusy is returned when a second source is started while one plays.
var ErrGraphBusy = errors.New("audio graph already has an active source")

// Sink receives mono samples at the graph's sample rate. The recorder's
// audio track is the production sink.
type Sink interface {
	WriteAudio(samples []int16) error
}

// chunkDuration bounds each write so a stopped source ends promptly.
const chunkDuration = 100 * time.Millisecond

// Graph routes one source at a time into a Sink.
type Graph struct {
	mu     sync.Mutex
	sink   Sink
	rate   int
	active *Playback
}

// NewGraph connects a graph running at rate to sink.
func NewGraph(sink Sink, rate int) *Graph {
	if rate <= 0 {
		rate = 24000
	}
	return &Graph{sink: sink, rate: rate}
}

// SampleRate returns the graph rate.
func (g *Graph) SampleRate() int {
	return g.rate
}

// Playback is a started source.
type Playback struct {
	graph    *Graph
	duration time.Duration
	ended    chan struct{}
	stop     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	err      error
	written  int
}

// Ended is closed once every sample has reached the sink, or the source was
// stopped or failed.
func (p *Playback) Ended() <-chan struct{} { return p.ended }

// Duration is the resampled clip length.
func (p *Playback) Duration() time.Duration { return p.duration }

// Err reports a sink failure, if any.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Written returns the number of samples delivered so far.
func (p *Playback) Written() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Stop halts the source and disconnects it from the graph. No samples are
// written after Stop returns besides the chunk already in flight.
func (p *Playback) Stop() {
	p.once.Do(func() {
		close(p.stop)
		p.graph.release(p)
	})
}

// Play starts clip on the graph. The clip is resampled to the graph rate.
func (g *Graph) Play(clip PCM) (*Playback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != nil {
		return nil, ErrGraphBusy
	}
	clip = clip.Resample(g.rate)
	p := &Playback{
		graph:    g,
		duration: clip.Duration(),
		ended:    make(chan struct{}),
		stop:     make(chan struct{}),
	}
	g.active = p
	go p.run(clip.Samples, g.sink, g.rate)
	return p, nil
}

// Silence writes d of silence synchronously. It fails if a source is active.
func (g *Graph) Silence(d time.Duration) error {
	g.mu.Lock()
	busy := g.active != nil
	g.mu.Unlock()
	if busy {
		return ErrGraphBusy
	}
	silence := Silence(g.rate, d)
	if len(silence.Samples) == 0 || g.sink == nil {
		return nil
	}
	return g.sink.WriteAudio(silence.Samples)
}

func (g *Graph) release(p *Playback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == p {
		g.active = nil
	}
}

func (p *Playback) run(samples []int16, sink Sink, rate int) {
	defer close(p.ended)
	defer p.graph.release(p)
	chunk := int(int64(rate) * int64(chunkDuration) / int64(time.Second))
	if chunk <= 0 {
		chunk = len(samples)
	}
	for start := 0; start < len(samples); start += chunk {
		select {
		case <-p.stop:
			return
		default:
		}
		end := min(start+chunk, len(samples))
		if sink != nil {
			if err := sink.WriteAudio(samples[start:end]); err != nil {
				p.mu.Lock()
				p.err = err
				p.mu.Unlock()
				return
			}
		}
		p.mu.Lock()
		p.written = end
		p.mu.Unlock()
	}
}
