package audio

import (
	"errors"
	"io"
	"sync"

	"lexlive/internal/ports"
)

// GraphMixer combines capture sessions into a single outbound PCM signal.
// It stands in for the browser's shared audio-processing graph: one context,
// source nodes wired into one destination, created lazily and closed exactly
// once per session lifecycle.
type GraphMixer struct {
	frameSamples int

	mu    sync.Mutex
	graph *mixGraph
}

func NewGraphMixer() *GraphMixer {
	return &GraphMixer{frameSamples: FrameSize}
}

// Mix wires the given sessions into the shared graph and returns the
// destination's output session. A nil input is treated as a stream with no
// audio tracks: with one usable input the mix is a pass-through, with none
// Mix fails. Calling Mix while a graph is live is a contract violation.
func (m *GraphMixer) Mix(a, b ports.AudioSession) (ports.AudioSession, error) {
	sources := make([]ports.AudioSession, 0, 2)
	if a != nil {
		sources = append(sources, a)
	}
	if b != nil {
		sources = append(sources, b)
	}
	if len(sources) == 0 {
		return nil, errors.New("no audio sources to mix")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph != nil {
		return nil, errors.New("mix graph already active")
	}

	if len(sources) == 1 {
		m.graph = newPassthroughGraph(sources[0])
	} else {
		m.graph = newMixGraph(sources, m.frameSamples)
	}
	return m.graph, nil
}

// Close tears the shared graph down. Closing twice, or with no graph, is a
// no-op so session teardown can always call it.
func (m *GraphMixer) Close() error {
	m.mu.Lock()
	graph := m.graph
	m.graph = nil
	m.mu.Unlock()

	if graph == nil {
		return nil
	}
	return graph.Stop()
}

// mixGraph is the destination node: it pulls fixed frames from every source,
// sums them with int16 saturation and exposes the result as one session.
type mixGraph struct {
	sources []ports.AudioSession

	reader *io.PipeReader
	writer *io.PipeWriter

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newPassthroughGraph(source ports.AudioSession) *mixGraph {
	g := &mixGraph{
		sources: []ports.AudioSession{source},
		done:    make(chan struct{}),
	}
	reader, writer := io.Pipe()
	g.reader, g.writer = reader, writer
	go func() {
		defer close(g.done)
		_, err := io.Copy(writer, source)
		_ = writer.CloseWithError(err)
	}()
	return g
}

func newMixGraph(sources []ports.AudioSession, frameSamples int) *mixGraph {
	g := &mixGraph{
		sources: sources,
		done:    make(chan struct{}),
	}
	reader, writer := io.Pipe()
	g.reader, g.writer = reader, writer
	go g.run(frameSamples)
	return g
}

func (g *mixGraph) run(frameSamples int) {
	defer close(g.done)

	frameBytes := frameSamples * 2
	bufs := make([][]byte, len(g.sources))
	for i := range bufs {
		bufs[i] = make([]byte, frameBytes)
	}
	live := make([]bool, len(g.sources))
	for i := range live {
		live[i] = true
	}
	mixed := make([]int16, frameSamples)

	for {
		for i := range mixed {
			mixed[i] = 0
		}
		produced := 0

		for i, src := range g.sources {
			if !live[i] {
				continue
			}
			n, err := io.ReadFull(src, bufs[i])
			if err != nil {
				// Short final reads still contribute; after that the
				// source drops out and the remaining ones carry on.
				live[i] = false
			}
			samples := SamplesFromBytes(bufs[i][:n-n%2])
			for j, s := range samples {
				mixed[j] = saturateAdd(mixed[j], s)
			}
			if len(samples) > produced {
				produced = len(samples)
			}
		}

		if produced == 0 {
			_ = g.writer.Close()
			return
		}
		if _, err := g.writer.Write(BytesFromSamples(mixed[:produced])); err != nil {
			return
		}
	}
}

func saturateAdd(a, b int16) int16 {
	sum := int32(a) + int32(b)
	if sum > 32767 {
		return 32767
	}
	if sum < -32768 {
		return -32768
	}
	return int16(sum)
}

func (g *mixGraph) Read(p []byte) (int, error) {
	return g.reader.Read(p)
}

func (g *mixGraph) Close() error {
	return g.Stop()
}

func (g *mixGraph) Stop() error {
	g.closeOnce.Do(func() {
		for _, src := range g.sources {
			if err := src.Stop(); err != nil && g.closeErr == nil {
				g.closeErr = err
			}
		}
		_ = g.writer.Close()
		<-g.done
		_ = g.reader.Close()
	})
	return g.closeErr
}
