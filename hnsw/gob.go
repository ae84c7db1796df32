package hnsw

import (
	"bytes"
	"encoding/gob"
	"io"
	"math/rand"

	"github.com/vecindex/vecindex/obs"
	"github.com/vecindex/vecindex/vector"
)

// Compile time checks to ensure HNSW satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*HNSW)(nil)
	_ gob.GobDecoder = (*HNSW)(nil)
)

// Save writes the whole graph to w in this package's gob format. Load
// reads it back. A host that wants to persist a graph across restarts
// (or ship one built offline) round-trips it through these two calls;
// this package has no opinion on where w/r's bytes ultimately live.
func (h *HNSW) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(h)
}

// Load reads a graph previously written by Save. The returned index has
// a NoopLogger and NoopMetricsCollector; this package has no exported
// way to replace them on a loaded index.
func Load(r io.Reader) (*HNSW, error) {
	h := &HNSW{}
	if err := gob.NewDecoder(r).Decode(h); err != nil {
		return nil, err
	}
	return h, nil
}

// gobOptions is the persisted subset of Options: Logger and Metrics are
// runtime collaborators, not index state, and Distance is already a
// plain enum rather than a func value, so every field below is gob-safe.
type gobOptions struct {
	M              int
	EFConstruction int
	Heuristic      bool
	Distance       int
	Deterministic  bool
	Seed           int64
}

// GobEncode serializes the graph: dimension, capacity parameters, entry
// point, the element arena, and the persisted options, flattened to one
// gob stream rather than a hand-rolled page layout.
func (h *HNSW) GobEncode() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(h.dimension); err != nil {
		return nil, err
	}
	if err := encoder.Encode(h.mmax); err != nil {
		return nil, err
	}
	if err := encoder.Encode(h.mmax0); err != nil {
		return nil, err
	}
	if err := encoder.Encode(h.ml); err != nil {
		return nil, err
	}
	if err := encoder.Encode(h.entryRef); err != nil {
		return nil, err
	}
	if err := encoder.Encode(h.entryLevel); err != nil {
		return nil, err
	}
	if err := encoder.Encode(h.elements); err != nil {
		return nil, err
	}

	opts := gobOptions{
		M:              h.opts.M,
		EFConstruction: h.opts.EFConstruction,
		Heuristic:      h.opts.Heuristic,
		Distance:       int(h.opts.Distance),
		Deterministic:  h.opts.Deterministic,
		Seed:           h.opts.Seed,
	}
	if err := encoder.Encode(opts); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode restores a graph encoded by GobEncode. Logger and Metrics
// are runtime collaborators, not index state, and come back at their
// no-op defaults. rng is reseeded from the restored options rather than
// carried across the wire, so a freshly decoded graph draws the same
// level sequence a fresh New with the same seed and options would.
func (h *HNSW) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	if err := decoder.Decode(&h.dimension); err != nil {
		return err
	}
	if err := decoder.Decode(&h.mmax); err != nil {
		return err
	}
	if err := decoder.Decode(&h.mmax0); err != nil {
		return err
	}
	if err := decoder.Decode(&h.ml); err != nil {
		return err
	}
	if err := decoder.Decode(&h.entryRef); err != nil {
		return err
	}
	if err := decoder.Decode(&h.entryLevel); err != nil {
		return err
	}
	if err := decoder.Decode(&h.elements); err != nil {
		return err
	}

	var opts gobOptions
	if err := decoder.Decode(&opts); err != nil {
		return err
	}
	h.opts = Options{
		M:              opts.M,
		EFConstruction: opts.EFConstruction,
		Heuristic:      opts.Heuristic,
		Distance:       vector.Distance(opts.Distance),
		Deterministic:  opts.Deterministic,
		Seed:           opts.Seed,
	}
	h.rng = rand.New(rand.NewSource(h.opts.Seed))
	h.logger = obs.NoopLogger()
	h.metrics = obs.NoopMetricsCollector{}

	return nil
}
