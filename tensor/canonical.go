package tensor

import (
	"encoding/binary"
	"math"
	"sort"
)

// Domain tags keep fingerprints of different record kinds apart.
const (
	domainInfer       = "inferstore/infer/v1"
	domainModelConfig = "inferstore/model-config/v1"
)

const (
	markAbsent  byte = 0
	markPresent byte = 1
)

// Options controls which optional request fields take part in matching.
type Options struct {
	// MatchID includes the client request id.
	MatchID bool

	// MatchParameters includes request, input and output parameters.
	MatchParameters bool

	// SkipParameters lists parameter names left out even when
	// MatchParameters is set (for example per-call sequence ids).
	SkipParameters []string
}

// Canonicalizer serializes requests into a deterministic byte form.
//
// Contract:
//   - Determinism: equal requests yield equal bytes across processes and platforms.
//   - Concurrency: safe for concurrent use; it holds no mutable state.
//   - Errors: never fails; callers must Validate first.
type Canonicalizer struct {
	opts Options
	skip map[string]struct{}
}

// NewCanonicalizer creates a canonicalizer with the given matching options.
func NewCanonicalizer(opts Options) *Canonicalizer {
	skip := make(map[string]struct{}, len(opts.SkipParameters))
	for _, name := range opts.SkipParameters {
		skip[name] = struct{}{}
	}
	return &Canonicalizer{opts: opts, skip: skip}
}

var defaultCanonicalizer = NewCanonicalizer(Options{})

// Canonicalize returns the canonical bytes of r with default options.
func Canonicalize(r *Request) []byte {
	return defaultCanonicalizer.Infer(r)
}

// Options returns the matching options.
func (c *Canonicalizer) Options() Options {
	return c.opts
}

// Infer returns the canonical bytes of an inference request.
func (c *Canonicalizer) Infer(r *Request) []byte {
	var w writer
	w.str(domainInfer)
	w.str(r.ModelName)
	w.optional(r.ModelVersion)

	if c.opts.MatchID {
		w.optional(r.ID)
	} else {
		w.optional("")
	}
	c.params(&w, r.Parameters)

	inputs := make([]*Tensor, len(r.Inputs))
	for i := range r.Inputs {
		inputs[i] = &r.Inputs[i]
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Name < inputs[j].Name })

	w.u32(uint32(len(inputs)))
	for _, t := range inputs {
		w.str(t.Name)
		w.byte(byte(t.Datatype))
		w.u32(uint32(len(t.Shape)))
		for _, d := range t.Shape {
			w.u64(uint64(d))
		}
		w.blob(t.Data)
		c.params(&w, t.Parameters)
	}

	outputs := make([]*RequestedOutput, len(r.Outputs))
	for i := range r.Outputs {
		outputs[i] = &r.Outputs[i]
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Name < outputs[j].Name })

	w.u32(uint32(len(outputs)))
	for _, o := range outputs {
		w.str(o.Name)
		c.params(&w, o.Parameters)
	}
	return w.buf
}

// ModelConfig returns the canonical bytes identifying a model configuration.
func (c *Canonicalizer) ModelConfig(name, version string) []byte {
	var w writer
	w.str(domainModelConfig)
	w.str(name)
	w.optional(version)
	return w.buf
}

func (c *Canonicalizer) params(w *writer, p Parameters) {
	if !c.opts.MatchParameters || len(p) == 0 {
		w.u32(0)
		return
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		if _, skipped := c.skip[k]; skipped {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.u32(uint32(len(keys)))
	for _, k := range keys {
		v := p[k]
		w.str(k)
		w.byte(byte(v.Kind))
		switch v.Kind {
		case ParameterBool:
			if v.Bool {
				w.byte(1)
			} else {
				w.byte(0)
			}
		case ParameterInt64:
			w.u64(uint64(v.Int64))
		case ParameterUint64:
			w.u64(v.Uint64)
		case ParameterDouble:
			w.u64(math.Float64bits(v.Double))
		case ParameterString:
			w.str(v.String)
		}
	}
}

// writer appends fixed-width big-endian integers and length-prefixed fields.
type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) u64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) blob(b []byte) {
	w.u64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// optional writes an explicit marker so "" and "absent" never collide
// with a present value.
func (w *writer) optional(s string) {
	if s == "" {
		w.byte(markAbsent)
		return
	}
	w.byte(markPresent)
	w.str(s)
}
