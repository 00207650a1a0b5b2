package tensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRequest is returned for structurally malformed requests.
// Such requests are never fingerprinted or cached.
var ErrInvalidRequest = errors.New("tensor: invalid request")

// ParameterKind identifies which field of a Parameter is set.
type ParameterKind uint8

const (
	ParameterBool ParameterKind = iota + 1
	ParameterInt64
	ParameterString
	ParameterDouble
	ParameterUint64
)

// Parameter is a typed request, input or output parameter.
type Parameter struct {
	Kind   ParameterKind
	Bool   bool
	Int64  int64
	Uint64 uint64
	Double float64
	String string
}

// Parameters maps parameter names to values.
type Parameters map[string]Parameter

// Tensor is a named, typed and shaped input payload.
type Tensor struct {
	Name       string
	Datatype   Datatype
	Shape      []int64
	Data       []byte
	Parameters Parameters
}

// RequestedOutput names an output the client wants back.
type RequestedOutput struct {
	Name       string
	Parameters Parameters
}

// Request is an inference request in protocol-neutral form.
//
// Contract:
//   - Ownership: a Request is built once per call and never mutated afterwards.
//   - Ordering: Inputs keep client order; canonicalization sorts by name.
type Request struct {
	ModelName    string
	ModelVersion string
	ID           string
	Parameters   Parameters
	Inputs       []Tensor
	Outputs      []RequestedOutput
}

// Validate checks that the request is well formed.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if r.ModelName == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalidRequest)
	}
	if len(r.Inputs) == 0 {
		return fmt.Errorf("%w: at least one input is required", ErrInvalidRequest)
	}

	seen := make(map[string]struct{}, len(r.Inputs))
	for i := range r.Inputs {
		t := &r.Inputs[i]
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: duplicate input %q", ErrInvalidRequest, t.Name)
		}
		seen[t.Name] = struct{}{}
		if err := t.Validate(); err != nil {
			return err
		}
	}

	outputs := make(map[string]struct{}, len(r.Outputs))
	for _, o := range r.Outputs {
		if o.Name == "" {
			return fmt.Errorf("%w: requested output name is empty", ErrInvalidRequest)
		}
		if _, dup := outputs[o.Name]; dup {
			return fmt.Errorf("%w: duplicate requested output %q", ErrInvalidRequest, o.Name)
		}
		outputs[o.Name] = struct{}{}
	}
	return nil
}

// ElementCount returns the product of the shape dimensions.
func (t *Tensor) ElementCount() (int64, error) {
	n := int64(1)
	for _, d := range t.Shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: input %q has negative dimension %d", ErrInvalidRequest, t.Name, d)
		}
		if d != 0 && n > math.MaxInt64/d {
			return 0, fmt.Errorf("%w: input %q shape overflows", ErrInvalidRequest, t.Name)
		}
		n *= d
	}
	return n, nil
}

// Validate checks that the payload length agrees with datatype and shape.
func (t *Tensor) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: input name is required", ErrInvalidRequest)
	}
	if !t.Datatype.Valid() {
		return fmt.Errorf("%w: input %q has invalid datatype", ErrInvalidRequest, t.Name)
	}
	count, err := t.ElementCount()
	if err != nil {
		return err
	}

	if t.Datatype == DatatypeBytes {
		got, err := countBytesElements(t.Data)
		if err != nil {
			return fmt.Errorf("%w: input %q: %v", ErrInvalidRequest, t.Name, err)
		}
		if got != count {
			return fmt.Errorf("%w: input %q has %d BYTES elements, shape wants %d",
				ErrInvalidRequest, t.Name, got, count)
		}
		return nil
	}

	width := int64(t.Datatype.Size())
	if count > math.MaxInt64/width {
		return fmt.Errorf("%w: input %q shape overflows", ErrInvalidRequest, t.Name)
	}
	if want := count * width; int64(len(t.Data)) != want {
		return fmt.Errorf("%w: input %q has %d bytes, %s%v wants %d",
			ErrInvalidRequest, t.Name, len(t.Data), t.Datatype, t.Shape, want)
	}
	return nil
}

// countBytesElements walks a serialized BYTES payload: each element is a
// 4-byte little-endian length followed by that many bytes.
func countBytesElements(data []byte) (int64, error) {
	var n int64
	for off := 0; off < len(data); {
		if len(data)-off < 4 {
			return 0, errors.New("truncated BYTES length prefix")
		}
		size := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if size > len(data)-off {
			return 0, errors.New("BYTES element overruns payload")
		}
		off += size
		n++
	}
	return n, nil
}
