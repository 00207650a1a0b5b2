package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FromProto converts a wire request into a validated Request.
//
// Inputs may carry their payload in raw_input_contents (one entry per
// input, in input order) or in typed contents. Typed contents are encoded
// to the same little-endian layout as raw contents, so both forms of one
// tensor produce the same canonical bytes.
func FromProto(req *triton.ModelInferRequest) (*Request, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	raw := req.GetRawInputContents()
	if len(raw) > 0 && len(raw) != len(req.GetInputs()) {
		return nil, fmt.Errorf("%w: %d raw input contents for %d inputs",
			ErrInvalidRequest, len(raw), len(req.GetInputs()))
	}

	r := &Request{
		ModelName:    req.GetModelName(),
		ModelVersion: req.GetModelVersion(),
		ID:           req.GetId(),
		Parameters:   paramsFromProto(req.GetParameters()),
		Inputs:       make([]Tensor, 0, len(req.GetInputs())),
		Outputs:      make([]RequestedOutput, 0, len(req.GetOutputs())),
	}

	for i, in := range req.GetInputs() {
		dt, err := ParseDatatype(in.GetDatatype())
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.GetName(), err)
		}
		t := Tensor{
			Name:       in.GetName(),
			Datatype:   dt,
			Shape:      in.GetShape(),
			Parameters: paramsFromProto(in.GetParameters()),
		}
		switch {
		case len(raw) > 0:
			if in.GetContents() != nil {
				return nil, fmt.Errorf("%w: input %q has both raw and typed contents", ErrInvalidRequest, t.Name)
			}
			t.Data = raw[i]
		case in.GetContents() != nil:
			data, err := encodeContents(dt, in.GetContents())
			if err != nil {
				return nil, fmt.Errorf("%w: input %q: %v", ErrInvalidRequest, t.Name, err)
			}
			t.Data = data
		}
		r.Inputs = append(r.Inputs, t)
	}

	for _, out := range req.GetOutputs() {
		r.Outputs = append(r.Outputs, RequestedOutput{
			Name:       out.GetName(),
			Parameters: paramsFromProto(out.GetParameters()),
		})
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func encodeContents(dt Datatype, c *triton.InferTensorContents) ([]byte, error) {
	var buf []byte
	switch dt {
	case DatatypeBool:
		for _, v := range c.GetBoolContents() {
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	case DatatypeUint8:
		for _, v := range c.GetUintContents() {
			buf = append(buf, byte(v))
		}
	case DatatypeUint16:
		for _, v := range c.GetUintContents() {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
		}
	case DatatypeUint32:
		for _, v := range c.GetUintContents() {
			buf = binary.LittleEndian.AppendUint32(buf, v)
		}
	case DatatypeUint64:
		for _, v := range c.GetUint64Contents() {
			buf = binary.LittleEndian.AppendUint64(buf, v)
		}
	case DatatypeInt8:
		for _, v := range c.GetIntContents() {
			buf = append(buf, byte(int8(v)))
		}
	case DatatypeInt16:
		for _, v := range c.GetIntContents() {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(v)))
		}
	case DatatypeInt32:
		for _, v := range c.GetIntContents() {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		}
	case DatatypeInt64:
		for _, v := range c.GetInt64Contents() {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		}
	case DatatypeFP32:
		for _, v := range c.GetFp32Contents() {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	case DatatypeFP64:
		for _, v := range c.GetFp64Contents() {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	case DatatypeBytes:
		for _, v := range c.GetBytesContents() {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
		}
	case DatatypeFP16, DatatypeBF16:
		return nil, fmt.Errorf("%s has no typed contents; send raw_input_contents", dt)
	default:
		return nil, fmt.Errorf("unsupported datatype %s", dt)
	}
	return buf, nil
}

// paramsFromProto reads the parameter_choice oneof reflectively so every
// scalar kind the wire schema defines is picked up.
func paramsFromProto(in map[string]*triton.InferParameter) Parameters {
	if len(in) == 0 {
		return nil
	}
	out := make(Parameters, len(in))
	for name, p := range in {
		if p == nil {
			continue
		}
		msg := p.ProtoReflect()
		oneof := msg.Descriptor().Oneofs().ByName("parameter_choice")
		if oneof == nil {
			continue
		}
		fd := msg.WhichOneof(oneof)
		if fd == nil {
			continue
		}
		v := msg.Get(fd)
		switch fd.Kind() {
		case protoreflect.BoolKind:
			out[name] = Parameter{Kind: ParameterBool, Bool: v.Bool()}
		case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
			protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
			out[name] = Parameter{Kind: ParameterInt64, Int64: v.Int()}
		case protoreflect.Uint64Kind, protoreflect.Fixed64Kind,
			protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
			out[name] = Parameter{Kind: ParameterUint64, Uint64: v.Uint()}
		case protoreflect.DoubleKind, protoreflect.FloatKind:
			out[name] = Parameter{Kind: ParameterDouble, Double: v.Float()}
		case protoreflect.StringKind:
			out[name] = Parameter{Kind: ParameterString, String: v.String()}
		}
	}
	return out
}
