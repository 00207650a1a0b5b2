package tensor

import "fmt"

// Datatype is the element type of a tensor.
type Datatype uint8

// The zero value is not a valid datatype.
const (
	DatatypeInvalid Datatype = iota
	DatatypeBool
	DatatypeUint8
	DatatypeUint16
	DatatypeUint32
	DatatypeUint64
	DatatypeInt8
	DatatypeInt16
	DatatypeInt32
	DatatypeInt64
	DatatypeFP16
	DatatypeFP32
	DatatypeFP64
	DatatypeBF16
	DatatypeBytes
)

var datatypeNames = map[string]Datatype{
	"BOOL":   DatatypeBool,
	"UINT8":  DatatypeUint8,
	"UINT16": DatatypeUint16,
	"UINT32": DatatypeUint32,
	"UINT64": DatatypeUint64,
	"INT8":   DatatypeInt8,
	"INT16":  DatatypeInt16,
	"INT32":  DatatypeInt32,
	"INT64":  DatatypeInt64,
	"FP16":   DatatypeFP16,
	"FP32":   DatatypeFP32,
	"FP64":   DatatypeFP64,
	"BF16":   DatatypeBF16,
	"BYTES":  DatatypeBytes,
}

// ParseDatatype parses a protocol datatype name such as "FP32".
func ParseDatatype(s string) (Datatype, error) {
	d, ok := datatypeNames[s]
	if !ok {
		return DatatypeInvalid, fmt.Errorf("%w: unknown datatype %q", ErrInvalidRequest, s)
	}
	return d, nil
}

// String returns the protocol name of the datatype.
func (d Datatype) String() string {
	switch d {
	case DatatypeBool:
		return "BOOL"
	case DatatypeUint8:
		return "UINT8"
	case DatatypeUint16:
		return "UINT16"
	case DatatypeUint32:
		return "UINT32"
	case DatatypeUint64:
		return "UINT64"
	case DatatypeInt8:
		return "INT8"
	case DatatypeInt16:
		return "INT16"
	case DatatypeInt32:
		return "INT32"
	case DatatypeInt64:
		return "INT64"
	case DatatypeFP16:
		return "FP16"
	case DatatypeFP32:
		return "FP32"
	case DatatypeFP64:
		return "FP64"
	case DatatypeBF16:
		return "BF16"
	case DatatypeBytes:
		return "BYTES"
	default:
		return "INVALID"
	}
}

// Size returns the element width in bytes. BYTES and invalid datatypes
// return 0: their elements are variable length.
func (d Datatype) Size() int {
	switch d {
	case DatatypeBool, DatatypeUint8, DatatypeInt8:
		return 1
	case DatatypeUint16, DatatypeInt16, DatatypeFP16, DatatypeBF16:
		return 2
	case DatatypeUint32, DatatypeInt32, DatatypeFP32:
		return 4
	case DatatypeUint64, DatatypeInt64, DatatypeFP64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is one of the known datatypes.
func (d Datatype) Valid() bool {
	return d > DatatypeInvalid && d <= DatatypeBytes
}
