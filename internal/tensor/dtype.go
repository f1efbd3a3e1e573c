// Package tensor provides the tensor substrate for the Ember optimizer kernels.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types. Ember is a numeric-kernel library, so every dtype is a
// floating-point format. The half-precision formats are stored as uint16 lanes
// and widened to float32 before any arithmetic.
const (
	Float32 DataType = iota
	Float64
	Float16
	BFloat16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	case Float16, BFloat16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// IsNarrow reports whether arithmetic on this dtype must widen to float32.
// Sixteen-bit formats lose too much precision to accumulate in storage width.
func (dt DataType) IsNarrow() bool {
	return dt == Float16 || dt == BFloat16
}

// ParseDataType maps a dtype name to its DataType. Used by the CLI and config
// layer; canonical names follow String().
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "float32", "f32":
		return Float32, true
	case "float64", "f64":
		return Float64, true
	case "float16", "f16", "half":
		return Float16, true
	case "bfloat16", "bf16":
		return BFloat16, true
	default:
		return Float32, false
	}
}
