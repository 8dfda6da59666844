package gguf

import "fmt"

// ValueType is the GGUF metadata-value type tag.
type ValueType uint32

const (
	TypeUint8 ValueType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeBool
	TypeString
	TypeArray
	TypeUint64
	TypeInt64
	TypeFloat64
)

// ArrayValue holds an array-typed metadata entry. When the element count
// meets or exceeds arraySkipThreshold, Elements is nil and Skipped is
// true: the reader still reports the correct Len but does not
// materialize the payload (see §4.A, large-array skip).
type ArrayValue struct {
	ElemType ValueType
	Len      uint64
	Elements []any
	Skipped  bool
}

// Value is one typed metadata value: either a scalar (Array == nil) or
// an array (Array != nil).
type Value struct {
	Type   ValueType
	Scalar any
	Array  *ArrayValue
}

// Metadata is the parsed header + key/value table of a GGUF file.
type Metadata struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
	Entries     map[string]Value
	Order       []string // insertion order as encountered in the stream
}

func (m *Metadata) get(key string) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}

func (m *Metadata) stringValue(key string) (string, bool) {
	v, ok := m.get(key)
	if !ok || v.Array != nil {
		return "", false
	}
	s, ok := v.Scalar.(string)
	return s, ok
}

// uintValue extracts any fixed-width unsigned or signed integer scalar
// as a uint64, regardless of its exact on-disk width — GGUF writers are
// not consistent about which integer width they use for a given key.
func (m *Metadata) uintValue(key string) (uint64, bool) {
	v, ok := m.get(key)
	if !ok || v.Array != nil {
		return 0, false
	}
	switch n := v.Scalar.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int8:
		return uint64(n), true
	case int16:
		return uint64(n), true
	case int32:
		return uint64(n), true
	case int64:
		return uint64(n), true
	default:
		return 0, false
	}
}

// Architecture returns the value of "general.architecture", or "" if absent.
func (m *Metadata) Architecture() string {
	s, _ := m.stringValue("general.architecture")
	return s
}

// QuantizationLabel resolves "general.file_type" through quantLabels.
// Returns "unknown" if the key is absent or the value is not recognized.
func (m *Metadata) QuantizationLabel() string {
	ft, ok := m.uintValue("general.file_type")
	if !ok {
		return "unknown"
	}
	if label, ok := quantLabels[int(ft)]; ok {
		return label
	}
	return "unknown"
}

// quantLabels maps the ggml_ftype enum to its canonical quantization name.
// Covers, at minimum, the families named in §4.A.
var quantLabels = map[int]string{
	0:  "F32",
	1:  "F16",
	2:  "Q4_0",
	3:  "Q4_1",
	7:  "Q8_0",
	8:  "Q5_0",
	9:  "Q5_1",
	10: "Q2_K",
	11: "Q3_K_S",
	12: "Q3_K_M",
	13: "Q3_K_L",
	14: "Q4_K_S",
	15: "Q4_K_M",
	16: "Q5_K_S",
	17: "Q5_K_M",
	18: "Q6_K",
	19: "IQ2_XXS",
	20: "IQ2_XS",
	21: "Q2_K_S",
	22: "IQ3_XS",
	23: "IQ3_XXS",
	24: "IQ1_S",
	25: "IQ4_NL",
	26: "IQ3_S",
	27: "IQ3_M",
	28: "IQ2_S",
	29: "IQ2_M",
	30: "IQ4_XS",
	31: "IQ1_M",
	32: "BF16",
}

func (m *Metadata) archKey(suffix string) string {
	arch := m.Architecture()
	if arch == "" {
		return ""
	}
	return arch + "." + suffix
}

// ContextLength is "{arch}.context_length".
func (m *Metadata) ContextLength() (uint64, bool) { return m.uintValue(m.archKey("context_length")) }

// EmbeddingSize is "{arch}.embedding_length".
func (m *Metadata) EmbeddingSize() (uint64, bool) { return m.uintValue(m.archKey("embedding_length")) }

// BlockCount is "{arch}.block_count".
func (m *Metadata) BlockCount() (uint64, bool) { return m.uintValue(m.archKey("block_count")) }

// HeadCount is "{arch}.attention.head_count".
func (m *Metadata) HeadCount() (uint64, bool) { return m.uintValue(m.archKey("attention.head_count")) }

// FeedForwardSize is "{arch}.feed_forward_length".
func (m *Metadata) FeedForwardSize() (uint64, bool) {
	return m.uintValue(m.archKey("feed_forward_length"))
}

// VocabSize is the length of the tokenizer.ggml.tokens array, whether or
// not its payload was skipped (Len is always accurate).
func (m *Metadata) VocabSize() (uint64, bool) {
	v, ok := m.get("tokenizer.ggml.tokens")
	if !ok || v.Array == nil {
		return 0, false
	}
	return v.Array.Len, true
}

// ParameterCountEstimate computes blocks·(4·embd²+3·embd·ff+2·embd) +
// vocab·embd·2, falling back to a vocab of 32000 when unknown, per §4.A.
func (m *Metadata) ParameterCountEstimate() uint64 {
	blocks, _ := m.BlockCount()
	embd, _ := m.EmbeddingSize()
	ff, _ := m.FeedForwardSize()
	vocab, ok := m.VocabSize()
	if !ok {
		vocab = 32000
	}
	return blocks*(4*embd*embd+3*embd*ff+2*embd) + vocab*embd*2
}

func (v ValueType) fixedSize() (int, bool) {
	switch v {
	case TypeUint8, TypeInt8, TypeBool:
		return 1, true
	case TypeUint16, TypeInt16:
		return 2, true
	case TypeUint32, TypeInt32, TypeFloat32:
		return 4, true
	case TypeUint64, TypeInt64, TypeFloat64:
		return 8, true
	default:
		return 0, false
	}
}

func (v ValueType) String() string {
	switch v {
	case TypeUint8:
		return "uint8"
	case TypeInt8:
		return "int8"
	case TypeUint16:
		return "uint16"
	case TypeInt16:
		return "int16"
	case TypeUint32:
		return "uint32"
	case TypeInt32:
		return "int32"
	case TypeFloat32:
		return "float32"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeUint64:
		return "uint64"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(v))
	}
}
