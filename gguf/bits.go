package gguf

import (
	"fmt"
	"math"
)

func float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }

func float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }

func errUnknownType(t ValueType) error {
	return fmt.Errorf("unrecognized gguf value type %s", t)
}
