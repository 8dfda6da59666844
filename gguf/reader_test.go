package gguf

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint64(buf, uint64(len(s)))
	buf.WriteString(s)
}

func header(buf *bytes.Buffer, version uint32, tensorCount, kvCount uint64) {
	buf.WriteString("GGUF")
	writeUint32(buf, version)
	writeUint64(buf, tensorCount)
	writeUint64(buf, kvCount)
}

func TestReadRejectsBadMagic(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("GGUX")
	writeUint32(buf, 3)
	writeUint64(buf, 0)
	writeUint64(buf, 0)

	_, err := NewStreamReader(buf)
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
	re, ok := err.(*ReadError)
	if !ok || re.Kind.String() != "not-gguf" {
		t.Fatalf("got %v, want not-gguf ReadError", err)
	}
}

func TestReadRejectsUnsupportedVersion(t *testing.T) {
	buf := &bytes.Buffer{}
	header(buf, 1, 0, 0)

	_, err := NewStreamReader(buf)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	re, ok := err.(*ReadError)
	if !ok || re.Kind.String() != "unsupported-version" {
		t.Fatalf("got %v, want unsupported-version ReadError", err)
	}
}

func TestReadSimpleMetadata(t *testing.T) {
	buf := &bytes.Buffer{}
	header(buf, 3, 5, 2)

	writeString(buf, "general.architecture")
	writeUint32(buf, uint32(TypeString))
	writeString(buf, "llama")

	writeString(buf, "general.file_type")
	writeUint32(buf, uint32(TypeUint32))
	writeUint32(buf, 15) // Q4_K_M

	md, err := NewStreamReader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Version != 3 || md.TensorCount != 5 || md.KVCount != 2 {
		t.Fatalf("unexpected header: %+v", md)
	}
	if got := md.Architecture(); got != "llama" {
		t.Fatalf("Architecture() = %q, want llama", got)
	}
	if got := md.QuantizationLabel(); got != "Q4_K_M" {
		t.Fatalf("QuantizationLabel() = %q, want Q4_K_M", got)
	}
}

// TestLargeArraySkip grounds scenario S4: a single metadata entry
// tokenizer.ggml.tokens of type array-of-string length 32000 must be
// reported with the correct length and a nil, skipped payload, leaving
// the stream positioned exactly after the array (nothing trails it here).
func TestLargeArraySkip(t *testing.T) {
	buf := &bytes.Buffer{}
	header(buf, 3, 0, 1)

	writeString(buf, "tokenizer.ggml.tokens")
	writeUint32(buf, uint32(TypeArray))
	writeUint32(buf, uint32(TypeString)) // element type
	const count = 32000
	writeUint64(buf, uint64(count))
	for i := 0; i < count; i++ {
		writeString(buf, "tok")
	}

	md, err := NewStreamReader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := md.Entries["tokenizer.ggml.tokens"]
	if !ok {
		t.Fatal("missing tokenizer.ggml.tokens entry")
	}
	if v.Array == nil || !v.Array.Skipped || v.Array.Len != count || v.Array.Elements != nil {
		t.Fatalf("unexpected array value: %+v", v.Array)
	}
	vocab, ok := md.VocabSize()
	if !ok || vocab != count {
		t.Fatalf("VocabSize() = %d, %v, want %d, true", vocab, ok, count)
	}
}

func TestSmallArrayMaterializes(t *testing.T) {
	buf := &bytes.Buffer{}
	header(buf, 3, 0, 1)

	writeString(buf, "small.array")
	writeUint32(buf, uint32(TypeArray))
	writeUint32(buf, uint32(TypeUint32))
	writeUint64(buf, 3)
	writeUint32(buf, 1)
	writeUint32(buf, 2)
	writeUint32(buf, 3)

	md, err := NewStreamReader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := md.Entries["small.array"]
	if v.Array.Skipped || len(v.Array.Elements) != 3 {
		t.Fatalf("expected materialized 3-element array, got %+v", v.Array)
	}
}

func TestParameterCountEstimateFallsBackVocab(t *testing.T) {
	md := &Metadata{Entries: map[string]Value{
		"general.architecture":   {Type: TypeString, Scalar: "llama"},
		"llama.block_count":      {Type: TypeUint32, Scalar: uint32(2)},
		"llama.embedding_length": {Type: TypeUint32, Scalar: uint32(4)},
		"llama.feed_forward_length": {Type: TypeUint32, Scalar: uint32(8)},
	}}
	got := md.ParameterCountEstimate()
	// blocks*(4*embd^2+3*embd*ff+2*embd) + vocab*embd*2, vocab falls back to 32000
	want := uint64(2*(4*16+3*4*8+2*4)) + 32000*4*2
	if got != want {
		t.Fatalf("ParameterCountEstimate() = %d, want %d", got, want)
	}
}
