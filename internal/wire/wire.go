// Package wire implements the primitive big-endian encoders/decoders shared by
// the full-snapshot and delta serializers: the fixed-width integer/float
// primitives, length-prefixed strings and arrays, and the sparse-set wire
// shape. Nothing in this package knows about worlds, components, or queries —
// it is purely the byte-level vocabulary the serializer (in the root columnar
// package) composes into its framing.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// SerializerVersion is the wire format version this package reads/writes.
// The columnar decoders reject any other value with their own
// VersionMismatchError.
const SerializerVersion uint16 = 2

// Mode distinguishes a full snapshot from a delta patch.
type Mode uint8

const (
	ModeFull  Mode = 0
	ModeDelta Mode = 1
)

// Sentinel byte/word values used throughout the wire encoding to mark null,
// undefined, and absent slots without spending a full tag byte on the
// common case.
const (
	NullFlag            uint8  = 254
	UndefinedFlag       uint8  = 255
	ConcreteValueMarker uint8  = 0
	SparseSetAbsentU16  uint16 = 0xFFFF
)

// ErrVersionMismatch describes a decoded buffer whose version header does
// not match SerializerVersion. Nothing in this module returns it; the
// columnar decoders return VersionMismatchError instead.
var ErrVersionMismatch = errors.New("wire: version mismatch")

// ElementType is the typed-column element kind used by scalar and
// subarray properties.
type ElementType uint8

const (
	I8 ElementType = iota
	U8
	U8C // clamped uint8, same wire width as U8
	I16
	U16
	I32
	U32
	F32
	F64
	EID // entity id, wire-compatible with U32
)

// ByteSize returns the fixed wire/in-memory width of one element.
func (t ElementType) ByteSize() int {
	switch t {
	case I8, U8, U8C:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32, EID:
		return 4
	case F64:
		return 8
	default:
		panic(fmt.Sprintf("wire: unknown element type %d", t))
	}
}

// IndexTypeFor picks the smallest unsigned integer element type that can index
// a subarray of the given length: length <= 255 -> U8, <= 65535 -> U16, else
// U32.
func IndexTypeFor(length int) ElementType {
	switch {
	case length <= 255:
		return U8
	case length <= 65535:
		return U16
	default:
		return U32
	}
}

// Writer accumulates a big-endian wire buffer.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Truncate drops the trailing n bytes (used to "rewind" a speculative header
// once a delta write turns out to contribute nothing).
func (w *Writer) Truncate(n int) {
	w.buf.Truncate(w.buf.Len() - n)
}

// WriteRaw appends b verbatim, used to splice a pre-built sub-buffer (a
// pid-blocks region, a JSON complex buffer) into the main writer.
func (w *Writer) WriteRaw(b []byte) { w.buf.Write(b) }

func (w *Writer) WriteU8(v uint8)   { w.buf.WriteByte(v) }
func (w *Writer) WriteU16(v uint16) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteU32(v uint32) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteI8(v int8)    { w.buf.WriteByte(byte(v)) }
func (w *Writer) WriteI16(v int16)  { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteI32(v int32)  { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteF32(v float32) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteF64(v float64) { binary.Write(&w.buf, binary.BigEndian, v) }

// WriteString writes a u16 length followed by that many Latin-1 bytes.
func (w *Writer) WriteString(s string) {
	w.WriteU16(uint16(len(s)))
	for i := 0; i < len(s); i++ {
		w.buf.WriteByte(s[i])
	}
}

// WriteU8String writes a u8 length followed by that many Latin-1 bytes,
// truncating s to 255 bytes first. Used for faux string property values.
func (w *Writer) WriteU8String(s string) {
	if len(s) > 255 {
		s = s[:255]
	}
	w.WriteU8(uint8(len(s)))
	for i := 0; i < len(s); i++ {
		w.buf.WriteByte(s[i])
	}
}

// PatchU32 overwrites the 4 bytes at absolute offset pos with v, used to
// fix up a speculative writeCount header once the real count is known
// without rebuilding everything written since.
func (w *Writer) PatchU32(pos int, v uint32) {
	b := w.buf.Bytes()
	binary.BigEndian.PutUint32(b[pos:pos+4], v)
}

// WriteUintArray writes a u16 length followed by elements as u16 each.
func (w *Writer) WriteUintArray(vals []uint16) {
	w.WriteU16(uint16(len(vals)))
	for _, v := range vals {
		w.WriteU16(v)
	}
}

// WriteNumberArray writes a u16 length followed by elements as f64 each.
func (w *Writer) WriteNumberArray(vals []float64) {
	w.WriteU16(uint16(len(vals)))
	for _, v := range vals {
		w.WriteF64(v)
	}
}

// WriteNumberObject writes a u16 count followed by (u32 key, f64 value)
// pairs in the order supplied.
func (w *Writer) WriteNumberObject(keys []uint32, vals []float64) {
	w.WriteU16(uint16(len(keys)))
	for i, k := range keys {
		w.WriteU32(k)
		w.WriteF64(vals[i])
	}
}

// WriteSparseSet writes: u16 dense_len + dense as u16 (SparseSetAbsentU16
// sentinel is the caller's responsibility on dense itself only in that
// dense never needs it — absence is represented by sparse only) + u16
// sparse_len + sparse as u16 with absent slots encoded as
// SparseSetAbsentU16.
func (w *Writer) WriteSparseSet(dense []uint32, sparse []int32) {
	w.WriteU16(uint16(len(dense)))
	for _, d := range dense {
		w.WriteU16(uint16(d))
	}
	w.WriteU16(uint16(len(sparse)))
	for _, s := range sparse {
		if s < 0 {
			w.WriteU16(SparseSetAbsentU16)
		} else {
			w.WriteU16(uint16(s))
		}
	}
}

// WriteElement writes v (as a float64 carrier) into the wire encoding of
// element type t.
func (w *Writer) WriteElement(t ElementType, v float64) {
	switch t {
	case I8:
		w.WriteI8(int8(v))
	case U8, U8C:
		w.WriteU8(uint8(v))
	case I16:
		w.WriteI16(int16(v))
	case U16:
		w.WriteU16(uint16(v))
	case I32:
		w.WriteI32(int32(v))
	case U32, EID:
		w.WriteU32(uint32(v))
	case F32:
		w.WriteF32(float32(v))
	case F64:
		w.WriteF64(v)
	default:
		panic(fmt.Sprintf("wire: unknown element type %d", t))
	}
}

// WriteIndex writes an index value in the smallest index element type
// that can represent it (see IndexTypeFor).
func (w *Writer) WriteIndex(t ElementType, idx int) {
	switch t {
	case U8:
		w.WriteU8(uint8(idx))
	case U16:
		w.WriteU16(uint16(idx))
	case U32:
		w.WriteU32(uint32(idx))
	default:
		panic(fmt.Sprintf("wire: invalid index element type %d", t))
	}
}

// Reader consumes a big-endian wire buffer produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return errors.Errorf("wire: truncated buffer, need %d have %d", n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadF64() (float64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU16()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return string(b), nil
}

// ReadBytes reads n raw bytes verbatim (a JSON complex buffer).
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

func (r *Reader) ReadU8String() (string, error) {
	n, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return string(b), nil
}

func (r *Reader) ReadUintArray() ([]uint16, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		out[i], err = r.ReadU16()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) ReadNumberArray() ([]float64, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i], err = r.ReadF64()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) ReadNumberObject() (keys []uint32, vals []float64, err error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, nil, err
	}
	keys = make([]uint32, n)
	vals = make([]float64, n)
	for i := 0; i < int(n); i++ {
		keys[i], err = r.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		vals[i], err = r.ReadF64()
		if err != nil {
			return nil, nil, err
		}
	}
	return keys, vals, nil
}

// ReadSparseSet reads the wire sparse-set shape back into (dense, sparse)
// slices, converting the SparseSetAbsentU16 sentinel to -1.
func (r *Reader) ReadSparseSet() (dense []uint32, sparse []int32, err error) {
	denseLen, err := r.ReadU16()
	if err != nil {
		return nil, nil, err
	}
	dense = make([]uint32, denseLen)
	for i := range dense {
		v, err := r.ReadU16()
		if err != nil {
			return nil, nil, err
		}
		dense[i] = uint32(v)
	}
	sparseLen, err := r.ReadU16()
	if err != nil {
		return nil, nil, err
	}
	sparse = make([]int32, sparseLen)
	for i := range sparse {
		v, err := r.ReadU16()
		if err != nil {
			return nil, nil, err
		}
		if v == SparseSetAbsentU16 {
			sparse[i] = -1
		} else {
			sparse[i] = int32(v)
		}
	}
	return dense, sparse, nil
}

// ReadElement reads one element of type t, returned as a float64 carrier.
func (r *Reader) ReadElement(t ElementType) (float64, error) {
	switch t {
	case I8:
		v, err := r.ReadI8()
		return float64(v), err
	case U8, U8C:
		v, err := r.ReadU8()
		return float64(v), err
	case I16:
		v, err := r.ReadI16()
		return float64(v), err
	case U16:
		v, err := r.ReadU16()
		return float64(v), err
	case I32:
		v, err := r.ReadI32()
		return float64(v), err
	case U32, EID:
		v, err := r.ReadU32()
		return float64(v), err
	case F32:
		v, err := r.ReadF32()
		return float64(v), err
	case F64:
		return r.ReadF64()
	default:
		return 0, fmt.Errorf("wire: unknown element type %d", t)
	}
}

// ReadIndex reads an index value encoded in element type t.
func (r *Reader) ReadIndex(t ElementType) (int, error) {
	switch t {
	case U8:
		v, err := r.ReadU8()
		return int(v), err
	case U16:
		v, err := r.ReadU16()
		return int(v), err
	case U32:
		v, err := r.ReadU32()
		return int(v), err
	default:
		return 0, fmt.Errorf("wire: invalid index element type %d", t)
	}
}
