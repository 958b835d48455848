package snapshot

import (
	"encoding/binary"
	"fmt"
	"math"
)

// serializer builds the on-disk byte stream. Header fields use fixed
// widths; payload integers and floats use the mode width.
type serializer struct {
	buf     []byte
	compact bool
}

func (s *serializer) u32(v uint32) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
}

func (s *serializer) u64(v uint64) {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
}

func (s *serializer) f64(v float64) {
	s.u64(math.Float64bits(v))
}

// uint writes a payload integer in the mode width.
func (s *serializer) uint(v uint64) {
	if s.compact {
		s.u32(uint32(v))
	} else {
		s.u64(v)
	}
}

func (s *serializer) int(v int64) {
	s.uint(uint64(v))
}

// float writes a payload float in the mode width.
func (s *serializer) float(v float64) {
	if s.compact {
		s.buf = binary.LittleEndian.AppendUint32(s.buf, math.Float32bits(float32(v)))
	} else {
		s.f64(v)
	}
}

func (s *serializer) cstring(str string) {
	s.buf = append(s.buf, str...)
	s.buf = append(s.buf, 0)
}

func (s *serializer) padTo(align int) {
	for len(s.buf)%align != 0 {
		s.buf = append(s.buf, 0)
	}
}

// deserializer decodes the byte stream with a sticky error; callers
// check err once per block.
type deserializer struct {
	data    []byte
	pos     int
	compact bool
	err     error
}

func (d *deserializer) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated %s at offset %d", ErrInvalidFormat, what, d.pos)
	}
}

func (d *deserializer) take(n int, what string) []byte {
	if d.err != nil {
		return nil
	}
	if d.pos+n > len(d.data) {
		d.fail(what)
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *deserializer) u32(what string) uint32 {
	b := d.take(4, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *deserializer) u64(what string) uint64 {
	b := d.take(8, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *deserializer) f64(what string) float64 {
	return math.Float64frombits(d.u64(what))
}

func (d *deserializer) uint(what string) uint64 {
	if d.compact {
		return uint64(d.u32(what))
	}
	return d.u64(what)
}

func (d *deserializer) int(what string) int64 {
	if d.compact {
		return int64(int32(d.u32(what)))
	}
	return int64(d.u64(what))
}

func (d *deserializer) float(what string) float64 {
	if d.compact {
		return float64(math.Float32frombits(d.u32(what)))
	}
	return d.f64(what)
}

func (d *deserializer) cstring(what string) string {
	if d.err != nil {
		return ""
	}
	for i := d.pos; i < len(d.data); i++ {
		if d.data[i] == 0 {
			s := string(d.data[d.pos:i])
			d.pos = i + 1
			return s
		}
	}
	d.fail(what)
	return ""
}

func (d *deserializer) skipTo(align int) {
	if d.err != nil {
		return
	}
	if rem := d.pos % align; rem != 0 {
		d.take(align-rem, "padding")
	}
}
