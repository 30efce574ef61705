package blob

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// payloadBuffer appends and consumes little-endian values. The first error
// sticks; later calls are no-ops.
type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint8(v uint8) {
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v)
}

func (p *payloadBuffer) writeBool(v bool) {
	if v {
		p.writeUint8(1)
		return
	}
	p.writeUint8(0)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeFloat32(v float64) {
	p.writeUint32(math.Float32bits(float32(v)))
}

func (p *payloadBuffer) writeFloat64(v float64) {
	p.writeUint64(math.Float64bits(v))
}

func (p *payloadBuffer) writeVec32(v r3.Vec) {
	p.writeFloat32(v.X)
	p.writeFloat32(v.Y)
	p.writeFloat32(v.Z)
}

func (p *payloadBuffer) writeVec64(v r3.Vec) {
	p.writeFloat64(v.X)
	p.writeFloat64(v.Y)
	p.writeFloat64(v.Z)
}

func (p *payloadBuffer) writeRange(r Range) {
	p.writeUint32(r.First)
	p.writeUint32(r.NumFrames)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) writeBytes(b []byte) {
	if p.err != nil {
		return
	}
	if uint64(len(b)) > math.MaxUint32 {
		p.err = fmt.Errorf("byte slice too long: %d", len(b))
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(len(b)))
	p.buf = append(p.buf, b...)
}

func (p *payloadBuffer) need(n int) bool {
	if p.err != nil {
		return false
	}
	if p.pos+n > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (p *payloadBuffer) readUint8() uint8 {
	if !p.need(1) {
		return 0
	}
	v := p.buf[p.pos]
	p.pos++
	return v
}

func (p *payloadBuffer) readBool() bool {
	return p.readUint8() != 0
}

func (p *payloadBuffer) readUint32() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readUint64() uint64 {
	if !p.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readFloat32() float64 {
	return float64(math.Float32frombits(p.readUint32()))
}

func (p *payloadBuffer) readFloat64() float64 {
	return math.Float64frombits(p.readUint64())
}

func (p *payloadBuffer) readVec32() r3.Vec {
	return r3.Vec{X: p.readFloat32(), Y: p.readFloat32(), Z: p.readFloat32()}
}

func (p *payloadBuffer) readVec64() r3.Vec {
	return r3.Vec{X: p.readFloat64(), Y: p.readFloat64(), Z: p.readFloat64()}
}

func (p *payloadBuffer) readRange() Range {
	return Range{First: p.readUint32(), NumFrames: p.readUint32()}
}

func (p *payloadBuffer) readString() string {
	if !p.need(2) {
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if !p.need(l) {
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

func (p *payloadBuffer) readBytes() []byte {
	l := int(p.readUint32())
	if l == 0 || !p.need(l) {
		return nil
	}
	b := make([]byte, l)
	copy(b, p.buf[p.pos:p.pos+l])
	p.pos += l
	return b
}

// readCount reads a row count and checks that count rows of at least
// rowSize bytes fit into the rest of the payload.
func (p *payloadBuffer) readCount(rowSize int) int {
	n := int(p.readUint32())
	if p.err != nil {
		return 0
	}
	if rowSize > 0 && n > (len(p.buf)-p.pos)/rowSize {
		p.err = fmt.Errorf("table of %d rows exceeds payload", n)
		return 0
	}
	return n
}
