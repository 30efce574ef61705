package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/hupe1980/motiondb/internal/hash"
	"github.com/hupe1980/motiondb/quantization"
	"github.com/hupe1980/motiondb/xform"
	"gonum.org/v1/gonum/spatial/r3"
)

// FormatVersion is the only binary format version this package reads.
const FormatVersion = 1

const (
	magic      = "MODB"
	headerSize = 64
)

// MaxPayloadSize bounds the stored and raw payload lengths a header may
// declare.
const MaxPayloadSize = 1 << 32

// Header is the fixed-size prefix of a serialized Binary.
//
// Layout (little endian):
//
//	Magic        [4]byte  "MODB"
//	Version      uint32
//	Compression  uint32
//	Checksum     uint32   CRC32-C of bytes [16:64) and the stored payload
//	StoredLength uint64
//	RawLength    uint64
//	SampleRate   float64
//	TimeHorizon  float64
//	BuildID      [16]byte
type Header struct {
	Version      uint32
	Compression  Compression
	Checksum     uint32
	StoredLength uint64
	RawLength    uint64
	SampleRate   float64
	TimeHorizon  float64
	BuildID      uuid.UUID
}

func (h *Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Compression))
	binary.LittleEndian.PutUint32(buf[12:16], h.Checksum)
	binary.LittleEndian.PutUint64(buf[16:24], h.StoredLength)
	binary.LittleEndian.PutUint64(buf[24:32], h.RawLength)
	binary.LittleEndian.PutUint64(buf[32:40], math.Float64bits(h.SampleRate))
	binary.LittleEndian.PutUint64(buf[40:48], math.Float64bits(h.TimeHorizon))
	copy(buf[48:64], h.BuildID[:])
	return buf
}

func parseHeader(buf []byte) (Header, error) {
	if string(buf[0:4]) != magic {
		return Header{}, fmt.Errorf("%w: %x", ErrInvalidMagic, buf[0:4])
	}
	h := Header{
		Version:      binary.LittleEndian.Uint32(buf[4:8]),
		Compression:  Compression(binary.LittleEndian.Uint32(buf[8:12])),
		Checksum:     binary.LittleEndian.Uint32(buf[12:16]),
		StoredLength: binary.LittleEndian.Uint64(buf[16:24]),
		RawLength:    binary.LittleEndian.Uint64(buf[24:32]),
		SampleRate:   math.Float64frombits(binary.LittleEndian.Uint64(buf[32:40])),
		TimeHorizon:  math.Float64frombits(binary.LittleEndian.Uint64(buf[40:48])),
	}
	copy(h.BuildID[:], buf[48:64])
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, FormatVersion)
	}
	if h.StoredLength > MaxPayloadSize || h.RawLength > MaxPayloadSize {
		return Header{}, fmt.Errorf("%w: payload length %d (raw %d) exceeds %d", ErrCorrupt, h.StoredLength, h.RawLength, uint64(MaxPayloadSize))
	}
	return h, nil
}

// ReadHeader reads and validates the header of a serialized Binary.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	return parseHeader(buf)
}

// Write serializes b.
func Write(w io.Writer, b *Binary, c Compression) error {
	raw, err := encodePayload(b)
	if err != nil {
		return err
	}

	stored, applied, err := compress(raw, c)
	if err != nil {
		return fmt.Errorf("blob: compress: %w", err)
	}

	h := Header{
		Version:      FormatVersion,
		Compression:  applied,
		StoredLength: uint64(len(stored)),
		RawLength:    uint64(len(raw)),
		SampleRate:   b.SampleRate,
		TimeHorizon:  b.TimeHorizon,
		BuildID:      b.BuildID,
	}
	header := h.marshal()

	crc := hash.NewCRC32C()
	_, _ = crc.Write(header[16:])
	_, _ = crc.Write(stored)
	binary.LittleEndian.PutUint32(header[12:16], crc.Sum32())

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Read deserializes a Binary written by Write.
func Read(r io.Reader) (*Binary, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	h, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	// The buffer grows with the bytes actually present, not the declared length.
	stored, err := io.ReadAll(io.LimitReader(r, int64(h.StoredLength)))
	if err != nil {
		return nil, err
	}
	if uint64(len(stored)) != h.StoredLength {
		return nil, io.ErrUnexpectedEOF
	}

	return decode(h, header, stored)
}

// Marshal serializes b into a byte slice.
func Marshal(b *Binary, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, b, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes a Binary from data. With uncompressed payloads the
// returned tables are decoded into fresh memory, so data may be released
// afterwards.
func Unmarshal(data []byte) (*Binary, error) {
	if len(data) < headerSize {
		return nil, io.ErrUnexpectedEOF
	}
	h, err := parseHeader(data[:headerSize])
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-headerSize) < h.StoredLength {
		return nil, io.ErrUnexpectedEOF
	}
	return decode(h, data[:headerSize], data[headerSize:headerSize+int(h.StoredLength)])
}

func decode(h Header, header, stored []byte) (*Binary, error) {
	crc := hash.NewCRC32C()
	_, _ = crc.Write(header[16:])
	_, _ = crc.Write(stored)
	if crc.Sum32() != h.Checksum {
		return nil, ErrChecksumMismatch
	}

	raw, err := decompress(stored, h.Compression, h.RawLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	b, err := decodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	b.SampleRate = h.SampleRate
	b.TimeHorizon = h.TimeHorizon
	b.BuildID = h.BuildID
	return b, nil
}

// Freeze rounds the bulk float data to the precision it is serialized
// with, so that a Binary compares equal to its serialized round trip.
func (b *Binary) Freeze() {
	for i, t := range b.Transforms {
		b.Transforms[i] = xform.Transform{
			Position: roundVec(t.Position),
			Rotation: r3.Rotation{
				Real: round32(t.Rotation.Real),
				Imag: round32(t.Rotation.Imag),
				Jmag: round32(t.Rotation.Jmag),
				Kmag: round32(t.Rotation.Kmag),
			},
		}
	}
	for i := range b.CodeBooks {
		for _, e := range []*Encoding{&b.CodeBooks[i].Pose, &b.CodeBooks[i].Trajectory} {
			for j, c := range e.Centroids {
				e.Centroids[j] = roundVec(c)
			}
		}
	}
}

func round32(v float64) float64 { return float64(float32(v)) }

func roundVec(v r3.Vec) r3.Vec {
	return r3.Vec{X: round32(v.X), Y: round32(v.Y), Z: round32(v.Z)}
}

func encodePayload(b *Binary) ([]byte, error) {
	p := newPayloadBuffer(make([]byte, 0, 1<<16))

	p.writeUint32(uint32(len(b.Strings)))
	for _, s := range b.Strings {
		p.writeString(s)
	}

	writeTable(p, b.Types, func(p *payloadBuffer, t Type) {
		p.writeUint32(uint32(t.Name))
		p.writeUint64(t.Hash)
		p.writeUint32(t.NumBytes)
		p.writeUint32(t.FieldStart)
		p.writeUint32(t.NumFields)
	})
	writeTable(p, b.TypeFields, func(p *payloadBuffer, f TypeField) {
		p.writeUint32(uint32(f.Name))
		p.writeUint8(f.Kind)
	})
	writeTable(p, b.Traits, func(p *payloadBuffer, t Trait) {
		p.writeUint32(uint32(t.Type))
		p.writeUint32(t.PayloadOffset)
	})
	p.writeBytes(b.Payloads)

	writeTable(p, b.Joints, func(p *payloadBuffer, j Joint) {
		p.writeUint32(uint32(j.Name))
		p.writeUint32(uint32(j.Parent))
	})
	writeTable(p, b.Transforms, func(p *payloadBuffer, t xform.Transform) {
		p.writeVec32(t.Position)
		p.writeFloat32(t.Rotation.Real)
		p.writeFloat32(t.Rotation.Imag)
		p.writeFloat32(t.Rotation.Jmag)
		p.writeFloat32(t.Rotation.Kmag)
	})

	writeTable(p, b.Segments, func(p *payloadBuffer, s Segment) {
		p.writeUint32(uint32(s.Clip))
		p.writeRange(s.Source)
		p.writeRange(s.Destination)
		p.writeUint32(uint32(s.TagStart))
		p.writeUint32(s.NumTags)
		p.writeUint32(uint32(s.MarkerStart))
		p.writeUint32(s.NumMarkers)
		p.writeUint32(uint32(s.IntervalStart))
		p.writeUint32(s.NumIntervals)
		p.writeUint32(uint32(s.Prev))
		p.writeUint32(uint32(s.Next))
	})
	writeTable(p, b.Tags, func(p *payloadBuffer, t Tag) {
		p.writeUint32(uint32(t.Segment))
		p.writeUint32(uint32(t.Trait))
		p.writeRange(t.Range)
	})
	writeTable(p, b.Markers, func(p *payloadBuffer, m Marker) {
		p.writeUint32(uint32(m.Segment))
		p.writeUint32(uint32(m.Trait))
		p.writeUint32(m.Frame)
	})
	writeTable(p, b.Intervals, func(p *payloadBuffer, iv Interval) {
		p.writeUint32(uint32(iv.Segment))
		p.writeRange(iv.Range)
		p.writeUint32(uint32(iv.TagList))
		p.writeUint32(uint32(iv.CodeBook))
		p.writeUint32(iv.FragmentOffset)
	})
	writeTable(p, b.TagLists, func(p *payloadBuffer, l TagList) {
		p.writeUint32(l.Start)
		p.writeUint32(l.NumTags)
	})
	writeTable(p, b.TagIndices, func(p *payloadBuffer, id TagID) {
		p.writeUint32(uint32(id))
	})

	writeTable(p, b.Metrics, func(p *payloadBuffer, m Metric) {
		p.writeUint32(uint32(m.Name))
		p.writeUint32(uint32(m.TraitType))
		p.writeUint32(m.JointStart)
		p.writeUint32(m.NumJoints)
		p.writeUint32(m.NumPoseSamples)
		p.writeFloat64(m.PoseTimeSpan)
		p.writeUint32(m.NumTrajectorySamples)
		p.writeFloat64(m.TrajectorySampleRange)
		p.writeBool(m.TrajectoryDisplacements)
	})
	writeTable(p, b.MetricJoints, func(p *payloadBuffer, j MetricJoint) {
		p.writeUint32(uint32(j.Name))
		p.writeUint32(j.Index)
	})
	writeTable(p, b.CodeBooks, func(p *payloadBuffer, cb CodeBook) {
		p.writeUint32(uint32(cb.Metric))
		p.writeUint32(uint32(cb.Trait))
		p.writeUint32(cb.IntervalStart)
		p.writeUint32(cb.NumIntervals)
		p.writeUint32(cb.NumFragments)
		p.writeEncoding(&cb.Pose)
		p.writeEncoding(&cb.Trajectory)
	})
	writeTable(p, b.CodeBookIntervals, func(p *payloadBuffer, id IntervalID) {
		p.writeUint32(uint32(id))
	})

	if p.err != nil {
		return nil, p.err
	}
	return p.buf, nil
}

func decodePayload(raw []byte) (*Binary, error) {
	p := newPayloadBuffer(raw)
	b := &Binary{}

	if n := p.readCount(2); n > 0 {
		b.Strings = make([]string, n)
	}
	for i := range b.Strings {
		b.Strings[i] = p.readString()
	}

	b.Types = readTable(p, 24, func(p *payloadBuffer) Type {
		return Type{
			Name:       StringID(p.readUint32()),
			Hash:       p.readUint64(),
			NumBytes:   p.readUint32(),
			FieldStart: p.readUint32(),
			NumFields:  p.readUint32(),
		}
	})
	b.TypeFields = readTable(p, 5, func(p *payloadBuffer) TypeField {
		return TypeField{Name: StringID(p.readUint32()), Kind: p.readUint8()}
	})
	b.Traits = readTable(p, 8, func(p *payloadBuffer) Trait {
		return Trait{Type: TypeID(p.readUint32()), PayloadOffset: p.readUint32()}
	})
	b.Payloads = p.readBytes()

	b.Joints = readTable(p, 8, func(p *payloadBuffer) Joint {
		return Joint{Name: StringID(p.readUint32()), Parent: int32(p.readUint32())}
	})
	b.Transforms = readTable(p, 28, func(p *payloadBuffer) xform.Transform {
		pos := p.readVec32()
		return xform.Transform{
			Position: pos,
			Rotation: r3.Rotation{
				Real: p.readFloat32(),
				Imag: p.readFloat32(),
				Jmag: p.readFloat32(),
				Kmag: p.readFloat32(),
			},
		}
	})

	b.Segments = readTable(p, 52, func(p *payloadBuffer) Segment {
		return Segment{
			Clip:          StringID(p.readUint32()),
			Source:        p.readRange(),
			Destination:   p.readRange(),
			TagStart:      TagID(p.readUint32()),
			NumTags:       p.readUint32(),
			MarkerStart:   MarkerID(p.readUint32()),
			NumMarkers:    p.readUint32(),
			IntervalStart: IntervalID(p.readUint32()),
			NumIntervals:  p.readUint32(),
			Prev:          SegmentID(p.readUint32()),
			Next:          SegmentID(p.readUint32()),
		}
	})
	b.Tags = readTable(p, 16, func(p *payloadBuffer) Tag {
		return Tag{Segment: SegmentID(p.readUint32()), Trait: TraitID(p.readUint32()), Range: p.readRange()}
	})
	b.Markers = readTable(p, 12, func(p *payloadBuffer) Marker {
		return Marker{Segment: SegmentID(p.readUint32()), Trait: TraitID(p.readUint32()), Frame: p.readUint32()}
	})
	b.Intervals = readTable(p, 24, func(p *payloadBuffer) Interval {
		return Interval{
			Segment:        SegmentID(p.readUint32()),
			Range:          p.readRange(),
			TagList:        TagListID(p.readUint32()),
			CodeBook:       CodeBookID(p.readUint32()),
			FragmentOffset: p.readUint32(),
		}
	})
	b.TagLists = readTable(p, 8, func(p *payloadBuffer) TagList {
		return TagList{Start: p.readUint32(), NumTags: p.readUint32()}
	})
	b.TagIndices = readTable(p, 4, func(p *payloadBuffer) TagID {
		return TagID(p.readUint32())
	})

	b.Metrics = readTable(p, 41, func(p *payloadBuffer) Metric {
		return Metric{
			Name:                    StringID(p.readUint32()),
			TraitType:               TypeID(p.readUint32()),
			JointStart:              p.readUint32(),
			NumJoints:               p.readUint32(),
			NumPoseSamples:          p.readUint32(),
			PoseTimeSpan:            p.readFloat64(),
			NumTrajectorySamples:    p.readUint32(),
			TrajectorySampleRange:   p.readFloat64(),
			TrajectoryDisplacements: p.readBool(),
		}
	})
	b.MetricJoints = readTable(p, 8, func(p *payloadBuffer) MetricJoint {
		return MetricJoint{Name: StringID(p.readUint32()), Index: p.readUint32()}
	})
	b.CodeBooks = readTable(p, 20, func(p *payloadBuffer) CodeBook {
		cb := CodeBook{
			Metric:        MetricID(p.readUint32()),
			Trait:         TraitID(p.readUint32()),
			IntervalStart: p.readUint32(),
			NumIntervals:  p.readUint32(),
			NumFragments:  p.readUint32(),
		}
		cb.Pose = p.readEncoding()
		cb.Trajectory = p.readEncoding()
		return cb
	})
	b.CodeBookIntervals = readTable(p, 4, func(p *payloadBuffer) IntervalID {
		return IntervalID(p.readUint32())
	})

	if p.err != nil {
		return nil, p.err
	}
	if p.pos != len(p.buf) {
		return nil, fmt.Errorf("%d trailing bytes", len(p.buf)-p.pos)
	}
	return b, nil
}

func writeTable[T any](p *payloadBuffer, rows []T, fn func(*payloadBuffer, T)) {
	p.writeUint32(uint32(len(rows)))
	for _, row := range rows {
		fn(p, row)
	}
}

// readTable reads a counted table. rowSize is the minimum encoded row size,
// used to reject counts that cannot fit the remaining payload.
func readTable[T any](p *payloadBuffer, rowSize int, fn func(*payloadBuffer) T) []T {
	n := p.readCount(rowSize)
	if n == 0 {
		return nil
	}
	rows := make([]T, n)
	for i := range rows {
		rows[i] = fn(p)
	}
	return rows
}

func (p *payloadBuffer) writeEncoding(e *Encoding) {
	p.writeUint32(e.NumFragments)
	p.writeUint32(e.NumQuantized)
	p.writeUint32(e.NumNormalized)
	p.writeUint32(e.NumTransformed)
	p.writeBytes(e.Codes)
	writeTable(p, e.Centroids, func(p *payloadBuffer, v r3.Vec) {
		p.writeVec32(v)
	})
	writeTable(p, e.BoundingBoxes, func(p *payloadBuffer, box quantization.BoundingBox) {
		p.writeVec64(box.Transform.Position)
		p.writeFloat64(box.Transform.Rotation.Real)
		p.writeFloat64(box.Transform.Rotation.Imag)
		p.writeFloat64(box.Transform.Rotation.Jmag)
		p.writeFloat64(box.Transform.Rotation.Kmag)
		p.writeVec64(box.Extent)
		p.writeFloat64(box.InverseDiagonal)
	})
	writeTable(p, e.Quantizers, func(p *payloadBuffer, q quantization.Quantizer) {
		p.writeFloat64(q.Minimum)
		p.writeFloat64(q.Range)
	})
}

func (p *payloadBuffer) readEncoding() Encoding {
	e := Encoding{
		NumFragments:   p.readUint32(),
		NumQuantized:   p.readUint32(),
		NumNormalized:  p.readUint32(),
		NumTransformed: p.readUint32(),
	}
	e.Codes = p.readBytes()
	e.Centroids = readTable(p, 12, func(p *payloadBuffer) r3.Vec {
		return p.readVec32()
	})
	e.BoundingBoxes = readTable(p, 88, func(p *payloadBuffer) quantization.BoundingBox {
		pos := p.readVec64()
		rot := r3.Rotation{
			Real: p.readFloat64(),
			Imag: p.readFloat64(),
			Jmag: p.readFloat64(),
			Kmag: p.readFloat64(),
		}
		return quantization.BoundingBox{
			Transform:       xform.Transform{Position: pos, Rotation: rot},
			Extent:          p.readVec64(),
			InverseDiagonal: p.readFloat64(),
		}
	})
	e.Quantizers = readTable(p, 16, func(p *payloadBuffer) quantization.Quantizer {
		return quantization.Quantizer{Minimum: p.readFloat64(), Range: p.readFloat64()}
	})
	return e
}
