package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/trait"
	"github.com/hupe1980/motiondb/xform"
	"gonum.org/v1/gonum/spatial/r3"
)

// ClipSetVersion is the current version of the clip document format.
const ClipSetVersion = 1

// ErrInvalidDocument is returned for clip documents that cannot be decoded
// into clips.
var ErrInvalidDocument = errors.New("codec: invalid clip document")

// ClipSet is the interchange document of build input: a rig, the trait
// types used by the annotations, and the clips themselves.
type ClipSet struct {
	Version int       `json:"version"`
	Rig     anim.Rig  `json:"rig"`
	Types   []TypeDoc `json:"types,omitempty"`
	Clips   []ClipDoc `json:"clips"`
}

// TypeDoc is a trait type. Field kinds use the names of trait.Kind.String.
type TypeDoc struct {
	Name   string     `json:"name"`
	Fields []FieldDoc `json:"fields,omitempty"`
}

// FieldDoc is a field of a TypeDoc.
type FieldDoc struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ClipDoc is one clip. Frames holds one local transform per joint of the
// rig for every frame.
type ClipDoc struct {
	Name             string           `json:"name"`
	SampleRate       float64          `json:"sampleRate"`
	PreBoundaryClip  string           `json:"preBoundaryClip,omitempty"`
	PostBoundaryClip string           `json:"postBoundaryClip,omitempty"`
	Frames           [][]TransformDoc `json:"frames"`
	Tags             []TagDoc         `json:"tags,omitempty"`
	Markers          []MarkerDoc      `json:"markers,omitempty"`
}

// TransformDoc is a rigid transform. Q is the rotation quaternion in
// (w, x, y, z) order.
type TransformDoc struct {
	P [3]float64 `json:"p"`
	Q [4]float64 `json:"q"`
}

// TagDoc annotates the time range [Start, Start+Duration) in seconds.
type TagDoc struct {
	Start    float64  `json:"start"`
	Duration float64  `json:"duration"`
	Trait    TraitDoc `json:"trait"`
}

// MarkerDoc annotates a single instant in seconds.
type MarkerDoc struct {
	Time  float64  `json:"time"`
	Trait TraitDoc `json:"trait"`
}

// TraitDoc is a trait value with its fields keyed by name.
type TraitDoc struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields,omitempty"`
}

// NewClipSet creates the document for clips. The types must cover every
// trait used by the annotations.
func NewClipSet(rig anim.Rig, types []trait.Type, clips []anim.Clip) (*ClipSet, error) {
	reg, err := trait.NewRegistry(types...)
	if err != nil {
		return nil, err
	}

	s := &ClipSet{
		Version: ClipSetVersion,
		Rig:     rig,
		Types:   make([]TypeDoc, len(types)),
		Clips:   make([]ClipDoc, len(clips)),
	}
	for i, t := range types {
		s.Types[i] = typeDoc(t)
	}

	numJoints := rig.NumJoints()
	for i := range clips {
		c := &clips[i]
		if err := c.Validate(rig); err != nil {
			return nil, err
		}

		doc := ClipDoc{
			Name:             c.Name,
			SampleRate:       c.SampleRate,
			PreBoundaryClip:  c.PreBoundaryClip,
			PostBoundaryClip: c.PostBoundaryClip,
			Frames:           make([][]TransformDoc, c.NumFrames),
		}
		for f := range c.NumFrames {
			pose := c.Pose(f, numJoints)
			doc.Frames[f] = make([]TransformDoc, numJoints)
			for j, t := range pose {
				doc.Frames[f][j] = transformDoc(t)
			}
		}
		for _, tag := range c.Tags {
			td, err := traitDoc(reg, tag.Trait)
			if err != nil {
				return nil, fmt.Errorf("clip %s: %w", c.Name, err)
			}
			doc.Tags = append(doc.Tags, TagDoc{Start: tag.Start, Duration: tag.Duration, Trait: td})
		}
		for _, m := range c.Markers {
			td, err := traitDoc(reg, m.Trait)
			if err != nil {
				return nil, fmt.Errorf("clip %s: %w", c.Name, err)
			}
			doc.Markers = append(doc.Markers, MarkerDoc{Time: m.Time, Trait: td})
		}
		s.Clips[i] = doc
	}
	return s, nil
}

// ReadClipSet decodes a clip document from r with c, or Default if c is
// nil.
func ReadClipSet(c Codec, r io.Reader) (*ClipSet, error) {
	if c == nil {
		c = Default
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var s ClipSet
	if err := c.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if s.Version != ClipSetVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrInvalidDocument, s.Version, ClipSetVersion)
	}
	return &s, nil
}

// WriteClipSet encodes s to w with c, or Default if c is nil.
func WriteClipSet(c Codec, w io.Writer, s *ClipSet) error {
	if c == nil {
		c = Default
	}
	data, err := c.Marshal(s)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// TraitTypes converts the type documents.
func (s *ClipSet) TraitTypes() ([]trait.Type, error) {
	types := make([]trait.Type, len(s.Types))
	for i, td := range s.Types {
		t := trait.Type{Name: td.Name, Fields: make([]trait.Field, len(td.Fields))}
		for j, fd := range td.Fields {
			k, err := trait.ParseKind(fd.Kind)
			if err != nil {
				return nil, fmt.Errorf("%w: type %s: %w", ErrInvalidDocument, td.Name, err)
			}
			t.Fields[j] = trait.Field{Name: fd.Name, Kind: k}
		}
		types[i] = t
	}
	return types, nil
}

// Registry returns a registry holding the types of the document.
func (s *ClipSet) Registry() (*trait.Registry, error) {
	types, err := s.TraitTypes()
	if err != nil {
		return nil, err
	}
	return trait.NewRegistry(types...)
}

// Decode converts the clip documents, resolving traits against reg.
func (s *ClipSet) Decode(reg *trait.Registry) ([]anim.Clip, error) {
	numJoints := s.Rig.NumJoints()
	clips := make([]anim.Clip, len(s.Clips))

	for i, doc := range s.Clips {
		c := anim.Clip{
			Name:             doc.Name,
			SampleRate:       doc.SampleRate,
			NumFrames:        len(doc.Frames),
			Frames:           make([]xform.Transform, 0, len(doc.Frames)*numJoints),
			PreBoundaryClip:  doc.PreBoundaryClip,
			PostBoundaryClip: doc.PostBoundaryClip,
		}
		for f, pose := range doc.Frames {
			if len(pose) != numJoints {
				return nil, fmt.Errorf("%w: clip %s frame %d has %d joints, want %d", ErrInvalidDocument, doc.Name, f, len(pose), numJoints)
			}
			for _, t := range pose {
				c.Frames = append(c.Frames, t.Transform())
			}
		}
		for _, td := range doc.Tags {
			v, err := td.Trait.Value(reg)
			if err != nil {
				return nil, fmt.Errorf("clip %s: %w", doc.Name, err)
			}
			c.Tags = append(c.Tags, anim.Tag{Start: td.Start, Duration: td.Duration, Trait: v})
		}
		for _, md := range doc.Markers {
			v, err := md.Trait.Value(reg)
			if err != nil {
				return nil, fmt.Errorf("clip %s: %w", doc.Name, err)
			}
			c.Markers = append(c.Markers, anim.Marker{Time: md.Time, Trait: v})
		}
		clips[i] = c
	}
	return clips, nil
}

// Transform converts the document. The rotation is used as stored.
func (d TransformDoc) Transform() xform.Transform {
	return xform.Transform{
		Position: r3.Vec{X: d.P[0], Y: d.P[1], Z: d.P[2]},
		Rotation: r3.Rotation{Real: d.Q[0], Imag: d.Q[1], Jmag: d.Q[2], Kmag: d.Q[3]},
	}
}

// Value encodes the trait with the layout registered in reg.
func (d TraitDoc) Value(reg *trait.Registry) (trait.Value, error) {
	t, ok := reg.Lookup(d.Type)
	if !ok {
		return trait.Value{}, fmt.Errorf("%w: %s", trait.ErrUnknownType, d.Type)
	}
	if len(d.Fields) != len(t.Fields) {
		return trait.Value{}, fmt.Errorf("%w: trait %s has %d fields, want %d", ErrInvalidDocument, d.Type, len(d.Fields), len(t.Fields))
	}

	values := make([]any, len(t.Fields))
	for i, f := range t.Fields {
		v, ok := d.Fields[f.Name]
		if !ok {
			return trait.Value{}, fmt.Errorf("%w: trait %s misses field %s", ErrInvalidDocument, d.Type, f.Name)
		}
		values[i] = v
	}
	return trait.NewValue(t, values...)
}

func typeDoc(t trait.Type) TypeDoc {
	td := TypeDoc{Name: t.Name}
	for _, f := range t.Fields {
		td.Fields = append(td.Fields, FieldDoc{Name: f.Name, Kind: f.Kind.String()})
	}
	return td
}

func transformDoc(t xform.Transform) TransformDoc {
	return TransformDoc{
		P: [3]float64{t.Position.X, t.Position.Y, t.Position.Z},
		Q: [4]float64{t.Rotation.Real, t.Rotation.Imag, t.Rotation.Jmag, t.Rotation.Kmag},
	}
}

func traitDoc(reg *trait.Registry, v trait.Value) (TraitDoc, error) {
	t, err := reg.Check(v)
	if err != nil {
		return TraitDoc{}, err
	}
	values, err := t.Decode(v.Payload)
	if err != nil {
		return TraitDoc{}, err
	}

	td := TraitDoc{Type: t.Name}
	if len(values) > 0 {
		td.Fields = make(map[string]any, len(values))
		for i, f := range t.Fields {
			td.Fields[f.Name] = values[i]
		}
	}
	return td, nil
}
