package builder

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/internal/resource"
	"github.com/hupe1980/motiondb/internal/strtab"
	"github.com/hupe1980/motiondb/trait"
)

// state is the staging area of one build.
type state struct {
	in     *Input
	logger *slog.Logger
	rc     *resource.Controller

	strs   *strtab.Table
	bin    *blob.Binary
	types  map[string]blob.TypeID
	traits map[string]blob.TraitID

	// clipSegments lists the segments of every clip in order.
	clipSegments [][]blob.SegmentID
}

func newState(in *Input, logger *slog.Logger, rc *resource.Controller) *state {
	return &state{
		in:     in,
		logger: logger,
		rc:     rc,
		strs:   strtab.New(),
		bin: &blob.Binary{
			SampleRate:  in.Config.SampleRate,
			TimeHorizon: in.Config.TimeHorizon,
		},
		types:        make(map[string]blob.TypeID),
		traits:       make(map[string]blob.TraitID),
		clipSegments: make([][]blob.SegmentID, len(in.Clips)),
	}
}

func (s *state) intern(str string) blob.StringID {
	id := s.strs.Intern(str)
	s.bin.Strings = s.strs.Strings()
	return blob.StringID(id)
}

// buildTypes stores every registered trait type and the rig.
func (s *state) buildTypes() error {
	for _, t := range s.in.Types.Types() {
		s.types[t.Name] = blob.TypeID(len(s.bin.Types))
		s.bin.Types = append(s.bin.Types, blob.Type{
			Name:       s.intern(t.Name),
			Hash:       t.Hash(),
			NumBytes:   uint32(t.NumBytes()),
			FieldStart: uint32(len(s.bin.TypeFields)),
			NumFields:  uint32(len(t.Fields)),
		})
		for _, f := range t.Fields {
			s.bin.TypeFields = append(s.bin.TypeFields, blob.TypeField{Name: s.intern(f.Name), Kind: uint8(f.Kind)})
		}
	}

	for _, j := range s.in.Rig.Joints {
		s.bin.Joints = append(s.bin.Joints, blob.Joint{Name: s.intern(j.Name), Parent: int32(j.Parent)})
	}
	return nil
}

// internTrait returns the id of a trait value, storing it on first use.
// Equal values share one trait.
func (s *state) internTrait(v trait.Value) (blob.TraitID, error) {
	if _, err := s.in.Types.Check(v); err != nil {
		return blob.InvalidTraitID, err
	}
	key := v.Type + "\x00" + string(v.Payload)
	if id, ok := s.traits[key]; ok {
		return id, nil
	}
	typ, ok := s.types[v.Type]
	if !ok {
		return blob.InvalidTraitID, fmt.Errorf("%w: type %q not staged", ErrInternal, v.Type)
	}

	id := blob.TraitID(len(s.bin.Traits))
	s.bin.Traits = append(s.bin.Traits, blob.Trait{Type: typ, PayloadOffset: uint32(len(s.bin.Payloads))})
	s.bin.Payloads = append(s.bin.Payloads, v.Payload...)
	s.traits[key] = id
	return id, nil
}
