package blob

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/hupe1980/motiondb/trait"
	"gopkg.in/yaml.v3"
)

// DebugDocument is a descriptive tree mirroring every table of a Binary. It
// is meant for diagnostics only.
type DebugDocument struct {
	XMLName     xml.Name `xml:"MotionDatabase" yaml:"-"`
	SampleRate  float64  `xml:"sampleRate,attr" yaml:"sample_rate"`
	TimeHorizon float64  `xml:"timeHorizon,attr" yaml:"time_horizon"`
	BuildID     string   `xml:"buildId,attr" yaml:"build_id"`
	NumFrames   int      `xml:"numFrames,attr" yaml:"num_frames"`

	Joints    []DebugJoint    `xml:"Joints>Joint" yaml:"joints"`
	Types     []DebugType     `xml:"Types>Type" yaml:"types"`
	Traits    []DebugTrait    `xml:"Traits>Trait" yaml:"traits"`
	Segments  []DebugSegment  `xml:"Segments>Segment" yaml:"segments"`
	TagLists  []DebugTagList  `xml:"TagLists>TagList" yaml:"tag_lists"`
	Metrics   []DebugMetric   `xml:"Metrics>Metric" yaml:"metrics"`
	CodeBooks []DebugCodeBook `xml:"CodeBooks>CodeBook" yaml:"code_books"`
}

type DebugJoint struct {
	Index  int    `xml:"index,attr" yaml:"index"`
	Name   string `xml:"name,attr" yaml:"name"`
	Parent int32  `xml:"parent,attr" yaml:"parent"`
}

type DebugType struct {
	Name     string   `xml:"name,attr" yaml:"name"`
	Hash     string   `xml:"hash,attr" yaml:"hash"`
	NumBytes uint32   `xml:"numBytes,attr" yaml:"num_bytes"`
	Fields   []string `xml:"Field" yaml:"fields,flow"`
}

type DebugTrait struct {
	Index   int    `xml:"index,attr" yaml:"index"`
	Type    string `xml:"type,attr" yaml:"type"`
	Payload string `xml:"payload,attr" yaml:"payload"`
	Value   string `xml:",chardata" yaml:"value"`
}

type DebugSegment struct {
	Index       int    `xml:"index,attr" yaml:"index"`
	Clip        string `xml:"clip,attr" yaml:"clip"`
	Source      string `xml:"source,attr" yaml:"source"`
	Destination string `xml:"destination,attr" yaml:"destination"`
	Prev        string `xml:"prev,attr" yaml:"prev"`
	Next        string `xml:"next,attr" yaml:"next"`

	Tags      []DebugTag      `xml:"Tag" yaml:"tags,omitempty"`
	Markers   []DebugMarker   `xml:"Marker" yaml:"markers,omitempty"`
	Intervals []DebugInterval `xml:"Interval" yaml:"intervals,omitempty"`
}

type DebugTag struct {
	Index int    `xml:"index,attr" yaml:"index"`
	Trait int    `xml:"trait,attr" yaml:"trait"`
	Range string `xml:"range,attr" yaml:"range"`
}

type DebugMarker struct {
	Index int    `xml:"index,attr" yaml:"index"`
	Trait int    `xml:"trait,attr" yaml:"trait"`
	Frame uint32 `xml:"frame,attr" yaml:"frame"`
}

type DebugInterval struct {
	Index    int    `xml:"index,attr" yaml:"index"`
	Range    string `xml:"range,attr" yaml:"range"`
	TagList  int    `xml:"tagList,attr" yaml:"tag_list"`
	CodeBook string `xml:"codeBook,attr" yaml:"code_book"`
}

type DebugTagList struct {
	Index int     `xml:"index,attr" yaml:"index"`
	Tags  []TagID `xml:"Tag" yaml:"tags,flow"`
}

type DebugMetric struct {
	Name                    string   `xml:"name,attr" yaml:"name"`
	TraitType               string   `xml:"traitType,attr" yaml:"trait_type"`
	Joints                  []string `xml:"Joint" yaml:"joints,flow"`
	NumPoseSamples          uint32   `xml:"numPoseSamples,attr" yaml:"num_pose_samples"`
	PoseTimeSpan            float64  `xml:"poseTimeSpan,attr" yaml:"pose_time_span"`
	NumTrajectorySamples    uint32   `xml:"numTrajectorySamples,attr" yaml:"num_trajectory_samples"`
	TrajectorySampleRange   float64  `xml:"trajectorySampleRange,attr" yaml:"trajectory_sample_range"`
	TrajectoryDisplacements bool     `xml:"trajectoryDisplacements,attr" yaml:"trajectory_displacements"`
}

type DebugCodeBook struct {
	Index        int           `xml:"index,attr" yaml:"index"`
	Metric       string        `xml:"metric,attr" yaml:"metric"`
	Trait        int           `xml:"trait,attr" yaml:"trait"`
	NumFragments uint32        `xml:"numFragments,attr" yaml:"num_fragments"`
	Intervals    []IntervalID  `xml:"Interval" yaml:"intervals,flow"`
	Pose         DebugEncoding `xml:"Pose" yaml:"pose"`
	Trajectory   DebugEncoding `xml:"Trajectory" yaml:"trajectory"`
}

type DebugEncoding struct {
	NumQuantized   uint32 `xml:"numQuantized,attr" yaml:"num_quantized"`
	NumNormalized  uint32 `xml:"numNormalized,attr" yaml:"num_normalized"`
	NumTransformed uint32 `xml:"numTransformed,attr" yaml:"num_transformed"`
	NumCodes       int    `xml:"numCodes,attr" yaml:"num_codes"`
}

func rangeString(r Range) string {
	return fmt.Sprintf("[%d,%d)", r.First, r.End())
}

// PayloadType rebuilds the layout of a payload type.
func (b *Binary) PayloadType(id TypeID) (trait.Type, bool) {
	t, ok := b.Type(id)
	if !ok {
		return trait.Type{}, false
	}
	out := trait.Type{Name: b.StringOrEmpty(t.Name)}
	for _, f := range b.Fields(id) {
		out.Fields = append(out.Fields, trait.Field{Name: b.StringOrEmpty(f.Name), Kind: trait.Kind(f.Kind)})
	}
	return out, true
}

// DebugDocument builds the debug tree of b.
func (b *Binary) DebugDocument() *DebugDocument {
	doc := &DebugDocument{
		SampleRate:  b.SampleRate,
		TimeHorizon: b.TimeHorizon,
		BuildID:     b.BuildID.String(),
		NumFrames:   b.NumFrames(),
	}

	for i, j := range b.Joints {
		doc.Joints = append(doc.Joints, DebugJoint{Index: i, Name: b.StringOrEmpty(j.Name), Parent: j.Parent})
	}

	for i, t := range b.Types {
		dt := DebugType{
			Name:     b.StringOrEmpty(t.Name),
			Hash:     fmt.Sprintf("%016x", t.Hash),
			NumBytes: t.NumBytes,
		}
		for _, f := range b.Fields(TypeID(i)) {
			dt.Fields = append(dt.Fields, b.StringOrEmpty(f.Name)+":"+trait.Kind(f.Kind).String())
		}
		doc.Types = append(doc.Types, dt)
	}

	for i := range b.Traits {
		tr, payload, ok := b.Trait(TraitID(i))
		if !ok {
			continue
		}
		dt := DebugTrait{Index: i, Payload: hex.EncodeToString(payload)}
		if typ, ok := b.PayloadType(tr.Type); ok {
			dt.Type = typ.Name
			dt.Value, _ = typ.Format(payload)
		}
		doc.Traits = append(doc.Traits, dt)
	}

	for i, s := range b.Segments {
		ds := DebugSegment{
			Index:       i,
			Clip:        b.StringOrEmpty(s.Clip),
			Source:      rangeString(s.Source),
			Destination: rangeString(s.Destination),
			Prev:        s.Prev.String(),
			Next:        s.Next.String(),
		}
		for k, t := range b.SegmentTags(SegmentID(i)) {
			ds.Tags = append(ds.Tags, DebugTag{Index: int(s.TagStart) + k, Trait: int(t.Trait), Range: rangeString(t.Range)})
		}
		for k, m := range b.SegmentMarkers(SegmentID(i)) {
			ds.Markers = append(ds.Markers, DebugMarker{Index: int(s.MarkerStart) + k, Trait: int(m.Trait), Frame: m.Frame})
		}
		for k, iv := range b.SegmentIntervals(SegmentID(i)) {
			ds.Intervals = append(ds.Intervals, DebugInterval{
				Index:    int(s.IntervalStart) + k,
				Range:    rangeString(iv.Range),
				TagList:  int(iv.TagList),
				CodeBook: iv.CodeBook.String(),
			})
		}
		doc.Segments = append(doc.Segments, ds)
	}

	for i := range b.TagLists {
		tags, _ := b.TagList(TagListID(i))
		doc.TagLists = append(doc.TagLists, DebugTagList{Index: i, Tags: tags})
	}

	for i, m := range b.Metrics {
		dm := DebugMetric{
			Name:                    b.StringOrEmpty(m.Name),
			NumPoseSamples:          m.NumPoseSamples,
			PoseTimeSpan:            m.PoseTimeSpan,
			NumTrajectorySamples:    m.NumTrajectorySamples,
			TrajectorySampleRange:   m.TrajectorySampleRange,
			TrajectoryDisplacements: m.TrajectoryDisplacements,
		}
		if t, ok := b.Type(m.TraitType); ok {
			dm.TraitType = b.StringOrEmpty(t.Name)
		}
		for _, j := range b.MetricJointsOf(MetricID(i)) {
			dm.Joints = append(dm.Joints, b.StringOrEmpty(j.Name))
		}
		doc.Metrics = append(doc.Metrics, dm)
	}

	for i, cb := range b.CodeBooks {
		dc := DebugCodeBook{
			Index:        i,
			Trait:        int(cb.Trait),
			NumFragments: cb.NumFragments,
			Intervals:    b.CodeBookIntervalsOf(CodeBookID(i)),
			Pose:         debugEncoding(&cb.Pose),
			Trajectory:   debugEncoding(&cb.Trajectory),
		}
		if m, ok := b.Metric(cb.Metric); ok {
			dc.Metric = b.StringOrEmpty(m.Name)
		}
		doc.CodeBooks = append(doc.CodeBooks, dc)
	}

	return doc
}

func debugEncoding(e *Encoding) DebugEncoding {
	return DebugEncoding{
		NumQuantized:   e.NumQuantized,
		NumNormalized:  e.NumNormalized,
		NumTransformed: e.NumTransformed,
		NumCodes:       len(e.Codes),
	}
}

// WriteXML writes the document as indented XML.
func (d *DebugDocument) WriteXML(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteYAML writes the document as YAML.
func (d *DebugDocument) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// WriteDebugXML writes the debug document of b as XML.
func (b *Binary) WriteDebugXML(w io.Writer) error {
	return b.DebugDocument().WriteXML(w)
}

// WriteDebugYAML writes the debug document of b as YAML.
func (b *Binary) WriteDebugYAML(w io.Writer) error {
	return b.DebugDocument().WriteYAML(w)
}
