package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for unusable build settings.
	ErrInvalidConfig = errors.New("builder: invalid config")
	// ErrNoClips is returned when the input has no clips.
	ErrNoClips = errors.New("builder: no clips")
	// ErrDuplicateClip is returned when two clips share a name.
	ErrDuplicateClip = errors.New("builder: duplicate clip name")
	// ErrEmptyDatabase is returned when no tagged frames remain.
	ErrEmptyDatabase = errors.New("builder: no tagged frames")
	// ErrMissingJoint is returned when a metric names a joint the rig lacks.
	ErrMissingJoint = errors.New("builder: missing joint")
	// ErrNoJoints is returned for metrics without joints.
	ErrNoJoints = errors.New("builder: metric has no joints")
	// ErrInvalidMetric is returned for metrics with unusable sampling settings.
	ErrInvalidMetric = errors.New("builder: invalid metric")
	// ErrTagTooShort is the sentinel wrapped by TagTooShortError.
	ErrTagTooShort = errors.New("builder: tag too short")
	// ErrInternal reports a broken invariant of the builder itself.
	ErrInternal = errors.New("builder: internal error")
)

// TagTooShortError reports a tag, claimed by a metric, that is shorter than
// the time horizon.
type TagTooShortError struct {
	Clip     string
	Tag      int
	Type     string
	Frames   int
	Required int
}

func (e *TagTooShortError) Error() string {
	return fmt.Sprintf("builder: tag %d (%s) of clip %q spans %d frames, need %d",
		e.Tag, e.Type, e.Clip, e.Frames, e.Required)
}

func (e *TagTooShortError) Unwrap() error { return ErrTagTooShort }
