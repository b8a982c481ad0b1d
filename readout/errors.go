package readout

import "fmt"

// GeometryMismatchError indicates the electron image and the detector
// geometry disagree, for example when the wrong detector was selected
// for an image.
type GeometryMismatchError struct {
	Msg string
}

func (e *GeometryMismatchError) Error() string {
	return "geometry mismatch: " + e.Msg
}

// MissingMetadataError indicates a required identification or timing
// field was absent from the exposure metadata.  Identification fields
// are never defaulted; fabricating them silently would corrupt
// downstream archiving.
type MissingMetadataError struct {
	Field string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("missing required metadata field %s", e.Field)
}
