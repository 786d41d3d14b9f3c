// Package dicomutil provides small helpers shared by the ingestion pipeline:
// element construction, string extraction and file-stream synthesis.
package dicomutil

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// MustNewElement creates a DICOM element and panics on error. Reserved for
// static test data and generated datasets where the inputs are known valid.
func MustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element for tag %v: %v", t, err))
	}
	return elem
}

// NewPrivateElement creates a DICOM element with a private or repeating-group
// tag and an explicit VR. dicom.NewElement fails on unregistered tags, so the
// VR must be supplied by the caller.
func NewPrivateElement(t tag.Tag, rawVR string, data any) (*dicom.Element, error) {
	value, err := dicom.NewValue(data)
	if err != nil {
		return nil, fmt.Errorf("create value for element %v: %w", t, err)
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, rawVR),
		RawValueRepresentation: rawVR,
		Value:                  value,
	}, nil
}

// StringValue returns the first string value of the element with tag t, or an
// error when the element is missing or not string-valued.
func StringValue(ds *dicom.Dataset, t tag.Tag) (string, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return "", fmt.Errorf("find element %v: %w", t, err)
	}
	return ElementString(elem)
}

// ElementString returns the first string value of elem.
func ElementString(elem *dicom.Element) (string, error) {
	values, ok := elem.Value.GetValue().([]string)
	if !ok {
		return "", fmt.Errorf("element %v is not string-valued", elem.Tag)
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}
