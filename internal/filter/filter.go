// Package filter rejects datasets before anonymisation based on modality and
// series origin.
package filter

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Filter decides whether a dataset enters the processing pipeline.
type Filter struct {
	excluded     map[string]struct{}
	originalOnly bool
	log          *logrus.Entry
}

// New builds a filter from the configured modality exclusions. When
// originalOnly is set, series the dataset marks as derived are dropped too.
func New(excludeModalities []string, originalOnly bool, log *logrus.Entry) *Filter {
	excluded := make(map[string]struct{}, len(excludeModalities))
	for _, m := range excludeModalities {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		excluded[m] = struct{}{}
	}
	return &Filter{excluded: excluded, originalOnly: originalOnly, log: log}
}

// Drop reports whether ds must be rejected. Evaluation errors resolve to
// accept so that a malformed attribute never loses an image.
func (f *Filter) Drop(ds *dicom.Dataset) bool {
	if ds == nil {
		return false
	}
	if modality, ok := firstString(ds, tag.Modality); ok {
		if _, drop := f.excluded[strings.ToUpper(modality)]; drop {
			f.log.WithField("modality", modality).Debug("dataset dropped by modality exclusion")
			return true
		}
	}
	if f.originalOnly {
		// TODO: consider ImageType[1] SECONDARY as derived as well.
		if imageType, ok := allStrings(ds, tag.ImageType); ok && len(imageType) > 0 &&
			strings.EqualFold(imageType[0], "DERIVED") {
			f.log.WithField("image_type", strings.Join(imageType, `\`)).Debug("derived series dropped")
			return true
		}
	}
	return false
}

func firstString(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	values, ok := allStrings(ds, t)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func allStrings(ds *dicom.Dataset, t tag.Tag) ([]string, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, false
	}
	values, ok := elem.Value.GetValue().([]string)
	return values, ok
}
