// Package anonymize removes patient-identifying information from parsed DICOM
// datasets. A profile decides per-tag treatment; the registry keeps UID
// replacement consistent across every object of a study.
package anonymize

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// sensitiveTags are removed from every dataset regardless of profile.
var sensitiveTags = map[tag.Tag]struct{}{
	tag.OtherPatientIDsSequence:   {},
	tag.PatientTelephoneNumbers:   {},
	tag.MilitaryRank:              {},
	tag.RequestAttributesSequence: {},
	tag.ClinicalTrialSponsorName:  {},
	tag.ClinicalTrialProtocolID:   {},
}

// resetDates and resetTimes are rewritten to the processing time unless the
// profile addresses them explicitly.
var resetDates = map[tag.Tag]struct{}{
	tag.StudyDate:            {},
	tag.SeriesDate:           {},
	tag.AcquisitionDate:      {},
	tag.ContentDate:          {},
	tag.InstanceCreationDate: {},
}

var resetTimes = map[tag.Tag]struct{}{
	tag.StudyTime:            {},
	tag.SeriesTime:           {},
	tag.AcquisitionTime:      {},
	tag.ContentTime:          {},
	tag.InstanceCreationTime: {},
}

// keptMetaTags are the file meta elements carried into the anonymised dataset.
// MediaStorageSOPInstanceUID is regenerated separately; everything else in
// group 0002, such as the source application entity title, is dropped.
var keptMetaTags = map[tag.Tag]struct{}{
	tag.FileMetaInformationVersion: {},
	tag.MediaStorageSOPClassUID:    {},
	tag.TransferSyntaxUID:          {},
	tag.ImplementationClassUID:     {},
	tag.ImplementationVersionName:  {},
}

// Anonymizer applies one profile to parsed datasets. Safe for concurrent use.
type Anonymizer struct {
	registry *Registry
	profile  *Profile
	log      *logrus.Entry
	now      func() time.Time

	mu            sync.Mutex
	blackoutNoted map[string]struct{}
}

// New returns an Anonymizer bound to a registry and profile.
func New(registry *Registry, profile *Profile, log *logrus.Entry) *Anonymizer {
	return &Anonymizer{
		registry:      registry,
		profile:       profile,
		log:           log,
		now:           time.Now,
		blackoutNoted: make(map[string]struct{}),
	}
}

// Profile returns the profile the engine applies.
func (a *Anonymizer) Profile() *Profile {
	return a.profile
}

// Anonymize rewrites ds in place according to the profile. On error the
// dataset must be considered unusable and the image failed.
//
// Private elements and overlay planes are removed (private only when the
// profile says so), the sensitive tag set is always removed, and
// BurnedInAnnotation is forced to "NO". In the file meta group only the known
// elements survive, and MediaStorageSOPInstanceUID is rewritten to match the
// anonymised SOPInstanceUID.
func (a *Anonymizer) Anonymize(ds *dicom.Dataset) error {
	if ds == nil || len(ds.Elements) == 0 {
		return fmt.Errorf("empty dataset")
	}
	if a.profile.PixelBlackout {
		a.notePixelBlackout(ds)
	}

	now := a.now()
	out := make([]*dicom.Element, 0, len(ds.Elements)+2)
	haveBurnedIn := false
	sopInstance := ""
	for _, elem := range ds.Elements {
		t := elem.Tag
		if t.Group == 0x0002 {
			if _, keep := keptMetaTags[t]; keep {
				out = append(out, elem)
			}
			continue
		}
		if isOverlayGroup(t.Group) {
			continue
		}
		if isPrivateGroup(t.Group) {
			if a.profile.KeepPrivateTags {
				out = append(out, elem)
			}
			continue
		}
		if _, drop := sensitiveTags[t]; drop {
			continue
		}
		if t == tag.BurnedInAnnotation {
			burned, err := dicom.NewElement(t, []string{"NO"})
			if err != nil {
				return fmt.Errorf("rewrite BurnedInAnnotation: %w", err)
			}
			out = append(out, burned)
			haveBurnedIn = true
			continue
		}

		rule, ok := a.profile.Rules[t]
		if !ok {
			rule, ok = a.dateReset(t, now)
		}
		if !ok {
			if t == tag.SOPInstanceUID {
				sopInstance, _ = firstString(elem)
			}
			out = append(out, elem)
			continue
		}
		replaced, err := a.apply(elem, rule)
		if err != nil {
			return fmt.Errorf("apply %s to %v: %w", rule.Action, t, err)
		}
		if t == tag.SOPInstanceUID {
			sopInstance, _ = firstString(replaced)
		}
		out = append(out, replaced)
	}
	if !haveBurnedIn {
		burned, err := dicom.NewElement(tag.BurnedInAnnotation, []string{"NO"})
		if err != nil {
			return fmt.Errorf("add BurnedInAnnotation: %w", err)
		}
		out = append(out, burned)
	}
	if sopInstance != "" {
		metaSOP, err := dicom.NewElement(tag.MediaStorageSOPInstanceUID, []string{sopInstance})
		if err != nil {
			return fmt.Errorf("rewrite MediaStorageSOPInstanceUID: %w", err)
		}
		out = append(out, metaSOP)
	}

	ds.Elements = out
	return nil
}

// dateReset returns the rewrite rule for date and time tags the profile does
// not address. RetainStudyDate exempts StudyDate and StudyTime.
func (a *Anonymizer) dateReset(t tag.Tag, now time.Time) (Rule, bool) {
	if _, ok := resetDates[t]; ok {
		if a.profile.RetainStudyDate && t == tag.StudyDate {
			return Rule{}, false
		}
		return Rule{Action: actionReplace, Value: now.Format("20060102")}, true
	}
	if _, ok := resetTimes[t]; ok {
		if a.profile.RetainStudyDate && t == tag.StudyTime {
			return Rule{}, false
		}
		return Rule{Action: actionReplace, Value: now.Format("150405")}, true
	}
	return Rule{}, false
}

func (a *Anonymizer) apply(elem *dicom.Element, rule Rule) (*dicom.Element, error) {
	switch rule.Action {
	case ActionKeep:
		return elem, nil
	case ActionRandom:
		original, ok := stringValues(elem)
		if !ok {
			// Random tokens are only defined for string values; anything
			// else keeps its original value.
			return elem, nil
		}
		replaced := lo.Map(original, func(v string, _ int) string {
			return randomToken(len(v))
		})
		return dicom.NewElement(elem.Tag, replaced)
	case ActionPseudo:
		scope, ok := uidScopes[elem.Tag]
		if !ok {
			return nil, fmt.Errorf("tag %v has no UID scope", elem.Tag)
		}
		original, _ := firstString(elem)
		return dicom.NewElement(elem.Tag, []string{a.registry.Get(scope, original)})
	case ActionAnonymous:
		return dicom.NewElement(elem.Tag, []string{"ANONYMOUS"})
	case ActionUnknown:
		return dicom.NewElement(elem.Tag, []string{"UNKNOWN"})
	case actionBlank:
		return dicom.NewElement(elem.Tag, []string{""})
	case actionReplace:
		return dicom.NewElement(elem.Tag, []string{rule.Value})
	default:
		return elem, nil
	}
}

// notePixelBlackout logs the unimplemented blackout pass once per study.
func (a *Anonymizer) notePixelBlackout(ds *dicom.Dataset) {
	studyUID := ""
	if elem, err := ds.FindElementByTag(tag.StudyInstanceUID); err == nil {
		studyUID, _ = firstString(elem)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.blackoutNoted[studyUID]; seen {
		return
	}
	a.blackoutNoted[studyUID] = struct{}{}
	a.log.WithField("study_uid", studyUID).
		Warn("pixel blackout is not implemented, pixel data left untouched")
}

func isOverlayGroup(group uint16) bool {
	return group >= 0x6000 && group <= 0x601E && group%2 == 0
}

func isPrivateGroup(group uint16) bool {
	return group%2 == 1
}

func stringValues(elem *dicom.Element) ([]string, bool) {
	values, ok := elem.Value.GetValue().([]string)
	return values, ok
}

func firstString(elem *dicom.Element) (string, bool) {
	values, ok := stringValues(elem)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomToken returns a fresh token of length n, defaulting to 8 when the
// original value was empty.
func randomToken(n int) string {
	if n <= 0 {
		n = 8
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[rand.IntN(len(tokenAlphabet))]
	}
	return string(b)
}
