package anonymize

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/pixieveil/internal/dicomutil"
)

var testNow = time.Date(2024, 5, 17, 15, 4, 5, 0, time.UTC)

func newTestAnonymizer(t *testing.T, profile *Profile) *Anonymizer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a := New(NewRegistry(), profile, logrus.NewEntry(logger))
	a.now = func() time.Time { return testNow }
	return a
}

func mustElem(t *testing.T, dt tag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(dt, value)
	require.NoError(t, err)
	return elem
}

// testDataset builds a dataset with identity, identifiers, dates, a file meta
// element, a sensitive tag, a private element and an overlay plane.
func testDataset(t *testing.T) *dicom.Dataset {
	t.Helper()
	private, err := dicomutil.NewPrivateElement(tag.Tag{Group: 0x0009, Element: 0x0010}, "LO", []string{"SECRET_VENDOR"})
	require.NoError(t, err)
	overlay, err := dicomutil.NewPrivateElement(tag.Tag{Group: 0x6000, Element: 0x0010}, "US", []int{16})
	require.NoError(t, err)

	return &dicom.Dataset{Elements: []*dicom.Element{
		mustElem(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.2"}),
		mustElem(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4.1.1"}),
		mustElem(t, tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustElem(t, tag.SourceApplicationEntityTitle, []string{"SENDER"}),
		mustElem(t, tag.PatientName, []string{"DOE^JOHN"}),
		mustElem(t, tag.PatientID, []string{"PID-1234"}),
		mustElem(t, tag.StudyInstanceUID, []string{"1.2.3.4"}),
		mustElem(t, tag.SeriesInstanceUID, []string{"1.2.3.4.1"}),
		mustElem(t, tag.SOPInstanceUID, []string{"1.2.3.4.1.1"}),
		mustElem(t, tag.AccessionNumber, []string{"ACC001"}),
		mustElem(t, tag.StudyDate, []string{"20200101"}),
		mustElem(t, tag.StudyTime, []string{"101010"}),
		mustElem(t, tag.ContentDate, []string{"20200101"}),
		mustElem(t, tag.StudyDescription, []string{"CHEST CT"}),
		mustElem(t, tag.MilitaryRank, []string{"CAPTAIN"}),
		private,
		overlay,
	}}
}

func tagString(t *testing.T, ds *dicom.Dataset, dt tag.Tag) string {
	t.Helper()
	value, err := dicomutil.StringValue(ds, dt)
	require.NoError(t, err)
	return value
}

func hasTag(ds *dicom.Dataset, dt tag.Tag) bool {
	_, err := ds.FindElementByTag(dt)
	return err == nil
}

func TestAnonymizeDefaultProfile(t *testing.T) {
	a := newTestAnonymizer(t, DefaultProfile())
	ds := testDataset(t)

	require.NoError(t, a.Anonymize(ds))

	assert.Equal(t, "", tagString(t, ds, tag.PatientName))
	assert.Equal(t, "", tagString(t, ds, tag.PatientID))

	studyUID := tagString(t, ds, tag.StudyInstanceUID)
	assert.True(t, strings.HasPrefix(studyUID, "2.25."), "study uid %s", studyUID)
	assert.NotEqual(t, "1.2.3.4", studyUID)
	sopUID := tagString(t, ds, tag.SOPInstanceUID)
	assert.True(t, strings.HasPrefix(sopUID, "2.25."), "sop uid %s", sopUID)

	accession := tagString(t, ds, tag.AccessionNumber)
	assert.True(t, strings.HasPrefix(accession, "1.98765."), "accession %s", accession)
	assert.LessOrEqual(t, len(accession), 16)

	assert.Equal(t, "20240517", tagString(t, ds, tag.StudyDate))
	assert.Equal(t, "150405", tagString(t, ds, tag.StudyTime))
	assert.Equal(t, "20240517", tagString(t, ds, tag.ContentDate))
	assert.Equal(t, "Anonymized Study", tagString(t, ds, tag.StudyDescription))
	assert.Equal(t, "NO", tagString(t, ds, tag.BurnedInAnnotation))

	assert.False(t, hasTag(ds, tag.MilitaryRank), "sensitive tag survived")
	assert.True(t, hasTag(ds, tag.MediaStorageSOPClassUID))
	assert.True(t, hasTag(ds, tag.TransferSyntaxUID))
	assert.Equal(t, sopUID, tagString(t, ds, tag.MediaStorageSOPInstanceUID), "file meta out of step with dataset")
	assert.False(t, hasTag(ds, tag.SourceApplicationEntityTitle), "sending AE title survived")
	assert.False(t, hasTag(ds, tag.Tag{Group: 0x0009, Element: 0x0010}), "private element survived")
	assert.False(t, hasTag(ds, tag.Tag{Group: 0x6000, Element: 0x0010}), "overlay element survived")
}

func TestAnonymizeIsConsistentAcrossStudy(t *testing.T) {
	a := newTestAnonymizer(t, DefaultProfile())

	first := testDataset(t)
	second := testDataset(t)
	// Same study and series, distinct instance.
	for i, elem := range second.Elements {
		if elem.Tag == tag.SOPInstanceUID {
			second.Elements[i] = mustElem(t, tag.SOPInstanceUID, []string{"1.2.3.4.1.2"})
		}
	}

	require.NoError(t, a.Anonymize(first))
	require.NoError(t, a.Anonymize(second))

	assert.Equal(t, tagString(t, first, tag.StudyInstanceUID), tagString(t, second, tag.StudyInstanceUID))
	assert.Equal(t, tagString(t, first, tag.SeriesInstanceUID), tagString(t, second, tag.SeriesInstanceUID))
	assert.Equal(t, tagString(t, first, tag.AccessionNumber), tagString(t, second, tag.AccessionNumber))
	assert.NotEqual(t, tagString(t, first, tag.SOPInstanceUID), tagString(t, second, tag.SOPInstanceUID))
}

func TestAnonymizeRetainStudyDate(t *testing.T) {
	profile, err := NewProfile("retain", nil, Switches{RetainStudyDate: true})
	require.NoError(t, err)
	a := newTestAnonymizer(t, profile)
	ds := testDataset(t)

	require.NoError(t, a.Anonymize(ds))

	assert.Equal(t, "20200101", tagString(t, ds, tag.StudyDate))
	assert.Equal(t, "101010", tagString(t, ds, tag.StudyTime))
	assert.Equal(t, "20240517", tagString(t, ds, tag.ContentDate))
}

func TestAnonymizeProfileRuleOverridesDateReset(t *testing.T) {
	profile, err := NewProfile("dates", map[string]string{"StudyDate": "keep"}, Switches{})
	require.NoError(t, err)
	a := newTestAnonymizer(t, profile)
	ds := testDataset(t)

	require.NoError(t, a.Anonymize(ds))

	assert.Equal(t, "20200101", tagString(t, ds, tag.StudyDate))
	assert.Equal(t, "150405", tagString(t, ds, tag.StudyTime))
}

func TestAnonymizeKeepPrivateTags(t *testing.T) {
	profile, err := NewProfile("vendor", nil, Switches{KeepPrivateTags: true})
	require.NoError(t, err)
	a := newTestAnonymizer(t, profile)
	ds := testDataset(t)

	require.NoError(t, a.Anonymize(ds))

	assert.True(t, hasTag(ds, tag.Tag{Group: 0x0009, Element: 0x0010}))
	assert.False(t, hasTag(ds, tag.Tag{Group: 0x6000, Element: 0x0010}), "overlay element survived")
}

func TestAnonymizeActions(t *testing.T) {
	profile, err := NewProfile("actions", map[string]string{
		"PatientName":      "ANONYMOUS",
		"InstitutionName":  "UNKNOWN",
		"PatientID":        "random",
		"StudyDescription": "keep",
	}, Switches{})
	require.NoError(t, err)
	a := newTestAnonymizer(t, profile)

	ds := testDataset(t)
	ds.Elements = append(ds.Elements, mustElem(t, tag.InstitutionName, []string{"General Hospital"}))

	require.NoError(t, a.Anonymize(ds))

	assert.Equal(t, "ANONYMOUS", tagString(t, ds, tag.PatientName))
	assert.Equal(t, "UNKNOWN", tagString(t, ds, tag.InstitutionName))
	assert.Equal(t, "CHEST CT", tagString(t, ds, tag.StudyDescription))

	patientID := tagString(t, ds, tag.PatientID)
	assert.Len(t, patientID, len("PID-1234"))
	assert.NotEqual(t, "PID-1234", patientID)
}

func TestAnonymizeRandomKeepsNonStringValues(t *testing.T) {
	profile := &Profile{Name: "raw", Rules: map[tag.Tag]Rule{tag.Rows: {Action: ActionRandom}}}
	a := newTestAnonymizer(t, profile)

	ds := testDataset(t)
	ds.Elements = append(ds.Elements, mustElem(t, tag.Rows, []int{512}))

	require.NoError(t, a.Anonymize(ds))

	elem, err := ds.FindElementByTag(tag.Rows)
	require.NoError(t, err)
	assert.Equal(t, []int{512}, elem.Value.GetValue())
}

func TestAnonymizeForcesBurnedInAnnotation(t *testing.T) {
	a := newTestAnonymizer(t, DefaultProfile())

	ds := testDataset(t)
	ds.Elements = append(ds.Elements, mustElem(t, tag.BurnedInAnnotation, []string{"YES"}))

	require.NoError(t, a.Anonymize(ds))

	count := 0
	for _, elem := range ds.Elements {
		if elem.Tag == tag.BurnedInAnnotation {
			count++
			value, err := dicomutil.ElementString(elem)
			require.NoError(t, err)
			assert.Equal(t, "NO", value)
		}
	}
	assert.Equal(t, 1, count)
}

func TestAnonymizeEmptyDataset(t *testing.T) {
	a := newTestAnonymizer(t, DefaultProfile())

	assert.Error(t, a.Anonymize(nil))
	assert.Error(t, a.Anonymize(&dicom.Dataset{}))
}

func TestAnonymizePixelBlackoutWarnsOncePerStudy(t *testing.T) {
	logger, hook := test.NewNullLogger()
	profile, err := NewProfile("blackout", nil, Switches{PixelBlackout: true})
	require.NoError(t, err)
	a := New(NewRegistry(), profile, logrus.NewEntry(logger))
	a.now = func() time.Time { return testNow }

	require.NoError(t, a.Anonymize(testDataset(t)))
	require.NoError(t, a.Anonymize(testDataset(t)))

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}
