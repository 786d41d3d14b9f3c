package anonymize

import (
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagInfo describes a profile-addressable DICOM attribute.
type TagInfo struct {
	Name     string
	Tag      tag.Tag
	UIDScope Scope
	HasScope bool
}

// uidScopes maps identifier-carrying tags to their registry scope. Tags
// outside this map cannot take the pseudo action.
var uidScopes = map[tag.Tag]Scope{
	tag.StudyInstanceUID:           ScopeStudy,
	tag.SeriesInstanceUID:          ScopeSeries,
	tag.SOPInstanceUID:             ScopeImage,
	tag.MediaStorageSOPInstanceUID: ScopeImage,
	tag.FrameOfReferenceUID:        ScopeFrameOfReference,
	tag.AccessionNumber:            ScopeAccession,
}

// tagRegistry maps lowercase tag names to their TagInfo.
var tagRegistry = map[string]TagInfo{
	// Patient identity
	"patientname":      {Name: "PatientName", Tag: tag.PatientName},
	"patientid":        {Name: "PatientID", Tag: tag.PatientID},
	"patientbirthdate": {Name: "PatientBirthDate", Tag: tag.PatientBirthDate},
	"patientsex":       {Name: "PatientSex", Tag: tag.PatientSex},
	"patientage":       {Name: "PatientAge", Tag: tag.PatientAge},
	"patientweight":    {Name: "PatientWeight", Tag: tag.PatientWeight},
	"patientaddress":   {Name: "PatientAddress", Tag: tag.PatientAddress},
	"otherpatientids":  {Name: "OtherPatientIDs", Tag: tag.OtherPatientIDs},

	// Institution and staff
	"institutionname":             {Name: "InstitutionName", Tag: tag.InstitutionName},
	"institutionaddress":          {Name: "InstitutionAddress", Tag: tag.InstitutionAddress},
	"institutionaldepartmentname": {Name: "InstitutionalDepartmentName", Tag: tag.InstitutionalDepartmentName},
	"referringphysicianname":      {Name: "ReferringPhysicianName", Tag: tag.ReferringPhysicianName},
	"performingphysicianname":     {Name: "PerformingPhysicianName", Tag: tag.PerformingPhysicianName},
	"physiciansofrecord":          {Name: "PhysiciansOfRecord", Tag: tag.PhysiciansOfRecord},
	"operatorsname":               {Name: "OperatorsName", Tag: tag.OperatorsName},
	"stationname":                 {Name: "StationName", Tag: tag.StationName},

	// Identifiers
	"studyinstanceuid":    {Name: "StudyInstanceUID", Tag: tag.StudyInstanceUID, UIDScope: ScopeStudy, HasScope: true},
	"seriesinstanceuid":   {Name: "SeriesInstanceUID", Tag: tag.SeriesInstanceUID, UIDScope: ScopeSeries, HasScope: true},
	"sopinstanceuid":      {Name: "SOPInstanceUID", Tag: tag.SOPInstanceUID, UIDScope: ScopeImage, HasScope: true},
	"frameofreferenceuid": {Name: "FrameOfReferenceUID", Tag: tag.FrameOfReferenceUID, UIDScope: ScopeFrameOfReference, HasScope: true},
	"accessionnumber":     {Name: "AccessionNumber", Tag: tag.AccessionNumber, UIDScope: ScopeAccession, HasScope: true},
	"studyid":             {Name: "StudyID", Tag: tag.StudyID},

	// Descriptions
	"studydescription":  {Name: "StudyDescription", Tag: tag.StudyDescription},
	"seriesdescription": {Name: "SeriesDescription", Tag: tag.SeriesDescription},
	"protocolname":      {Name: "ProtocolName", Tag: tag.ProtocolName},
	"bodypartexamined":  {Name: "BodyPartExamined", Tag: tag.BodyPartExamined},

	// Dates and times
	"studydate":            {Name: "StudyDate", Tag: tag.StudyDate},
	"studytime":            {Name: "StudyTime", Tag: tag.StudyTime},
	"seriesdate":           {Name: "SeriesDate", Tag: tag.SeriesDate},
	"seriestime":           {Name: "SeriesTime", Tag: tag.SeriesTime},
	"acquisitiondate":      {Name: "AcquisitionDate", Tag: tag.AcquisitionDate},
	"acquisitiontime":      {Name: "AcquisitionTime", Tag: tag.AcquisitionTime},
	"contentdate":          {Name: "ContentDate", Tag: tag.ContentDate},
	"contenttime":          {Name: "ContentTime", Tag: tag.ContentTime},
	"instancecreationdate": {Name: "InstanceCreationDate", Tag: tag.InstanceCreationDate},
	"instancecreationtime": {Name: "InstanceCreationTime", Tag: tag.InstanceCreationTime},

	// Equipment
	"manufacturer":          {Name: "Manufacturer", Tag: tag.Manufacturer},
	"manufacturermodelname": {Name: "ManufacturerModelName", Tag: tag.ManufacturerModelName},
	"deviceserialnumber":    {Name: "DeviceSerialNumber", Tag: tag.DeviceSerialNumber},
}

// LookupTag returns TagInfo for a given tag name.
// The lookup is case-insensitive. If the tag is not found, an error is
// returned with a suggestion for the closest matching name (by Levenshtein
// distance).
func LookupTag(name string) (TagInfo, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if info, ok := tagRegistry[normalizedName]; ok {
		return info, nil
	}

	suggestion := findClosestTagName(normalizedName)
	if suggestion != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, suggestion)
	}

	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// findClosestTagName finds the closest matching tag name using Levenshtein
// distance. Returns empty string if no close match is found (distance > 5).
func findClosestTagName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for key, info := range tagRegistry {
		distance := levenshteinDistance(input, key)
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = info.Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshteinDistance calculates the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string
// into the other.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}

	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}
