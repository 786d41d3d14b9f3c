package anonymize

import (
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Rule is a resolved profile entry for one tag.
type Rule struct {
	Action Action
	Value  string // literal replacement, used by actionReplace only
}

// Switches carries a profile's global boolean options.
type Switches struct {
	PixelBlackout   bool
	KeepPrivateTags bool
	RetainStudyDate bool
}

// Profile is a named anonymisation policy: per-tag rules plus global
// switches. Tags without a rule are kept, subject to the engine's own
// date-reset and removal passes.
type Profile struct {
	Name            string
	Rules           map[tag.Tag]Rule
	PixelBlackout   bool
	KeepPrivateTags bool
	RetainStudyDate bool
}

// DefaultProfileName is the profile used when configuration names none.
const DefaultProfileName = "DEFAULT"

// DefaultProfile blanks patient demographics and institutional identity,
// pseudonymises every instance identifier and rewrites the descriptions.
// Dates and times are reset to the processing time by the engine.
func DefaultProfile() *Profile {
	rules := map[tag.Tag]Rule{
		tag.PatientName:      {Action: actionBlank},
		tag.PatientID:        {Action: actionBlank},
		tag.PatientBirthDate: {Action: actionBlank},
		tag.PatientSex:       {Action: actionBlank},
		tag.PatientAge:       {Action: actionBlank},
		tag.PatientWeight:    {Action: actionBlank},
		tag.PatientAddress:   {Action: actionBlank},
		tag.OtherPatientIDs:  {Action: actionBlank},

		tag.InstitutionName:             {Action: actionBlank},
		tag.InstitutionAddress:          {Action: actionBlank},
		tag.InstitutionalDepartmentName: {Action: actionBlank},
		tag.ReferringPhysicianName:      {Action: actionBlank},
		tag.PerformingPhysicianName:     {Action: actionBlank},
		tag.PhysiciansOfRecord:          {Action: actionBlank},
		tag.OperatorsName:               {Action: actionBlank},
		tag.StationName:                 {Action: actionBlank},

		tag.StudyInstanceUID:    {Action: ActionPseudo},
		tag.SeriesInstanceUID:   {Action: ActionPseudo},
		tag.SOPInstanceUID:      {Action: ActionPseudo},
		tag.FrameOfReferenceUID: {Action: ActionPseudo},
		tag.AccessionNumber:     {Action: ActionPseudo},

		tag.StudyDescription:  {Action: actionReplace, Value: "Anonymized Study"},
		tag.SeriesDescription: {Action: actionReplace, Value: "Anonymized Series"},
	}
	return &Profile{Name: DefaultProfileName, Rules: rules}
}

// NewProfile resolves a configured tag/action map into a Profile. Tag names
// are matched case-insensitively; unknown names fail with a suggestion. The
// pseudo action is only valid on tags carrying a UID scope.
func NewProfile(name string, tags map[string]string, sw Switches) (*Profile, error) {
	rules := make(map[tag.Tag]Rule, len(tags))
	for tagName, actionName := range tags {
		info, err := LookupTag(tagName)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		action, err := ParseAction(actionName)
		if err != nil {
			return nil, fmt.Errorf("profile %s, tag %s: %w", name, info.Name, err)
		}
		if action == ActionPseudo && !info.HasScope {
			return nil, fmt.Errorf("profile %s: tag %s has no UID scope and cannot take the pseudo action", name, info.Name)
		}
		rules[info.Tag] = Rule{Action: action}
	}
	return &Profile{
		Name:            name,
		Rules:           rules,
		PixelBlackout:   sw.PixelBlackout,
		KeepPrivateTags: sw.KeepPrivateTags,
		RetainStudyDate: sw.RetainStudyDate,
	}, nil
}
