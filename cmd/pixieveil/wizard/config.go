package wizard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/types"
	"github.com/mrsinham/pixieveil/internal/config"
)

// customProfileName is the profile the wizard writes when a switch is
// enabled. An untouched draft relies on the built-in default and needs
// no profile section at all.
const customProfileName = "custom"

// customProfileTags spells out the built-in rules in the configuration
// vocabulary, so the saved profile stands on its own and can be edited
// in the file afterwards.
var customProfileTags = map[string]string{
	"PatientName":      "ANONYMOUS",
	"PatientID":        "ANONYMOUS",
	"PatientBirthDate": "ANONYMOUS",
	"PatientSex":       "ANONYMOUS",
	"PatientAge":       "ANONYMOUS",
	"PatientWeight":    "ANONYMOUS",
	"PatientAddress":   "ANONYMOUS",
	"OtherPatientIDs":  "ANONYMOUS",

	"InstitutionName":             "ANONYMOUS",
	"InstitutionAddress":          "ANONYMOUS",
	"InstitutionalDepartmentName": "ANONYMOUS",
	"ReferringPhysicianName":      "ANONYMOUS",
	"PerformingPhysicianName":     "ANONYMOUS",
	"PhysiciansOfRecord":          "ANONYMOUS",
	"OperatorsName":               "ANONYMOUS",
	"StationName":                 "ANONYMOUS",

	"StudyInstanceUID":    "pseudo",
	"SeriesInstanceUID":   "pseudo",
	"SOPInstanceUID":      "pseudo",
	"FrameOfReferenceUID": "pseudo",
	"AccessionNumber":     "pseudo",

	"StudyDescription":  "ANONYMOUS",
	"SeriesDescription": "ANONYMOUS",
}

// ToConfig builds a full service configuration from the draft. Sections
// the wizard does not cover keep their defaults.
func ToConfig(draft *types.Draft) *config.Config {
	cfg := config.Default()

	cfg.DICOMServer.IP = draft.Server.IP
	cfg.DICOMServer.Port = draft.Server.Port
	cfg.DICOMServer.AETitle = draft.Server.AETitle
	cfg.HTTPServer.IP = draft.Server.HTTPIP
	cfg.HTTPServer.Port = draft.Server.HTTPPort
	cfg.Logging.Level = draft.Server.LogLevel
	cfg.Logging.Format = draft.Server.LogFormat

	cfg.Storage.BasePath = draft.Storage.BasePath
	cfg.Storage.TempPath = draft.Storage.TempPath
	cfg.Storage.RemoteStorage.BaseURL = draft.Storage.RemoteURL
	cfg.Storage.RemoteStorage.AuthToken = draft.Storage.AuthToken

	cfg.Study.CompletionTimeout = draft.Study.CompletionTimeout
	cfg.Study.CompletionCheckInterval = draft.Study.CompletionCheckInterval
	cfg.SeriesFilter.ExcludeModalities = draft.Study.ExcludeModalities
	cfg.SeriesFilter.KeepOriginalSeries = draft.Study.KeepOriginalSeries

	if sw := draft.Profile; sw.PixelBlackout || sw.KeepPrivateTags || sw.RetainStudyDate {
		cfg.Anonymization.Default = customProfileName
		cfg.Profiles = map[string]config.ProfileConfig{
			customProfileName: customProfile(sw),
		}
	}

	return cfg
}

// customProfile builds the profile body carrying the draft switches on
// top of the standard tag rules.
func customProfile(sw types.ProfileDraft) config.ProfileConfig {
	p := make(config.ProfileConfig, len(customProfileTags)+3)
	for name, action := range customProfileTags {
		p[name] = action
	}
	p["pixel_blackout"] = sw.PixelBlackout
	p["keep_private_tags"] = sw.KeepPrivateTags
	p["retain_study_date"] = sw.RetainStudyDate
	return p
}

// FromConfig pre-fills a draft from a loaded configuration. Only the
// fields the wizard edits are carried over; a custom profile's tag rules
// reduce to the three switches.
func FromConfig(cfg *config.Config) (*types.Draft, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}

	return &types.Draft{
		Server: types.ServerDraft{
			IP:        cfg.DICOMServer.IP,
			Port:      cfg.DICOMServer.Port,
			AETitle:   cfg.DICOMServer.AETitle,
			HTTPIP:    cfg.HTTPServer.IP,
			HTTPPort:  cfg.HTTPServer.Port,
			LogLevel:  cfg.Logging.Level,
			LogFormat: cfg.Logging.Format,
		},
		Storage: types.StorageDraft{
			BasePath:  cfg.Storage.BasePath,
			TempPath:  cfg.Storage.TempPath,
			RemoteURL: cfg.Storage.RemoteStorage.BaseURL,
			AuthToken: cfg.Storage.RemoteStorage.AuthToken,
		},
		Study: types.StudyDraft{
			CompletionTimeout:       cfg.Study.CompletionTimeout,
			CompletionCheckInterval: cfg.Study.CompletionCheckInterval,
			ExcludeModalities:       cfg.SeriesFilter.ExcludeModalities,
			KeepOriginalSeries:      cfg.SeriesFilter.KeepOriginalSeries,
		},
		Profile: types.ProfileDraft{
			PixelBlackout:   profile.PixelBlackout,
			KeepPrivateTags: profile.KeepPrivateTags,
			RetainStudyDate: profile.RetainStudyDate,
		},
	}, nil
}

// SaveToYAML validates the draft and writes it as a settings file.
// Missing parent directories are created.
func SaveToYAML(draft *types.Draft, path string) error {
	cfg := ToConfig(draft)
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// LoadFromYAML reads an existing settings file into a draft. The file is
// validated the same way the service validates it at startup.
func LoadFromYAML(path string) (*types.Draft, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg)
}
