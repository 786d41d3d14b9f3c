package help

// HelpText contains information about a field
type HelpText struct {
	Title       string
	Description string
	Details     string
}

// Texts contains help information for all wizard fields
var Texts = map[string]HelpText{
	"dicom_ip": {
		Title:       "LISTEN ADDRESS",
		Description: "Interface the DICOM listener binds to.",
		Details: `0.0.0.0 accepts associations from any interface.
127.0.0.1 restricts the listener to the local machine.`,
	},
	"dicom_port": {
		Title:       "DICOM PORT",
		Description: "TCP port for incoming C-STORE associations.",
		Details:     "11112 is the registered DICOM port. Ports below 1024 need elevated privileges.",
	},
	"ae_title": {
		Title:       "AE TITLE",
		Description: "Application entity title the service answers to.",
		Details: `Sending modalities must address this exact title.
Maximum 16 characters, uppercase by convention.`,
	},
	"http_ip": {
		Title:       "DASHBOARD ADDRESS",
		Description: "Interface the status dashboard binds to.",
		Details:     "Serves the dashboard, /stats and /metrics endpoints.",
	},
	"http_port": {
		Title:       "DASHBOARD PORT",
		Description: "TCP port for the status dashboard.",
		Details:     "Pick a port that does not collide with the DICOM listener.",
	},
	"log_level": {
		Title:       "LOG LEVEL",
		Description: "Minimum severity written to the log.",
		Details: `debug - every received instance and state change
info - service lifecycle and completed studies
warning - recoverable problems only
error - failures only`,
	},
	"log_format": {
		Title:       "LOG FORMAT",
		Description: "Shape of each log line.",
		Details:     "text is readable on a terminal, json suits log collectors.",
	},
	"base_path": {
		Title:       "STORAGE ROOT",
		Description: "Directory where anonymised studies are placed.",
		Details: `Studies are numbered in arrival order under this root:
<root>/0001/0001/0001.dcm (study/series/instance).
Created on startup if it does not exist.`,
	},
	"temp_path": {
		Title:       "TEMP DIRECTORY",
		Description: "Staging area for files still being written.",
		Details: `Files land here first and move into the storage root by rename.
Leave blank to use a temp subtree under the storage root.`,
	},
	"remote_url": {
		Title:       "UPLOAD ENDPOINT",
		Description: "Base URL the completed study archives are posted to.",
		Details: `Archives go to <url>/upload as multipart POST requests.
Leave blank to keep archives local and skip uploads entirely.`,
	},
	"auth_token": {
		Title:       "AUTH TOKEN",
		Description: "Bearer token sent with every upload.",
		Details:     "Leave blank if the endpoint does not require authentication.",
	},
	"completion_timeout": {
		Title:       "COMPLETION TIMEOUT",
		Description: "Seconds of silence before a study counts as complete.",
		Details: `Modalities send a study as many separate C-STORE requests.
Once no new image has arrived for this long, the study is
archived and uploaded. 120 suits most modalities.`,
	},
	"check_interval": {
		Title:       "CHECK INTERVAL",
		Description: "Seconds between completion sweeps.",
		Details:     "Each sweep looks for studies whose timeout has elapsed.",
	},
	"exclude_modalities": {
		Title:       "EXCLUDED MODALITIES",
		Description: "Modality codes whose images are dropped on receipt.",
		Details: `Comma separated DICOM codes, for example: SR, PR, KO.
Dropped images are counted but never written to disk.`,
	},
	"keep_original_series": {
		Title:       "KEEP ORIGINAL SERIES",
		Description: "Keep only ORIGINAL images and drop derived ones.",
		Details:     "Filters on the first value of ImageType. Off accepts everything.",
	},
	"pixel_blackout": {
		Title:       "PIXEL BLACKOUT",
		Description: "Black out the top rows of every image.",
		Details: `Ultrasound and secondary capture images often carry patient
names burned into the top of the frame. Blackout removes them
at the cost of some image content.`,
	},
	"keep_private_tags": {
		Title:       "KEEP PRIVATE TAGS",
		Description: "Keep vendor private tags instead of stripping them.",
		Details: `Private tags can hide identifying data in vendor formats.
Keep them only when a downstream tool needs them.`,
	},
	"retain_study_date": {
		Title:       "RETAIN STUDY DATE",
		Description: "Keep the original study date and time.",
		Details: `Dates are normally reset to the processing time. Retaining
the study date preserves the clinical timeline but weakens
the anonymisation.`,
	},
	"settings_path": {
		Title:       "SETTINGS PATH",
		Description: "Where the settings file is written.",
		Details:     "Missing parent directories are created. An existing file is overwritten.",
	},
	"action": {
		Title:       "ACTION",
		Description: "What to do with the reviewed settings.",
		Details: `Save writes the settings file.
Back returns to the first screen to edit values.
Cancel exits without writing anything.`,
	},
}
