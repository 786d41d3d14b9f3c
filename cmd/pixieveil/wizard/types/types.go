// Package types holds the draft settings the wizard screens edit in place.
package types

// Draft is the wizard's working copy of a settings file. Screens bind
// directly to its fields and nothing touches disk until the user saves.
type Draft struct {
	Server  ServerDraft
	Storage StorageDraft
	Study   StudyDraft
	Profile ProfileDraft
}

// ServerDraft covers how the service presents itself: the DICOM listener,
// the dashboard socket and the log output.
type ServerDraft struct {
	IP        string
	Port      int
	AETitle   string
	HTTPIP    string
	HTTPPort  int
	LogLevel  string
	LogFormat string
}

// StorageDraft covers the local roots and the upload endpoint. An empty
// RemoteURL disables uploads, an empty TempPath falls back to a temp
// subtree under the base path.
type StorageDraft struct {
	BasePath  string
	TempPath  string
	RemoteURL string
	AuthToken string
}

// StudyDraft covers completion detection and the series filter. Timeout
// and interval are in seconds.
type StudyDraft struct {
	CompletionTimeout       int
	CompletionCheckInterval int
	ExcludeModalities       []string
	KeepOriginalSeries      bool
}

// ProfileDraft covers the anonymisation profile switches. All three off
// means the built-in default profile applies unchanged.
type ProfileDraft struct {
	PixelBlackout   bool
	KeepPrivateTags bool
	RetainStudyDate bool
}
