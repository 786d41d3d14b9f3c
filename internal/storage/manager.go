// Package storage owns the on-disk study layout and every piece of shared
// pipeline state: numbering, per-study activity, and the counters surface.
// A single mutex guards the maps and counters and is never held across disk
// or network I/O.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/pixieveil/internal/anonymize"
	"github.com/mrsinham/pixieveil/internal/dicomutil"
	"github.com/mrsinham/pixieveil/internal/filter"
)

// studyState tracks one active study between its first image and completion.
type studyState struct {
	firstReceived time.Time
	lastReceived  time.Time
}

// Manager orchestrates per-image processing and owns the layout under its
// base path plus the temp intake directory.
type Manager struct {
	basePath string
	tempPath string

	filter *filter.Filter
	anon   *anonymize.Anonymizer
	log    *logrus.Entry

	shuttingDown atomic.Bool

	mu       sync.Mutex
	numbers  *numbering
	states   map[string]*studyState
	counters counters
}

// NewManager creates the base and temp directories and seeds the study
// counter from the layout left by earlier runs.
func NewManager(basePath, tempPath string, f *filter.Filter, anon *anonymize.Anonymizer, log *logrus.Entry) (*Manager, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if tempPath == "" {
		return nil, fmt.Errorf("storage temp path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create studies root: %w", err)
	}
	if err := os.MkdirAll(tempPath, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	numbers := newNumbering()
	if err := numbers.rescan(basePath); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"base_path":     basePath,
		"study_counter": numbers.studyCounter,
	}).Info("storage initialised")

	return &Manager{
		basePath: basePath,
		tempPath: tempPath,
		filter:   f,
		anon:     anon,
		log:      log,
		numbers:  numbers,
		states:   make(map[string]*studyState),
	}, nil
}

// SaveTempImage writes the received bytes into the temp intake directory and
// returns the file path for the subsequent ProcessImage call.
func (m *Manager) SaveTempImage(data []byte, id string) (string, error) {
	path := filepath.Join(m.tempPath, id+".dcm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		m.mu.Lock()
		m.counters.errorsTotal++
		m.mu.Unlock()
		return "", fmt.Errorf("write temp image: %w", err)
	}

	m.mu.Lock()
	m.counters.reception.Images++
	m.counters.reception.Bytes += uint64(len(data))
	m.mu.Unlock()
	return path, nil
}

// ProcessImage runs the pipeline on one temp file: parse, validate, filter,
// anonymise, number, move into the layout. Failures never propagate to the
// caller; each maps to a counter increment and a debug log, and the temp
// file is discarded.
func (m *Manager) ProcessImage(path, id string) {
	started := time.Now()
	log := m.log.WithField("reception_id", id)

	if m.shuttingDown.Load() {
		log.Debug("shutdown in progress, image left in temp")
		return
	}

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		log.WithError(err).Debug("dataset failed to parse")
		m.discardTemp(path, log)
		m.countValidationError()
		return
	}

	studyUID, seriesUID, err := requiredUIDs(&ds)
	if err != nil {
		log.WithError(err).Debug("dataset failed validation")
		m.discardTemp(path, log)
		m.countValidationError()
		return
	}
	log = log.WithField("study_uid", studyUID)

	if m.filter.Drop(&ds) {
		log.Debug("dataset dropped by series filter")
		m.discardTemp(path, log)
		m.mu.Lock()
		m.counters.filterDropped++
		m.mu.Unlock()
		return
	}

	if err := m.anon.Anonymize(&ds); err != nil {
		log.WithError(err).Debug("anonymisation failed")
		m.discardTemp(path, log)
		m.mu.Lock()
		m.counters.processing.Errors.Anonymization++
		m.counters.errorsTotal++
		m.mu.Unlock()
		return
	}
	if err := writeDataset(path, ds); err != nil {
		log.WithError(err).Debug("anonymised dataset failed to encode")
		m.discardTemp(path, log)
		m.mu.Lock()
		m.counters.processing.Errors.Anonymization++
		m.counters.errorsTotal++
		m.mu.Unlock()
		return
	}

	study, series, image := m.allocateAndTrack(studyUID, seriesUID)
	dest := m.imagePath(study, series, image)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		log.WithError(err).Debug("failed to create series directory")
		m.discardTemp(path, log)
		m.countStorageError()
		return
	}
	if err := os.Rename(path, dest); err != nil {
		log.WithError(err).Debug("failed to move image into layout")
		m.discardTemp(path, log)
		m.countStorageError()
		return
	}

	m.mu.Lock()
	if st, ok := m.states[studyUID]; ok {
		st.lastReceived = time.Now()
	}
	m.counters.processing.Images++
	m.counters.processingTotal += time.Since(started)
	m.mu.Unlock()

	log.WithFields(logrus.Fields{
		"study":  study,
		"series": series,
		"image":  image,
	}).Debug("image placed into layout")
}

// Counters returns a copy of every counter plus the number of active studies.
func (m *Manager) Counters() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters.snapshot(len(m.states))
}

// BeginShutdown makes subsequent ProcessImage calls return immediately,
// leaving their temp files in place.
func (m *Manager) BeginShutdown() {
	m.shuttingDown.Store(true)
}

// StudyDir returns the layout directory of a study number.
func (m *Manager) StudyDir(study int) string {
	return filepath.Join(m.basePath, fmt.Sprintf("%04d", study))
}

// ArchivePath returns the ZIP location for a study number.
func (m *Manager) ArchivePath(study int) string {
	return m.StudyDir(study) + ".zip"
}

func (m *Manager) imagePath(study, series, image int) string {
	return filepath.Join(m.StudyDir(study), fmt.Sprintf("%04d", series), fmt.Sprintf("%04d.dcm", image))
}

// allocateAndTrack assigns directory numbers and refreshes the study's
// last_received in the same critical section, so a completion scan can never
// observe a quiescent study while one of its images is being placed.
func (m *Manager) allocateAndTrack(studyUID, seriesUID string) (study, series, image int) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	study, series, image = m.numbers.allocate(studyUID, seriesUID)
	if st, ok := m.states[studyUID]; ok {
		st.lastReceived = now
	} else {
		m.states[studyUID] = &studyState{firstReceived: now, lastReceived: now}
	}
	return study, series, image
}

func (m *Manager) countValidationError() {
	m.mu.Lock()
	m.counters.processing.Errors.Validation++
	m.counters.errorsTotal++
	m.mu.Unlock()
}

func (m *Manager) countStorageError() {
	m.mu.Lock()
	m.counters.processing.Errors.Storage++
	m.counters.errorsTotal++
	m.mu.Unlock()
}

func (m *Manager) discardTemp(path string, log *logrus.Entry) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to remove temp image")
	}
}

// requiredUIDs extracts the identifiers every image must carry.
func requiredUIDs(ds *dicom.Dataset) (studyUID, seriesUID string, err error) {
	studyUID, err = dicomutil.StringValue(ds, tag.StudyInstanceUID)
	if err != nil || studyUID == "" {
		return "", "", fmt.Errorf("missing StudyInstanceUID")
	}
	seriesUID, err = dicomutil.StringValue(ds, tag.SeriesInstanceUID)
	if err != nil || seriesUID == "" {
		return "", "", fmt.Errorf("missing SeriesInstanceUID")
	}
	if sop, sopErr := dicomutil.StringValue(ds, tag.SOPInstanceUID); sopErr != nil || sop == "" {
		return "", "", fmt.Errorf("missing SOPInstanceUID")
	}
	return studyUID, seriesUID, nil
}

func writeDataset(path string, ds dicom.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return dicom.Write(f, ds, dicom.SkipVRVerification(), dicom.SkipValueTypeVerification())
}
