package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrsinham/pixieveil/internal/archive"
	"github.com/mrsinham/pixieveil/internal/remote"
)

// Tracker watches study activity and, once a study has been quiet for the
// completion timeout, drives the archive, upload and cleanup sequence.
type Tracker struct {
	manager  *Manager
	uploader remote.Uploader
	timeout  time.Duration
	interval time.Duration
	log      *logrus.Entry
}

// NewTracker binds a tracker to the manager whose studies it completes.
func NewTracker(manager *Manager, uploader remote.Uploader, timeout, interval time.Duration, log *logrus.Entry) *Tracker {
	return &Tracker{
		manager:  manager,
		uploader: uploader,
		timeout:  timeout,
		interval: interval,
		log:      log,
	}
}

// Run sweeps on every tick until ctx is cancelled. Sweeps never overlap; a
// slow upload delays the next scan instead of running beside it.
func (t *Tracker) Run(ctx context.Context) {
	t.log.WithFields(logrus.Fields{
		"timeout":  t.timeout,
		"interval": t.interval,
	}).Info("completion tracker started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.log.Info("completion tracker stopped")
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

type candidate struct {
	studyUID     string
	number       int
	lastReceived time.Time
}

// Sweep snapshots quiescent studies under the lock, then completes them with
// the lock released.
func (t *Tracker) Sweep(ctx context.Context) {
	now := time.Now()
	m := t.manager

	var quiescent []candidate
	var orphans []string
	m.mu.Lock()
	for uid, st := range m.states {
		if now.Sub(st.lastReceived) <= t.timeout {
			continue
		}
		number, ok := m.numbers.studyNumber(uid)
		if !ok {
			delete(m.states, uid)
			m.counters.errorsTotal++
			orphans = append(orphans, uid)
			continue
		}
		quiescent = append(quiescent, candidate{studyUID: uid, number: number, lastReceived: st.lastReceived})
	}
	m.mu.Unlock()

	for _, uid := range orphans {
		t.log.WithField("study_uid", uid).Warn("study state without an assigned number, dropped")
	}
	for _, c := range quiescent {
		if ctx.Err() != nil {
			return
		}
		t.complete(ctx, c)
	}
}

// complete archives, uploads and cleans up one quiescent study. On upload
// failure everything stays in place and the study is retried on a later
// sweep.
func (t *Tracker) complete(ctx context.Context, c candidate) {
	m := t.manager
	log := t.log.WithFields(logrus.Fields{
		"study_uid":    c.studyUID,
		"study_number": c.number,
	})

	dir := m.StudyDir(c.number)
	if _, err := os.Stat(dir); err != nil {
		log.WithError(err).Warn("study directory missing at completion")
		m.mu.Lock()
		m.counters.errorsTotal++
		m.mu.Unlock()
		return
	}

	images := countImages(dir)
	m.mu.Lock()
	m.counters.archive.Studies++
	m.counters.archive.Images += uint64(images)
	m.mu.Unlock()

	zipPath := m.ArchivePath(c.number)
	files, size, err := archive.ZipStudy(dir, zipPath)
	if err != nil {
		log.WithError(err).Error("failed to archive study")
		m.mu.Lock()
		m.counters.archive.Errors++
		m.counters.errorsTotal++
		m.mu.Unlock()
		return
	}
	log.WithFields(logrus.Fields{"files": files, "zip_bytes": size}).Debug("study archived")

	switch t.uploader.Upload(ctx, zipPath, filepath.Base(zipPath)) {
	case remote.Uploaded:
		if !t.claim(c) {
			log.Debug("study received images during completion, retrying later")
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Error("failed to remove study directory")
			m.mu.Lock()
			m.counters.errorsTotal++
			m.mu.Unlock()
		}
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Error("failed to remove study archive")
			m.mu.Lock()
			m.counters.errorsTotal++
			m.mu.Unlock()
		}
		m.mu.Lock()
		m.counters.remote.Studies++
		m.counters.remote.Images += uint64(images)
		m.counters.remote.Bytes += uint64(size)
		m.mu.Unlock()
		log.WithField("images", images).Info("study uploaded and purged")

	case remote.Disabled:
		if !t.claim(c) {
			log.Debug("study received images during completion, retrying later")
			return
		}
		log.WithField("images", images).Info("study completed, upload disabled, local copy kept")

	default:
		m.mu.Lock()
		m.counters.remote.Errors++
		m.counters.archive.Errors++
		m.counters.errorsTotal++
		m.mu.Unlock()
		log.Warn("study upload failed, will retry on next sweep")
	}
}

// claim marks the study completed and removes its state and numbering in one
// critical section. It refuses when an image arrived after the sweep
// snapshot, so a late arrival keeps the study active instead of losing data.
func (t *Tracker) claim(c candidate) bool {
	m := t.manager
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[c.studyUID]
	if !ok || !st.lastReceived.Equal(c.lastReceived) {
		return false
	}
	delete(m.states, c.studyUID)
	m.numbers.forget(c.studyUID)
	m.counters.completed++
	return true
}

// countImages counts the .dcm files below dir.
func countImages(dir string) int {
	count := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == ".dcm" {
			count++
		}
		return nil
	})
	return count
}
