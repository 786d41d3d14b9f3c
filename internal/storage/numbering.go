package storage

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

var studyDirPattern = regexp.MustCompile(`^\d{4}$`)

type seriesKey struct {
	studyUID  string
	seriesUID string
}

type imageKey struct {
	study  int
	series int
}

// numbering assigns the stable directory numbers of the on-disk layout.
// Study numbers are process-wide and never reused while a mapping exists;
// series and image numbers count within their parent. All methods assume the
// caller holds the manager mutex.
type numbering struct {
	studyCounter int
	studies      map[string]int
	series       map[seriesKey]int
	seriesCount  map[int]int
	images       map[imageKey]int
}

func newNumbering() *numbering {
	return &numbering{
		studies:     make(map[string]int),
		series:      make(map[seriesKey]int),
		seriesCount: make(map[int]int),
		images:      make(map[imageKey]int),
	}
}

// rescan seeds the study counter from the 4-digit directories already present
// under base, so numbers assigned by earlier runs are never handed out again.
// Runs once at construction, before any allocation.
func (n *numbering) rescan(base string) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan studies root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !studyDirPattern.MatchString(entry.Name()) {
			continue
		}
		v, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		if v > n.studyCounter {
			n.studyCounter = v
		}
	}
	return nil
}

// allocate returns the directory numbers for one image of (studyUID,
// seriesUID). First sight of a study or series advances the respective
// counter; the image number always advances. Allocations are never reversed.
func (n *numbering) allocate(studyUID, seriesUID string) (study, series, image int) {
	study, ok := n.studies[studyUID]
	if !ok {
		n.studyCounter++
		study = n.studyCounter
		n.studies[studyUID] = study
	}

	sk := seriesKey{studyUID: studyUID, seriesUID: seriesUID}
	series, ok = n.series[sk]
	if !ok {
		n.seriesCount[study]++
		series = n.seriesCount[study]
		n.series[sk] = series
	}

	ik := imageKey{study: study, series: series}
	n.images[ik]++
	return study, series, n.images[ik]
}

// studyNumber reports the number assigned to studyUID, if any.
func (n *numbering) studyNumber(studyUID string) (int, bool) {
	num, ok := n.studies[studyUID]
	return num, ok
}

// forget removes every mapping of studyUID. A later arrival for the same UID
// starts a new trajectory under a fresh study number.
func (n *numbering) forget(studyUID string) {
	study, ok := n.studies[studyUID]
	if !ok {
		return
	}
	delete(n.studies, studyUID)
	delete(n.seriesCount, study)
	for k := range n.series {
		if k.studyUID == studyUID {
			delete(n.series, k)
		}
	}
	for k := range n.images {
		if k.study == study {
			delete(n.images, k)
		}
	}
}
