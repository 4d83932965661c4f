package services

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

const cacheVersion = "v2"

var cacheNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// snapshot is the gob payload of a parsed dataset together with the identity
// of the file it came from and the date layouts it was parsed with.
type snapshot struct {
	SourceModTime time.Time
	SourceSize    int64
	DateLayouts   []string
	Records       []models.Record
}

// datasetCache persists parsed datasets so restarts skip CSV parsing. A zero
// value (empty dir) disables caching.
type datasetCache struct {
	dir string
}

func (c datasetCache) enabled() bool {
	return c.dir != ""
}

func (c datasetCache) filename(csvPath string) string {
	name := cacheNameReplacer.Replace(filepath.Clean(csvPath))
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

// load returns the cached records for csvPath if they were written from a file
// with the same modification time and size as source, parsed with the same
// date layouts.
func (c datasetCache) load(csvPath string, source os.FileInfo, dateLayouts []string) ([]models.Record, error) {
	file, err := os.Open(c.filename(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if !snap.SourceModTime.Equal(source.ModTime()) || snap.SourceSize != source.Size() {
		return nil, fmt.Errorf("snapshot is stale")
	}
	if !slices.Equal(snap.DateLayouts, dateLayouts) {
		return nil, fmt.Errorf("snapshot was parsed with date layouts %q", snap.DateLayouts)
	}
	return snap.Records, nil
}

func (c datasetCache) save(csvPath string, source os.FileInfo, dateLayouts []string, dataset *models.Dataset) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	target := c.filename(csvPath)
	tmp, err := os.CreateTemp(c.dir, filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	snap := snapshot{
		SourceModTime: source.ModTime(),
		SourceSize:    source.Size(),
		DateLayouts:   dateLayouts,
		Records:       dataset.Records(),
	}
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
