package storage

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotae/internal/config"
)

// Footprint is the on-disk size of the local data files.
type Footprint struct {
	DatabaseBytes     int64 `json:"database_bytes"`
	KeywordIndexBytes int64 `json:"keyword_index_bytes"`
}

// Total returns the sum of all parts.
func (f Footprint) Total() int64 {
	return f.DatabaseBytes + f.KeywordIndexBytes
}

// MeasureFootprint sizes the SQLite database (with its WAL and shm files) and
// the keyword index directory. Missing files count as zero; postgres has no
// local database file.
func MeasureFootprint(cfg config.StorageConfig) (Footprint, error) {
	var fp Footprint
	if cfg.Driver == "" || cfg.Driver == "sqlite3" {
		for _, p := range []string{cfg.DatabasePath, cfg.DatabasePath + "-wal", cfg.DatabasePath + "-shm"} {
			n, err := pathSize(p)
			if err != nil {
				return Footprint{}, err
			}
			fp.DatabaseBytes += n
		}
	}
	n, err := pathSize(cfg.KeywordIndexPath)
	if err != nil {
		return Footprint{}, err
	}
	fp.KeywordIndexBytes = n
	return fp, nil
}

// pathSize returns the size of a file or the recursive size of a directory.
func pathSize(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
