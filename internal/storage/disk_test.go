package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
)

func TestMeasureFootprint(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "kotae.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	idx := filepath.Join(dir, "keyword")
	if err := os.MkdirAll(filepath.Join(idx, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "store", "seg"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "meta"), []byte("d"), 0644); err != nil {
		t.Fatal(err)
	}

	fp, err := MeasureFootprint(config.StorageConfig{Driver: "sqlite3", DatabasePath: db, KeywordIndexPath: idx})
	if err != nil {
		t.Fatal(err)
	}
	if fp.DatabaseBytes != 7 {
		t.Errorf("DatabaseBytes = %d, want 7", fp.DatabaseBytes)
	}
	if fp.KeywordIndexBytes != 4 {
		t.Errorf("KeywordIndexBytes = %d, want 4", fp.KeywordIndexBytes)
	}
	if fp.Total() != 11 {
		t.Errorf("Total = %d, want 11", fp.Total())
	}
}

func TestMeasureFootprint_Missing(t *testing.T) {
	dir := t.TempDir()
	fp, err := MeasureFootprint(config.StorageConfig{
		Driver:           "postgres",
		DatabasePath:     filepath.Join(dir, "ignored.db"),
		KeywordIndexPath: filepath.Join(dir, "nope"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if fp.Total() != 0 {
		t.Errorf("Total = %d, want 0", fp.Total())
	}
}
