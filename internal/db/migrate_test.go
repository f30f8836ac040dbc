package db

import (
	"testing"
	"testing/fstest"
)

func TestPendingFilesOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_indexes.up.sql":  {Data: []byte("SELECT 1")},
		"0001_init.up.sql":     {Data: []byte("SELECT 1")},
		"0001_init.down.sql":   {Data: []byte("SELECT 1")},
		"README.md":            {Data: []byte("notes")},
		"old/0000_skip.up.sql": {Data: []byte("SELECT 1")},
	}

	got, err := pendingFiles(fsys)
	if err != nil {
		t.Fatalf("pendingFiles: %v", err)
	}
	want := []string{"0001_init.up.sql", "0002_indexes.up.sql"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
