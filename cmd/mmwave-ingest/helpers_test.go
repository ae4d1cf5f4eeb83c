package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldwave/mmwave-ingest/internal/config"
)

func resetSourceFlags(t *testing.T) {
	t.Helper()
	*serialPorts = ""
	*replayFile = ""
	*pcapFile = ""
	*pcapPort = 0
}

func writeTempCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.bin")
	if err := os.WriteFile(path, []byte("capture bytes"), 0o644); err != nil {
		t.Fatalf("writing temp capture file: %v", err)
	}
	return path
}

func defaultTuningForTest() config.Tuning {
	return config.Defaults()
}
