package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldwave/mmwave-ingest/internal/ring"
)

func writeCaptureFile(t *testing.T, contents []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.bin")
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return path
}

func TestReplaySource_EmitsChunksFromFile(t *testing.T) {
	path := writeCaptureFile(t, []byte("some captured radar bytes"))
	src, err := NewReplaySource(1, path, 1000) // fast speed to keep the test quick
	require.NoError(t, err)

	stage := ring.NewStage(10)
	active := NewActiveFlag()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = src.Run(ctx, stage, active)
	require.NoError(t, err)

	chunks := stage.DrainAll()
	require.NotEmpty(t, chunks)
	require.Equal(t, uint16(1), chunks[0].SourceID)
}

func TestReplaySource_LoopsOnEOF(t *testing.T) {
	path := writeCaptureFile(t, []byte("ab"))
	src, err := NewReplaySource(2, path, 1000)
	require.NoError(t, err)

	stage := ring.NewStage(100)
	active := NewActiveFlag()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	require.NoError(t, src.Run(ctx, stage, active))

	chunks := stage.DrainAll()
	require.GreaterOrEqual(t, len(chunks), 2, "replay should have rewound and emitted the capture more than once")
}

func TestReplaySource_DefaultsInvalidSpeedToOne(t *testing.T) {
	path := writeCaptureFile(t, []byte("x"))
	src, err := NewReplaySource(3, path, -5)
	require.NoError(t, err)
	require.Equal(t, 1.0, src.speed)
}

func TestReplaySource_MissingFileErrors(t *testing.T) {
	_, err := NewReplaySource(4, "/nonexistent/path/capture.bin", 1.0)
	require.Error(t, err)
}

func TestReplaySource_StopsPromptlyOnCancel(t *testing.T) {
	path := writeCaptureFile(t, []byte("short"))
	src, err := NewReplaySource(5, path, 0.01) // slow, so delay would normally dominate
	require.NoError(t, err)

	stage := ring.NewStage(10)
	active := NewActiveFlag()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, stage, active) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("replay source did not stop within a second of cancellation")
	}
}
