package latch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	pb "github.com/oshokin/alarm-telemetry/internal/pb/v1"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns equal state.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "latches.json")
	repo := NewFileRepository(file)

	ts := time.Now().UTC().Truncate(time.Second)
	want := &State{
		Timestamp: ts,
		Latched:   []string{"hum", "temp"},
		LastAcknowledgement: &telemetry.Acknowledgement{
			Channel: "gx",
			Actor:   &telemetry.Actor{Hostname: "bench-01", Username: "o.shokin"},
			At:      ts.Add(-time.Minute),
		},
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Latched, got.Latched)
	require.True(t, want.Timestamp.Equal(got.Timestamp))
	require.Equal(t, want.LastAcknowledgement.Actor, got.LastAcknowledgement.Actor)
	require.True(t, want.LastAcknowledgement.At.Equal(got.LastAcknowledgement.At))

	_, err = os.Stat(file + ".tmp")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFileRepository_EmptyState stores a state with nothing latched.
func TestFileRepository_EmptyState(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "latches.json"))
	require.NoError(t, repo.Save(context.Background(), new(State)))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, got.Latched)
	require.Nil(t, got.LastAcknowledgement)
	require.True(t, got.Timestamp.IsZero())
}

// TestFileRepository_Malformed rejects files that are not latch documents.
func TestFileRepository_Malformed(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "latches.json")
	repo := NewFileRepository(file)

	require.NoError(t, os.WriteFile(file, []byte(`{"timestamp": null}`), 0o600))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, errMalformedState)

	require.NoError(t, os.WriteFile(file, []byte(`{"latched": [], "timestamp": "yesterday"}`), 0o600))

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, errMalformedState)
	require.ErrorIs(t, err, pb.ErrMalformedMessage)

	require.NoError(t, os.WriteFile(file, []byte(`not json`), 0o600))

	_, err = repo.Load(context.Background())
	require.Error(t, err)
}

// TestState_Clone does not share the latched slice.
func TestState_Clone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*State)(nil).Clone())

	s := &State{Latched: []string{"temp"}}
	c := s.Clone()
	c.Latched[0] = "hum"

	require.Equal(t, "temp", s.Latched[0])
}
