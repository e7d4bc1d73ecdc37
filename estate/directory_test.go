package estate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryDefaults(t *testing.T) {
	dir := NewDirectory("", nil)
	for _, k := range AllKinds {
		subject, err := dir.Lookup(k)
		require.NoError(t, err)
		assert.Equal(t, RequestSubject(k), subject)
	}
}

func TestDirectoryLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	content := []byte("workers:\n  research: \"estate.request.research-v2\"\n  probe: \"estate.request.probe-staging\"\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	dir := NewDirectory(path, nil)
	require.NoError(t, dir.Load())

	subject, err := dir.Lookup(KindResearch)
	require.NoError(t, err)
	assert.Equal(t, "estate.request.research-v2", subject)

	subject, err = dir.Lookup(KindProbe)
	require.NoError(t, err)
	assert.Equal(t, "estate.request.probe-staging", subject)

	// Kinds without overrides keep defaults.
	subject, err = dir.Lookup(KindGeocode)
	require.NoError(t, err)
	assert.Equal(t, RequestSubject(KindGeocode), subject)
}

func TestDirectoryLoadMissingFileKeepsDefaults(t *testing.T) {
	dir := NewDirectory(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, dir.Load())

	subject, err := dir.Lookup(KindScoping)
	require.NoError(t, err)
	assert.Equal(t, RequestSubject(KindScoping), subject)
}

func TestDirectoryLoadRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  fortune_teller: \"estate.request.x\"\n"), 0644))

	dir := NewDirectory(path, nil)
	require.Error(t, dir.Load())

	// The previous mapping stays active after a failed load.
	subject, err := dir.Lookup(KindResearch)
	require.NoError(t, err)
	assert.Equal(t, RequestSubject(KindResearch), subject)
}

func TestDirectoryReloadDropsStaleOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  intern: \"estate.request.intern-old\"\n"), 0644))

	dir := NewDirectory(path, nil)
	require.NoError(t, dir.Load())

	require.NoError(t, os.WriteFile(path, []byte("workers: {}\n"), 0644))
	require.NoError(t, dir.Load())

	subject, err := dir.Lookup(KindIntern)
	require.NoError(t, err)
	assert.Equal(t, RequestSubject(KindIntern), subject)
}
