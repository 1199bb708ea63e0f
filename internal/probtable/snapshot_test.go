package probtable

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sells-group/surgeo/internal/model"
)

func TestSnapshot_RoundTripMatchesCSV(t *testing.T) {
	for _, kind := range AllKinds() {
		t.Run(kind.String(), func(t *testing.T) {
			src, err := LoadFile(context.Background(), fixture(kind), kind)
			require.NoError(t, err)

			path := SnapshotPath(t.TempDir(), kind)
			require.NoError(t, WriteSnapshot(path, src))

			got, err := LoadFile(context.Background(), path, kind)
			require.NoError(t, err)
			assert.Equal(t, src.Keys(), got.Keys())
			for _, key := range src.Keys() {
				want, _ := src.Lookup(key)
				have, ok := got.Lookup(key)
				require.True(t, ok)
				assert.Equal(t, want, have, key)
			}
		})
	}
}

func TestSnapshot_PreservesMissing(t *testing.T) {
	tbl, err := FromRows(RaceGivenSurname, [][]string{{"RARE"}}, []model.ProbabilityVector{model.MissingVector()})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "s.mp")
	require.NoError(t, WriteSnapshot(path, tbl))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	v, ok := got.Lookup("RARE")
	require.True(t, ok)
	assert.True(t, v.IsMissing())
}

func TestSnapshot_KindMismatch(t *testing.T) {
	tbl, err := FromRows(RaceGivenZCTA, [][]string{{"63144"}}, []model.ProbabilityVector{wilson})
	require.NoError(t, err)
	path := SnapshotPath(t.TempDir(), RaceGivenZCTA)
	require.NoError(t, WriteSnapshot(path, tbl))

	_, err = LoadFile(context.Background(), path, ZCTAGivenRace)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKindMismatch))
}

func TestSnapshot_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.mp")
	data, err := msgpack.Marshal(&snapshotPayload{Schema: snapshotSchemaVersion + 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadSnapshot(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSnapshotSchema))
}

func TestSnapshot_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.mp")
	data, err := msgpack.Marshal(&snapshotPayload{
		Schema: snapshotSchemaVersion,
		Keys:   []string{"A"},
		Values: []float64{1, 2},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadSnapshot(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestSnapshotFresh(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	snap := filepath.Join(dir, "src.mp")

	assert.False(t, SnapshotFresh(snap, src))

	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(snap, []byte("y"), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(src, old, old))
	assert.True(t, SnapshotFresh(snap, src))

	require.NoError(t, os.Chtimes(snap, old.Add(-time.Hour), old.Add(-time.Hour)))
	assert.False(t, SnapshotFresh(snap, src))
}

func TestReadSnapshotFor(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "zcta.csv")
	other := filepath.Join(dir, "zcta_old.csv")
	snap := filepath.Join(dir, "zcta.mp")
	body := "zcta5,hispanic,white,black,api,ai,multi\n631,0.9,0.1,0,0,0,0\n"
	require.NoError(t, os.WriteFile(src, []byte(body), 0o644))
	require.NoError(t, os.WriteFile(other, []byte(body+"632,0.5,0.5,0,0,0,0\n"), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(src, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	tbl, err := LoadFile(context.Background(), src, RaceGivenZCTA)
	require.NoError(t, err)
	origin, err := OriginOf(src)
	require.NoError(t, err)
	require.NoError(t, WriteSnapshot(snap, tbl, WithOrigin(origin)))

	got, err := ReadSnapshotFor(snap, src)
	require.NoError(t, err)
	assert.Equal(t, tbl.Keys(), got.Keys())

	_, err = ReadSnapshotFor(snap, other)
	assert.True(t, errors.Is(err, ErrSnapshotStale), "different source file")

	require.NoError(t, os.WriteFile(src, []byte(body+"\n"), 0o644))
	require.NoError(t, os.Chtimes(src, old, old))
	_, err = ReadSnapshotFor(snap, src)
	assert.True(t, errors.Is(err, ErrSnapshotStale), "source size changed")
}

func TestReadSnapshotFor_NoOrigin(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	snap := filepath.Join(dir, "src.mp")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(src, old, old))

	require.NoError(t, WriteSnapshot(snap, NewBuilder(RaceGivenSurname, 0).Build()))
	_, err := ReadSnapshotFor(snap, src)
	assert.True(t, errors.Is(err, ErrSnapshotStale))
}
