package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/surgeo/internal/bisg"
	"github.com/sells-group/surgeo/internal/config"
	"github.com/sells-group/surgeo/internal/model"
	"github.com/sells-group/surgeo/internal/normalize"
	"github.com/sells-group/surgeo/internal/probtable"
)

const fixtureDir = "../../testdata/tables"

func fixtureTable(t *testing.T, kind probtable.Kind) *probtable.Table {
	t.Helper()
	tbl, err := probtable.LoadFile(context.Background(), filepath.Join(fixtureDir, kind.DefaultFile()), kind)
	require.NoError(t, err)
	return tbl
}

func TestRegistry_TablesLoadsOnce(t *testing.T) {
	src := &mockSource{}
	sur := fixtureTable(t, probtable.RaceGivenSurname)
	zcta := fixtureTable(t, probtable.ZCTAGivenRace)
	src.On("Load", mock.Anything, probtable.RaceGivenSurname).Return(sur, nil).Once()
	src.On("Load", mock.Anything, probtable.ZCTAGivenRace).Return(zcta, nil).Once()

	r := New(src, "mock", nil)
	ctx := context.Background()

	tables, err := r.Tables(ctx, probtable.RaceGivenSurname, probtable.ZCTAGivenRace)
	require.NoError(t, err)
	assert.Same(t, sur, tables[probtable.RaceGivenSurname])
	assert.Same(t, zcta, tables[probtable.ZCTAGivenRace])

	again, err := r.Tables(ctx, probtable.RaceGivenSurname)
	require.NoError(t, err)
	assert.Same(t, sur, again[probtable.RaceGivenSurname])
	src.AssertExpectations(t)
}

func TestRegistry_TablesLoadError(t *testing.T) {
	src := &mockSource{}
	src.On("Load", mock.Anything, probtable.RaceGivenSurname).Return(nil, errors.New("disk on fire"))

	_, err := New(src, "mock", nil).Tables(context.Background(), probtable.RaceGivenSurname)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry: load race_given_surname from mock")
}

func TestRegistry_TablesKindMismatch(t *testing.T) {
	src := &mockSource{}
	src.On("Load", mock.Anything, probtable.ZCTAGivenRace).Return(fixtureTable(t, probtable.RaceGivenZCTA), nil)

	_, err := New(src, "mock", nil).Tables(context.Background(), probtable.ZCTAGivenRace)
	require.Error(t, err)
	assert.True(t, errors.Is(err, probtable.ErrKindMismatch))
}

func TestRegistry_ManifestRowCount(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("tables:\n  - kind: race_given_surname\n    rows: 10\n"), 0o644))
	m, err := LoadManifest(manifest)
	require.NoError(t, err)

	src := &mockSource{}
	src.On("Load", mock.Anything, probtable.RaceGivenSurname).Return(fixtureTable(t, probtable.RaceGivenSurname), nil)

	_, err = New(src, "mock", m).Tables(context.Background(), probtable.RaceGivenSurname)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRowCount))
	assert.Contains(t, err.Error(), "loaded 9 rows, manifest says 10")
}

func TestRegistry_ModelCachedPerSpec(t *testing.T) {
	src := &mockSource{}
	src.On("Load", mock.Anything, probtable.RaceGivenSurname).Return(fixtureTable(t, probtable.RaceGivenSurname), nil).Once()
	src.On("Load", mock.Anything, probtable.ZCTAGivenRace).Return(fixtureTable(t, probtable.ZCTAGivenRace), nil).Once()

	r := New(src, "mock", nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	models := make([]bisg.Model, 8)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := r.Model(ctx, bisg.Spec{Kind: bisg.Surgeo})
			if err == nil {
				models[i] = m
			}
		}(i)
	}
	wg.Wait()
	for _, m := range models {
		require.NotNil(t, m)
		assert.Same(t, models[0], m)
	}

	// The surname table is shared with the surname-only model.
	sur, err := r.Model(ctx, bisg.Spec{Kind: bisg.Surname, Level: bisg.Tract})
	require.NoError(t, err)
	assert.IsType(t, &bisg.SurnameModel{}, sur)

	assert.Equal(t, []string{"sur", "surgeo/zcta"}, r.ModelNames())
	stats := r.TableStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "race_given_surname", stats[0].Kind)
	assert.Equal(t, 9, stats[0].Rows)
	src.AssertExpectations(t)
}

func TestOpen_FileSource(t *testing.T) {
	r, err := Open(context.Background(), config.DataConfig{
		Source:   "file",
		Dir:      fixtureDir,
		Manifest: "manifest.yaml",
	}, config.ModelConfig{MissingPolicy: "nan"})
	require.NoError(t, err)
	defer r.Close()

	m, err := r.Model(context.Background(), bisg.Spec{Kind: bisg.Surgeo})
	require.NoError(t, err)

	rs, err := bisg.Run(m, bisg.Batch{Surnames: []string{"Wilson"}, ZCTAs: []string{"63144"}})
	require.NoError(t, err)
	assert.Equal(t, 0.8720, rs.Records[0].Probabilities.Round(4)[model.White])
}

func TestOpen_NationalPolicy(t *testing.T) {
	r, err := Open(context.Background(), config.DataConfig{Source: "file", Dir: fixtureDir},
		config.ModelConfig{MissingPolicy: "national"})
	require.NoError(t, err)

	m, err := r.Model(context.Background(), bisg.Spec{Kind: bisg.Surname})
	require.NoError(t, err)
	rs, err := bisg.Run(m, bisg.Batch{Surnames: []string{"Will fail"}})
	require.NoError(t, err)
	assert.Equal(t, model.NationalFallback.Normalize(), rs.Records[0].Probabilities)
}

func TestOpen_BadPolicy(t *testing.T) {
	_, err := Open(context.Background(), config.DataConfig{Source: "file"}, config.ModelConfig{MissingPolicy: "drop"})
	require.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DataConfig{Source: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "surgeo.db")}

	store, closeStore, err := OpenStore(ctx, cfg, "sqlite")
	require.NoError(t, err)
	for _, kind := range []probtable.Kind{probtable.RaceGivenSurname, probtable.TractGivenRace} {
		_, err := store.Import(ctx, fixtureTable(t, kind))
		require.NoError(t, err)
	}
	closeStore()

	r, err := Open(ctx, cfg, config.ModelConfig{MissingPolicy: "nan"})
	require.NoError(t, err)
	defer r.Close()

	m, err := r.Model(ctx, bisg.Spec{Kind: bisg.Surgeo, Level: bisg.Tract})
	require.NoError(t, err)
	rs, err := bisg.Run(m, bisg.Batch{
		Surnames: []string{"Wilson"},
		Tracts:   []normalize.Tract{{State: "29", County: "189", Tract: "213501"}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.884692, rs.Records[0].Probabilities[model.White], 1e-6)
}

func TestOpenStore_Unknown(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.DataConfig{}, "oracle")
	require.Error(t, err)

	_, _, err = OpenStore(context.Background(), config.DataConfig{}, "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}
