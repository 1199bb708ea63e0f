// Package registry loads the probability tables each model variant needs
// and caches built models. Tables are loaded at most once per process,
// concurrently, from a data directory, SQLite or PostgreSQL.
package registry

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/surgeo/internal/bisg"
	"github.com/sells-group/surgeo/internal/config"
	"github.com/sells-group/surgeo/internal/db"
	"github.com/sells-group/surgeo/internal/monitoring"
	"github.com/sells-group/surgeo/internal/probtable"
)

// Store is a database-backed table source that can also be written.
type Store interface {
	Source
	Import(ctx context.Context, t *probtable.Table) (int64, error)
}

// OpenStore opens the sqlite or postgres table store named by driver. The
// returned func releases it.
func OpenStore(ctx context.Context, cfg config.DataConfig, driver string) (Store, func(), error) {
	switch driver {
	case "sqlite":
		src, err := probtable.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil //nolint:errcheck
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, eris.New("registry: data.database_url is required for postgres")
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			return nil, nil, err
		}
		return probtable.NewPostgresSource(pool, cfg.Schema), pool.Close, nil
	}
	return nil, nil, eris.Errorf("registry: unknown table store %q (want sqlite or postgres)", driver)
}

// Registry owns loaded tables and built models. It is safe for concurrent use.
type Registry struct {
	src      Source
	srcName  string
	manifest *Manifest
	opts     []bisg.Option
	closer   func()

	mu     sync.RWMutex
	tables map[probtable.Kind]*probtable.Table
	models map[bisg.Spec]bisg.Model
	group  singleflight.Group
}

// New wraps a source. sourceName labels logs and metrics.
func New(src Source, sourceName string, manifest *Manifest, opts ...bisg.Option) *Registry {
	return &Registry{
		src:      src,
		srcName:  sourceName,
		manifest: manifest,
		opts:     opts,
		tables:   make(map[probtable.Kind]*probtable.Table),
		models:   make(map[bisg.Spec]bisg.Model),
	}
}

// Open builds a registry from configuration.
func Open(ctx context.Context, data config.DataConfig, mc config.ModelConfig) (*Registry, error) {
	policy, err := bisg.ParseMissingPolicy(mc.MissingPolicy)
	if err != nil {
		return nil, err
	}
	opts := []bisg.Option{bisg.WithMissingPolicy(policy)}

	var manifest *Manifest
	if data.Manifest != "" {
		path := data.Manifest
		if !filepath.IsAbs(path) {
			path = filepath.Join(data.Dir, path)
		}
		if manifest, err = LoadManifest(path); err != nil {
			return nil, err
		}
	}

	if data.Source == "" || data.Source == "file" {
		src := &FileSource{Dir: data.Dir, SnapshotDir: data.SnapshotDir, Manifest: manifest}
		return New(src, "file", manifest, opts...), nil
	}

	store, closer, err := OpenStore(ctx, data, data.Source)
	if err != nil {
		return nil, err
	}
	r := New(store, data.Source, manifest, opts...)
	r.closer = closer
	return r, nil
}

// Close releases the underlying store, if any.
func (r *Registry) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// Tables returns the requested tables, loading any not yet cached
// concurrently. Each load is checked against the manifest.
func (r *Registry) Tables(ctx context.Context, kinds ...probtable.Kind) (bisg.Tables, error) {
	out := make(bisg.Tables, len(kinds))
	var missing []probtable.Kind

	r.mu.RLock()
	for _, k := range kinds {
		if t, ok := r.tables[k]; ok {
			out[k] = t
		} else {
			missing = append(missing, k)
		}
	}
	r.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	loaded := make([]*probtable.Table, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range missing {
		g.Go(func() error {
			t, err := r.load(gctx, kind)
			if err != nil {
				return err
			}
			loaded[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, kind := range missing {
		if existing, ok := r.tables[kind]; ok {
			out[kind] = existing
			continue
		}
		r.tables[kind] = loaded[i]
		out[kind] = loaded[i]
	}
	return out, nil
}

func (r *Registry) load(ctx context.Context, kind probtable.Kind) (*probtable.Table, error) {
	start := time.Now()
	t, err := r.src.Load(ctx, kind)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: load %s from %s", kind, r.srcName)
	}
	if err := t.Expect(kind); err != nil {
		return nil, eris.Wrapf(err, "registry: load %s", kind)
	}
	if err := r.manifest.Check(t); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	monitoring.ObserveTableLoad(kind.String(), r.srcName, t.Len(), elapsed)
	zap.L().Info("registry: table loaded",
		zap.String("component", "registry"),
		zap.String("kind", kind.String()),
		zap.String("source", r.srcName),
		zap.Int("rows", t.Len()),
		zap.Int("missing_rows", t.MissingRows()),
		zap.Duration("duration", elapsed),
	)
	return t, nil
}

// Model returns the model for spec, building it on first use. Concurrent
// first calls for the same spec share one build.
func (r *Registry) Model(ctx context.Context, spec bisg.Spec) (bisg.Model, error) {
	if !spec.UsesGeo() {
		spec.Level = bisg.ZCTA
	}

	r.mu.RLock()
	m, ok := r.models[spec]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, _ := r.group.Do(spec.String(), func() (any, error) {
		r.mu.RLock()
		m, ok := r.models[spec]
		r.mu.RUnlock()
		if ok {
			return m, nil
		}

		tables, err := r.Tables(ctx, spec.Requirements()...)
		if err != nil {
			return nil, err
		}
		m, err = bisg.New(spec, tables, r.opts...)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.models[spec] = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(bisg.Model), nil
}

// TableStats lists loaded tables sorted by kind name.
func (r *Registry) TableStats() []monitoring.TableStat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]monitoring.TableStat, 0, len(r.tables))
	for kind, t := range r.tables {
		out = append(out, monitoring.TableStat{Kind: kind.String(), Rows: t.Len(), MissingRows: t.MissingRows()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// SnapshotOptions returns the options that tie a snapshot of kind to its
// source file. Database-backed registries have none.
func (r *Registry) SnapshotOptions(kind probtable.Kind) []probtable.SnapshotOption {
	fs, ok := r.src.(*FileSource)
	if !ok {
		return nil
	}
	origin, err := fs.Origin(kind)
	if err != nil {
		return nil
	}
	return []probtable.SnapshotOption{probtable.WithOrigin(origin)}
}

// ModelNames lists built models sorted by name.
func (r *Registry) ModelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for spec := range r.models {
		out = append(out, spec.String())
	}
	sort.Strings(out)
	return out
}
