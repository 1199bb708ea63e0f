package registry

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/probtable"
)

// Source loads one table by kind.
type Source interface {
	Load(ctx context.Context, kind probtable.Kind) (*probtable.Table, error)
}

// FileSource reads tables from a data directory, optionally through a
// msgpack snapshot cache.
type FileSource struct {
	Dir         string
	SnapshotDir string
	Manifest    *Manifest
}

// Origin returns the origin of kind's source file, for snapshots packed
// outside Load.
func (s *FileSource) Origin(kind probtable.Kind) (probtable.Origin, error) {
	return probtable.OriginOf(s.Path(kind))
}

// Path returns the source file for kind.
func (s *FileSource) Path(kind probtable.Kind) string {
	return filepath.Join(s.Dir, s.Manifest.File(kind))
}

// Load prefers a snapshot built from the current source file and at least
// as new as it. After a source load the snapshot is refreshed; failing to
// write it is logged, not returned.
func (s *FileSource) Load(ctx context.Context, kind probtable.Kind) (*probtable.Table, error) {
	path := s.Path(kind)
	if s.SnapshotDir == "" {
		return probtable.LoadFile(ctx, path, kind)
	}

	log := zap.L().With(zap.String("component", "registry.file"), zap.String("kind", kind.String()))
	snap := probtable.SnapshotPath(s.SnapshotDir, kind)
	t, err := probtable.ReadSnapshotFor(snap, path)
	if err == nil {
		err = t.Expect(kind)
	}
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, probtable.ErrSnapshotStale):
		log.Debug("registry: snapshot stale", zap.String("snapshot", snap), zap.Error(err))
	case !errors.Is(err, fs.ErrNotExist):
		log.Warn("registry: ignoring unreadable snapshot", zap.String("snapshot", snap), zap.Error(err))
	}

	t, err = probtable.LoadFile(ctx, path, kind)
	if err != nil {
		return nil, err
	}
	origin, err := probtable.OriginOf(path)
	if err != nil {
		log.Warn("registry: snapshot skipped", zap.String("source", path), zap.Error(err))
		return t, nil
	}
	if err := probtable.WriteSnapshot(snap, t, probtable.WithOrigin(origin)); err != nil {
		log.Warn("registry: write snapshot failed", zap.String("snapshot", snap), zap.Error(err))
	} else {
		log.Debug("registry: snapshot written", zap.String("snapshot", snap))
	}
	return t, nil
}
