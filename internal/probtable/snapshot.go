package probtable

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sells-group/surgeo/internal/model"
)

// snapshotSchemaVersion must be bumped whenever snapshotPayload changes.
const snapshotSchemaVersion uint16 = 2

var (
	// ErrSnapshotSchema is returned for snapshots written by an incompatible version.
	ErrSnapshotSchema = eris.New("probtable: snapshot schema mismatch")
	// ErrSnapshotStale is returned when a snapshot was not built from the
	// given source file, or the source changed since.
	ErrSnapshotStale = eris.New("probtable: snapshot is stale")
)

// snapshotPayload is the on-disk form of a Table. Values holds NumRaces
// floats per key, in key order.
type snapshotPayload struct {
	Schema      uint16    `msgpack:"schema"`
	Proxy       int       `msgpack:"proxy"`
	Orientation int       `msgpack:"orientation"`
	Keys        []string  `msgpack:"keys"`
	Values      []float64 `msgpack:"values"`
	Origin      Origin    `msgpack:"origin"`
}

// Origin identifies the source file a snapshot was built from. The zero
// value means the snapshot has no file origin.
type Origin struct {
	Path string `msgpack:"path"`
	Size int64  `msgpack:"size"`
}

// OriginOf stats path and returns its origin. Path is made absolute.
func OriginOf(path string) (Origin, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Origin{}, eris.Wrapf(err, "probtable: resolve %s", path)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return Origin{}, eris.Wrapf(err, "probtable: stat %s", path)
	}
	return Origin{Path: abs, Size: fi.Size()}, nil
}

// SnapshotOption configures WriteSnapshot.
type SnapshotOption func(*snapshotPayload)

// WithOrigin records the source file the table was loaded from.
func WithOrigin(o Origin) SnapshotOption {
	return func(p *snapshotPayload) {
		p.Origin = o
	}
}

// SnapshotPath returns where the snapshot for kind lives under dir.
func SnapshotPath(dir string, kind Kind) string {
	return filepath.Join(dir, kind.String()+SnapshotExt)
}

// WriteSnapshot encodes t to path atomically through a temp file in the
// same directory.
func WriteSnapshot(path string, t *Table, opts ...SnapshotOption) error {
	payload := snapshotPayload{
		Schema:      snapshotSchemaVersion,
		Proxy:       int(t.kind.Proxy),
		Orientation: int(t.kind.Orientation),
		Keys:        t.keys,
		Values:      make([]float64, 0, len(t.keys)*model.NumRaces),
	}
	t.Each(func(_ string, v model.ProbabilityVector) {
		payload.Values = append(payload.Values, v[:]...)
	})
	for _, opt := range opts {
		opt(&payload)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "probtable: snapshot mkdir")
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return eris.Wrap(err, "probtable: snapshot temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrap(err, "probtable: snapshot encode")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "probtable: snapshot close")
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return eris.Wrap(err, "probtable: snapshot rename")
	}
	return nil
}

// ReadSnapshot decodes a table written by WriteSnapshot.
func ReadSnapshot(path string) (*Table, error) {
	payload, err := decodeSnapshot(path)
	if err != nil {
		return nil, err
	}
	return payload.table(path)
}

// ReadSnapshotFor decodes the snapshot at snapPath only if it was built
// from sourcePath, the source size is unchanged and the snapshot is at
// least as new as the source. Otherwise it returns ErrSnapshotStale.
func ReadSnapshotFor(snapPath, sourcePath string) (*Table, error) {
	if !SnapshotFresh(snapPath, sourcePath) {
		return nil, eris.Wrapf(ErrSnapshotStale, "%s is older than %s", snapPath, sourcePath)
	}
	want, err := OriginOf(sourcePath)
	if err != nil {
		return nil, err
	}
	payload, err := decodeSnapshot(snapPath)
	if err != nil {
		return nil, err
	}
	if payload.Origin != want {
		return nil, eris.Wrapf(ErrSnapshotStale, "%s was built from %s (%d bytes), source is %s (%d bytes)",
			snapPath, payload.Origin.Path, payload.Origin.Size, want.Path, want.Size)
	}
	return payload.table(snapPath)
}

func decodeSnapshot(path string) (*snapshotPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "probtable: open snapshot %s", path)
	}
	defer f.Close() //nolint:errcheck

	var payload snapshotPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, eris.Wrapf(err, "probtable: decode snapshot %s", path)
	}
	return &payload, nil
}

func (p *snapshotPayload) table(path string) (*Table, error) {
	if p.Schema != snapshotSchemaVersion {
		return nil, eris.Wrapf(ErrSnapshotSchema, "%s has schema %d, want %d", path, p.Schema, snapshotSchemaVersion)
	}
	if len(p.Values) != len(p.Keys)*model.NumRaces {
		return nil, eris.Errorf("probtable: snapshot %s is truncated: %d keys, %d values", path, len(p.Keys), len(p.Values))
	}

	kind := Kind{Proxy: Proxy(p.Proxy), Orientation: Orientation(p.Orientation)}
	b := NewBuilder(kind, len(p.Keys))
	for i, key := range p.Keys {
		var v model.ProbabilityVector
		copy(v[:], p.Values[i*model.NumRaces:(i+1)*model.NumRaces])
		if err := b.Add(key, v); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// SnapshotFresh reports whether the snapshot at snapPath exists and is at
// least as new as the source file.
func SnapshotFresh(snapPath, sourcePath string) bool {
	snap, err := os.Stat(snapPath)
	if err != nil {
		return false
	}
	src, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	return !snap.ModTime().Before(src.ModTime())
}
