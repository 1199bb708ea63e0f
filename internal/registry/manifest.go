package registry

import (
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/surgeo/internal/probtable"
)

// ErrRowCount is returned when a loaded table disagrees with the manifest.
var ErrRowCount = eris.New("registry: table row count does not match manifest")

// ManifestEntry overrides the file for one table kind and pins its expected
// row count. Rows of zero skips the check.
type ManifestEntry struct {
	Kind string `yaml:"kind"`
	File string `yaml:"file"`
	Rows int    `yaml:"rows"`
}

// Manifest describes the tables shipped in a data directory.
type Manifest struct {
	Tables []ManifestEntry `yaml:"tables"`

	byKind map[probtable.Kind]ManifestEntry
}

// LoadManifest reads a manifest. A missing file yields an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{byKind: map[probtable.Kind]ManifestEntry{}}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, eris.Wrap(err, "registry: read manifest")
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, eris.Wrap(err, "registry: parse manifest")
	}
	for _, e := range m.Tables {
		kind, err := probtable.ParseKind(e.Kind)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: manifest %s", path)
		}
		m.byKind[kind] = e
	}
	return m, nil
}

// File returns the file name for kind, falling back to its default.
func (m *Manifest) File(kind probtable.Kind) string {
	if e, ok := m.entry(kind); ok && e.File != "" {
		return e.File
	}
	return kind.DefaultFile()
}

// Check compares t's row count against the manifest.
func (m *Manifest) Check(t *probtable.Table) error {
	e, ok := m.entry(t.Kind())
	if !ok || e.Rows == 0 {
		return nil
	}
	if t.Len() != e.Rows {
		return eris.Wrapf(ErrRowCount, "%s: loaded %d rows, manifest says %d", t.Kind(), t.Len(), e.Rows)
	}
	return nil
}

func (m *Manifest) entry(kind probtable.Kind) (ManifestEntry, bool) {
	if m == nil || m.byKind == nil {
		return ManifestEntry{}, false
	}
	e, ok := m.byKind[kind]
	return e, ok
}
