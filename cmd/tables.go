package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/model"
	"github.com/sells-group/surgeo/internal/probtable"
	"github.com/sells-group/surgeo/internal/registry"
)

var (
	tablesKinds     []string
	tablesTolerance float64
	tablesPackDir   string
	tablesImportTo  string
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Inspect, snapshot and import probability tables",
}

// -- tables check --

var tablesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check race-given row sums and given-race column sums",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("tables"); err != nil {
			return err
		}
		kinds, err := parseKinds(tablesKinds)
		if err != nil {
			return err
		}

		reg, err := registry.Open(ctx, cfg.Data, cfg.Model)
		if err != nil {
			return err
		}
		defer reg.Close()

		reports := checkTables(ctx, reg, kinds, tablesTolerance)
		formatCheckReport(os.Stdout, reports)

		failed := 0
		for _, r := range reports {
			if !r.ok() {
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("tables check: %d of %d tables failed", failed, len(reports))
		}
		return nil
	},
}

// -- tables pack --

var tablesPackCmd = &cobra.Command{
	Use:   "pack",
	Short: "Write msgpack snapshots of the configured tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("tables"); err != nil {
			return err
		}
		dir := tablesPackDir
		if dir == "" {
			dir = cfg.Data.SnapshotDir
		}
		if dir == "" {
			return eris.New("tables pack: --out or data.snapshot_dir is required")
		}
		kinds, err := parseKinds(tablesKinds)
		if err != nil {
			return err
		}

		reg, err := registry.Open(ctx, cfg.Data, cfg.Model)
		if err != nil {
			return err
		}
		defer reg.Close()

		return packTables(ctx, reg, kinds, dir)
	},
}

// -- tables import --

var tablesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the configured tables into SQLite or PostgreSQL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("tables"); err != nil {
			return err
		}
		if tablesImportTo == cfg.Data.Source {
			return eris.Errorf("tables import: --to %s is the configured source", tablesImportTo)
		}
		kinds, err := parseKinds(tablesKinds)
		if err != nil {
			return err
		}

		reg, err := registry.Open(ctx, cfg.Data, cfg.Model)
		if err != nil {
			return err
		}
		defer reg.Close()

		store, closeStore, err := registry.OpenStore(ctx, cfg.Data, tablesImportTo)
		if err != nil {
			return err
		}
		defer closeStore()

		return importTables(ctx, reg, store, kinds)
	},
}

// parseKinds resolves --kind values; none means every kind.
func parseKinds(names []string) ([]probtable.Kind, error) {
	if len(names) == 0 {
		return probtable.AllKinds(), nil
	}
	kinds := make([]probtable.Kind, 0, len(names))
	for _, n := range names {
		k, err := probtable.ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// tableReport is the outcome of checking one table.
type tableReport struct {
	Kind       probtable.Kind
	Rows       int
	Missing    int
	BadRows    []string
	ColumnSums model.ProbabilityVector
	Err        error
}

func (r tableReport) ok() bool {
	return r.Err == nil && len(r.BadRows) == 0
}

// checkTable runs the row-sum check on race-given tables and the column-sum
// summary on given-race tables.
func checkTable(t *probtable.Table, tol float64) tableReport {
	r := tableReport{Kind: t.Kind(), Rows: t.Len(), Missing: t.MissingRows()}
	if t.Kind().Orientation == probtable.RaceGiven {
		r.BadRows = t.CheckRowSums(tol)
	} else {
		r.ColumnSums = t.ColumnSums()
	}
	return r
}

func checkTables(ctx context.Context, reg *registry.Registry, kinds []probtable.Kind, tol float64) []tableReport {
	reports := make([]tableReport, 0, len(kinds))
	for _, kind := range kinds {
		tables, err := reg.Tables(ctx, kind)
		if err != nil {
			reports = append(reports, tableReport{Kind: kind, Err: err})
			continue
		}
		reports = append(reports, checkTable(tables[kind], tol))
	}
	return reports
}

// maxBadRows bounds the keys listed per table.
const maxBadRows = 5

func formatCheckReport(out io.Writer, reports []tableReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS\tMISSING\tSTATUS\tDETAIL")
	for _, r := range reports {
		status, detail := "ok", ""
		switch {
		case r.Err != nil:
			status, detail = "error", r.Err.Error()
		case len(r.BadRows) > 0:
			keys := r.BadRows
			if len(keys) > maxBadRows {
				keys = keys[:maxBadRows]
			}
			status = "fail"
			detail = fmt.Sprintf("%d rows off: %s", len(r.BadRows), strings.Join(keys, ", "))
		case r.Kind.Orientation == probtable.GivenRace:
			parts := make([]string, model.NumRaces)
			for i, race := range model.Races {
				parts[i] = fmt.Sprintf("%s=%.4f", race.Column(), r.ColumnSums[race])
			}
			detail = "column sums " + strings.Join(parts, " ")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", r.Kind, r.Rows, r.Missing, status, detail)
	}
	w.Flush() //nolint:errcheck
}

func packTables(ctx context.Context, reg *registry.Registry, kinds []probtable.Kind, dir string) error {
	tables, err := reg.Tables(ctx, kinds...)
	if err != nil {
		return eris.Wrap(err, "tables pack")
	}
	for _, kind := range kinds {
		path := probtable.SnapshotPath(dir, kind)
		if err := probtable.WriteSnapshot(path, tables[kind], reg.SnapshotOptions(kind)...); err != nil {
			return eris.Wrapf(err, "tables pack: %s", kind)
		}
		zap.L().Info("snapshot written",
			zap.String("kind", kind.String()),
			zap.String("path", path),
			zap.Int("rows", tables[kind].Len()),
		)
	}
	return nil
}

func importTables(ctx context.Context, reg *registry.Registry, store registry.Store, kinds []probtable.Kind) error {
	tables, err := reg.Tables(ctx, kinds...)
	if err != nil {
		return eris.Wrap(err, "tables import")
	}
	for _, kind := range kinds {
		n, err := store.Import(ctx, tables[kind])
		if err != nil {
			return eris.Wrapf(err, "tables import: %s", kind)
		}
		zap.L().Info("table imported",
			zap.String("kind", kind.String()),
			zap.String("to", tablesImportTo),
			zap.Int64("rows", n),
		)
	}
	return nil
}

func init() {
	tablesCmd.PersistentFlags().StringSliceVar(&tablesKinds, "kind", nil, "table kinds to process, e.g. race_given_surname,zcta|race (default all)")
	tablesCheckCmd.Flags().Float64Var(&tablesTolerance, "tolerance", 1e-3, "allowed deviation of race-given row sums from 1")
	tablesPackCmd.Flags().StringVar(&tablesPackDir, "out", "", "snapshot directory (default data.snapshot_dir)")
	tablesImportCmd.Flags().StringVar(&tablesImportTo, "to", "sqlite", "destination store: sqlite or postgres")

	tablesCmd.AddCommand(tablesCheckCmd, tablesPackCmd, tablesImportCmd)
	rootCmd.AddCommand(tablesCmd)
}
