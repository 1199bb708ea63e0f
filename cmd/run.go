package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/bisg"
	"github.com/sells-group/surgeo/internal/config"
	"github.com/sells-group/surgeo/internal/monitoring"
	"github.com/sells-group/surgeo/internal/normalize"
	"github.com/sells-group/surgeo/internal/probtable"
	"github.com/sells-group/surgeo/internal/registry"
	"github.com/sells-group/surgeo/internal/tabular"
)

var (
	runCensusTract bool
	runColumns     config.ColumnConfig
)

var runCmd = &cobra.Command{
	Use:   "run INPUT OUTPUT TYPE",
	Short: "Estimate race/ethnicity probabilities for a CSV or XLSX file",
	Long: `Reads INPUT, runs the model named by TYPE and writes OUTPUT.

TYPE is one of:
  first   first name only
  sur     surname only
  geo     geography only (ZCTA, or census tract with --census-tract)
  surgeo  BISG: surname and geography
  bifsg   BIFSG: first name, surname and geography

Examples:
  surgeo run people.csv out.csv surgeo
  surgeo run people.xlsx out.xlsx bifsg --census-tract --tract-column tract_code`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		return runBatch(cmd.Context(), args[0], args[1], args[2])
	},
}

func runBatch(ctx context.Context, input, output, typ string) error {
	kind, err := bisg.ParseKind(typ)
	if err != nil {
		return err
	}
	spec := bisg.Spec{Kind: kind}
	if runCensusTract && spec.UsesGeo() {
		spec.Level = bisg.Tract
	}
	if err := checkFormat(output); err != nil {
		return eris.Wrap(err, "run: output")
	}

	batchID := uuid.NewString()
	log := zap.L().With(
		zap.String("component", "run"),
		zap.String("batch_id", batchID),
		zap.String("model", spec.String()),
	)

	frame, err := tabular.ReadFrame(ctx, input)
	if err != nil {
		return eris.Wrap(err, "run: read input")
	}
	batch, err := batchFromFrame(frame, spec, effectiveColumns(cfg.Input.Columns, runColumns))
	if err != nil {
		return eris.Wrap(err, "run")
	}
	log.Info("input loaded", zap.String("input", input), zap.Int("rows", frame.Len()))

	reg, err := registry.Open(ctx, cfg.Data, cfg.Model)
	if err != nil {
		return err
	}
	defer reg.Close()

	m, err := reg.Model(ctx, spec)
	if err != nil {
		return err
	}

	start := time.Now()
	rs, err := bisg.Run(m, batch)
	if err != nil {
		return eris.Wrap(err, "run: estimate")
	}
	elapsed := time.Since(start)
	monitoring.ObserveBatch(spec.String(), "cli", rs, elapsed)

	if err := tabular.WriteResult(output, rs, cfg.Model.Precision); err != nil {
		return eris.Wrap(err, "run: write output")
	}

	log.Info("batch complete",
		zap.String("output", output),
		zap.Int("rows", rs.Len()),
		zap.Int("missing", rs.MissingCount()),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// checkFormat rejects paths the tabular writers cannot handle.
func checkFormat(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return nil
	}
	return eris.Wrapf(tabular.ErrUnsupportedFormat, "%q", path)
}

// effectiveColumns overlays non-empty flag values on the configured columns.
func effectiveColumns(base, flags config.ColumnConfig) config.ColumnConfig {
	pick := func(flag, def string) string {
		if flag != "" {
			return flag
		}
		return def
	}
	return config.ColumnConfig{
		Surname:   pick(flags.Surname, base.Surname),
		FirstName: pick(flags.FirstName, base.FirstName),
		ZCTA:      pick(flags.ZCTA, base.ZCTA),
		State:     pick(flags.State, base.State),
		County:    pick(flags.County, base.County),
		Tract:     pick(flags.Tract, base.Tract),
	}
}

// batchFromFrame reads the columns spec needs. Tract columns are selected by
// name and then passed positionally.
func batchFromFrame(f *tabular.Frame, spec bisg.Spec, cols config.ColumnConfig) (bisg.Batch, error) {
	var b bisg.Batch
	for _, kind := range spec.Requirements() {
		var err error
		switch kind.Proxy {
		case probtable.Surname:
			b.Surnames, err = f.Column(cols.Surname)
		case probtable.FirstName:
			b.FirstNames, err = f.Column(cols.FirstName)
		case probtable.ZCTA:
			b.ZCTAs, err = f.Column(cols.ZCTA)
		case probtable.Tract:
			b.Tracts, err = tractColumn(f, cols.TractColumns())
		}
		if err != nil {
			return bisg.Batch{}, err
		}
	}
	return b, nil
}

func tractColumn(f *tabular.Frame, names []string) ([]normalize.Tract, error) {
	cols, err := f.Columns(names...)
	if err != nil {
		return nil, err
	}
	out := make([]normalize.Tract, f.Len())
	for i := range out {
		tr, err := normalize.TractFromFields([]string{cols[0][i], cols[1][i], cols[2][i]})
		if err != nil {
			return nil, err
		}
		out[i] = tr
	}
	return out, nil
}

func init() {
	runCmd.Flags().BoolVar(&runCensusTract, "census-tract", false, "use census tract instead of ZCTA geography")
	runCmd.Flags().StringVar(&runColumns.ZCTA, "zcta-column", "", "ZCTA column name (default from config, zcta5)")
	runCmd.Flags().StringVar(&runColumns.Surname, "surname-column", "", "surname column name (default from config, name)")
	runCmd.Flags().StringVar(&runColumns.FirstName, "first-name-column", "", "first name column name (default from config, first_name)")
	runCmd.Flags().StringVar(&runColumns.State, "state-column", "", "state FIPS column name (default from config, state)")
	runCmd.Flags().StringVar(&runColumns.County, "county-column", "", "county FIPS column name (default from config, county)")
	runCmd.Flags().StringVar(&runColumns.Tract, "tract-column", "", "tract column name (default from config, tract)")
	rootCmd.AddCommand(runCmd)
}
