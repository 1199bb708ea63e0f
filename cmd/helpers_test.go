//go:build !integration

package main

import (
	"github.com/sells-group/surgeo/internal/config"
	"github.com/sells-group/surgeo/internal/db"
)

const fixtureDir = "../testdata/tables"

func testConfig() *config.Config {
	return &config.Config{
		Data: config.DataConfig{
			Source:   "file",
			Dir:      fixtureDir,
			Schema:   "bisg",
			Manifest: "manifest.yaml",
			Pool:     db.PoolConfig{MaxConns: 4},
		},
		Model: config.ModelConfig{MissingPolicy: "nan", Precision: 4},
		Input: config.InputConfig{Columns: config.ColumnConfig{
			Surname:   "name",
			FirstName: "first_name",
			ZCTA:      "zcta5",
			State:     "state",
			County:    "county",
			Tract:     "tract",
		}},
		Server: config.ServerConfig{Port: 8080, RateLimit: 50, Burst: 100, MaxBatch: 1000},
		Log:    config.LogConfig{Level: "info", Format: "json"},
	}
}
