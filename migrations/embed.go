// Package migrations compiles the schema migration files into the binary
// so applying them does not depend on the working directory.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres
var postgresFS embed.FS

//go:embed clickhouse
var clickhouseFS embed.FS

// Postgres returns the golang-migrate up/down pairs for the Postgres
// projection tables, rooted at the directory containing them.
func Postgres() fs.FS {
	return mustSub(postgresFS, "postgres")
}

// ClickHouse returns the ClickHouse trade event DDL files, rooted at the
// directory containing them.
func ClickHouse() fs.FS {
	return mustSub(clickhouseFS, "clickhouse")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
