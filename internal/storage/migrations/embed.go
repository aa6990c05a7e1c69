// Package migrations embeds the schema files and applies them at
// startup: the positions table in Postgres, the tick samples table in
// ClickHouse.
package migrations

import "embed"

// PostgresFS embeds the positions schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the tick-sample schema migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
