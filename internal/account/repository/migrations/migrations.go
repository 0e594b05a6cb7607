// Package migrations embeds the account schema for each supported SQL
// dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
