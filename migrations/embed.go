// Package migrations holds the goose SQL migrations for the order service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
