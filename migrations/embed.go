package migrations

import "embed"

// Files holds the SQL migrations shipped inside the server binary.
//
//go:embed *.sql
var Files embed.FS
