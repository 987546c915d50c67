// Package assets embeds files shipped inside the binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the SQL migration scripts, rooted so that names are
// plain file names ("001_init.sql") in lexical apply order.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory
	}
	return sub
}
