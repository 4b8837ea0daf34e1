// Package migrations holds the profile, badge and attempt journal schema.
// `badgectl migrate` and the Postgres integration tests apply it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
