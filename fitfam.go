// Package fitfam embeds the web templates and static assets.
package fitfam

import "embed"

//go:embed web/templates web/static
var WebFS embed.FS
