// Package scripts embeds the per-language stack graph construction scripts.
package scripts

import "embed"

// FS holds graph/<language>.risor for every language with graph rules.
//
//go:embed graph/*.risor
var FS embed.FS
