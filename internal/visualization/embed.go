package visualization

import "embed"

// templates contains the embedded SVG and HTML templates.
//
//go:embed templates/*
var templates embed.FS
