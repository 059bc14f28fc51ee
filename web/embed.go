package web

import "embed"

// Content is the dashboard frontend served at /.
//
//go:embed index.html app.js styles.css
var Content embed.FS
