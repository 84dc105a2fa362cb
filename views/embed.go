// Package views ships the built-in document templates
package views

import "embed"

//go:embed *.html
var Templates embed.FS
