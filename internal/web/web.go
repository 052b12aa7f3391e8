// ABOUTME: Embedded browser client for the soundboard
// ABOUTME: Serves the static sound grid page from the binary
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var content embed.FS

// Handler serves the embedded client page.
func Handler() http.Handler {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
