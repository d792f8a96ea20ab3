package api

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed ui
var uiFiles embed.FS

// ChatUI serves the embedded single-page chat client. Paths that are not
// files fall back to index.html so page reloads keep working.
func ChatUI() http.Handler {
	files, err := fs.Sub(uiFiles, "ui")
	if err != nil {
		return http.NotFoundHandler()
	}
	fileServer := http.FileServerFS(files)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if info, err := fs.Stat(files, name); err == nil && !info.IsDir() && name != "index.html" {
			fileServer.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, files, "index.html")
	})
}
