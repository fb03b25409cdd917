// Package web serves the embedded chat page.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// Handler returns an http.Handler serving the chat UI from the
// embedded filesystem.
func Handler() http.Handler {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// FileServer serves index.html for "/" itself; rewriting the
		// path to /index.html would make it redirect back to "./".
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
		fileServer.ServeHTTP(w, r)
	})
}

// RegisterRoutes mounts the chat UI at the mux root.
func RegisterRoutes(mux *http.ServeMux) {
	handler := Handler()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = "/"
		handler.ServeHTTP(w, r)
	})
	mux.HandleFunc("GET /static/", func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = r.URL.Path[len("/static"):]
		handler.ServeHTTP(w, r)
	})
}
