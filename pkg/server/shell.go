package server

import (
	"embed"
	"net/http"
)

//go:embed web
var webFS embed.FS

// handleShell serves the browser page that hosts an application.
func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	data, err := webFS.ReadFile("web/index.html")
	if err != nil {
		http.Error(w, "shell missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleClientScript serves the shell's client runtime.
func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	data, err := webFS.ReadFile("web/parley.js")
	if err != nil {
		http.Error(w, "client script missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(data)
}
