package main

import (
	"embed"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/doodle/editproxy"
	"github.com/hazyhaar/doodle/observability"
	"github.com/hazyhaar/doodle/shield"
)

//go:embed static
var staticFS embed.FS

// app holds the handlers' dependencies.
type app struct {
	edit    *editproxy.Service
	edit2   *editproxy.Service
	audit   *observability.AuditLogger // nil when the audit trail is off
	mcp     http.Handler               // nil when MCP is off
	maxBody int64
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(a.maxBody) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "model": a.edit.Model()})
	})

	r.Post("/edit", a.edit.Handler(editproxy.VariantEdit))
	r.Post("/edit2", a.edit2.Handler(editproxy.VariantEdit2))

	if a.audit != nil {
		r.Get("/api/audit", func(w http.ResponseWriter, r *http.Request) {
			entries, err := a.audit.Query(r.Context(), observability.AuditFilter{
				OperationType: r.URL.Query().Get("operation"),
				Status:        r.URL.Query().Get("status"),
				Limit:         queryInt(r, "limit", 50),
			})
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, entries)
		})
	}

	if a.mcp != nil {
		r.Handle("/mcp", a.mcp)
	}

	// Canvas page.
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		f, err := staticFS.Open("static/index.html")
		if err != nil {
			http.Error(w, "not found", 404)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
	r.Handle("/static/*", http.FileServerFS(staticFS))

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
