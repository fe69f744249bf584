package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/ua-proxy-go/pkg/markdown"
)

// QuotaStatus exposes the current search quota counter.
func (h *Handler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"google_search": h.guard.Snapshot(),
	})
}

// ExpertCatalog renders the loaded personas as a small HTML page.
func (h *Handler) ExpertCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	fmt.Fprint(w, "<html><head><title>Expert Catalog</title></head><body><h1>Expert Catalog</h1>")
	for _, name := range h.catalog.Names() {
		text, _ := h.catalog.Get(name)
		fmt.Fprintf(w, "<h2>%s</h2>%s", html.EscapeString(name), markdown.ToHTML(text))
	}
	fmt.Fprint(w, "</body></html>")
}
