// Package web serves the browser pages: the login page, the player dashboard and their assets.
//
// Pages are plain HTML embedded at build time. The dashboard script talks to the JSON routes
// under /api and fetches its access token from /get_access_token for the Web Playback SDK.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var content embed.FS

var static, _ = fs.Sub(content, "static")

// Page serves one embedded HTML file.
type Page struct {
	name string
}

// Index is the landing page with the login button.
func Index() *Page { return &Page{name: "index.html"} }

// Dashboard is the player page shown after login.
func Dashboard() *Page { return &Page{name: "dashboard.html"} }

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(static, p.name)
	if err != nil {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// Assets serves the stylesheet and scripts under /static/.
type Assets struct {
	files http.Handler
}

func NewAssets() *Assets {
	return &Assets{files: http.StripPrefix("/static/", http.FileServerFS(static))}
}

func (a *Assets) Routes() []string {
	return []string{"GET /static/"}
}

func (a *Assets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.files.ServeHTTP(w, r)
}
