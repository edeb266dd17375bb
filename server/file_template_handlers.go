package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).ParseFS(TemplateFilesFS(), "layout.html", name)
}

type pageTemplates struct {
	index *template.Template
	login *template.Template
	grant *template.Template
	error *template.Template
}

func parsePageTemplates() (*pageTemplates, error) {
	pages := &pageTemplates{}
	for name, dst := range map[string]**template.Template{
		"index.html": &pages.index,
		"login.html": &pages.login,
		"grant.html": &pages.grant,
		"error.html": &pages.error,
	} {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, err
		}
		*dst = tmpl
	}
	return pages, nil
}

// renderPage buffers the page so a template failure can still produce a clean 500
func renderPage(w http.ResponseWriter, tmpl *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// ErrorPageData contains data for rendering the error page
type ErrorPageData struct {
	AppName string
	Title   string
	Message string
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	renderPage(w, s.pages.error, status, ErrorPageData{
		AppName: s.config.GetAppName(),
		Title:   http.StatusText(status),
		Message: message,
	})
}
