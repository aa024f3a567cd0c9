package render

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
)

//go:embed templates/*
var templatesFS embed.FS

// HTML 把历史渲染为聊天气泡 HTML 片段。
type HTML struct {
	welcome string
	bubbles *template.Template
	page    *template.Template
	css     string
}

// PageData feeds the full chat page.
type PageData struct {
	Title      string
	SessionID  string
	Transcript template.HTML
	AudioURL   string
}

// NewHTML parses the embedded templates. welcome is shown for system turns.
func NewHTML(welcome string) (*HTML, error) {
	bubbles, err := template.ParseFS(templatesFS, "templates/bubbles.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse bubble templates")
	}
	page, err := template.ParseFS(templatesFS, "templates/page.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse page template")
	}
	css, err := templatesFS.ReadFile("templates/chat.css")
	if err != nil {
		return nil, errors.Wrap(err, "read stylesheet")
	}

	return &HTML{
		welcome: welcome,
		bubbles: bubbles,
		page:    page,
		css:     string(css),
	}, nil
}

// Render writes one bubble per turn. Unknown roles are skipped.
func (h *HTML) Render(w io.Writer, history []chat.Turn) error {
	for _, turn := range history {
		var name, content string
		switch turn.Role {
		case chat.RoleAssistant:
			name, content = "bot", strings.TrimSpace(turn.Content)
		case chat.RoleSystem:
			name, content = "bot", h.welcome
		case chat.RoleUser:
			name, content = "user", strings.TrimSpace(turn.Content)
		default:
			continue
		}
		if err := h.bubbles.ExecuteTemplate(w, name, content); err != nil {
			return errors.Wrapf(err, "render %s bubble", name)
		}
	}
	return nil
}

// Page renders the standalone chat page around a transcript fragment.
func (h *HTML) Page(w io.Writer, data PageData) error {
	var buf bytes.Buffer
	err := h.page.Execute(&buf, struct {
		PageData
		CSS template.CSS
	}{PageData: data, CSS: template.CSS(h.css)})
	if err != nil {
		return errors.Wrap(err, "render page")
	}
	_, err = buf.WriteTo(w)
	return err
}
