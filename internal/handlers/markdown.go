package handlers

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/vamu-rec/recommender-chat/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in model output is not rendered; goldmark escapes it unless html.WithUnsafe is set.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderContent renders assistant messages as markdown and user messages as escaped text.
func renderContent(role models.Role, content string) (template.HTML, error) {
	if role != models.RoleAssistant {
		return template.HTML(template.HTMLEscapeString(content)), nil
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
