package recommenderchat_test

import (
	"io/fs"
	"strings"
	"testing"

	recommenderchat "github.com/vamu-rec/recommender-chat"
)

func TestStaticScriptRoutes(t *testing.T) {
	b, err := fs.ReadFile(recommenderchat.StaticFS, "static/app.js")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	script := string(b)

	routes := []string{
		`"/sse/messages"`,
		`"/messages?message_id="`,
		`"/chats"`,
		`"/chats/cancel"`,
		`"/chats/clear"`,
		`"/model"`,
		`"/history?page="`,
		`"/history/load"`,
		`"/health"`,
	}
	for _, route := range routes {
		if !strings.Contains(script, route) {
			t.Errorf("app.js does not call %s", route)
		}
	}
	if !strings.Contains(script, "setInterval(refreshHealth") {
		t.Error("app.js does not refresh the health badge periodically")
	}
}

func TestTemplatesParse(t *testing.T) {
	for _, dir := range []string{"templates/layout", "templates/pages", "templates/partials"} {
		entries, err := fs.ReadDir(recommenderchat.TemplateFS, dir)
		if err != nil {
			t.Fatalf("ReadDir(%s) error = %v", dir, err)
		}
		if len(entries) == 0 {
			t.Errorf("%s is empty", dir)
		}
	}
}
