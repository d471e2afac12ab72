package export

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	state, err := json.Marshal(map[string]any{"title": "</script><b>", "version": 3})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		doc     Document
		want    []string
		notWant []string
	}{
		{
			name: "live",
			doc:  Document{Title: "Status", ClientScript: "/static/livetree.js", CustomURL: "/custom-elements.js"},
			want: []string{
				"<title>Status</title>",
				`<script src="/static/livetree.js"></script>`,
				`<script src="/custom-elements.js"></script>`,
			},
			notWant: []string{"frozenState"},
		},
		{
			name: "exported",
			doc: Document{
				Title:        "Status",
				ClientScript: "static/livetree.js",
				CustomScript: "window.livetree.reload();",
				State:        state,
			},
			want: []string{
				`window.frozenState = {"title":"\u003c/script\u003e\u003cb\u003e","version":3};`,
				`<script src="static/livetree.js"></script>`,
				"<script>window.livetree.reload();</script>",
			},
			notWant: []string{"custom-elements.js", "</script><b>"},
		},
		{
			name: "escaped title",
			doc:  Document{Title: "<b>&</b>", ClientScript: "/x.js"},
			want: []string{"<title>&lt;b&gt;&amp;&lt;/b&gt;</title>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.doc)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			html := string(out)
			for _, w := range tt.want {
				if !strings.Contains(html, w) {
					t.Errorf("missing %q in:\n%s", w, html)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(html, w) {
					t.Errorf("unexpected %q in:\n%s", w, html)
				}
			}
		})
	}
}
