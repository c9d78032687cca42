package pipeline

import (
	"strings"
	"testing"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name        string
		html        string
		contentType string
		want        string
	}{
		{
			name: "blocks become lines",
			html: `<body><div>One<br>Two</div><ul><li>Three</li><li>Four <b>bold</b></li></ul></body>`,
			want: "One\nTwo\nThree\nFour bold",
		},
		{
			name: "inline elements stay on the line",
			html: `<p>ACME <a href="/x">Corp</a> was <em>fined</em>.</p>`,
			want: "ACME Corp was fined.",
		},
		{
			name: "stripped subtrees",
			html: `<body><svg><text>logo</text></svg><noscript>enable js</noscript><template><p>tpl</p></template><p>kept</p></body>`,
			want: "kept",
		},
		{
			name:        "meta charset",
			html:        "<html><head><meta charset=\"windows-1252\"></head><body><p>\x93quoted\x94</p></body></html>",
			contentType: "text/html",
			want:        "“quoted”",
		},
		{
			name: "comments dropped",
			html: `<p>a<!-- hidden -->b</p>`,
			want: "ab",
		},
		{
			name: "entities decoded once",
			html: `<p>if a &amp;lt; b &lt;tag&gt; &amp;amp;</p>`,
			want: "if a &lt; b <tag> &amp;",
		},
		{
			name: "whitespace-only document",
			html: " \n\t ",
			want: "",
		},
		{
			name: "empty document",
			html: ``,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(strings.NewReader(tt.html), tt.contentType)
			if err != nil {
				t.Fatalf("ExtractText failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
