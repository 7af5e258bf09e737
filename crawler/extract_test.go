package crawler

import (
	"net/url"
	"slices"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestExtractPageLinks(t *testing.T) {
	base := mustParse(t, "https://example.com/blog/")

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "absolute",
			html: `<a href="https://example.com/page">x</a>`,
			want: []string{"https://example.com/page"},
		},
		{
			name: "root relative",
			html: `<a href="/about">x</a>`,
			want: []string{"https://example.com/about"},
		},
		{
			name: "path relative",
			html: `<a href="post-1">x</a>`,
			want: []string{"https://example.com/blog/post-1"},
		},
		{
			name: "fragment kept for the filter",
			html: `<a href="#top">x</a>`,
			want: []string{"https://example.com/blog/#top"},
		},
		{
			name: "mailto kept for the filter",
			html: `<a href="mailto:hi@example.com">x</a>`,
			want: []string{"mailto:hi@example.com"},
		},
		{
			name: "empty href is the page",
			html: `<a href="">x</a>`,
			want: []string{"https://example.com/blog/"},
		},
		{
			name: "anchor without href",
			html: `<a name="here">x</a>`,
			want: nil,
		},
		{
			name: "duplicates and order preserved",
			html: `<a href="/b">1</a><a href="/a">2</a><a href="/b">3</a>`,
			want: []string{"https://example.com/b", "https://example.com/a", "https://example.com/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, links, err := ExtractPage(strings.NewReader(tt.html), base)
			if err != nil {
				t.Fatalf("ExtractPage() error: %v", err)
			}
			if !slices.Equal(links, tt.want) {
				t.Errorf("links = %q, want %q", links, tt.want)
			}
		})
	}
}

func TestExtractPageText(t *testing.T) {
	base := mustParse(t, "https://example.com")

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "body text only",
			html: `<html><head><title>Title</title></head><body>Hello world</body></html>`,
			want: "Hello world",
		},
		{
			name: "hidden elements dropped",
			html: `<body><script>var kayako = 1;</script><style>.k{}</style><noscript>enable js</noscript><p>Visible</p></body>`,
			want: "Visible",
		},
		{
			name: "inline runs joined",
			html: `<body><p>Kay<b>ako</b> rocks</p></body>`,
			want: "Kayako rocks",
		},
		{
			name: "blocks break lines",
			html: `<body><h1>Head</h1><p>one</p><ul><li>a</li><li>b</li></ul></body>`,
			want: "Head\none\na\nb",
		},
		{
			name: "whitespace collapsed",
			html: "<body><p>  lots \t of\n\n  space  </p></body>",
			want: "lots of space",
		},
		{
			name: "empty body",
			html: `<html><body></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, _, err := ExtractPage(strings.NewReader(tt.html), base)
			if err != nil {
				t.Fatalf("ExtractPage() error: %v", err)
			}
			if text != tt.want {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("\n  a   b \n\n\t c\n")
	if got != "a b\nc" {
		t.Errorf("collapseWhitespace() = %q, want %q", got, "a b\nc")
	}
}
