package request

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        interface{}
	}{
		{name: "json", contentType: "application/json", body: []byte(`{"x":1}`), want: map[string]interface{}{"x": float64(1)}},
		{name: "json suffix", contentType: "application/problem+json", body: []byte(`[true]`), want: []interface{}{true}},
		{name: "invalid json falls back to text", contentType: "application/json", body: []byte(`{oops`), want: "{oops"},
		{name: "sniffed json", body: []byte(`{"a":"b"}`), want: map[string]interface{}{"a": "b"}},
		{name: "yaml", contentType: "application/yaml", body: []byte("name: widget\n"), want: map[string]interface{}{"name": "widget"}},
		{name: "toml", contentType: "application/toml", body: []byte("name = \"widget\"\n"), want: map[string]interface{}{"name": "widget"}},
		{name: "html stays text", contentType: "text/html", body: []byte("<p>hi</p>"), want: "<p>hi</p>"},
		{name: "latin1 declared", contentType: "text/plain; charset=iso-8859-1", body: []byte{'c', 'a', 'f', 0xe9}, want: "café"},
		{name: "empty", contentType: "", body: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.contentType, tt.body))
		})
	}
}

func TestNormalizeBinary(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\xff\xfe\x00\x10")

	tests := []struct {
		name        string
		contentType string
	}{
		{name: "sniffed", contentType: ""},
		{name: "declared image", contentType: "image/png"},
		{name: "octet stream", contentType: "application/octet-stream"},
		{name: "unknown type", contentType: "application/x-widget"},
		{name: "pdf", contentType: "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, png, Normalize(tt.contentType, png))
		})
	}
}

func TestNormalizeDeclaredText(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        interface{}
	}{
		{name: "xml", contentType: "application/xml", body: []byte("<a/>"), want: "<a/>"},
		{name: "xml suffix", contentType: "application/atom+xml", body: []byte("<feed/>"), want: "<feed/>"},
		{name: "javascript", contentType: "application/javascript", body: []byte("var a;"), want: "var a;"},
		{name: "charset on unknown type", contentType: "application/x-widget; charset=iso-8859-1", body: []byte{'c', 'a', 'f', 0xe9}, want: "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.contentType, tt.body))
		})
	}
}

func TestFlattenHeaders(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	h.Add("Vary", "Accept")
	h.Add("Vary", "Origin")

	got := flattenHeaders(h)
	assert.Equal(t, []interface{}{"a=1", "b=2"}, got["set-cookie"])
	assert.Equal(t, "Accept, Origin", got["vary"])
}
