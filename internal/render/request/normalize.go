package request

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Normalize decodes body according to contentType. Structured payloads that
// fail to decode fall back to their text; bodies of a non-text media type are
// returned as the original []byte.
func Normalize(contentType string, body []byte) interface{} {
	media, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		media, params = "", nil
	}

	if media == "" && len(body) > 0 {
		detected := mimetype.Detect(body)
		switch {
		case detected.Is(mediaJSON):
			media = mediaJSON
		case !isText(detected):
			return body
		}
	}

	switch {
	case isJSON(media):
		var v interface{}
		if err := sonic.Unmarshal(body, &v); err == nil {
			return v
		}
	case media == "application/yaml" || media == "application/x-yaml" || media == "text/yaml":
		var v interface{}
		if err := yaml.Unmarshal(body, &v); err == nil {
			return v
		}
	case media == "application/toml":
		var v map[string]interface{}
		if err := toml.Unmarshal(body, &v); err == nil {
			return v
		}
	}

	if media != "" && !textual(media, params) {
		return body
	}
	return decodeText(body, params["charset"])
}

// textual reports whether a declared media type carries text.
func textual(media string, params map[string]string) bool {
	switch {
	case params["charset"] != "":
		return true
	case strings.HasPrefix(media, "text/"), isJSON(media), strings.HasSuffix(media, "+xml"), strings.HasSuffix(media, "+yaml"):
		return true
	case media == "application/x-www-form-urlencoded", media == "application/yaml", media == "application/x-yaml", media == "application/toml":
		return true
	}
	if m := mimetype.Lookup(media); m != nil {
		return isText(m)
	}
	return false
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// decodeText converts body to a UTF-8 string, trying the declared charset
// first and a detected one second.
func decodeText(body []byte, label string) string {
	if utf8.Valid(body) {
		return string(body)
	}

	if label == "" {
		if best, err := chardet.NewTextDetector().DetectBest(body); err == nil && best != nil {
			label = best.Charset
		}
	}
	if label == "" {
		return string(body)
	}

	r, err := charset.NewReaderLabel(strings.ToLower(label), bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// flattenHeaders lower-cases header names. Set-Cookie keeps every value,
// other repeated headers are joined with ", ".
func flattenHeaders(h http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for k, v := range h {
		name := strings.ToLower(k)
		if name == "set-cookie" {
			values := make([]interface{}, len(v))
			for i, s := range v {
				values[i] = s
			}
			out[name] = values
			continue
		}
		out[name] = strings.Join(v, ", ")
	}
	return out
}
