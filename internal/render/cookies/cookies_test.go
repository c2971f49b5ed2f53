package cookies

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "single letter", input: "a", want: 2},
		{name: "letters only", input: "abc", want: 8},
		{name: "non letters kept", input: "a-1", want: 2},
		{name: "no letters", input: "-1-", want: 1},
		{name: "empty", input: "", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Variants(tt.input)
			assert.Len(t, got, tt.want)

			seen := make(map[string]bool, len(got))
			for _, v := range got {
				assert.False(t, seen[v], "duplicate variant %q", v)
				seen[v] = true
			}
		})
	}
}

func TestVariantsOrder(t *testing.T) {
	assert.Equal(t, []string{"ab", "aB", "Ab", "AB"}, Variants("ab"))
	assert.Equal(t, []string{"a-b", "a-B", "A-b", "A-B"}, Variants("A-B"))
}

func TestCookieNames(t *testing.T) {
	names := CookieNames()
	require.Len(t, names, 512)
	assert.Equal(t, "set-cookie", names[0])
	assert.Equal(t, "set-cookiE", names[1])
	assert.Equal(t, "SET-COOKIE", names[511])

	// cached table is shared
	assert.Same(t, &names[0], &CookieNames()[0])
}

func TestSerialize(t *testing.T) {
	zero := 0
	hour := 3600

	tests := []struct {
		name    string
		cname   string
		value   string
		opts    Options
		want    string
		wantErr bool
	}{
		{name: "plain", cname: "a", value: "1", want: "a=1"},
		{name: "encoded value", cname: "a", value: "x y;z", want: "a=x%20y%3Bz"},
		{name: "path", cname: "sid", value: "v", opts: Options{Path: "/"}, want: "sid=v; Path=/"},
		{name: "max age", cname: "a", value: "1", opts: Options{MaxAge: &hour}, want: "a=1; Max-Age=3600"},
		{name: "max age zero", cname: "a", value: "1", opts: Options{MaxAge: &zero}, want: "a=1; Max-Age=0"},
		{name: "flags", cname: "a", value: "1", opts: Options{HTTPOnly: true, Secure: true}, want: "a=1; HttpOnly; Secure"},
		{name: "same site", cname: "a", value: "1", opts: Options{SameSite: "Strict"}, want: "a=1; SameSite=Strict"},
		{
			name:  "expires",
			cname: "a",
			value: "1",
			opts:  Options{Expires: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)},
			want:  "a=1; Expires=Wed, 02 Jan 2030 03:04:05 GMT",
		},
		{
			name:  "custom encoder",
			cname: "a",
			value: "raw value",
			opts:  Options{Encode: func(s string) (string, error) { return "custom", nil }},
			want:  "a=custom",
		},
		{name: "invalid name", cname: "a b", value: "1", wantErr: true},
		{name: "empty name", cname: "", value: "1", wantErr: true},
		{name: "bad same site", cname: "a", value: "1", opts: Options{SameSite: "sometimes"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Serialize(tt.cname, tt.value, tt.opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCookie)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "abc-_.!~*'()", EncodeURIComponent("abc-_.!~*'()"))
	assert.Equal(t, "%E3%81%82%2F%3F%26", EncodeURIComponent("あ/?&"))
}

func TestJar(t *testing.T) {
	jar := NewJar()

	first, err := jar.Set("a=1")
	require.NoError(t, err)
	second, err := jar.Set("b=2")
	require.NoError(t, err)

	assert.Equal(t, "set-cookie", first)
	assert.Equal(t, "set-cookiE", second)
	assert.Equal(t, map[string]string{"set-cookie": "a=1", "set-cookiE": "b=2"}, jar.Headers())

	h := http.Header{}
	jar.Apply(h)
	assert.Len(t, h, 2)
	assert.Equal(t, []string{"b=2"}, h["set-cookiE"])

	jar.Reset()
	assert.Equal(t, 0, jar.Len())
}

func TestJarCeiling(t *testing.T) {
	jar := NewJar()
	for i := 0; i < len(CookieNames()); i++ {
		_, err := jar.Set("a=1")
		require.NoError(t, err)
	}

	_, err := jar.Set("overflow=1")
	assert.ErrorIs(t, err, ErrTooManyCookies)
	assert.Equal(t, 512, jar.Len())
}
