package templates

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"strings"
	"text/template"
	"unicode"

	"github.com/masterminds/sprig"

	"github.com/concentricsky/djenesis/internal/errors"
)

// secretKeyChars is the alphabet Django uses for generated secret keys.
const secretKeyChars = "abcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*(-_=+)"

// NewSecretKey returns a random 50 character Django SECRET_KEY.
func NewSecretKey() (string, error) {
	return randomString(50, secretKeyChars)
}

func randomString(n int, alphabet string) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// PyIdent converts s into a valid Python identifier.
func PyIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || (unicode.IsLetter(r) && r < unicode.MaxASCII):
			b.WriteRune(r)
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// FuncMap returns the functions available to .tmpl files: the sprig text
// functions plus secretKey and pyIdent.
func FuncMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["secretKey"] = NewSecretKey
	funcs["pyIdent"] = PyIdent
	return funcs
}

// Renderer renders .tmpl files. It is safe for concurrent use.
type Renderer struct {
	funcs  template.FuncMap
	delims [2]string
}

// NewRenderer creates a renderer honoring the manifest delimiters.
func NewRenderer(m *Manifest) *Renderer {
	r := &Renderer{funcs: FuncMap(), delims: [2]string{"{{", "}}"}}
	if m != nil && len(m.Delims) == 2 {
		r.delims = [2]string{m.Delims[0], m.Delims[1]}
	}
	return r
}

// Render executes src, named name in errors, with cfg.
func (r *Renderer) Render(name string, src []byte, cfg Config) ([]byte, error) {
	tmpl, err := template.New(name).
		Delims(r.delims[0], r.delims[1]).
		Funcs(r.funcs).
		Option("missingkey=error").
		Parse(string(src))
	if err != nil {
		return nil, errors.New("E160").
			WithLocationFromError(err).
			WithSource(src).
			Wrap(err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return nil, errors.New("E161").
			WithLocationFromError(err).
			WithSource(src).
			WithSuggestion("Check the variable names used in " + name).
			Wrap(err)
	}
	return buf.Bytes(), nil
}
