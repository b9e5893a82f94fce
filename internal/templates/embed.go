package templates

import (
	"embed"
	"io/fs"
)

//go:embed all:project_template
var embedded embed.FS

// builtinFS returns the embedded directory of a built-in template.
func builtinFS(name string) (fs.FS, error) {
	return fs.Sub(embedded, "project_template/"+name)
}
