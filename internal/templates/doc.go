// Package templates provides project scaffolding templates.
//
// A template is any fs.FS. The built-in templates live in project_template/
// and are embedded into the binary:
//
//   - django: Django project with settings, URL routing, base templates and static files
//   - minimal: Single-settings Django project
//
// # Manifest
//
// An optional djenesis.yaml at the template root names the template,
// declares its variables with defaults, lists files to exclude or mark
// executable, and may change the template delimiters.
//
// # Rendering
//
// Files ending in .tmpl are rendered with text/template and the sprig
// function library; the suffix is dropped from the output name. Every other
// file is copied byte for byte, so Django templates that use {{ }} are left
// alone. The path segment __project_name__ becomes the project name and
// __<variable>__ becomes the variable's value.
//
// # Template Variables
//
//	{{.ProjectName}}     - Name of the project (a Python identifier)
//	{{.Description}}     - Project description
//	{{.Author}}          - Author name
//	{{.AuthorEmail}}     - Author email
//	{{.URL}}             - Project homepage
//	{{.SecretKey}}       - Generated Django SECRET_KEY
//	{{.Package}}         - The project's package descriptor
//	{{.Vars.<name>}}     - Manifest and user variables
package templates
