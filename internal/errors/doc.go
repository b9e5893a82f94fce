// Package errors provides structured, actionable error messages for djenesis.
//
// Every failure the CLI reports carries a code, a short message, an optional
// detail, a suggestion for fixing it and a link to the documentation. Errors
// raised while rendering a project template also carry the template file and
// line, with a few lines of surrounding source.
//
// # Error Codes
//
//   - E120-E123: configuration (djenesis.json)
//   - E140-E147: command line and target directory
//   - E150-E154: template sources (local, git, s3, http)
//   - E160-E162: template rendering
//   - E170-E172: package descriptors
//
// # Usage
//
//	err := errors.New("E147").
//	    WithDetail("'class' is a Python keyword").
//	    WithSuggestion("Choose a name like 'myproject'")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E147: Invalid project name
//	//
//	//   'class' is a Python keyword
//	//
//	//   Hint: Choose a name like 'myproject'
//	//
//	//   Learn more: https://djenesis.dev/errors/E147
package errors
