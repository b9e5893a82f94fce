// Package scaffold bootstraps Django projects from templates.
//
// Bootstrap resolves a template reference, plans the project tree, writes it
// and optionally runs post-create steps:
//
//	res, err := scaffold.Bootstrap(ctx, scaffold.Options{
//	    Name:     "mysite",
//	    Template: "django",
//	    GitInit:  true,
//	})
//
// A failed run removes the project directory if the run created it.
package scaffold
