// Package descriptor models the packaging descriptor of a distributable
// unit: its name, version, maintainer, entry-point scripts, packages and the
// non-code data bundled with each package.
//
// Default returns the descriptor djenesis itself is released under.
// ForProject builds the descriptor written into a newly bootstrapped project.
//
// Descriptors round-trip through JSON and YAML, and Check verifies that the
// paths a descriptor names resolve inside a source tree:
//
//	d, err := descriptor.Load("djenesis.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := d.Check(os.DirFS(".")); err != nil {
//	    return err
//	}
package descriptor
