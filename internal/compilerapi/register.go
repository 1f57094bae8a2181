package compilerapi

import "errors"

// ErrNoCompiler indicates no compiler front end was linked into the
// binary.
var ErrNoCompiler = errors.New("no compiler front end registered")

var registered Compiler

// Register installs the compiler front end the CLI drives. Called
// from the front end's init when it is linked in.
func Register(c Compiler) {
	registered = c
}

// Registered returns the linked compiler front end.
func Registered() (Compiler, error) {
	if registered == nil {
		return nil, ErrNoCompiler
	}
	return registered, nil
}
