// Package transformer provides the bytecode rewriting passes run over the
// classes of an input archive.
package transformer

import (
	"fmt"
	"math/rand"

	"github.com/whit3rabbit/jvmmixer/internal/classpath"
	"github.com/whit3rabbit/jvmmixer/internal/config"
	"github.com/whit3rabbit/jvmmixer/internal/exclusion"
)

// --- Interfaces to break import cycle ---

// Context defines what a pass needs from the run it belongs to.
type Context interface {
	GetConfig() *config.Config
	Registry() *classpath.Registry
	Rand() *rand.Rand
	RootExclusions() *exclusion.Set
	Bootstrap() *BootstrapGenerator
}

// Transformer is one pass over the emitted classes of the registry.
type Transformer interface {
	Name() string
	Enabled() bool
	// Process runs the pass. onClass, when non-nil, is called once per class
	// visited and is used to drive progress reporting.
	Process(onClass func(name string)) error
}

// InvariantError is the panic value raised when a rewrite reaches a state
// that valid input cannot produce. The pipeline recovers it and aborts the
// run.
type InvariantError struct {
	Class  string
	Method string
	Err    error
}

func (e *InvariantError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("invariant violated in %s: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("invariant violated in %s.%s: %v", e.Class, e.Method, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

func invariant(class, method string, err error) {
	panic(&InvariantError{Class: class, Method: method, Err: err})
}
