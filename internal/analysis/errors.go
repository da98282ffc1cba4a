package analysis

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/linkgraph/internal/ir"
)

var (
	// ErrUnsupportedTerminator is returned for yield, inline assembly and tail calls.
	ErrUnsupportedTerminator = errors.New("unsupported terminator")
	// ErrUnresolvable is returned when a callee operand has a shape the resolver does not handle.
	ErrUnresolvable = errors.New("unresolvable call target")
	// ErrMalformedClosureArgs is returned when a closure call's argument pack is not a tuple.
	ErrMalformedClosureArgs = errors.New("malformed closure arguments")
)

// FunctionError aborts the analysis of one function. Other functions of the
// unit are unaffected.
type FunctionError struct {
	Func  string     // Display form of the function's node
	Block ir.BlockID // Block being visited when the error occurred
	Err   error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Func, e.Block, e.Err)
}

func (e *FunctionError) Unwrap() error {
	return e.Err
}
