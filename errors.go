package findiff

import (
	"github.com/spacemonkeygo/errors"
)

// The numeric core never returns errors; these classes cover the layers that
// build callables from external input.
var (
	Error = errors.NewClass("FindiffError")

	// ExprError is raised for malformed or unevaluable expression trees.
	ExprError = Error.NewClass("ExprError")

	// UnboundParamError is raised when an expression names a parameter the
	// environment does not bind.
	UnboundParamError = ExprError.NewClass("UnboundParamError")

	// ToolError is raised for bad tool requests.
	ToolError = Error.NewClass("ToolError")
)
