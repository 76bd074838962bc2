package engine

import "errors"

// ErrGenerationNotPermitted means a code-request or approval turn arrived
// without the plan state its mode requires. It is raised before any model
// invocation and is surfaced to the user as a plain chat reply asking for
// approval, never as a system error.
var ErrGenerationNotPermitted = errors.New("code generation requires an approved plan")
