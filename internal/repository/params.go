package repository

import "github.com/vitaliisemenov/sql-gateway/internal/registry"

// BoundParameter is a single positionally-bound, typed query parameter,
// built by the Dispatcher and handed to the Repository unchanged. Position
// is 1-based and contiguous within one call.
type BoundParameter struct {
	Name       string
	Type       registry.ParamType
	Position   int
	TypedValue any // nil means SQL NULL
}

// driverArgs renders params, already sorted by Position, as the positional
// argument slice a Pool.Query/Exec call expects.
func driverArgs(params []BoundParameter) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.TypedValue
	}
	return args
}
