package repository

import "fmt"

// QueryExecutionError wraps a driver failure encountered while executing a
// named query; the Dispatcher maps this to InternalError.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Query, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}
