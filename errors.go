// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"errors"
	"fmt"
)

// Errors returned by the package. Compare with errors.Is; the returned
// errors wrap these with the details of the failure.
var (
	// ErrSchemaDefinition is returned when a model cannot be mapped to a table.
	ErrSchemaDefinition = errors.New("schema definition")

	// ErrQueryExecution is returned by Insert when the store rejects the row
	// because of a uniqueness or other constraint.
	ErrQueryExecution = errors.New("query execution")

	// ErrBadQuery is returned for ambiguous or underspecified queries.
	ErrBadQuery = errors.New("bad query")

	// ErrUnknownField is returned when a predicate names a column the model
	// does not declare.
	ErrUnknownField = fmt.Errorf("%w: unknown field", ErrBadQuery)

	// ErrNoOperands is returned when an operation that needs objects gets none.
	ErrNoOperands = fmt.Errorf("%w: no operands", ErrBadQuery)

	// ErrMissingEngine is returned when a Crud has no usable Engine.
	ErrMissingEngine = errors.New("missing engine")
)
