package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrRestrictedCategory = errors.New("wizard: category is restricted to verified companies")
	ErrUnauthenticated    = errors.New("wizard: sign in to post a listing")
	ErrQuotaExhausted     = errors.New("wizard: no posts remaining for this category")
	ErrNoTemplate         = errors.New("wizard: no template configured for this category")
	ErrForbidden          = errors.New("wizard: listing belongs to another user")
	ErrBusy               = errors.New("wizard: a fetch is still in flight")
	ErrStale              = errors.New("wizard: result discarded after navigation")
	ErrInvalidTransition  = errors.New("wizard: transition not allowed from the current step")
	ErrUnknownField       = errors.New("wizard: field is not part of the template")
	ErrClosed             = errors.New("wizard: session closed")
	ErrSubmitFailed       = errors.New("wizard: submission failed")
	ErrValidation         = errors.New("wizard: validation failed")
	ErrCategoryLocked     = errors.New("wizard: an edited listing keeps its category")
	ErrAlreadySubmitted   = errors.New("wizard: listing already submitted")
)

// ValidationError lists the required visible fields of a step that have no
// value, keyed by field_name.
type ValidationError struct {
	Step   int
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("wizard: step %d is missing %s", e.Step, strings.Join(names, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
