package httptransport

import (
	"github.com/iliamunaev/projection-pipeline/internal/apperr"
)

// httpStatus maps engine errors to status codes. A nil error is 200.
func httpStatus(err error) int {
	return apperr.HTTPStatus(err)
}

func validationError(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return &apperr.ValidationError{Errors: errs}
}
