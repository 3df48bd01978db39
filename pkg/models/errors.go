package models

import (
	"fmt"

	"github.com/sqlfabric/fabric/pkg/apperrors"
)

func errMissingField(field string) error {
	return fmt.Errorf("%w: missing required field %q", apperrors.ErrValidation, field)
}

func errUnknownDialect(value string) error {
	return fmt.Errorf("%w: unknown dialect %q", apperrors.ErrValidation, value)
}
