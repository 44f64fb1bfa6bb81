package services

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/petcare/apiserver/internal/errs"
)

var personNamePattern = regexp.MustCompile(`^[\p{L}\s'-]+$`)

const minPasswordLength = 6

// asValidation turns ozzo validation errors into a 400 carrying their text.
// Internal rule errors pass through unchanged.
func asValidation(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return errs.Validation(err.Error())
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}
