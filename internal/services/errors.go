package services

import "github.com/petcare/apiserver/internal/errs"

var (
	ErrUserNotFound    = errs.New(errs.KindNotFound, "user_not_found", "user not found")
	ErrEmailTaken      = errs.New(errs.KindConflict, "email_taken", "user with this email already exists")
	ErrSameRole        = errs.New(errs.KindValidation, "same_role", "new role must be different from current role")
	ErrRoleChanged     = errs.New(errs.KindConflict, "role_changed", "role was changed by another request")
	ErrWrongPassword   = errs.New(errs.KindValidation, "wrong_password", "current password is incorrect")
	ErrEmptyProfile    = errs.New(errs.KindValidation, "empty_update", "at least one field must be provided")
	ErrImagesDisabled  = errs.New(errs.KindValidation, "images_disabled", "image uploads are not enabled")
	ErrImageNotFound   = errs.New(errs.KindNotFound, "image_not_found", "pet image not found")
	ErrPetNotFound     = errs.New(errs.KindNotFound, "pet_not_found", "pet not found")
	ErrPetUnavailable  = errs.New(errs.KindConflict, "pet_unavailable", "pet is not available for adoption")
	ErrRequestNotFound = errs.New(errs.KindNotFound, "request_not_found", "adoption request not found")

	// ErrInvalidTransition is returned when a decided request is approved
	// or rejected again.
	ErrInvalidTransition = errs.New(errs.KindConflict, "invalid_transition", "adoption request has already been processed")
)
