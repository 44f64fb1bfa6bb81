package auth

import "github.com/petcare/apiserver/internal/errs"

// Authentication failures. All of them surface as 401.
var (
	ErrMissingToken       = errs.New(errs.KindAuthentication, "missing_token", "access denied, no token provided")
	ErrExpiredToken       = errs.New(errs.KindAuthentication, "expired_token", "token has expired, please log in again")
	ErrMalformedToken     = errs.New(errs.KindAuthentication, "malformed_token", "invalid token, please log in again")
	ErrVerificationFailed = errs.New(errs.KindAuthentication, "verification_failed", "token verification failed")
	ErrAccountNotFound    = errs.New(errs.KindAuthentication, "account_not_found", "user not found")
	ErrAccountDeactivated = errs.New(errs.KindAuthentication, "account_deactivated", "account has been deactivated")
	ErrInvalidCredentials = errs.New(errs.KindAuthentication, "invalid_credentials", "invalid email or password")
	ErrNotAuthenticated   = errs.New(errs.KindAuthentication, "not_authenticated", "authentication required")
)

// Authorization failures. All of them surface as 403.
var (
	ErrInsufficientRole = errs.New(errs.KindAuthorization, "insufficient_role", "access denied, role not permitted")
	ErrNotOwner         = errs.New(errs.KindAuthorization, "not_owner", "access denied, you can only access your own resources")
)
