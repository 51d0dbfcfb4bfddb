package auth

import "github.com/tunetrail/tunetrail/internal/domain/errs"

var (
	ErrInvalidUsername = errs.New(errs.KindClientInput, "invalid_username",
		"username must be 3-20 characters long and contain only letters, digits or underscores")
	ErrWeakPassword  = errs.New(errs.KindClientInput, "weak_password", "password does not meet the requirements")
	ErrUsernameTaken = errs.New(errs.KindConflict, "username_taken", "Username already taken")

	ErrBadUsername    = errs.New(errs.KindAuthentication, "bad_username", "Bad Username")
	ErrBadPassword    = errs.New(errs.KindAuthentication, "bad_password", "Bad Password")
	ErrOAuthOnlyLogin = errs.New(errs.KindClientInput, "oauth_account",
		"This account was created using Spotify OAuth. Please log in with Spotify")

	ErrLinkedToPasswordAccount = errs.New(errs.KindConflict, "linked_to_password_account",
		"This Spotify account is linked to a non-OAuth account")
	ErrInvalidState = errs.New(errs.KindClientInput, "invalid_state", "OAuth state is missing, unknown or already used")

	ErrUsernameAlreadySet = errs.New(errs.KindClientInput, "username_already_set", "Username already set for this account")
	ErrNotOAuthAccount    = errs.New(errs.KindClientInput, "not_oauth_account",
		"Username can only be added to accounts created via Spotify OAuth")
	ErrPasswordRequired = errs.New(errs.KindClientInput, "password_required",
		"Accounts created via Spotify OAuth cannot unlink Spotify")

	ErrTokenStillValid = errs.New(errs.KindClientInput, "token_still_valid", "Token is still valid, refresh not needed")
	ErrForbidden       = errs.New(errs.KindForbidden, "forbidden", "Insufficient permissions")
	ErrUserNotFound    = errs.New(errs.KindNotFound, "user_not_found", "User not found")
)
