package auth

import "errors"

// ErrTokenExpired occurs when a token's exp claim is in the past.
var ErrTokenExpired = errors.New("token expired")
