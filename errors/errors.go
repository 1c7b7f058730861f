package errors

import "errors"

var (
	ErrBadConfig          = errors.New("config: invalid config")
	ErrBadCutoff          = errors.New("config: cut-off must carry timezone information")
	ErrOrgNameRequired    = errors.New("config: org name is required for org accounts")
	ErrBadImageName       = errors.New("config: invalid image name")
	ErrBadKeepAtLeast     = errors.New("config: keep-at-least must not be negative")
	ErrRateLimitExhausted = errors.New("ratelimit: reset is above the maximum allowed sleep time")
	ErrManualAssistance   = errors.New("registry: version can only be deleted with GitHub support assistance")
	ErrDeleteRejected     = errors.New("registry: delete rejected")
	ErrDeleteTimeout      = errors.New("registry: delete request timed out")
)
