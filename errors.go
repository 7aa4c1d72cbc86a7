package authvault

import "errors"

var (
	// ErrInvalidConfig wraps all configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrWeakSecret is returned by Build in production posture when a
	// mandatory secret scores below the medium strength tier.
	ErrWeakSecret = errors.New("mandatory secret below required strength")

	// ErrForbiddenSecret is returned by Build in production posture when a
	// mandatory secret matches a known placeholder value.
	ErrForbiddenSecret = errors.New("mandatory secret matches a forbidden value")

	// ErrBuilderUsed is returned when Build is called twice on one builder.
	ErrBuilderUsed = errors.New("builder already used")

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)
