package db

import "errors"

// Domain-level database error sentinels.
var (
	// Organization errors
	ErrOrgNotFound = errors.New("organization not found")

	// Campaign errors
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrContactNotFound  = errors.New("campaign contact not found")

	// Job errors
	ErrJobNotFound = errors.New("job request not found")
)
