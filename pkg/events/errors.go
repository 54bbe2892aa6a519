package events

import "errors"

var (
	// ErrInvalidPayload is returned for a missing, empty or non-object payload.
	ErrInvalidPayload = errors.New("invalid or empty payload")
	// ErrMalformedPullRequest is returned when a tracked pull request action
	// lacks one of its required nested fields.
	ErrMalformedPullRequest = errors.New("malformed pull request payload")
	// ErrUnparseableTimestamp is returned for a non-empty timestamp that is not ISO-8601.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
)
