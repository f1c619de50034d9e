package domain

import "errors"

var (
	// ErrBadToken is returned when the X-Gitlab-Token header does not match
	// the configured secret.
	ErrBadToken = errors.New("invalid or missing push token")

	// ErrUnknownEvent is returned when a webhook's object_kind is not "push".
	ErrUnknownEvent = errors.New("unsupported webhook event kind")

	// ErrBranchDeleted is returned for push events with no checkout_sha
	// (branch deletion).
	ErrBranchDeleted = errors.New("push event has no checkout sha (branch delete)")

	// ErrCloneFailed is returned when cloning the pushed commit fails.
	ErrCloneFailed = errors.New("unable to clone pushed commit")

	// ErrLabNotEligible is returned when a configured lab's subtree or
	// witness file is absent from the checked-out tree.
	ErrLabNotEligible = errors.New("lab subtree or witness file not present")

	// ErrPackageFailed is returned when zipping a lab's subtree fails.
	ErrPackageFailed = errors.New("unable to package lab")

	// ErrMalformedResult is returned when a result-queue delivery cannot be
	// decoded as JSON or UTF-8.
	ErrMalformedResult = errors.New("malformed result delivery")
)
