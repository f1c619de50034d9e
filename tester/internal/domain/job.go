// Package domain holds the tester's in-process job representation.
package domain

import "github.com/coursegrader/pipeline/shared"

// Job pairs a decoded JobRequest with the delivery tag it arrived on.
// The tag travels with the job all the way to the result publisher,
// which must ack it on the same channel it was consumed from only
// after the response has been published.
type Job struct {
	Request     shared.JobRequest
	DeliveryTag uint64
}
