// Package shared holds the wire types and AMQP plumbing common to the
// dispatcher and the tester, so the two binaries never drift apart on the
// contract between them.
package shared

// ResultQueueName is the durable queue the dispatcher declares for
// itself and that every JobRequest names as its ResultQueue.
const ResultQueueName = "gitlab"

// JobRequest is published by the dispatcher onto the work queue and
// consumed by the tester. opaque is preserved byte-for-byte from request
// to response; the dispatcher uses it to recover the originating hook and
// artifact name once the response comes back.
type JobRequest struct {
	JobName     string  `json:"job_name"`
	Lab         string  `json:"lab"`
	Dir         string  `json:"dir"`
	ZipURL      string  `json:"zip_url"`
	ResultQueue string  `json:"result_queue"`
	Opaque      string  `json:"opaque"`
	DeliveryTag *uint64 `json:"delivery_tag,omitempty"`
}

// JobResponse is published by the tester onto the per-job ResultQueue and
// consumed by the dispatcher's result consumer. DeliveryTag and ResultQueue
// only make sense within the tester's own AMQP session; the dispatcher
// never uses them itself, it is the tester's ack bookkeeping that needs
// them round-tripped through the pipeline.
type JobResponse struct {
	JobName     string `json:"job_name"`
	Lab         string `json:"lab"`
	Opaque      string `json:"opaque"`
	YAMLResult  string `json:"yaml_result"`
	ResultQueue string `json:"result_queue"`
	DeliveryTag uint64 `json:"delivery_tag"`
}
