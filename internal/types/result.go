package types

// BatchResult reports the outcome of one batch relay invocation. Only the
// failed ids are redelivered by the surrounding queue infrastructure
// (partial-batch-failure contract); succeeded and skipped messages are
// acknowledged.
type BatchResult struct {
	TotalCount     int
	SucceededCount int
	FailedIDs      []string
}

// RecordFailure marks a message id as failed.
func (r *BatchResult) RecordFailure(messageID string) {
	r.FailedIDs = append(r.FailedIDs, messageID)
}

// RecordSuccess counts a processed message that must not be redelivered.
// Intentional skips are recorded here too: skip is success-without-dispatch.
func (r *BatchResult) RecordSuccess() {
	r.SucceededCount++
}

// HasFailed reports whether the given message id was recorded as failed.
func (r *BatchResult) HasFailed(messageID string) bool {
	for _, id := range r.FailedIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// ReprocessSummary is the per-run outcome of a dead-letter drain.
// Failure counts accumulate across runs until an operator inspects the
// store; the reprocessor never auto-discards.
type ReprocessSummary struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
}
