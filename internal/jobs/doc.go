// Package jobs implements the background job engine: the handler registry,
// the due-job runner with bounded retries and exponential backoff, and the
// cascade trigger that enqueues follow-up analysis work when completion
// counters cross fixed thresholds.
package jobs
