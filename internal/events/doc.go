// Package events provides a lightweight publish/subscribe mechanism that
// decouples task completion from background job scheduling. The cascade
// trigger emits job requests; a handler persists them to the job queue.
package events
