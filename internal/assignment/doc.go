// Package assignment implements the task assignment protocol: the
// eligibility filter, the poll/claim loop, and the owner-checked terminal
// transitions. All coordination happens through the store's conditional
// updates; there is no in-process shared mutable state.
package assignment
