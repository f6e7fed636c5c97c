// Package domain defines the core business entities and errors for the
// task assignment and background job engine.
package domain
