// Package llm implements the jobs.Analyzer interface on top of Google's
// Gemini API. All prompts request strict JSON responses which are parsed
// into the schemas defined here; malformed model output is a permanent
// failure of the attempt.
package llm
