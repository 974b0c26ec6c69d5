// Package diagnostic provides structured errors, warnings, and notes
// collected while checking a cloning request.
//
// Key capabilities:
//   - Preflight rejection reasons for a source type
//   - Broken reference reports with the offending element
//   - Warnings for members a clone silently skips
package diagnostic
