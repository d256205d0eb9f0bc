// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error reporting for pylab.
//
// It contains a catalog of known failure conditions rendered as markdown
// guidance (via glamour), plus ActionableError, a structured error type that
// carries the failed operation, the resource involved, and remediation
// suggestions. Fatal errors surface exactly one cause and one suggested
// corrective action; the catalog entries hold the longer-form guidance.
package issue
