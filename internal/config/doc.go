// SPDX-License-Identifier: MPL-2.0

// Package config handles pylab configuration loading and validation.
//
// Configuration lives in a CUE file (config.cue) validated against an
// embedded schema before being merged into Viper on top of built-in
// defaults. A missing config file is not an error; defaults apply.
package config
