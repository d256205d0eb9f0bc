// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// IsWindows reports whether the current OS is Windows.
func IsWindows() bool { return runtime.GOOS == Windows }

// IsDarwin reports whether the current OS is macOS.
func IsDarwin() bool { return runtime.GOOS == Darwin }

// IsLinux reports whether the current OS is Linux.
func IsLinux() bool { return runtime.GOOS == Linux }

// IsArm64 reports whether the current architecture is 64-bit ARM.
func IsArm64() bool { return runtime.GOARCH == "arm64" }
