// SPDX-License-Identifier: MPL-2.0

// Package mamba manages a self-contained micromamba installation under the
// workspace's .mamba directory and the learning environment inside it. This
// backs the localenv backend: isolation through a private interpreter and
// package tree, without a container engine.
package mamba
