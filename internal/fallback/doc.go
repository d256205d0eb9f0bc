// SPDX-License-Identifier: MPL-2.0

// Package fallback establishes the learning container's mount mode. Volume
// mounting is tried first; when the host restricts bind mounts the user is
// told why, once, and the container is recreated in copy mode. At most two
// creation attempts are made per establish call.
package fallback
