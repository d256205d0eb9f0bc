// SPDX-License-Identifier: MPL-2.0

package main

import cmd "pylab/cmd/pylab"

func main() {
	cmd.Execute()
}
