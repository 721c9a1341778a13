// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command wlddemo renders a test card through a wld backend and inspects
// the wld configuration.
package main

import (
	"os"

	"github.com/gogpu/wld/cmd/wlddemo/commands"
)

func main() {
	os.Exit(commands.Execute())
}
