package main

import (
	"github.com/bryanchriswhite/snapflow/cmd/snapflow/commands"

	// Platform backends register themselves.
	_ "github.com/bryanchriswhite/snapflow/internal/platform/virtual"
	_ "github.com/bryanchriswhite/snapflow/internal/platform/win32"
	_ "github.com/bryanchriswhite/snapflow/internal/platform/x11"
)

func main() {
	commands.Execute()
}
