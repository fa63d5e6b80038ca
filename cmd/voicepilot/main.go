package main

import (
	"os"

	"github.com/inboxpilot/voicepilot/cmd/voicepilot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
