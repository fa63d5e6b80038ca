package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/voicepilot/pkg/core/version"
)

var BuildDate = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Mostra a versão",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("InboxPilot Voice v%s\n", version.Release)
		fmt.Printf("  Git Commit: %s\n", version.Commit)
		fmt.Printf("  API:        %s\n", version.Protocol)
		fmt.Printf("  Controller: %s\n", version.ComponentVersion("controller"))
		fmt.Printf("  Classifier: %s\n", version.ComponentVersion("classifier"))
		fmt.Printf("  Build Date: %s\n", BuildDate)
		fmt.Printf("  Go Version: %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
