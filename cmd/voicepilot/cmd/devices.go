package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/voicepilot/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Lista os microfones",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audio.ListInputDevices()
		if err != nil {
			printError("áudio", err)
			return err
		}
		if len(devices) == 0 {
			fmt.Println("Nenhum microfone encontrado.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tNOME\tCANAIS\tTAXA")
		for _, d := range devices {
			mark := ""
			if d.IsDefault {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%.0f Hz\n", mark, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
