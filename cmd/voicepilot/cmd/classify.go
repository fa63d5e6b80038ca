package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/voicepilot/internal/voice/intent"
)

var classifyWakeWord string

var classifyCmd = &cobra.Command{
	Use:   "classify [frase]",
	Short: "Mostra como uma frase é interpretada",
	Long: `Classifica uma frase como o assistente faria depois da transcrição.

Sem argumentos, lê uma frase por linha da entrada padrão.

Exemplos:
  voicepilot classify "ler email dois"
  voicepilot classify "responde ao 3 de forma formal"
  echo "apagar todos" | voicepilot classify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := intent.New(intent.WithWakeWord(classifyWakeWord))

		if len(args) > 0 {
			printIntent(c.Classify(strings.Join(args, " ")))
			return nil
		}

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			fmt.Printf("%-40s → ", line)
			printIntent(c.Classify(line))
		}
		return scanner.Err()
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyWakeWord, "wake-word", "piloto", "Palavra de ativação removida do início")
	rootCmd.AddCommand(classifyCmd)
}

func printIntent(in intent.Intent) {
	fmt.Print(in.Tag.String())
	if in.Index > 0 {
		fmt.Printf(" index=%d", in.Index)
	}
	if in.Tone != "" {
		fmt.Printf(" tone=%s", in.Tone)
	}
	if in.Rule != "" {
		fmt.Printf(" rule=%s", in.Rule)
	}
	fmt.Printf(" text=%q\n", in.Text)
}
