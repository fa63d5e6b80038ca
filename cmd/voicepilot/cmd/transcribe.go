package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/voicepilot/internal/app"
	"github.com/inboxpilot/voicepilot/internal/audio"
)

var transcribeLanguage string

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <arquivo.wav>",
	Short: "Transcreve um arquivo WAV",
	Long: `Envia um arquivo WAV para transcrição com o mesmo serviço usado
pelo assistente e imprime o texto reconhecido.

Exemplo:
  voicepilot transcribe gravacao.wav --language pt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		rate, pcm, err := audio.ParseWAV(data)
		if err != nil {
			printError("arquivo", err)
			return err
		}
		if len(pcm) == 0 {
			return fmt.Errorf("%s: no audio data", args[0])
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "%s: %d Hz, %.1fs\n", args[0], rate, float64(len(pcm))/float64(rate*2))
		}

		lang := transcribeLanguage
		if lang == "" {
			lang = cfg.Voice.Language
		}

		client := app.NewBackendClient(cfg)
		transcriber, _ := app.SpeechServices(cfg, client, app.NewDirectProvider(cfg))

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout.Duration)
		defer cancel()
		text, err := transcriber.Transcribe(ctx, data, lang)
		if err != nil {
			printError("transcrição", err)
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeLanguage, "language", "", "Idioma (padrão: voice.language)")
	rootCmd.AddCommand(transcribeCmd)
}
