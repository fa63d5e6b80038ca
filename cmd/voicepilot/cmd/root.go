package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/voicepilot/pkg/core/config"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "voicepilot",
	Short: "InboxPilot Voice - assistente de email por voz",
	Long: `InboxPilot Voice controla a caixa de entrada por voz.

Fale comandos como "ler email 2", "responder ao email 1 em tom formal" ou
"apagar todos" e confirme as ações antes de serem executadas.

Comandos:
  run       - Assistente na bandeja do sistema
  console   - Console de texto no terminal
  classify  - Mostra como uma frase é interpretada
  queue     - Fila de ações pendentes
  health    - Verifica servidor e endpoint de saúde
  devices   - Lista os microfones
  transcribe - Transcreve um arquivo WAV`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Arquivo de configuração (padrão: ./configs/voicepilot.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Saída detalhada")
}

// loadConfig reads --config, then VOICEPILOT_CONFIG and the default paths,
// and falls back to defaults when no file exists. It also configures logging.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.LoadFromEnv()
		if errors.Is(err, config.ErrNoConfig) {
			cfg = config.Default()
		} else if err != nil {
			return nil, err
		}
	}

	logCfg := logging.DefaultLoggerConfig(cfg.General.Name)
	logCfg.Level = cfg.General.LogLevel
	logCfg.Format = cfg.General.LogFormat
	if verbose {
		logCfg.Level = "debug"
	}
	logging.Configure(logCfg)
	return cfg, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Erro: %s: %v\n", msg, err)
}
