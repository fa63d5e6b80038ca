// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     cmd
// Description: CLI commands that start the assistant
// Author:      Mike Stoffels
// Created:     2025-12-16
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/voicepilot/internal/app"
	"github.com/inboxpilot/voicepilot/pkg/core/config"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

var (
	runMode     string
	runHeadless bool
	runFeed     bool
	runNoHotkey bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inicia o assistente na bandeja do sistema",
	Long: `Inicia o assistente de voz com ícone na bandeja do sistema.

  - Ativação pelo menu ou pelo atalho global (padrão ctrl+shift+space)
  - Detecção automática de fim de fala
  - Modo "sempre ouvindo" com palavra de ativação
  - Fila de ações confirmada antes da execução

Exemplos:
  voicepilot run                    # Bandeja do sistema
  voicepilot run --mode auto        # Próxima escuta automática
  voicepilot run --headless --feed  # Sem interface, status via websocket`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			printError("configuração", err)
			return err
		}
		applyRunFlags(cfg)

		frontend := app.FrontendTray
		if runHeadless {
			frontend = app.FrontendHeadless
		}
		return runApp(cfg, frontend)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Console de texto no terminal",
	Long: `Abre um console no terminal para digitar comandos e acompanhar o status.

Teclas:
  enter         enviar comando
  ctrl+r        iniciar/encerrar gravação
  esc           parar
  ctrl+o        trocar modo
  ctrl+y/ctrl+n confirmar ou cancelar`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			printError("configuração", err)
			return err
		}
		applyRunFlags(cfg)
		// Log lines would tear the terminal UI
		if !verbose {
			logCfg := logging.CurrentConfig()
			logCfg.Level = "error"
			logging.Configure(logCfg)
		}
		return runApp(cfg, app.FrontendConsole)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, consoleCmd} {
		c.Flags().StringVar(&runMode, "mode", "", "Modo de escuta (manual, auto, always_on)")
		c.Flags().BoolVar(&runFeed, "feed", false, "Publica o status via websocket")
		c.Flags().BoolVar(&runNoHotkey, "no-hotkey", false, "Não registra o atalho global")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Sem bandeja do sistema")
}

func applyRunFlags(cfg *config.Config) {
	if runMode != "" {
		cfg.Voice.Mode = runMode
	}
	if runFeed {
		cfg.Feed.Enabled = true
	}
	if runNoHotkey {
		cfg.Hotkey.Enabled = false
	}
}

func runApp(cfg *config.Config, frontend app.Frontend) error {
	a, err := app.New(cfg, frontend)
	if err != nil {
		printError("inicialização", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		printError("execução", err)
		return err
	}
	return nil
}
