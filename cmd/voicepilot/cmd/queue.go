// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     cmd
// Description: CLI commands for the persisted action queue
// Author:      Mike Stoffels
// Created:     2025-12-16
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/voicepilot/internal/app"
	"github.com/inboxpilot/voicepilot/internal/voice"
)

var (
	queueSession       string
	queueDryRun        bool
	queueConfirmDelete bool
	queueLimit         int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Fila de ações pendentes",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lista as sessões ou as ações de uma sessão",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := app.NewQueueStore(cfg)
		if err != nil {
			printError("fila", err)
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		session := sessionFor(cfg.Backend.SessionID)
		if session == "" {
			ids, err := s.Sessions(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("Nenhuma ação pendente.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSÃO\tAÇÕES")
			for _, id := range ids {
				actions, _ := s.LoadQueue(ctx, id)
				fmt.Fprintf(w, "%s\t%d\n", id, len(actions))
			}
			return w.Flush()
		}

		actions, err := s.LoadQueue(ctx, session)
		if err != nil {
			return err
		}
		if len(actions) == 0 {
			fmt.Println("Fila vazia.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tAÇÃO\tCHAVE\tTEXTO")
		for i, a := range voice.OrderActions(actions) {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, a.Action, a.Key, truncate(a.Body, 40))
		}
		return w.Flush()
	},
}

var queueDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Envia a fila ao servidor",
	Long: `Envia as ações pendentes de uma sessão ao servidor.

Com --dry-run o servidor só informa o que faria. Exclusões exigem
--confirm-delete. Só as ações com erro permanecem na fila.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		session, err := requireSession(cfg.Backend.SessionID)
		if err != nil {
			return err
		}

		s, err := app.NewQueueStore(cfg)
		if err != nil {
			printError("fila", err)
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		actions, err := s.LoadQueue(ctx, session)
		if err != nil {
			return err
		}
		if len(actions) == 0 {
			fmt.Println("Fila vazia.")
			return nil
		}

		mode := voice.DispatchExecute
		if queueDryRun {
			mode = voice.DispatchDryRun
		}
		client := app.NewBackendClient(cfg)
		resp, err := client.Dispatch(ctx, voice.DispatchRequest{
			SessionID:     session,
			Actions:       voice.OrderActions(actions),
			Mode:          mode,
			ConfirmDelete: queueConfirmDelete,
		})
		if err != nil {
			printError("envio", err)
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "AÇÃO\tCHAVE\tSTATUS\tMENSAGEM")
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Action, r.Key, r.Status, r.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if queueDryRun {
			return nil
		}
		return settleQueue(ctx, s, session, actions, resp.Results)
	},
}

var queueResultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Mostra os últimos resultados de envio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		session, err := requireSession(cfg.Backend.SessionID)
		if err != nil {
			return err
		}
		s, err := app.NewQueueStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.Results(cmd.Context(), session, queueLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "QUANDO\tAÇÃO\tCHAVE\tSTATUS\tMENSAGEM")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.DispatchedAt.Local().Format("02/01 15:04"), e.Action, e.Key, e.Status, e.Message)
		}
		return w.Flush()
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Descarta as ações pendentes de uma sessão",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		session, err := requireSession(cfg.Backend.SessionID)
		if err != nil {
			return err
		}
		s, err := app.NewQueueStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.SaveQueue(cmd.Context(), session, nil); err != nil {
			return err
		}
		fmt.Println("Fila descartada.")
		return nil
	},
}

func init() {
	queueCmd.PersistentFlags().StringVar(&queueSession, "session", "", "ID da sessão (padrão: backend.session_id)")
	queueDispatchCmd.Flags().BoolVar(&queueDryRun, "dry-run", false, "Só simula a execução")
	queueDispatchCmd.Flags().BoolVar(&queueConfirmDelete, "confirm-delete", false, "Autoriza exclusões")
	queueResultsCmd.Flags().IntVar(&queueLimit, "limit", 20, "Número de resultados")

	queueCmd.AddCommand(queueListCmd, queueDispatchCmd, queueResultsCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}

func sessionFor(configured string) string {
	if queueSession != "" {
		return queueSession
	}
	return configured
}

// requireSession falls back to the id the assistant generated and saved
// when neither --session nor backend.session_id is set
func requireSession(configured string) (string, error) {
	if session := sessionFor(configured); session != "" {
		return session, nil
	}
	if path, err := voice.DefaultSettingsPath(); err == nil {
		if id, err := voice.NewFileSettings(path).LoadSessionID(); err == nil && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("--session is required")
}

// settleQueue records results and keeps only the failed actions and those
// the backend did not report on
func settleQueue(ctx context.Context, s voice.QueueStore, session string, actions []voice.ActionRecord, results []voice.DispatchResult) error {
	if err := s.RecordResults(ctx, session, results); err != nil {
		return fmt.Errorf("record results: %w", err)
	}
	return s.SaveQueue(ctx, session, voice.RemainingActions(actions, results))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
