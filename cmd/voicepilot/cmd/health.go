package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	coregrpc "github.com/inboxpilot/voicepilot/pkg/core/grpc"
	"github.com/inboxpilot/voicepilot/pkg/core/health"
	"github.com/inboxpilot/voicepilot/pkg/core/version"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	healthTimeout time.Duration
	healthLocal   bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Verifica servidor e endpoint de saúde",
	Long: `Verifica se o servidor InboxPilot responde em /health.

Com --local consulta também o endpoint gRPC de saúde de um assistente
em execução (health.host:health.port) e, se ativo, o feed de status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		r := health.NewRegistry("voicepilot-cli", version.Release)
		r.Register(health.HTTPCheck("backend", strings.TrimRight(cfg.Backend.BaseURL, "/")+"/health", healthTimeout))
		if healthLocal {
			addr := cfg.HealthAddress()
			r.RegisterFunc("assistant", func(ctx context.Context) health.CheckResult {
				clientCfg := coregrpc.DefaultClientConfig(addr)
				clientCfg.Timeout = healthTimeout
				st, err := coregrpc.CheckHealth(ctx, clientCfg, "")
				if err != nil {
					return health.CheckResult{Status: health.StatusUnhealthy, Message: err.Error()}
				}
				if st != healthpb.HealthCheckResponse_SERVING {
					return health.CheckResult{Status: health.StatusUnhealthy, Message: st.String()}
				}
				return health.CheckResult{Status: health.StatusHealthy, Message: st.String()}
			})
			if cfg.Feed.Enabled {
				r.Register(health.TCPCheck("status-feed", cfg.FeedAddress(), healthTimeout))
			}
		}

		report := r.CheckWithTimeout(healthTimeout)
		for _, c := range report.Checks {
			fmt.Printf("%-10s %-10s %-8s %s\n", c.Name, c.Status, c.Duration.Round(time.Millisecond), c.Message)
		}
		if report.Status != health.StatusHealthy {
			return fmt.Errorf("status: %s", report.Status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "Tempo máximo por verificação")
	healthCmd.Flags().BoolVar(&healthLocal, "local", false, "Consulta o assistente em execução")
	rootCmd.AddCommand(healthCmd)
}
