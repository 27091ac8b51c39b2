package cli

import (
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var checkTCP bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long: `Query the HTTP health endpoint. With --tcp, also open and close a
session on the matchmaking port.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			if err := client.Get("/api/v1/health", &result); err != nil {
				return err
			}

			if checkTCP {
				session, err := Dial(cfg.Addr, cfg.Timeout)
				if err != nil {
					return err
				}
				_ = session.Close()
				result.TCP = "reachable"
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkTCP, "tcp", false, "Also check the TCP matchmaking port")

	return cmd
}
