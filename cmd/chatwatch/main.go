// Command chatwatch is a terminal client for the Supreme realtime API: it follows the
// chat room and lets the broker watch incoming leads.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/app"
)

type options struct {
	server    string
	token     string
	name      string
	logLevel  string
	logFormat string
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:           "chatwatch",
		Short:         "Follow the Supreme chat room or watch for new leads from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", app.EnvString("SUPREME_SERVER_URL", "http://127.0.0.1:8080"), "server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", app.EnvString("SUPREME_TOKEN", ""), "bearer token (admin token for leads)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", app.EnvString("SUPREME_LOG_LEVEL", "warn"), "debug|info|warn|error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", app.EnvString("SUPREME_LOG_FORMAT", "pretty"), "pretty|json")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Print the room and send every stdin line as a message (/reconnect forces a reconnect)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	chatCmd.Flags().StringVar(&opts.name, "name", "", "display name; requests a visitor token when --token is empty")

	leadsCmd := &cobra.Command{
		Use:   "leads",
		Short: "Ring and print a line for every new lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeads(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	root.AddCommand(chatCmd, leadsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
