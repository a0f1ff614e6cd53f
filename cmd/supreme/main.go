package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"aidanwoods.dev/go-paseto"
	"github.com/spf13/cobra"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/app"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/security/password"
)

func main() {
	root := &cobra.Command{
		Use:           "supreme",
		Short:         "Supreme Imóveis backend: chat, lead capture, WhatsApp proxy and realtime changes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and realtime server (configured through SUPREME_* env vars)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run()
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the argon2id hash for SUPREME_ADMIN_PASSWORD_HASH (reads the password from stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return hashPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	keyCmd := &cobra.Command{
		Use:   "gen-key",
		Short: "Print a fresh PASETO v4 secret key for SUPREME_PASETO_V4_SECRET_KEY_HEX",
		Run: func(cmd *cobra.Command, args []string) {
			key := paseto.NewV4AsymmetricSecretKey()
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), key.ExportHex())
		},
	}

	root.AddCommand(serveCmd, hashCmd, keyCmd)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func hashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	pw := strings.TrimRight(line, "\r\n")

	hasher, err := password.HasherFromEnv()
	if err != nil {
		return err
	}
	if err := hasher.Validate(pw); err != nil {
		return err
	}
	encoded, err := hasher.Hash(pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, encoded)
	return err
}
