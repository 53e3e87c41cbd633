package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secretaria-app/secretaria/internal/auth"
	"github.com/secretaria-app/secretaria/internal/config"
	"github.com/secretaria-app/secretaria/internal/data/db"
)

// UserCommand groups offline account management
func UserCommand(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login accounts",
	}
	cmd.AddCommand(userSetCommand(configFile))
	return cmd
}

func userSetCommand(configFile *string) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "set <username>",
		Short: "Create an account or reset its password",
		Long: `Create a login account, or replace the password of an existing one.
The password is read from --password or, when omitted, from standard input.
Example: secretaria user set ana --password s3creto`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("password") {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				password, err = readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
			}

			store, err := db.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			user, err := auth.EnsureUser(context.Background(), store, args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account '%s' is ready (id %d)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password (read from stdin when omitted)")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
