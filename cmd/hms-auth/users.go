package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hms/hospital-auth/internal/core/ports"
	"github.com/hms/hospital-auth/internal/core/service"
	"github.com/hms/hospital-auth/internal/pkg/password"
)

func createUserCmd() *cobra.Command {
	var (
		username string
		role     string
		plain    string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a staff account unless the username already exists",
		Long: "Create a staff account. Existing usernames are left untouched, so the command\n" +
			"is safe to run on every deploy to seed the first administrator.\n" +
			"Pass --password - to read the password from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if plain == "-" {
				p, err := readSecret(cmd.InOrStdin())
				if err != nil {
					return err
				}
				plain = p
			}

			cfg, log, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			be, err := openBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer be.close()

			users := service.NewUserService(be.creds, password.NewHasher(cfg.BcryptCost), be.audit, log)
			u, created, err := users.Seed(ctx, ports.CreateUserInput{
				Username: username,
				Password: plain,
				Role:     role,
				Active:   !inactive,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !created {
				fmt.Fprintf(out, "User %s already exists (role %s), skipped.\n", u.Username, u.Role)
				return nil
			}
			fmt.Fprintf(out, "Created user %s with role %s (id %s).\n", u.Username, u.Role, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&role, "role", "", "One of Admin, Doctor, Nurse, Clerk")
	cmd.Flags().StringVar(&plain, "password", "", "Initial password, or - to read it from stdin")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the account deactivated")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password",
		Long:  "Print the bcrypt hash of a password. Without an argument the password is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				p, err := readSecret(cmd.InOrStdin())
				if err != nil {
					return err
				}
				plain = p
			}
			if err := password.Validate(plain); err != nil {
				return err
			}

			hash, err := password.NewHasher(cost).Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 12, "bcrypt cost factor")
	return cmd
}

// readSecret returns the first line of r without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
