package command

import (
	"bytes"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/swapshelf/swapshelf/internal/sec"
	"github.com/swapshelf/swapshelf/internal/storage"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands",
	}
	cmd.AddCommand(
		userCreateCommand(),
		userDeleteCommand(),
	)
	return cmd
}

func userCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create user",
		Long: "Creates a user entry for the provided username and password. Passwords may be\n" +
			"provided via stdin or through the interactive prompt.",

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, pool, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			name := args[0]
			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}

			conn, err := pool.Bind(cmd.Context(), storage.AnonymousID)
			if err != nil {
				return err
			}
			defer conn.Release()

			digest := sec.HashCredential(name, string(passwd))
			if _, err = conn.CreateUser(cmd.Context(), name, digest[:]); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "created user", slog.String("name", name))
			return nil
		},
	}
}

func userDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete user",
		Long: "Permanently deletes the user and all of their game listings. " +
			"This operation is permanent and irreversible.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, pool, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			name := args[0]
			logger = logger.With(slog.String("name", name))
			user, err := pool.GetUserByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			resp, err := prompt("Are you sure you want to delete this user? [y|N] ", false)
			if !bytes.Equal(resp, []byte{'y'}) || err != nil {
				logger.InfoContext(cmd.Context(), "aborted user deletion")
				return err
			}

			// The games delete policy only matches rows owned by the bound
			// caller, so the connection is bound as the user being removed.
			conn, err := pool.Bind(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			defer conn.Release()

			if err = conn.DeleteUserGames(cmd.Context(), user.ID); err != nil {
				return err
			}
			if err = conn.DeleteUser(cmd.Context(), user.ID); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "user deleted")
			return nil
		},
	}
}
