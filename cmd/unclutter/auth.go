package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Veraticus/unclutter/internal/cli"
	"github.com/Veraticus/unclutter/internal/common"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Gmail login used by the terminal commands",
		Long: `Manage the Gmail login used by "fetch" and "inbox".

The credential is kept in the configured token store (tokens.backend).`,
	}

	cmd.AddCommand(authLoginCmd())
	cmd.AddCommand(authLogoutCmd())
	cmd.AddCommand(authStatusCmd())

	return cmd
}

func authLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google",
		Long: `Sign in with Google.

This command will:
1. Start a local callback server
2. Open the Google consent page in your browser
3. Save the resulting tokens for future use

Add http://127.0.0.1:<port>/callback to the OAuth client's redirect URIs.`,
		RunE: runAuthLogin,
	}

	cmd.Flags().String("listen", "127.0.0.1:8085", "address of the local callback server")
	cmd.Flags().Bool("no-browser", false, "print the URL instead of opening a browser")

	return cmd
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initTokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager, err := initAuth(cfg, store)
	if err != nil {
		return err
	}
	defer manager.Close()

	listen, _ := cmd.Flags().GetString("listen")
	noBrowser, _ := cmd.Flags().GetBool("no-browser")

	cred, err := manager.LoopbackLogin(ctx, listen, cliSessionID, func(url string) {
		_, _ = fmt.Fprintln(out, cli.FormatInfo("Open this URL to sign in:"))
		_, _ = fmt.Fprintln(out, "  "+url)
		if !noBrowser {
			if browserErr := openBrowser(url); browserErr != nil {
				slog.Debug("Could not open browser", "error", browserErr)
			}
		}
	})
	if err != nil {
		return common.NewUserError("Google sign-in failed", err)
	}

	who := cred.Email
	if who == "" {
		who = "your Google account"
	}
	_, err = fmt.Fprintln(out, cli.FormatSuccess("Signed in as "+who))
	return err
}

func authLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved Gmail login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initTokenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Delete(ctx, cliSessionID); err != nil {
				return fmt.Errorf("failed to delete credential: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Signed out"))
			return err
		},
	}
}

func authStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a Gmail login is saved",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initTokenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cred, err := store.Get(ctx, cliSessionID)
			if errors.Is(err, common.ErrNotFound) {
				_, err = fmt.Fprintln(out, cli.FormatWarning(`Not signed in. Run "unclutter auth login".`))
				return err
			}
			if err != nil {
				return err
			}

			status := fmt.Sprintf("Signed in as %s (token store: %s)", cred.Email, cfg.Tokens.Backend)
			if !cred.TokenExpiry.IsZero() {
				status += fmt.Sprintf(", access token expires %s", cred.TokenExpiry.Local().Format("2006-01-02 15:04"))
			}
			_, err = fmt.Fprintln(out, cli.FormatSuccess(status))
			return err
		},
	}
}

// openBrowser tries to open url in the user's browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
