package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/timeslotseeker/internal/google"
)

func newAuthCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize read access to Google Calendar free/busy data",
		Long: `Print the Google consent URL for the account, read the authorization code
and store the resulting token. The token is refreshed automatically afterwards.

The OAuth client is read from GOOGLE_CREDENTIALS_FILE, or from GOOGLE_CLIENT_ID
and GOOGLE_CLIENT_SECRET. Tokens are stored in TIMESLOT_TOKEN_DIR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), settings.Account, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-authorize even if a token is already stored")

	return cmd
}

func runAuth(ctx context.Context, in io.Reader, out io.Writer, account string, force bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if google.HasTokenForAccount(account) && !force {
		fmt.Fprintf(out, "A token for account %q is already stored. Use --force to replace it.\n", account)
		return nil
	}

	authURL, err := google.GetAuthURL(account)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Visit this URL to authorize calendar access for account %q:\n\n%s\n\n", account, authURL)
	fmt.Fprint(out, "Enter the authorization code: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read authorization code: %w", err)
		}
		return fmt.Errorf("no authorization code entered")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return fmt.Errorf("no authorization code entered")
	}

	if err := google.SaveTokenForAccount(ctx, account, code); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token stored for account %q.\n", account)
	return nil
}
