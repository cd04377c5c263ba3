package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FranksOps/gitrecon/internal/tokenstore"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage stored API tokens",
}

var tokenAddCmd = &cobra.Command{
	Use:   "add <token>",
	Short: "Store a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTokenStore()
		if err != nil {
			return err
		}

		token := args[0]
		if !tokenstore.LooksLikeToken(token) {
			fmt.Fprintf(os.Stderr, "%s value does not look like a known token format, storing anyway\n", errTag)
		}
		if err := store.Add(token); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s stored token %s\n", okTag, tokenstore.Mask(token))
		return nil
	},
}

var tokenRemoveCmd = &cobra.Command{
	Use:   "remove <token>",
	Short: "Remove a stored token (full or masked form)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTokenStore()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s token removed\n", okTag)
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tokens in masked form",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTokenStore()
		if err != nil {
			return err
		}
		tokens, err := store.List()
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Fprintf(os.Stderr, "%s no tokens stored\n", infoTag)
			return nil
		}
		for _, t := range tokens {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", tokenstore.Mask(t))
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenAddCmd, tokenRemoveCmd, tokenListCmd)
}
