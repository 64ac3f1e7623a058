// Command hashpw prints bcrypt hashes for seeding customer and restaurant
// accounts directly in the database.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cost int
	root := &cobra.Command{
		Use:          "hashpw <password>",
		Short:        "Print the bcrypt hash of a password",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := utils.HashPassword(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	root.Flags().IntVar(&cost, "cost", 10, "bcrypt cost (4-31)")
	root.AddCommand(newVerifyCmd())
	return root
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <hash> <password>",
		Short: "Check a password against a bcrypt hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.VerifyPassword(args[0], args[1]) {
				return errors.New("password does not match")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
