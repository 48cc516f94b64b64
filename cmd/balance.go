package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the wallet's current balance",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		res := c.GetBalance(ctx, requestTimeout())
		if res.IsError {
			fmt.Printf("Error: %v\n", res.Err)
			return
		}
		fmt.Printf("Balance: %d msats\n", res.Value)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
