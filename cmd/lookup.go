package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <payment_hash_or_invoice>",
	Short: "Look up a transaction by payment hash or invoice",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		arg := args[0]
		paymentHash, invoice := "", ""
		if len(arg) == 64 {
			paymentHash = arg
		} else {
			invoice = arg
		}

		res := c.LookupInvoice(ctx, requestTimeout(), paymentHash, invoice)
		if res.IsError {
			fmt.Printf("Error: %v\n", res.Err)
			return
		}

		printTransaction(res.Value)
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
