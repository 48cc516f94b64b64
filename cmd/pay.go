package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var payCmd = &cobra.Command{
	Use:   "pay <invoice>",
	Short: "Pay a BOLT11 invoice",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		res := c.PayInvoice(ctx, requestTimeout(), args[0], nil, nil)
		if res.IsError {
			fmt.Printf("Error: %v\n", res.Err)
			return
		}

		fmt.Printf("Paid. Preimage: %s\n", res.Value.Preimage)
		if res.Value.HasFeesPaid {
			fmt.Printf("Fees paid: %d msats\n", res.Value.FeesPaid)
		}
	},
}

func init() {
	rootCmd.AddCommand(payCmd)
}
