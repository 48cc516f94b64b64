package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var invoiceDescription string

var invoiceCmd = &cobra.Command{
	Use:   "invoice <amount_msats>",
	Short: "Request a new invoice from the wallet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Printf("Error: invalid amount %q\n", args[0])
			return
		}

		ctx := context.Background()
		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		description := invoiceDescription
		if description == "" {
			description = GetConfig().Zap.DefaultComment
		}

		res := c.MakeInvoice(ctx, requestTimeout(), amount, description, "", nil, nil)
		if res.IsError {
			fmt.Printf("Error: %v\n", res.Err)
			return
		}

		tx := res.Value
		fmt.Printf("Invoice: %s\n", tx.Invoice)
		fmt.Printf("Payment Hash: %s\n", tx.PaymentHash)
	},
}

func init() {
	invoiceCmd.Flags().StringVar(&invoiceDescription, "description", "", "invoice description")
	rootCmd.AddCommand(invoiceCmd)
}
