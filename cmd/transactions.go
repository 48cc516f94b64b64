package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/client"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

var (
	txLimit  int64
	txUnpaid bool
)

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List recent wallet transactions",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		params := client.ListTransactionsParams{Unpaid: txUnpaid}
		if txLimit > 0 {
			params.Limit = &txLimit
		}

		res := c.ListTransactions(ctx, requestTimeout(), params)
		if res.IsError {
			fmt.Printf("Error: %v\n", res.Err)
			return
		}

		if len(res.Value) == 0 {
			fmt.Println("No transactions found.")
			return
		}
		for i, tx := range res.Value {
			fmt.Printf("%d.\n", i+1)
			printTransaction(tx)
			fmt.Println()
		}
	},
}

func init() {
	transactionsCmd.Flags().Int64Var(&txLimit, "limit", 20, "maximum number of transactions to return")
	transactionsCmd.Flags().BoolVar(&txUnpaid, "unpaid", false, "include unpaid/pending invoices")
	rootCmd.AddCommand(transactionsCmd)
}

func printTransaction(tx types.Transaction) {
	fmt.Printf("  Direction:    %s\n", tx.Direction)
	if tx.HasState {
		fmt.Printf("  State:        %s\n", tx.State)
	}
	fmt.Printf("  Amount:       %d msats\n", tx.Amount)
	if tx.HasFeesPaid {
		fmt.Printf("  Fees Paid:    %d msats\n", tx.FeesPaid)
	}
	if tx.Description != "" {
		fmt.Printf("  Description:  %s\n", tx.Description)
	}
	if tx.PaymentHash != "" {
		fmt.Printf("  Payment Hash: %s\n", tx.PaymentHash)
	}
	fmt.Printf("  Created At:   %d\n", tx.CreatedAt)
	if tx.HasSettledAt {
		fmt.Printf("  Settled At:   %d\n", tx.SettledAt)
	}
}
