package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe the connected wallet: credentials, metadata, and negotiated encryption",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		res := c.DescribeWallet(ctx, requestTimeout())
		if res.IsError {
			fmt.Printf("Error: %v\n", res.Err)
			return
		}

		d := res.Value
		fmt.Printf("Wallet Pubkey: %s\n", d.Info.Pubkey)
		fmt.Printf("Alias:         %s\n", d.Info.Alias)
		fmt.Printf("Encryption:    %s\n", d.ActiveEncryption.WireName())
		if d.Metadata.DefaultedToNIP04 {
			fmt.Println("  (wallet did not advertise encryption support; defaulted to NIP-04)")
		}
		fmt.Println("Capabilities:")
		for _, cap := range d.Metadata.Capabilities {
			fmt.Printf("  - %s\n", cap.Token)
		}
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
