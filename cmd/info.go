package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the wallet's advertised capabilities",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		res := c.GetInfo(ctx, requestTimeout())
		if res.IsError {
			fmt.Printf("Error: %v\n", res.Err)
			return
		}

		info := res.Value
		fmt.Printf("Alias:    %s\n", info.Alias)
		fmt.Printf("Pubkey:   %s\n", info.Pubkey)
		fmt.Printf("Network:  %s\n", info.Network)
		if info.HasBlockHeight {
			fmt.Printf("Block:    %d\n", info.BlockHeight)
		}
		fmt.Println("Capabilities:")
		for _, cap := range info.Capabilities {
			fmt.Printf("  - %s\n", cap.Token)
		}
		if len(info.Notifications) > 0 {
			fmt.Println("Notifications:")
			for _, n := range info.Notifications {
				fmt.Printf("  - %s\n", n.Token)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
