package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print wallet notifications as they arrive",
	Long:  `Subscribes to the wallet's push notifications (payment_received, payment_sent) and prints each one until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c, err := connect(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer c.Close()

		sub := c.Notifications()
		defer sub.Close()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		fmt.Println("Listening for wallet notifications. Press Ctrl+C to stop.")
		for {
			select {
			case n, ok := <-sub.Notifications():
				if !ok {
					return
				}
				fmt.Printf("[%s] %s\n", n.Type.Token, string(n.Payload))
			case <-sigChan:
				fmt.Println("\nStopping.")
				return
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
