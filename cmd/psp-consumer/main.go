// psp-consumer is a demo pharmacy-side consumer: it connects to the relay
// for one TelematikID, drains the mailbox and prints every notification as
// it arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"psprelay/pkg/pspclient"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	url := flag.String("url", "ws://localhost:8080", "relay base URL (ws or wss scheme)")
	id := flag.String("id", "", "TelematikID to consume for (required)")
	token := flag.String("token", "", "X-Authorization token for authenticated relays")
	flag.Parse()

	if *id == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*url, *id, *token); err != nil {
		slog.Error("Consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(url, id, token string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := pspclient.Dial(ctx, pspclient.Config{
		URL:         url,
		TelematikID: id,
		Token:       token,
		Reconnect:   true,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	// Pick up whatever queued while we were offline.
	if err := client.RequestQueued(); err != nil {
		return err
	}
	slog.Info("Connected, waiting for notifications", "telematikId", id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-client.Messages():
			if !ok {
				return nil
			}
			fmt.Printf("message %s option=%s transaction=%q note=%q payload=%d bytes\n",
				m.ID, m.DeliveryOption, m.TransactionID, m.Note, len(m.Payload))
		}
	}
}
