package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shopchat/shopchat-backend/internal/bridge"
	"github.com/shopchat/shopchat-backend/internal/config"
)

type probeOptions struct {
	url      string
	origin   string
	shop     string
	message  string
	wait     time.Duration
	timeout  time.Duration
	attempts int
	interval time.Duration
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// Flag defaults follow the bridge section of the shared configuration.
	defaults, err := config.LoadBridge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using built-in bridge defaults: %v\n", err)
	}

	opts := &probeOptions{}
	cmd := &cobra.Command{
		Use:   "bridgeprobe",
		Short: "Exercise the chat bridge relay like the widget iframe would",
		Long: `bridgeprobe dials the /ws/bridge relay, performs the session handshake
and optionally sends one chat message, printing every reply as JSON.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "ws://localhost:3001/ws/bridge", "bridge relay websocket URL")
	f.StringVar(&opts.origin, "origin", "https://shopchat-demo.myshopify.com", "Origin header to present")
	f.StringVar(&opts.shop, "shop", "", "shop domain sent as X-Shopify-Shop-Domain")
	f.StringVarP(&opts.message, "message", "m", "", "chat message to send after the handshake")
	f.DurationVar(&opts.wait, "wait", defaults.SessionWait, "how long to wait for the session handshake")
	f.DurationVar(&opts.timeout, "timeout", defaults.RequestTimeout, "per request timeout")
	f.IntVar(&opts.attempts, "attempts", defaults.HandshakeAttempts, "REQUEST_SESSION_DATA attempts before falling back")
	f.DurationVar(&opts.interval, "interval", defaults.HandshakeInterval, "delay between handshake attempts")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log bridge traffic")
	return cmd
}

func runProbe(cmd *cobra.Command, opts *probeOptions) error {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	header := http.Header{}
	header.Set("Origin", opts.origin)
	if opts.shop != "" {
		header.Set("X-Shopify-Shop-Domain", opts.shop)
	}

	wait := opts.wait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: wait}
	conn, resp, err := dialer.DialContext(ctx, opts.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", opts.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", opts.url, err)
	}

	client := bridge.NewClient(bridge.NewConnTransport(conn), bridge.ClientOptions{
		RequestTimeout:    opts.timeout,
		HandshakeAttempts: opts.attempts,
		HandshakeInterval: opts.interval,
	}, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := client.Run(runCtx); err != nil {
			logger.WithError(err).Error("bridge read loop stopped")
		}
	}()

	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case env := <-client.Unsolicited():
				logger.WithFields(logrus.Fields{
					"type": env.Message.Type(),
					"id":   env.ID,
				}).Info("unsolicited bridge message")
			}
		}
	}()

	id := client.AwaitSession(ctx, wait)
	if err := printJSON(cmd, map[string]interface{}{
		"session_id": id.SessionID,
		"source":     id.Source,
		"shop":       id.Shop,
	}); err != nil {
		return err
	}

	if opts.message == "" {
		return nil
	}

	reply, err := client.Request(ctx, bridge.SendChatMessage{
		SessionID:   id.SessionID,
		Message:     opts.message,
		MessageType: "text",
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"type":    reply.Type(),
		"payload": reply,
	})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
