// isotpbridge relays ISO-TP payloads between two frame transports.
// Each side is a full transfer endpoint: payloads reassembled on one
// side are segmented out the other, in both directions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"canio/isotp-go/internal/logger"
	"canio/isotp-go/pkg/isotp"
	"canio/isotp-go/pkg/transfer"
)

func main() {
	configPath := flag.String("config", "bridge.toml", "path to the bridge TOML config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := parseLevel(cfg.logLevel)
	log := logger.NewNamedLogger("bridge", level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runBridge(ctx, cfg, level, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bridge stopped: %v", err)
		os.Exit(1)
	}
	log.Info("bridge stopped")
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func runBridge(ctx context.Context, cfg bridgeConfig, level logger.Level, log logger.Logger) error {
	leftCh, err := buildChannel(cfg.left)
	if err != nil {
		return fmt.Errorf("left channel: %w", err)
	}
	defer leftCh.Close()

	rightCh, err := buildChannel(cfg.right)
	if err != nil {
		return fmt.Errorf("right channel: %w", err)
	}
	defer rightCh.Close()

	leftSplit := newSplitChannel(leftCh, logger.NewNamedLogger("left", level))
	rightSplit := newSplitChannel(rightCh, logger.NewNamedLogger("right", level))

	leftToRight, err := makeRelay(ctx, "left->right", cfg.left, cfg.right, leftSplit, rightSplit, level, log)
	if err != nil {
		return err
	}
	rightToLeft, err := makeRelay(ctx, "right->left", cfg.right, cfg.left, rightSplit, leftSplit, level, log)
	if err != nil {
		return err
	}

	log.Info("bridge running: left=%s right=%s", cfg.left.transport, cfg.right.transport)

	errs := make(chan error, 4)
	go func() { errs <- leftSplit.run(ctx) }()
	go func() { errs <- rightSplit.run(ctx) }()
	go func() { errs <- leftToRight.Run(ctx) }()
	go func() { errs <- rightToLeft.Run(ctx) }()

	return <-errs
}

// makeRelay builds one direction of the bridge: a transfer server
// reassembling payloads from the ingress side and a transfer client
// re-segmenting them onto the egress side.
func makeRelay(ctx context.Context, name string, in, out endpointConfig,
	inSplit, outSplit *splitChannel, level logger.Level, log logger.Logger) (*transfer.Server, error) {

	client, err := transfer.NewClient(transfer.ClientConfig{
		Adapter:            isotp.New(out.adapter),
		Channel:            outSplit.fcView(),
		FlowControlTimeout: out.fcTimeout,
		Logger:             logger.NewNamedLogger(name+"/tx", level),
	})
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", name, err)
	}

	server, err := transfer.NewServer(transfer.ServerConfig{
		Adapter: isotp.New(in.adapter),
		Channel: inSplit.dataView(),
		Handler: func(payload []byte) {
			if err := client.Send(ctx, payload); err != nil {
				log.Error("%s relay failed: %v", name, err)
				return
			}
			log.Debug("%s relayed %d bytes", name, len(payload))
		},
		Logger: logger.NewNamedLogger(name+"/rx", level),
	})
	if err != nil {
		return nil, fmt.Errorf("%s server: %w", name, err)
	}

	return server, nil
}
