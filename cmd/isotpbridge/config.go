package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"canio/isotp-go/pkg/channel"
	"canio/isotp-go/pkg/isotp"
)

// isotpbridge config.toml key mapping.
type fileConfig struct {
	LogLevel string             `toml:"log_level"`
	Left     endpointFileConfig `toml:"left"`
	Right    endpointFileConfig `toml:"right"`
}

type endpointFileConfig struct {
	Transport string `toml:"transport"` // tcp | udp | quic | ws | nats
	Address   string `toml:"address"`
	Server    bool   `toml:"server"`
	Path      string `toml:"path"` // ws only

	URL              string `toml:"url"` // nats only
	PublishSubject   string `toml:"publish_subject"`
	SubscribeSubject string `toml:"subscribe_subject"`

	Mode      string `toml:"mode"` // classic | extended
	BlockSize int    `toml:"block_size"`
	STmin     int    `toml:"stmin"`
	Padding   bool   `toml:"padding"`

	FlowControlTimeoutMs int `toml:"flow_control_timeout_ms"`
}

// endpointConfig is one fully-resolved side of the bridge.
type endpointConfig struct {
	transport string
	address   string
	server    bool
	path      string

	url              string
	publishSubject   string
	subscribeSubject string

	adapter   isotp.Config
	fcTimeout time.Duration
}

type bridgeConfig struct {
	logLevel string
	left     endpointConfig
	right    endpointConfig
}

func defaultEndpointConfig() endpointConfig {
	return endpointConfig{
		transport: "tcp",
		adapter:   isotp.DefaultConfig(),
	}
}

// loadConfig reads a TOML bridge config, overlaying defined keys onto
// defaults.
func loadConfig(path string) (bridgeConfig, error) {
	cfg := bridgeConfig{
		logLevel: "info",
		left:     defaultEndpointConfig(),
		right:    defaultEndpointConfig(),
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return bridgeConfig{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("log_level") {
		cfg.logLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}

	if err := overlayEndpoint(&cfg.left, "left", raw.Left, meta); err != nil {
		return bridgeConfig{}, err
	}
	if err := overlayEndpoint(&cfg.right, "right", raw.Right, meta); err != nil {
		return bridgeConfig{}, err
	}

	return cfg, nil
}

func overlayEndpoint(cfg *endpointConfig, table string, raw endpointFileConfig, meta toml.MetaData) error {
	if meta.IsDefined(table, "transport") {
		cfg.transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined(table, "address") {
		cfg.address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined(table, "server") {
		cfg.server = raw.Server
	}
	if meta.IsDefined(table, "path") {
		cfg.path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined(table, "url") {
		cfg.url = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined(table, "publish_subject") {
		cfg.publishSubject = strings.TrimSpace(raw.PublishSubject)
	}
	if meta.IsDefined(table, "subscribe_subject") {
		cfg.subscribeSubject = strings.TrimSpace(raw.SubscribeSubject)
	}

	if meta.IsDefined(table, "mode") {
		switch strings.ToLower(strings.TrimSpace(raw.Mode)) {
		case "classic":
			cfg.adapter.Mode = isotp.ModeClassic
		case "extended":
			cfg.adapter.Mode = isotp.ModeExtended
		default:
			return fmt.Errorf("load bridge config: [%s] unknown mode %q (expected classic or extended)", table, raw.Mode)
		}
	}
	if meta.IsDefined(table, "block_size") {
		if raw.BlockSize < 0 || raw.BlockSize > 255 {
			return fmt.Errorf("load bridge config: [%s] block_size %d out of range [0,255]", table, raw.BlockSize)
		}
		cfg.adapter.BlockSize = uint8(raw.BlockSize)
	}
	if meta.IsDefined(table, "stmin") {
		if raw.STmin < 0 || raw.STmin > 255 {
			return fmt.Errorf("load bridge config: [%s] stmin %d out of range [0,255]", table, raw.STmin)
		}
		cfg.adapter.SeparationTime = uint8(raw.STmin)
	}
	if meta.IsDefined(table, "padding") {
		cfg.adapter.PaddingEnabled = raw.Padding
	}
	if meta.IsDefined(table, "flow_control_timeout_ms") {
		if raw.FlowControlTimeoutMs < 0 {
			return fmt.Errorf("load bridge config: [%s] flow_control_timeout_ms must be >= 0", table)
		}
		cfg.fcTimeout = time.Duration(raw.FlowControlTimeoutMs) * time.Millisecond
	}

	switch cfg.transport {
	case "tcp", "udp", "quic", "ws":
		if cfg.address == "" {
			return fmt.Errorf("load bridge config: [%s] address is required for %s", table, cfg.transport)
		}
	case "nats":
		if cfg.publishSubject == "" || cfg.subscribeSubject == "" {
			return fmt.Errorf("load bridge config: [%s] publish_subject and subscribe_subject are required for nats", table)
		}
	default:
		return fmt.Errorf("load bridge config: [%s] unknown transport %q", table, cfg.transport)
	}

	return nil
}

// buildChannel constructs the configured transport for one endpoint.
func buildChannel(cfg endpointConfig) (channel.FrameChannel, error) {
	switch cfg.transport {
	case "tcp":
		return channel.NewTCPChannel(channel.TCPChannelConfig{
			Address:  cfg.address,
			IsServer: cfg.server,
		})
	case "udp":
		return channel.NewUDPChannel(channel.UDPChannelConfig{
			Address:  cfg.address,
			IsServer: cfg.server,
		})
	case "quic":
		return channel.NewQUICChannel(channel.QUICChannelConfig{
			Address:  cfg.address,
			IsServer: cfg.server,
		})
	case "ws":
		return channel.NewWSChannel(channel.WSChannelConfig{
			Address:  cfg.address,
			Path:     cfg.path,
			IsServer: cfg.server,
		})
	case "nats":
		return channel.NewNATSChannel(channel.NATSChannelConfig{
			URL:              cfg.url,
			PublishSubject:   cfg.publishSubject,
			SubscribeSubject: cfg.subscribeSubject,
			Name:             "isotpbridge",
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.transport)
	}
}
