package realtime

import "time"

// Security/performance limits for the change channel.
const (
	// Max bytes per websocket frame read (hard limit). Clients only send control frames.
	maxFrameBytes = 8 << 10 // 8 KiB

	// Max subscriptions held by one connection.
	maxSubscriptionsPerConn = 8

	// Max channel name length (runes).
	maxChannelNameChars = 128
)

const (
	// Heartbeat defaults (overridable through GatewayConfig).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection inbound frame limits (frames per window).
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second
)
