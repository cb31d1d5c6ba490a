package config

import "time"

// DefaultAddr is the default listen address for the WebSocket server.
const DefaultAddr = "127.0.0.1:8765"

// DefaultOperatorName is the receiver name clients use to address the operator
// and the sender recorded for operator replies.
const DefaultOperatorName = "server"

// Handshake and frame throttling defaults.
const (
	DefaultAuthRatePerSec  = 5.0
	DefaultAuthBurst       = 10
	DefaultFrameRatePerSec = 50.0
	DefaultFrameBurst      = 100
)

// DefaultPingInterval is how often the server pings each client.
const DefaultPingInterval = 30 * time.Second

// EnvFile is the optional dotenv file read before environment overrides apply.
const EnvFile = ".env"
