package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket tuning (shared between server and client transports)
// --------------------------------------------------------------------------

// SocketConf holds transport tuning knobs. TCP-specific fields are ignored
// by the unix transport.
type SocketConf struct {
	WriteBufferSize   int // socket write buffer in bytes (0 = OS default)
	ReadBufferSize    int // socket read buffer in bytes (0 = OS default)
	MaxWorkersPerConn int // concurrent request workers per connection (server side)

	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for a kiwi-store server.
type ServerConfig struct {
	// Endpoint the transport listens on (host:port for tcp, a socket path
	// for unix)
	Endpoint string

	// Storage engine selection
	Engine     string // kiwi, bolt or memory
	DataDir    string
	SyncWrites bool

	// Dispatch layer sizing
	Lanes         int // worker lanes (0 = runtime.NumCPU)
	QueueCapacity int // per-lane queue capacity (0 = library default)

	// Request handling
	TimeoutSecond int64

	// Optional HTTP endpoint exposing Prometheus metrics and pprof
	// (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string

	// Transport tuning
	Transport SocketConf
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	addSection("Storage")
	addField("Engine", c.Engine)
	addField("Data Dir", c.DataDir)
	addField("Sync Writes", strconv.FormatBool(c.SyncWrites))

	addSection("Dispatch")
	if c.Lanes > 0 {
		addField("Lanes", strconv.Itoa(c.Lanes))
	} else {
		addField("Lanes", "auto (NumCPU)")
	}
	if c.QueueCapacity > 0 {
		addField("Queue Capacity", strconv.Itoa(c.QueueCapacity))
	} else {
		addField("Queue Capacity", "default")
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
	Transport              SocketConf
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
