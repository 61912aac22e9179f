package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/tomkarw/kiwi-store/rpc/common"
	"github.com/tomkarw/kiwi-store/rpc/transport"
	"github.com/tomkarw/kiwi-store/rpc/transport/base"
)

const (
	defaultBufferSize = 512 * 1024 // 512 KB
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create tcp socket: %v", err)
	}

	return listener, nil
}

// UpgradeConnection applies performance settings from SocketConf to an
// accepted TCP connection
func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return tuneTCPConn(conn, config.Transport)
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new TCP server transport
func NewTCPServerTransport(config common.ServerConfig) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, defaultBufferSize, config.Transport.MaxWorkersPerConn)
}

// --------------------------------------------------------------------------
// Shared Helpers
// --------------------------------------------------------------------------

// tuneTCPConn applies SocketConf settings to a TCP connection. Connections
// of other types are left untouched.
func tuneTCPConn(conn net.Conn, sc common.SocketConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(sc.TCPNoDelay); err != nil {
		return err
	}

	if sc.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(sc.WriteBufferSize); err != nil {
			return err
		}
	}

	if sc.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(sc.ReadBufferSize); err != nil {
			return err
		}
	}

	if sc.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(sc.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if sc.TCPLingerSec > 0 {
		if err := tcpConn.SetLinger(sc.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}
