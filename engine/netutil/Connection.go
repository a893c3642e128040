package netutil

import (
	"net"

	"github.com/xiaonanln/netconnutil"
)

// Connection is the required interface for connections used by PacketConnection
type Connection interface {
	netconnutil.FlushableConn
}

// NetConn converts a net.Conn to a Connection with a no-op Flush
type NetConn struct {
	net.Conn
}

// Flush flushes the connection
func (n NetConn) Flush() error {
	return nil
}

// NewBufferedConnection creates a buffered connection with sane error handling
func NewBufferedConnection(conn net.Conn, readBufSize, writeBufSize int) Connection {
	conn = netconnutil.NewNoTempErrorConn(conn)
	return netconnutil.NewBufferedConn(conn, readBufSize, writeBufSize)
}
