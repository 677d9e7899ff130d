package modbus

import (
	"io"
	"net"
	"sync"
)

// readChunkSize is how many bytes Connection.ReadMessage asks the
// underlying socket for when its accumulation buffer is short.
const readChunkSize = 512

// Connection frames MODBUS Messages over a duplex byte stream. Reads are
// expected to happen from a single owner (the background reader in
// mbclient, or a connection's inner pump in mbserver); writes are
// serialised internally so concurrent handler goroutines on the server
// side can each write their own response without interleaving frames.
type Connection struct {
	conn    net.Conn
	writeMu sync.Mutex

	readBuf []byte
}

// NewConnection wraps conn for MBAP framing.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{conn: conn}
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote network address of the underlying
// connection, or nil if unavailable.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadMessage decodes and returns the next Message on the stream. It
// blocks until either a full Message has arrived, the peer closed the
// connection in an orderly fashion (returns nil, io.EOF), or a
// terminal error occurs (IO failure, or a malformed frame whose length
// field cannot be reconciled with MsgMaxLength).
func (c *Connection) ReadMessage() (*Message, error) {
	for {
		msg, n, err := DecodeMessage(c.readBuf)
		if err == nil {
			c.readBuf = c.readBuf[n:]
			return msg, nil
		}

		if !IsMissingData(err) {
			// terminal framing error: the byte stream can no longer be
			// trusted to contain aligned frames.
			return nil, ErrProtocolError
		}

		chunk := make([]byte, readChunkSize)
		n, rerr := c.conn.Read(chunk)
		if n > 0 {
			c.readBuf = append(c.readBuf, chunk[:n]...)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil, io.EOF
			}
			return nil, rerr
		}
	}
}

// WriteMessage encodes and writes msg as a single frame. Concurrent
// callers are serialised so frames are never interleaved on the wire.
func (c *Connection) WriteMessage(msg *Message) error {
	buf, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err = c.conn.Write(buf)
	return err
}
