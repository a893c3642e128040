package netutil

import (
	"io"
	"net"
)

// IsTemporaryNetError checks if the error is a temporary network error
func IsTemporaryNetError(err error) bool {
	if err == nil {
		return false
	}

	netErr, ok := err.(net.Error)
	if !ok {
		return false
	}
	return netErr.Temporary() || netErr.Timeout()
}

// IsConnectionClosed checks if the error means connection closed
func IsConnectionClosed(_err interface{}) bool {
	err, ok := _err.(error)
	if ok && (err == io.EOF || err == io.ErrUnexpectedEOF) {
		return true
	}

	neterr, ok := _err.(net.Error)
	if !ok {
		return false
	}
	if neterr.Temporary() || neterr.Timeout() {
		return false
	}

	return true
}

// ReadAll receives from the reader until buf is filled
func ReadAll(conn io.Reader, buf []byte) error {
	for len(buf) > 0 {
		n, err := conn.Read(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err != nil {
			if IsTemporaryNetError(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// WriteAll sends to the writer until all data is written
func WriteAll(conn io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := conn.Write(data)
		if n > 0 {
			data = data[n:]
		}
		if err != nil {
			if IsTemporaryNetError(err) {
				continue
			}
			return err
		}
	}
	return nil
}
