package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// maxMessageSize is one past the largest length the 3-byte length field
// of the NetBIOS session header can carry; the first header byte must be
// zero.
const maxMessageSize = 1 << 24

// readMessage reads one SMB message. Each message travels behind a
// 4-byte NetBIOS session header carrying the payload length.
func readMessage(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("error reading session header: %w", err)
	}
	if hdr[0] != 0 {
		return nil, errors.New("unexpected session message type")
	}

	length := binary.BigEndian.Uint32(hdr[:])
	msg := make([]byte, length)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return nil, fmt.Errorf("error reading message: %w", err)
	}
	return msg, nil
}

// writeMessage writes one SMB message behind a NetBIOS session header.
func writeMessage(conn net.Conn, msg []byte) error {
	if len(msg) >= maxMessageSize {
		return errors.New("message too long")
	}

	buf := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(msg)))
	copy(buf[4:], msg)

	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}
