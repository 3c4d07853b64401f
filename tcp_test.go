package main

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	msg := []byte{0xff, 'S', 'M', 'B', 0x72, 1, 2, 3}
	go func() {
		writeMessage(client, msg)
	}()

	got, err := readMessage(server)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestReadMessageEOF(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	client.Close()

	// A clean close surfaces as bare io.EOF so the read loop can tell it
	// apart from wire errors.
	_, err := readMessage(server)
	assert.Equal(t, io.EOF, err)
}

func TestReadMessageBadSessionType(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go client.Write([]byte{0x85, 0, 0, 0})
	_, err := readMessage(server)
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestReadMessageTruncatedBody(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		client.Write([]byte{0, 0, 0, 10, 1, 2, 3})
		client.Close()
	}()
	_, err := readMessage(server)
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestWriteMessageTooLong(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	err := writeMessage(client, make([]byte, maxMessageSize))
	assert.Error(t, err)
}
