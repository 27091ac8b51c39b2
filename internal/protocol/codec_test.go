package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"type":"LOGIN"}`)))
	require.NoError(t, WriteFrame(&buf, []byte{}))

	assert.Equal(t, []byte{0, 0, 0, 16}, buf.Bytes()[:4])

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"LOGIN"}`, string(first))

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, second)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)

	_, err := ReadFrame(bytes.NewReader(header[:]))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrameRejectsOversizedFrame(t *testing.T) {
	err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	truncated := buf.Bytes()[:6]

	_, err := ReadFrame(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConnExchange(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientConn := NewConn(client)
	serverConn := NewConn(server)

	go func() {
		b, err := serverConn.ReadFrame()
		if err != nil {
			return
		}
		req, err := DecodeRequest(b)
		if err != nil {
			return
		}
		_ = serverConn.WriteResponse(Success(string(req.Type)))
	}()

	require.NoError(t, clientConn.WriteRequest(&Request{Type: RequestUpdatePairing}))
	resp, err := clientConn.ReadResponse()
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "UPDATE_PAIRING", resp.Message)
}
