package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxFrameSize bounds a single framed message
const MaxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned for frames over MaxFrameSize
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

const headerSize = 4

// ReadFrame reads one message prefixed by its 4-byte big-endian length
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload with its 4-byte big-endian length prefix
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)
	_, err := w.Write(buf)
	return err
}

// Conn exchanges framed envelopes over a byte stream.
// Reads and writes may happen from different goroutines.
type Conn struct {
	r  *bufio.Reader
	w  io.Writer
	mu sync.Mutex
}

// NewConn wraps rw for framed reads and writes
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{r: bufio.NewReader(rw), w: rw}
}

// ReadFrame reads the next raw frame
func (c *Conn) ReadFrame() ([]byte, error) {
	return ReadFrame(c.r)
}

// WriteResponse frames and writes a response
func (c *Conn) WriteResponse(resp *Response) error {
	b, err := resp.Encode()
	if err != nil {
		return err
	}
	return c.writeFrame(b)
}

// WriteRequest frames and writes a request
func (c *Conn) WriteRequest(req *Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.writeFrame(b)
}

// ReadResponse reads and decodes the next response
func (c *Conn) ReadResponse() (*Response, error) {
	b, err := c.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeResponse(b)
}

func (c *Conn) writeFrame(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteFrame(c.w, b)
}
