package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
)

// DefaultMaxPayload bounds a single frame. A peer declaring a larger frame
// is cut off before any payload bytes are read.
const DefaultMaxPayload = 256 * 1024

// headerSize is the length prefix width: a 4-byte big-endian payload length.
const headerSize = 4

// ErrFrameTooLarge indicates a declared frame length above the configured
// maximum. Frame errors are connection-fatal.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum payload size")

// Encode serializes an envelope into a single length-prefixed frame.
func Encode(env *domain.Envelope) ([]byte, error) {
	return EncodeMax(env, DefaultMaxPayload)
}

// EncodeMax serializes an envelope enforcing the supplied frame bound.
func EncodeMax(env *domain.Envelope, maxPayload int) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if len(body) > maxPayload {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(frame[:headerSize], uint32(len(body)))
	copy(frame[headerSize:], body)
	return frame, nil
}

// Decoder turns a byte stream into a sequence of envelopes. It buffers
// partial reads, so frames fragmented or coalesced by the transport decode
// identically to a single contiguous read. Decoding is side-effect-free.
type Decoder struct {
	r          *bufio.Reader
	maxPayload int
}

// NewDecoder wraps a stream with the default frame bound.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderMax(r, DefaultMaxPayload)
}

// NewDecoderMax wraps a stream enforcing the supplied frame bound.
func NewDecoderMax(r io.Reader, maxPayload int) *Decoder {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Decoder{
		r:          bufio.NewReader(r),
		maxPayload: maxPayload,
	}
}

// Next blocks until one whole frame is available and returns its decoded
// envelope. It returns io.EOF once the stream ends cleanly between frames,
// io.ErrUnexpectedEOF when it ends inside one, and ErrFrameTooLarge when
// the declared length exceeds the bound.
func (d *Decoder) Next() (*domain.Envelope, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > uint32(d.maxPayload) {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}
