package pgwire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads PostgreSQL wire protocol messages from a connection.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps an io.Reader for reading PG protocol messages.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadStartup reads the initial untyped message from the client. For SSL
// and GSSAPI encryption requests the caller should refuse and call
// ReadStartup again.
func (r *Reader) ReadStartup() (*StartupMessage, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read startup length: %w", err)
	}
	length := int32(binary.BigEndian.Uint32(hdr[:]))
	if length < 8 || length > MaxMessageSize {
		return nil, fmt.Errorf("invalid startup message length: %d bytes", length)
	}

	payload := make([]byte, length-4)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("read startup payload: %w", err)
	}
	version := int32(binary.BigEndian.Uint32(payload[:4]))

	switch version {
	case SSLRequestCode:
		return &StartupMessage{Kind: StartupSSL}, nil
	case GSSENCRequestCode:
		return &StartupMessage{Kind: StartupGSSENC}, nil
	case CancelRequestCode:
		if len(payload) != 12 {
			return nil, fmt.Errorf("cancel request has %d bytes", len(payload))
		}
		return &StartupMessage{
			Kind:      StartupCancel,
			ProcessID: int32(binary.BigEndian.Uint32(payload[4:8])),
			SecretKey: int32(binary.BigEndian.Uint32(payload[8:12])),
		}, nil
	case ProtocolVersion:
	default:
		return nil, fmt.Errorf("unsupported protocol version: %d.%d", version>>16, version&0xFFFF)
	}

	msg := &StartupMessage{
		Kind:            StartupNormal,
		ProtocolVersion: version,
		Parameters:      make(map[string]string),
	}
	params := payload[4:]
	for len(params) > 1 {
		key, rest := readCString(params)
		if len(rest) == 0 {
			break
		}
		value, rest := readCString(rest)
		msg.Parameters[key] = value
		params = rest
	}
	return msg, nil
}

// ReadMessage reads a typed message (1-byte type + int32 length + payload).
func (r *Reader) ReadMessage() (msgType byte, payload []byte, err error) {
	msgType, err = r.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return 0, nil, fmt.Errorf("read message length: %w", err)
	}
	length := int32(binary.BigEndian.Uint32(hdr[:]))
	if length < 4 || length > MaxMessageSize {
		return 0, nil, fmt.Errorf("invalid message length: %d", length)
	}

	payload = make([]byte, length-4)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return 0, nil, fmt.Errorf("read message payload: %w", err)
	}
	return msgType, payload, nil
}

// CString returns b up to its first null byte, the way the protocol
// terminates strings in Query and PasswordMessage payloads.
func CString(b []byte) string {
	s, _ := readCString(b)
	return s
}

// readCString reads a null-terminated string from b, returning the string
// and the remaining bytes after the null terminator.
func readCString(b []byte) (string, []byte) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:]
		}
	}
	return string(b), nil
}
