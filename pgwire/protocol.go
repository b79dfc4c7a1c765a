// Package pgwire implements the subset of the PostgreSQL v3 wire protocol
// that leafdb speaks: startup, cleartext password authentication and the
// simple query protocol. Extended-protocol messages are recognised so the
// server can reject them cleanly.
package pgwire

// Protocol version 3.0.
const ProtocolVersion int32 = 196608 // 3 << 16

// Special request codes sent in place of a protocol version.
const (
	CancelRequestCode int32 = 80877102
	SSLRequestCode    int32 = 80877103
	GSSENCRequestCode int32 = 80877104
)

// MaxMessageSize bounds the length of a single frontend message.
const MaxMessageSize = 16 << 20

// Frontend (client → server) message types.
const (
	MsgBind            byte = 'B'
	MsgClose           byte = 'C'
	MsgDescribe        byte = 'D'
	MsgExecute         byte = 'E'
	MsgFlush           byte = 'H'
	MsgParse           byte = 'P'
	MsgPasswordMessage byte = 'p'
	MsgQuery           byte = 'Q'
	MsgSync            byte = 'S'
	MsgTerminate       byte = 'X'
)

// Backend (server → client) message types.
const (
	MsgAuthentication     byte = 'R'
	MsgBackendKeyData     byte = 'K'
	MsgCommandComplete    byte = 'C'
	MsgDataRow            byte = 'D'
	MsgErrorResponse      byte = 'E'
	MsgEmptyQueryResponse byte = 'I'
	MsgNoticeResponse     byte = 'N'
	MsgParameterStatus    byte = 'S'
	MsgReadyForQuery      byte = 'Z'
	MsgRowDescription     byte = 'T'
)

// Authentication sub-types (carried inside 'R' messages).
const (
	AuthOk                int32 = 0
	AuthCleartextPassword int32 = 3
)

// Transaction status indicators for ReadyForQuery. leafdb has no
// transactions, so only TxIdle is ever sent.
const (
	TxIdle byte = 'I'
)

// IsExtended reports whether msgType belongs to the extended query
// protocol.
func IsExtended(msgType byte) bool {
	switch msgType {
	case MsgParse, MsgBind, MsgDescribe, MsgExecute, MsgClose, MsgFlush:
		return true
	}
	return false
}

// StartupKind distinguishes the untyped messages a client may open with.
type StartupKind int

const (
	StartupNormal StartupKind = iota
	StartupSSL
	StartupGSSENC
	StartupCancel
)

// StartupMessage is the initial message sent by the client after the TCP
// connection is established.
type StartupMessage struct {
	Kind            StartupKind
	ProtocolVersion int32
	Parameters      map[string]string

	// Set for StartupCancel.
	ProcessID int32
	SecretKey int32
}

// ColumnInfo describes a single column in a RowDescription message.
type ColumnInfo struct {
	Name         string
	TableOID     int32
	ColumnAttr   int16
	DataTypeOID  int32
	DataTypeSize int16
	TypeModifier int32
	FormatCode   int16
}

// Notice holds the fields of an ErrorResponse or NoticeResponse. Empty
// fields are not sent.
type Notice struct {
	Severity string // ERROR, FATAL, PANIC, NOTICE, WARNING
	Code     string // SQLSTATE
	Message  string
	Detail   string
	Hint     string
}

// IsError reports whether n is sent as an ErrorResponse.
func (n Notice) IsError() bool {
	switch n.Severity {
	case "ERROR", "FATAL", "PANIC":
		return true
	}
	return false
}

type noticeField struct {
	code  byte
	value string
}

func (n Notice) fields() []noticeField {
	return []noticeField{
		{'S', n.Severity},
		{'V', n.Severity}, // non-localized severity
		{'C', n.Code},
		{'M', n.Message},
		{'D', n.Detail},
		{'H', n.Hint},
	}
}
