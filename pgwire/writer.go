package pgwire

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Writer buffers backend messages for one connection. Nothing reaches the
// client until Flush.
type Writer struct {
	w   *bufio.Writer
	buf []byte // message under construction
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   bufio.NewWriter(w),
		buf: make([]byte, 0, 1024),
	}
}

// Flush sends everything written so far.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteEncryptionRefused answers an SSL or GSSAPI encryption request with
// a bare 'N'. The client then continues in plaintext.
func (w *Writer) WriteEncryptionRefused() error {
	_, err := w.w.Write([]byte{'N'})
	return err
}

// WriteAuth sends an Authentication message with the given sub-type,
// AuthOk or AuthCleartextPassword.
func (w *Writer) WriteAuth(code int32) error {
	w.start(MsgAuthentication)
	w.putInt32(code)
	return w.end()
}

// Parameter is one run-time parameter reported by ParameterStatus.
type Parameter struct {
	Name, Value string
}

// WriteStartupComplete finishes a successful startup: AuthOk, one
// ParameterStatus per parameter in order, then BackendKeyData.
func (w *Writer) WriteStartupComplete(params []Parameter, pid, secret int32) error {
	if err := w.WriteAuth(AuthOk); err != nil {
		return err
	}
	for _, p := range params {
		w.start(MsgParameterStatus)
		w.cstring(p.Name)
		w.cstring(p.Value)
		if err := w.end(); err != nil {
			return err
		}
	}
	w.start(MsgBackendKeyData)
	w.putInt32(pid)
	w.putInt32(secret)
	return w.end()
}

// WriteReadyForQuery tells the client the previous query cycle is over.
func (w *Writer) WriteReadyForQuery(status byte) error {
	w.start(MsgReadyForQuery)
	w.buf = append(w.buf, status)
	return w.end()
}

// WriteResult sends the response to one statement. Columns and rows are
// described only when columns is non-nil; tag goes into CommandComplete.
func (w *Writer) WriteResult(columns []ColumnInfo, rows [][][]byte, tag string) error {
	if columns != nil {
		if err := w.WriteRowDescription(columns); err != nil {
			return err
		}
		for _, row := range rows {
			if err := w.WriteDataRow(row); err != nil {
				return err
			}
		}
	}
	return w.WriteCommandComplete(tag)
}

// WriteRowDescription describes the columns of the rows that follow. All
// columns use the text format.
func (w *Writer) WriteRowDescription(columns []ColumnInfo) error {
	w.start(MsgRowDescription)
	w.putInt16(int16(len(columns)))
	for _, col := range columns {
		w.cstring(col.Name)
		w.putInt32(col.TableOID)
		w.putInt16(col.ColumnAttr)
		w.putInt32(col.DataTypeOID)
		w.putInt16(col.DataTypeSize)
		w.putInt32(col.TypeModifier)
		w.putInt16(col.FormatCode)
	}
	return w.end()
}

// WriteDataRow sends one row of text-encoded values; a nil value is NULL.
func (w *Writer) WriteDataRow(values [][]byte) error {
	w.start(MsgDataRow)
	w.putInt16(int16(len(values)))
	for _, v := range values {
		if v == nil {
			w.putInt32(-1)
			continue
		}
		w.putInt32(int32(len(v)))
		w.buf = append(w.buf, v...)
	}
	return w.end()
}

func (w *Writer) WriteCommandComplete(tag string) error {
	w.start(MsgCommandComplete)
	w.cstring(tag)
	return w.end()
}

func (w *Writer) WriteEmptyQueryResponse() error {
	w.start(MsgEmptyQueryResponse)
	return w.end()
}

// WriteNotice sends n as an ErrorResponse if it is an error and as a
// NoticeResponse otherwise.
func (w *Writer) WriteNotice(n Notice) error {
	if n.IsError() {
		w.start(MsgErrorResponse)
	} else {
		w.start(MsgNoticeResponse)
	}
	for _, f := range n.fields() {
		if f.value == "" {
			continue
		}
		w.buf = append(w.buf, f.code)
		w.cstring(f.value)
	}
	w.buf = append(w.buf, 0)
	return w.end()
}

// start begins a message of type typ with a placeholder length.
func (w *Writer) start(typ byte) {
	w.buf = append(w.buf[:0], typ, 0, 0, 0, 0)
}

// end fills in the length, which counts itself but not the type byte,
// and buffers the message.
func (w *Writer) end() error {
	binary.BigEndian.PutUint32(w.buf[1:5], uint32(len(w.buf)-1))
	_, err := w.w.Write(w.buf)
	return err
}

func (w *Writer) putInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) putInt16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

func (w *Writer) cstring(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}
