package pgwire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func startupBytes(version int32, params ...string) []byte {
	body := binary.BigEndian.AppendUint32(nil, uint32(version))
	for _, p := range params {
		body = append(body, p...)
		body = append(body, 0)
	}
	if len(params) > 0 {
		body = append(body, 0)
	}
	return append(binary.BigEndian.AppendUint32(nil, uint32(len(body)+4)), body...)
}

func TestReadStartup(t *testing.T) {
	var in bytes.Buffer
	in.Write(startupBytes(SSLRequestCode))
	in.Write(startupBytes(ProtocolVersion, "user", "admin", "database", "leafdb"))

	r := NewReader(&in)
	msg, err := r.ReadStartup()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != StartupSSL {
		t.Fatalf("kind = %v, want StartupSSL", msg.Kind)
	}

	msg, err = r.ReadStartup()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != StartupNormal || msg.Parameters["user"] != "admin" || msg.Parameters["database"] != "leafdb" {
		t.Errorf("startup = %+v", msg)
	}
}

func TestReadStartup_Cancel(t *testing.T) {
	body := binary.BigEndian.AppendUint32(nil, uint32(CancelRequestCode))
	body = binary.BigEndian.AppendUint32(body, 42)
	body = binary.BigEndian.AppendUint32(body, 7)
	in := append(binary.BigEndian.AppendUint32(nil, uint32(len(body)+4)), body...)

	msg, err := NewReader(bytes.NewReader(in)).ReadStartup()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != StartupCancel || msg.ProcessID != 42 || msg.SecretKey != 7 {
		t.Errorf("cancel = %+v", msg)
	}
}

func TestReadStartup_Errors(t *testing.T) {
	tests := map[string][]byte{
		"short":       {0, 0, 0, 4},
		"oversized":   binary.BigEndian.AppendUint32(nil, MaxMessageSize+1),
		"bad version": startupBytes(2 << 16),
		"truncated":   {0, 0, 0, 16, 0, 3},
	}
	for name, in := range tests {
		if _, err := NewReader(bytes.NewReader(in)).ReadStartup(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestReadMessage(t *testing.T) {
	var in bytes.Buffer
	in.WriteByte(MsgQuery)
	in.Write(binary.BigEndian.AppendUint32(nil, uint32(4+len("SELECT 1")+1)))
	in.WriteString("SELECT 1\x00")
	in.WriteByte(MsgTerminate)
	in.Write(binary.BigEndian.AppendUint32(nil, 4))

	r := NewReader(&in)
	typ, payload, err := r.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if typ != MsgQuery || CString(payload) != "SELECT 1" {
		t.Errorf("got %c %q", typ, payload)
	}
	typ, payload, err = r.ReadMessage()
	if err != nil || typ != MsgTerminate || len(payload) != 0 {
		t.Errorf("got %c %q %v", typ, payload, err)
	}
}

func TestReadMessage_BadLength(t *testing.T) {
	in := append([]byte{MsgQuery}, binary.BigEndian.AppendUint32(nil, 3)...)
	if _, _, err := NewReader(bytes.NewReader(in)).ReadMessage(); err == nil {
		t.Error("expected error for length 3")
	}
}

func TestWriter_Messages(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	if err := w.WriteCommandComplete("SELECT 1"); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteReadyForQuery(TxIdle); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	want := []byte{MsgCommandComplete, 0, 0, 0, 13}
	want = append(want, "SELECT 1\x00"...)
	want = append(want, MsgReadyForQuery, 0, 0, 0, 5, TxIdle)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("wrote %q, want %q", out.Bytes(), want)
	}
}

func TestWriter_DataRowNull(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	w.WriteDataRow([][]byte{[]byte("ab"), nil})
	w.Flush()

	want := []byte{MsgDataRow, 0, 0, 0, 16, 0, 2, 0, 0, 0, 2, 'a', 'b', 0xff, 0xff, 0xff, 0xff}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("wrote %v, want %v", out.Bytes(), want)
	}
}

func TestWriter_ErrorFields(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	w.WriteNotice(Notice{Severity: "ERROR", Code: "42P01", Message: "no table"})
	w.Flush()

	b := out.Bytes()
	if b[0] != MsgErrorResponse {
		t.Fatalf("type = %c", b[0])
	}
	if n := binary.BigEndian.Uint32(b[1:5]); int(n) != len(b)-1 {
		t.Errorf("length = %d, want %d", n, len(b)-1)
	}
	fields := string(b[5:])
	want := "SERROR\x00VERROR\x00C42P01\x00Mno table\x00\x00"
	if fields != want {
		t.Errorf("fields = %q, want %q", fields, want)
	}
}

func TestWriter_NoticeType(t *testing.T) {
	tests := []struct {
		severity string
		want     byte
	}{
		{"ERROR", MsgErrorResponse},
		{"FATAL", MsgErrorResponse},
		{"NOTICE", MsgNoticeResponse},
		{"WARNING", MsgNoticeResponse},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		w := NewWriter(&out)
		w.WriteNotice(Notice{Severity: tt.severity, Code: "00000", Message: "m", Hint: "h"})
		w.Flush()
		b := out.Bytes()
		if b[0] != tt.want {
			t.Errorf("%s: type = %c, want %c", tt.severity, b[0], tt.want)
		}
		if !bytes.HasSuffix(b, []byte("Mm\x00Hh\x00\x00")) {
			t.Errorf("%s: fields = %q", tt.severity, b[5:])
		}
	}
}

func TestWriter_StartupComplete(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	if err := w.WriteStartupComplete([]Parameter{{"TimeZone", "UTC"}}, 9, 0); err != nil {
		t.Fatal(err)
	}
	w.Flush()

	want := []byte{MsgAuthentication, 0, 0, 0, 8, 0, 0, 0, 0}
	want = append(want, MsgParameterStatus, 0, 0, 0, 17)
	want = append(want, "TimeZone\x00UTC\x00"...)
	want = append(want, MsgBackendKeyData, 0, 0, 0, 12, 0, 0, 0, 9, 0, 0, 0, 0)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("wrote %v, want %v", out.Bytes(), want)
	}
}

func TestWriter_ResultWithoutColumns(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	w.WriteResult(nil, nil, "INSERT 0 1")
	w.Flush()
	if b := out.Bytes(); b[0] != MsgCommandComplete {
		t.Errorf("first message %c, want CommandComplete only", b[0])
	}
}

func TestIsExtended(t *testing.T) {
	for _, m := range []byte{MsgParse, MsgBind, MsgDescribe, MsgExecute, MsgClose, MsgFlush} {
		if !IsExtended(m) {
			t.Errorf("IsExtended(%c) = false", m)
		}
	}
	for _, m := range []byte{MsgQuery, MsgSync, MsgTerminate} {
		if IsExtended(m) {
			t.Errorf("IsExtended(%c) = true", m)
		}
	}
}
