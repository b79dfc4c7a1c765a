package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"leafdb/config"
	"leafdb/executor"
	"leafdb/pgwire"
	"leafdb/version"
)

// errCancelRequest ends a connection that only carried a CancelRequest.
// leafdb runs every statement to completion, so there is nothing to cancel.
var errCancelRequest = errors.New("cancel request")

// Connection handles the lifecycle of a single client connection:
// startup handshake → authentication → query loop.
type Connection struct {
	conn   net.Conn
	reader *pgwire.Reader
	writer *pgwire.Writer
	cfg    *config.Config
	exec   *executor.Executor
}

func newConnection(conn net.Conn, cfg *config.Config, exec *executor.Executor) *Connection {
	return &Connection{
		conn:   conn,
		reader: pgwire.NewReader(conn),
		writer: pgwire.NewWriter(conn),
		cfg:    cfg,
		exec:   exec,
	}
}

// Handle runs the full connection lifecycle and closes the connection on return.
func (c *Connection) Handle() {
	defer c.conn.Close()

	if err := c.startup(); err != nil {
		if !errors.Is(err, errCancelRequest) {
			log.Printf("connection %s: startup: %v", c.conn.RemoteAddr(), err)
		}
		return
	}

	log.Printf("connection %s: authenticated", c.conn.RemoteAddr())
	c.queryLoop()
	log.Printf("connection %s: disconnected", c.conn.RemoteAddr())
}

// Refuse reads the client's startup message and answers it with a
// too_many_connections error. It closes the connection on return.
func (c *Connection) Refuse() {
	defer c.conn.Close()

	if _, err := c.readStartup(); err != nil {
		return
	}
	c.sendFatalError("53300", "sorry, too many clients already")
	log.Printf("connection %s: refused, connection limit reached", c.conn.RemoteAddr())
}

// readStartup reads startup messages until a normal one arrives, refusing
// any encryption request on the way.
func (c *Connection) readStartup() (*pgwire.StartupMessage, error) {
	for {
		msg, err := c.reader.ReadStartup()
		if err != nil {
			return nil, fmt.Errorf("read startup: %w", err)
		}
		switch msg.Kind {
		case pgwire.StartupSSL, pgwire.StartupGSSENC:
			if err := c.writer.WriteEncryptionRefused(); err != nil {
				return nil, fmt.Errorf("refuse encryption: %w", err)
			}
			if err := c.writer.Flush(); err != nil {
				return nil, err
			}
		case pgwire.StartupCancel:
			return nil, errCancelRequest
		default:
			return msg, nil
		}
	}
}

// startup performs the PostgreSQL startup handshake and cleartext password
// authentication.
func (c *Connection) startup() error {
	msg, err := c.readStartup()
	if err != nil {
		return err
	}

	user := msg.Parameters["user"]
	if user != c.cfg.User {
		c.sendFatalError("28000", fmt.Sprintf("authentication failed for user %q", user))
		return fmt.Errorf("unknown user: %s", user)
	}

	if err := c.writer.WriteAuth(pgwire.AuthCleartextPassword); err != nil {
		return err
	}
	if err := c.writer.Flush(); err != nil {
		return err
	}

	msgType, payload, err := c.reader.ReadMessage()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if msgType != pgwire.MsgPasswordMessage {
		return fmt.Errorf("expected PasswordMessage, got '%c'", msgType)
	}
	if pgwire.CString(payload) != c.cfg.Password {
		c.sendFatalError("28P01", fmt.Sprintf("password authentication failed for user %q", user))
		return fmt.Errorf("bad password for user: %s", user)
	}

	params := []pgwire.Parameter{
		{Name: "server_version", Value: version.ServerVersion()},
		{Name: "server_encoding", Value: "UTF8"},
		{Name: "client_encoding", Value: "UTF8"},
		{Name: "DateStyle", Value: "ISO, MDY"},
		{Name: "TimeZone", Value: "UTC"},
		{Name: "integer_datetimes", Value: "on"},
		{Name: "standard_conforming_strings", Value: "on"},
	}
	if err := c.writer.WriteStartupComplete(params, int32(os.Getpid()), 0); err != nil {
		return err
	}
	return c.sendReady()
}

// queryLoop reads and responds to client messages until the client
// disconnects or a write error occurs.
func (c *Connection) queryLoop() {
	// After rejecting an extended-protocol message, the rest of the batch
	// is discarded until the client's Sync.
	discarding := false

	for {
		msgType, payload, err := c.reader.ReadMessage()
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Printf("connection %s: read: %v", c.conn.RemoteAddr(), err)
			}
			return
		}

		switch {
		case msgType == pgwire.MsgQuery:
			if err := c.handleQuery(pgwire.CString(payload)); err != nil {
				log.Printf("connection %s: write: %v", c.conn.RemoteAddr(), err)
				return
			}
		case msgType == pgwire.MsgTerminate:
			return
		case msgType == pgwire.MsgSync:
			discarding = false
			if err := c.sendReady(); err != nil {
				return
			}
		case pgwire.IsExtended(msgType):
			if discarding {
				continue
			}
			discarding = true
			err := c.writer.WriteNotice(pgwire.Notice{
				Severity: "ERROR",
				Code:     "0A000",
				Message:  "extended query protocol is not supported",
				Hint:     "Use the simple query protocol.",
			})
			if err == nil {
				err = c.writer.Flush()
			}
			if err != nil {
				return
			}
		default:
			log.Printf("connection %s: unsupported message type '%c'", c.conn.RemoteAddr(), msgType)
		}
	}
}

// handleQuery processes a single SQL query string and writes the response.
func (c *Connection) handleQuery(query string) error {
	query = strings.TrimSpace(query)

	if query == "" {
		if err := c.writer.WriteEmptyQueryResponse(); err != nil {
			return err
		}
		return c.sendReady()
	}

	// Session settings sent by drivers and psql are accepted and ignored;
	// the parser does not cover SET.
	if len(query) >= 4 && strings.EqualFold(query[:4], "SET ") {
		if err := c.writer.WriteCommandComplete("SET"); err != nil {
			return err
		}
		return c.sendReady()
	}

	result, err := c.execute(query)
	if err != nil {
		code := "XX000"
		var qe *executor.QueryError
		if errors.As(err, &qe) {
			code = qe.Code
		}
		if werr := c.writer.WriteNotice(pgwire.Notice{Severity: "ERROR", Code: code, Message: err.Error()}); werr != nil {
			return werr
		}
		return c.sendReady()
	}

	if result.Notice != "" {
		if err := c.writer.WriteNotice(pgwire.Notice{Severity: "NOTICE", Code: "00000", Message: result.Notice}); err != nil {
			return err
		}
	}

	var cols []pgwire.ColumnInfo
	if result.Columns != nil {
		cols = make([]pgwire.ColumnInfo, len(result.Columns))
		for i, rc := range result.Columns {
			cols[i] = pgwire.ColumnInfo{
				Name:         rc.Name,
				DataTypeOID:  rc.TypeOID,
				DataTypeSize: rc.TypeSize,
				TypeModifier: -1,
			}
		}
	}
	if err := c.writer.WriteResult(cols, result.Rows, result.Tag); err != nil {
		return err
	}
	return c.sendReady()
}

// execute runs query, logging it according to the configured log level.
func (c *Connection) execute(query string) (*executor.Result, error) {
	switch {
	case c.cfg.LogLevel >= 2:
		result, tr, err := c.exec.ExecuteTraced(query)
		log.Printf("connection %s: %s [%s]", c.conn.RemoteAddr(), query, tr)
		return result, err
	case c.cfg.LogLevel == 1:
		log.Printf("connection %s: %s", c.conn.RemoteAddr(), query)
	}
	return c.exec.Execute(query)
}

// sendReady sends ReadyForQuery and flushes the write buffer.
func (c *Connection) sendReady() error {
	if err := c.writer.WriteReadyForQuery(pgwire.TxIdle); err != nil {
		return err
	}
	return c.writer.Flush()
}

// sendFatalError writes a FATAL error response and flushes. Errors are
// ignored since the connection is about to close.
func (c *Connection) sendFatalError(code, message string) {
	c.writer.WriteNotice(pgwire.Notice{Severity: "FATAL", Code: code, Message: message})
	c.writer.Flush()
}
