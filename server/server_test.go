package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leafdb/config"
	"leafdb/executor"
	"leafdb/storage"
)

func startServer(t *testing.T, cfg *config.Config) int {
	t.Helper()
	db, err := storage.Open(t.TempDir(), storage.Options{Order: 4})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.User == "" {
		cfg.User, cfg.Password = "admin", "test"
	}
	srv := New(cfg, executor.New(db))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
		if err := <-errc; err != nil {
			t.Errorf("serve: %v", err)
		}
		db.Close()
	})

	for i := 0; i < 100; i++ {
		if addr := srv.Addr(); addr != nil {
			return addr.(*net.TCPAddr).Port
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start within 1s")
	return 0
}

func connConfig(t *testing.T, port int, password string) *pgx.ConnConfig {
	t.Helper()
	cfg, err := pgx.ParseConfig(fmt.Sprintf("host=127.0.0.1 port=%d user=admin password=%s sslmode=disable", port, password))
	if err != nil {
		t.Fatal(err)
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return cfg
}

func connect(t *testing.T, port int) *pgx.Conn {
	t.Helper()
	conn, err := pgx.ConnectConfig(context.Background(), connConfig(t, port, "test"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Close(context.Background()) })
	return conn
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func TestServer_QueryRoundTrip(t *testing.T) {
	port := startServer(t, &config.Config{})
	conn := connect(t, port)
	ctx := context.Background()

	for _, sql := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, score FLOAT, active BOOLEAN, seen TIMESTAMP)",
		"CREATE INDEX ON users (score)",
		"INSERT INTO users VALUES (1, 'alice', 9.5, TRUE, '2024-05-01 10:00:00'), (2, 'bob', 7, FALSE, NULL)",
	} {
		if _, err := conn.Exec(ctx, sql); err != nil {
			t.Fatalf("%s: %v", sql, err)
		}
	}

	var (
		name   string
		score  float64
		active bool
		seen   time.Time
	)
	err := conn.QueryRow(ctx, "SELECT name, score, active, seen FROM users WHERE score > 8").Scan(&name, &score, &active, &seen)
	if err != nil {
		t.Fatal(err)
	}
	if name != "alice" || score != 9.5 || !active || !seen.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("row = %q %v %v %v", name, score, active, seen)
	}

	var missing *time.Time
	if err := conn.QueryRow(ctx, "SELECT name, seen FROM users WHERE id = $1", 2).Scan(&name, &missing); err != nil {
		t.Fatal(err)
	}
	if name != "bob" || missing != nil {
		t.Errorf("row = %q %v", name, missing)
	}

	tag, err := conn.Exec(ctx, "UPDATE users SET active = TRUE")
	if err != nil {
		t.Fatal(err)
	}
	if tag.RowsAffected() != 2 || !tag.Update() {
		t.Errorf("tag = %q", tag)
	}

	var count int64
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE active = TRUE").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestServer_ErrorCodes(t *testing.T) {
	port := startServer(t, &config.Config{})
	conn := connect(t, port)
	ctx := context.Background()

	tests := []struct {
		sql  string
		code string
	}{
		{"SELECT * FROM nope", "42P01"},
		{"CREATE TABLE t (a INTEGER)", "42P16"},
		{"GARBAGE", "42601"},
	}
	for _, tt := range tests {
		_, err := conn.Exec(ctx, tt.sql)
		if got := pgCode(err); got != tt.code {
			t.Errorf("%s: code = %q, want %q (%v)", tt.sql, got, tt.code, err)
		}
	}

	// The connection stays usable after errors.
	if _, err := conn.Exec(ctx, "CREATE TABLE t (a INTEGER PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}
	_, err := conn.Exec(ctx, "INSERT INTO t VALUES (1), (1)")
	if got := pgCode(err); got != "23505" {
		t.Errorf("duplicate key code = %q, want 23505", got)
	}
}

func TestServer_SetAndNotice(t *testing.T) {
	port := startServer(t, &config.Config{})
	cfg := connConfig(t, port, "test")
	var mu sync.Mutex
	var notices []string
	cfg.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		mu.Lock()
		notices = append(notices, n.Message)
		mu.Unlock()
	}
	conn, err := pgx.ConnectConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(context.Background())
	ctx := context.Background()

	if _, err := conn.Exec(ctx, "SET application_name = 'test'"); err != nil {
		t.Fatalf("SET: %v", err)
	}
	if _, err := conn.Exec(ctx, "DROP TABLE IF EXISTS ghost"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(notices) != 1 {
		t.Errorf("notices = %q, want one", notices)
	}
}

func TestServer_ExtendedProtocolRejected(t *testing.T) {
	port := startServer(t, &config.Config{})
	cfg := connConfig(t, port, "test")
	cfg.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	conn, err := pgx.ConnectConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(context.Background())
	ctx := context.Background()

	rows, err := conn.Query(ctx, "SELECT * FROM t WHERE a = $1", 1)
	if err == nil {
		rows.Close()
		err = rows.Err()
	}
	if got := pgCode(err); got != "0A000" {
		t.Fatalf("code = %q, want 0A000 (%v)", got, err)
	}

	// The simple protocol still works on the same connection.
	if _, err := conn.Exec(ctx, "SHOW TABLES", pgx.QueryExecModeSimpleProtocol); err != nil {
		t.Fatalf("simple query after rejection: %v", err)
	}
}

func TestServer_Authentication(t *testing.T) {
	port := startServer(t, &config.Config{})

	_, err := pgx.ConnectConfig(context.Background(), connConfig(t, port, "wrong"))
	if got := pgCode(err); got != "28P01" {
		t.Errorf("bad password code = %q, want 28P01 (%v)", got, err)
	}

	cfg := connConfig(t, port, "test")
	cfg.User = "mallory"
	_, err = pgx.ConnectConfig(context.Background(), cfg)
	if got := pgCode(err); got != "28000" {
		t.Errorf("unknown user code = %q, want 28000 (%v)", got, err)
	}
}

func TestServer_MaxConns(t *testing.T) {
	port := startServer(t, &config.Config{MaxConns: 1})
	connect(t, port)

	_, err := pgx.ConnectConfig(context.Background(), connConfig(t, port, "test"))
	if got := pgCode(err); got != "53300" {
		t.Errorf("second connection code = %q, want 53300 (%v)", got, err)
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	port := startServer(t, &config.Config{})
	setup := connect(t, port)
	ctx := context.Background()
	if _, err := setup.Exec(ctx, "CREATE TABLE conc (id INTEGER PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatal(err)
	}

	const clients, rowsEach = 5, 20
	var wg sync.WaitGroup
	errc := make(chan error, clients)
	for g := 0; g < clients; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			conn, err := pgx.ConnectConfig(ctx, connConfig(t, port, "test"))
			if err != nil {
				errc <- err
				return
			}
			defer conn.Close(ctx)
			for i := 0; i < rowsEach; i++ {
				id := g*rowsEach + i
				if _, err := conn.Exec(ctx, fmt.Sprintf("INSERT INTO conc VALUES (%d, 'row%d')", id, id)); err != nil {
					errc <- err
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Error(err)
	}

	var count int64
	if err := setup.QueryRow(ctx, "SELECT COUNT(*) FROM conc").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != clients*rowsEach {
		t.Errorf("count = %d, want %d", count, clients*rowsEach)
	}
}

func TestServer_ShutdownClosesTrackedConns(t *testing.T) {
	srv := New(&config.Config{}, nil)

	early, earlyPeer := net.Pipe()
	defer earlyPeer.Close()
	if !srv.track(early) {
		t.Fatal("track before shutdown refused the connection")
	}
	go func() {
		// Stands in for the connection goroutine: returns once Shutdown
		// closes the connection.
		buf := make([]byte, 1)
		early.Read(buf)
		srv.untrack(early)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// A connection accepted while Shutdown ran is not adopted.
	late, latePeer := net.Pipe()
	defer late.Close()
	defer latePeer.Close()
	if srv.track(late) {
		t.Error("track after shutdown accepted the connection")
	}
}

func TestServer_ListenAfterShutdown(t *testing.T) {
	srv := New(&config.Config{}, nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe kept running after Shutdown")
	}
}
