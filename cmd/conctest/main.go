// Command conctest starts an in-process leafdb server on a temporary data
// directory and drives it from many pgx clients at once, checking that
// readers never observe a half-applied write and that secondary indexes
// stay consistent under concurrent updates.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"leafdb/config"
	"leafdb/executor"
	"leafdb/server"
	"leafdb/storage"
)

var (
	clients  = flag.Int("clients", 10, "concurrent client connections per scenario")
	queries  = flag.Int("queries", 50, "queries per reader")
	order    = flag.Int("order", 4, "B+ tree order (small orders split often)")
	compress = flag.Bool("compress", false, "snappy-compress index snapshots")
)

func main() {
	flag.Parse()
	fmt.Println("leafdb concurrency test")
	fmt.Println("=======================")

	port, shutdown := startServer()
	defer shutdown()

	fmt.Printf("Server on port %d, order %d\n\n", port, *order)

	passed, failed := 0, 0
	for _, sc := range []struct {
		name string
		fn   func(int) bool
	}{
		{"Setup", scenarioSetup},
		{"Concurrent reads", scenarioConcurrentReads},
		{"Reads during writes", scenarioReadsDuringWrites},
		{"Concurrent writes", scenarioConcurrentWrites},
		{"Indexed reads during updates", scenarioIndexedUpdates},
	} {
		if sc.fn(port) {
			passed++
		} else {
			failed++
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		shutdown()
		os.Exit(1)
	}
}

func startServer() (port int, shutdown func()) {
	tmpDir, err := os.MkdirTemp("", "conctest-*")
	if err != nil {
		fatalf("create temp dir: %v", err)
	}

	db, err := storage.Open(tmpDir, storage.Options{Order: *order, Compress: *compress})
	if err != nil {
		os.RemoveAll(tmpDir)
		fatalf("open database: %v", err)
	}

	cfg := &config.Config{
		Port:     0, // OS-assigned
		DataDir:  tmpDir,
		User:     "admin",
		Password: "test",
	}
	srv := server.New(cfg, executor.New(db))

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			fatalf("server: %v", err)
		}
	}()

	for i := 0; i < 100; i++ {
		if addr := srv.Addr(); addr != nil {
			port = addr.(*net.TCPAddr).Port
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if port == 0 {
		db.Close()
		os.RemoveAll(tmpDir)
		fatalf("server did not start within 1s")
	}

	var once sync.Once
	shutdown = func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
			db.Close()
			os.RemoveAll(tmpDir)
		})
	}
	return port, shutdown
}

func connect(port int) *pgx.Conn {
	connStr := fmt.Sprintf("host=127.0.0.1 port=%d user=admin password=test sslmode=disable", port)
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		fatalf("parse config: %v", err)
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	conn, err := pgx.ConnectConfig(context.Background(), cfg)
	if err != nil {
		fatalf("connect: %v", err)
	}
	return conn
}

func count(conn *pgx.Conn, sql string) (int64, error) {
	var n int64
	err := conn.QueryRow(context.Background(), sql).Scan(&n)
	return n, err
}

func scenarioSetup(port int) bool {
	start := time.Now()
	conn := connect(port)
	defer conn.Close(context.Background())

	for _, sql := range []string{
		"CREATE TABLE conc (id INTEGER PRIMARY KEY, val TEXT, bucket INTEGER)",
		"CREATE INDEX ON conc (bucket)",
	} {
		if _, err := conn.Exec(context.Background(), sql); err != nil {
			return fail("Setup", "%s: %v", sql, err)
		}
	}
	for i := 1; i <= 100; i++ {
		_, err := conn.Exec(context.Background(),
			fmt.Sprintf("INSERT INTO conc VALUES (%d, 'row%d', %d)", i, i, i%10))
		if err != nil {
			return fail("Setup", "INSERT %d: %v", i, err)
		}
	}

	n, err := count(conn, "SELECT COUNT(*) FROM conc")
	if err != nil {
		return fail("Setup", "COUNT: %v", err)
	}
	if n != 100 {
		return fail("Setup", "expected 100 rows, got %d", n)
	}
	return pass("Setup", "created table with a bucket index, inserted 100 rows", time.Since(start))
}

func scenarioConcurrentReads(port int) bool {
	start := time.Now()

	var wg sync.WaitGroup
	var errCount atomic.Int64
	for g := 0; g < *clients; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			conn := connect(port)
			defer conn.Close(context.Background())

			for q := 0; q < *queries; q++ {
				// Alternate full scans and index range scans.
				sql, want := "SELECT * FROM conc", 100
				if q%2 == 1 {
					sql, want = fmt.Sprintf("SELECT * FROM conc WHERE bucket = %d", (g+q)%10), 10
				}
				rows, err := conn.Query(context.Background(), sql)
				if err != nil {
					errCount.Add(1)
					continue
				}
				n := 0
				for rows.Next() {
					n++
				}
				rows.Close()
				if rows.Err() != nil || n != want {
					errCount.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()

	errs := errCount.Load()
	total := *clients * *queries
	if errs > 0 {
		return fail("Concurrent reads", "%d errors out of %d queries", errs, total)
	}
	return pass("Concurrent reads",
		fmt.Sprintf("%d goroutines × %d queries = %d total, 0 errors", *clients, *queries, total),
		time.Since(start))
}

func scenarioReadsDuringWrites(port int) bool {
	start := time.Now()

	var wg sync.WaitGroup
	var errCount atomic.Int64
	var minCount, maxCount atomic.Int64
	minCount.Store(1 << 62)

	// Writer goroutine: insert rows 101-200, two per statement.
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn := connect(port)
		defer conn.Close(context.Background())

		for i := 101; i <= 200; i += 2 {
			_, err := conn.Exec(context.Background(),
				fmt.Sprintf("INSERT INTO conc VALUES (%d, 'row%d', %d), (%d, 'row%d', %d)", i, i, i%10, i+1, i+1, (i+1)%10))
			if err != nil {
				errCount.Add(1)
			}
		}
	}()

	for g := 0; g < *clients; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := connect(port)
			defer conn.Close(context.Background())

			for q := 0; q < *queries; q++ {
				n, err := count(conn, "SELECT COUNT(*) FROM conc")
				if err != nil {
					errCount.Add(1)
					continue
				}
				// Each multi-row INSERT is atomic.
				if n%2 != 0 {
					errCount.Add(1)
				}
				for {
					cur := minCount.Load()
					if n >= cur || minCount.CompareAndSwap(cur, n) {
						break
					}
				}
				for {
					cur := maxCount.Load()
					if n <= cur || maxCount.CompareAndSwap(cur, n) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	errs := errCount.Load()
	lo, hi := minCount.Load(), maxCount.Load()
	if errs > 0 {
		return fail("Reads during writes", "%d errors", errs)
	}
	if lo < 100 || hi > 200 {
		return fail("Reads during writes", "counts out of range: [%d..%d]", lo, hi)
	}

	conn := connect(port)
	defer conn.Close(context.Background())
	if n, _ := count(conn, "SELECT COUNT(*) FROM conc"); n != 200 {
		return fail("Reads during writes", "final count %d, expected 200", n)
	}
	return pass("Reads during writes",
		fmt.Sprintf("100 rows inserted while reading, counts in [%d..%d], 0 errors", lo, hi),
		time.Since(start))
}

func scenarioConcurrentWrites(port int) bool {
	start := time.Now()
	const rowsPerGoroutine = 10

	var wg sync.WaitGroup
	var errCount atomic.Int64
	for g := 0; g < *clients; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			conn := connect(port)
			defer conn.Close(context.Background())

			base := 201 + g*rowsPerGoroutine
			for i := 0; i < rowsPerGoroutine; i++ {
				id := base + i
				_, err := conn.Exec(context.Background(),
					fmt.Sprintf("INSERT INTO conc VALUES (%d, 'row%d', %d)", id, id, id%10))
				if err != nil {
					errCount.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()

	if errs := errCount.Load(); errs > 0 {
		return fail("Concurrent writes", "%d insert errors", errs)
	}

	conn := connect(port)
	defer conn.Close(context.Background())
	want := int64(200 + *clients*rowsPerGoroutine)
	if n, _ := count(conn, "SELECT COUNT(*) FROM conc"); n != want {
		return fail("Concurrent writes", "final count %d, expected %d", n, want)
	}
	return pass("Concurrent writes",
		fmt.Sprintf("%d goroutines × %d rows = %d inserts", *clients, rowsPerGoroutine, *clients*rowsPerGoroutine),
		time.Since(start))
}

// scenarioIndexedUpdates moves rows between buckets while readers count
// through the bucket index; every row is in exactly one bucket at all
// times, so the per-bucket counts must always add up to the table size.
func scenarioIndexedUpdates(port int) bool {
	start := time.Now()

	setup := connect(port)
	total, err := count(setup, "SELECT COUNT(*) FROM conc")
	setup.Close(context.Background())
	if err != nil {
		return fail("Indexed reads during updates", "COUNT: %v", err)
	}

	var wg sync.WaitGroup
	var errCount atomic.Int64
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		conn := connect(port)
		defer conn.Close(context.Background())
		for i := 0; i < 100; i++ {
			_, err := conn.Exec(context.Background(),
				fmt.Sprintf("UPDATE conc SET bucket = %d WHERE bucket = %d", (i+1)%10, i%10))
			if err != nil {
				errCount.Add(1)
			}
		}
	}()

	for g := 0; g < *clients; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := connect(port)
			defer conn.Close(context.Background())
			for {
				select {
				case <-stop:
					return
				default:
				}
				low, err1 := count(conn, "SELECT COUNT(*) FROM conc WHERE bucket < 5")
				high, err2 := count(conn, "SELECT COUNT(*) FROM conc WHERE bucket >= 5")
				if err1 != nil || err2 != nil {
					errCount.Add(1)
					continue
				}
				// The two reads are separate statements, so only the
				// individual counts are bounded.
				if low < 0 || low > total || high < 0 || high > total {
					errCount.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if errs := errCount.Load(); errs > 0 {
		return fail("Indexed reads during updates", "%d errors", errs)
	}

	conn := connect(port)
	defer conn.Close(context.Background())
	var sum int64
	for b := 0; b < 10; b++ {
		n, err := count(conn, fmt.Sprintf("SELECT COUNT(*) FROM conc WHERE bucket = %d", b))
		if err != nil {
			return fail("Indexed reads during updates", "COUNT bucket %d: %v", b, err)
		}
		sum += n
	}
	if sum != total {
		return fail("Indexed reads during updates", "bucket counts add up to %d, expected %d", sum, total)
	}
	var valid bool
	rows, err := conn.Query(context.Background(), "SHOW INDEXES ON conc")
	if err != nil {
		return fail("Indexed reads during updates", "SHOW INDEXES: %v", err)
	}
	for rows.Next() {
		var field string
		var order, height, keys int64
		if err := rows.Scan(&field, &order, &height, &keys, &valid); err != nil || !valid {
			rows.Close()
			return fail("Indexed reads during updates", "index %q failed verification (%v)", field, err)
		}
	}
	rows.Close()
	return pass("Indexed reads during updates",
		fmt.Sprintf("100 bucket moves under %d readers, indexes verified", *clients),
		time.Since(start))
}

func pass(name, detail string, d time.Duration) bool {
	fmt.Printf("[PASS] %s: %s (%dms)\n", name, detail, d.Milliseconds())
	return true
}

func fail(name, format string, args ...any) bool {
	fmt.Printf("[FAIL] %s: %s\n", name, fmt.Sprintf(format, args...))
	return false
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(2)
}
