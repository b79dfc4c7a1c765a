// Command seed fills a leafdb data directory with generated people, for
// trying out indexes and queries on realistic data. The server must not
// be running on the same directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/go-faker/faker/v4"

	"leafdb/storage"
)

type person struct {
	Name   string `faker:"name"`
	Email  string `faker:"email"`
	Age    int64  `faker:"boundary_start=18, boundary_end=90"`
	Active bool
	Signup int64 `faker:"unix_time"`
}

var peopleFields = []storage.FieldDef{
	{Name: "id", Type: storage.TypeInteger},
	{Name: "name", Type: storage.TypeText},
	{Name: "email", Type: storage.TypeText},
	{Name: "city", Type: storage.TypeText},
	{Name: "age", Type: storage.TypeInteger},
	{Name: "score", Type: storage.TypeFloat},
	{Name: "active", Type: storage.TypeBoolean},
	{Name: "signup", Type: storage.TypeTimestamp},
}

func main() {
	dataDir := flag.String("datadir", "./data", "data directory")
	table := flag.String("table", "people", "table to create or extend")
	rows := flag.Int("rows", 1000, "number of rows to generate")
	batch := flag.Int("batch", 500, "rows per insert")
	order := flag.Int("order", 0, "B+ tree order for a new table (0 = default)")
	indexes := flag.String("index", "age,city", "comma-separated fields to index")
	compress := flag.Bool("compress", false, "snappy-compress index snapshots")
	flag.Parse()

	db, err := storage.Open(*dataDir, storage.Options{Order: *order, Compress: *compress})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	tbl, err := db.GetTable(*table)
	if err != nil {
		if tbl, err = db.CreateTable(*table, peopleFields, "id"); err != nil {
			log.Fatal(err)
		}
		log.Printf("created table %q", *table)
	}
	for _, field := range strings.Split(*indexes, ",") {
		field = strings.TrimSpace(field)
		if field == "" || slices.Contains(tbl.Indexes(), field) {
			continue
		}
		if err := tbl.CreateIndex(field); err != nil {
			log.Fatal(err)
		}
	}

	next, err := nextID(tbl)
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	for done := 0; done < *rows; {
		n := min(*batch, *rows-done)
		recs, err := generate(next+int64(done), n)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := tbl.InsertRecords(recs); err != nil {
			log.Fatal(err)
		}
		done += n
		log.Printf("inserted %d/%d", done, *rows)
	}

	total, _ := tbl.Count()
	fmt.Printf("%s: %d rows (%d new) in %s\n", *table, total, *rows, time.Since(start).Round(time.Millisecond))
	for _, field := range tbl.Indexes() {
		st, err := tbl.IndexStats(field)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  index %-8s order %d, height %d, %d keys\n", st.Field, st.Order, st.Height, st.Keys)
	}
}

// nextID returns one past the largest id in tbl.
func nextID(tbl *storage.Table) (int64, error) {
	recs, err := tbl.QueryTable(nil)
	if err != nil {
		return 0, err
	}
	var last int64
	for _, r := range recs {
		if id, ok := r["id"].(int64); ok && id > last {
			last = id
		}
	}
	return last + 1, nil
}

func generate(firstID int64, n int) ([]storage.Record, error) {
	recs := make([]storage.Record, n)
	for i := range recs {
		var p person
		if err := faker.FakeData(&p); err != nil {
			return nil, fmt.Errorf("generate row: %w", err)
		}
		rec := storage.Record{
			"id":     firstID + int64(i),
			"name":   p.Name,
			"email":  p.Email,
			"city":   faker.GetRealAddress().City,
			"age":    p.Age,
			"active": p.Active,
			"signup": time.Unix(p.Signup, 0).UTC(),
		}
		// Leave some scores unset so NULL handling gets exercised.
		if i%7 != 0 {
			rec["score"] = float64(p.Age%10) + float64(i%100)/100
		}
		recs[i] = rec
	}
	return recs, nil
}
