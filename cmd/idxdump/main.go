// Command idxdump prints a leafdb index snapshot as a coloured tree.
//
//	idxdump [flags] DATADIR/users.age.idx
//	idxdump [flags] -pebble DATADIR/indexes.pebble users age
//
// Internal nodes show their pivot values, leaves show value → primary key
// entries; deleted entries are tombstones and are shown struck through.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"leafdb/storage"
	"leafdb/storage/index"
)

var (
	pebbleDir = flag.String("pebble", "", "read from the Pebble snapshot store in this directory")
	noColor   = flag.Bool("no-color", false, "disable colour output")
	verify    = flag.Bool("verify", false, "check the tree's structural invariants")
	summary   = flag.Bool("summary", false, "print only the header")
)

var (
	pivotColor = color.New(color.FgCyan, color.Bold)
	valueColor = color.New(color.FgGreen)
	pkColor    = color.New(color.FgYellow)
	deadColor  = color.New(color.FgRed, color.CrossedOut)
	dimColor   = color.New(color.Faint)
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: idxdump [flags] FILE")
		fmt.Fprintln(os.Stderr, "       idxdump [flags] -pebble DIR TABLE FIELD")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *noColor {
		color.NoColor = true
	}

	table, field, data, err := load(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxdump: %v\n", err)
		os.Exit(1)
	}
	tree, err := storage.DecodeIndex(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxdump: %s.%s: %v\n", table, field, err)
		os.Exit(1)
	}

	out := color.Output
	printHeader(out, table, field, tree, len(data))
	if *verify {
		if err := tree.Verify(); err != nil {
			fmt.Fprintf(out, "verify: %s\n", deadColor.Sprint(err))
			os.Exit(1)
		}
		fmt.Fprintf(out, "verify: %s\n", valueColor.Sprint("ok"))
	}
	if !*summary {
		s := tree.Snapshot()
		printNode(out, s, 0, 0)
	}
}

// load returns the snapshot bytes named by args, together with the table
// and field the snapshot belongs to.
func load(args []string) (table, field string, data []byte, err error) {
	if *pebbleDir != "" {
		if len(args) != 2 {
			return "", "", nil, fmt.Errorf("-pebble needs TABLE and FIELD arguments")
		}
		table, field = args[0], args[1]
		store, err := storage.OpenPebbleSnapshotStore(*pebbleDir)
		if err != nil {
			return "", "", nil, err
		}
		defer store.Close()
		data, err = store.Load(storage.IndexFileName(table, field))
		return table, field, data, err
	}

	if len(args) != 1 {
		flag.Usage()
		os.Exit(2)
	}
	table, field, err = storage.ParseIndexFileName(filepath.Base(args[0]))
	if err != nil {
		return "", "", nil, err
	}
	data, err = os.ReadFile(args[0])
	return table, field, data, err
}

func printHeader(w io.Writer, table, field string, tree *index.Tree, size int) {
	live := 0
	tree.Scan(nil, nil, func(any, index.Bucket) bool {
		live++
		return true
	})
	fmt.Fprintf(w, "index %s on %s\n", pivotColor.Sprint(field), pivotColor.Sprint(table))
	fmt.Fprintf(w, "  order %d, height %d, %d keys (%d live, %d tombstones), %d bytes\n",
		tree.Order(), tree.Height(), tree.Len(), live, tree.Len()-live, size)
}

// printNode prints node pos of s and its subtree, indented by depth.
func printNode(w io.Writer, s index.Snapshot, pos, depth int) {
	n := s.Nodes[pos]
	indent := strings.Repeat("  ", depth)

	if !n.Leaf {
		pivots := make([]string, len(n.Keys))
		for i, k := range n.Keys {
			v, _, _ := storage.IndexKeyParts(k)
			pivots[i] = pivotColor.Sprint(formatValue(v))
		}
		fmt.Fprintf(w, "%s%s %s\n", indent, dimColor.Sprint("node"), strings.Join(pivots, " | "))
		for _, c := range n.Children {
			printNode(w, s, c, depth+1)
		}
		return
	}

	entries := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		v, pk, _ := storage.IndexKeyParts(k)
		entry := fmt.Sprintf("%s→%s", formatValue(v), formatValue(pk))
		if n.Buckets[i].IsTombstone() {
			entries[i] = deadColor.Sprint(entry)
		} else {
			entries[i] = valueColor.Sprint(formatValue(v)) + dimColor.Sprint("→") + pkColor.Sprint(formatValue(pk))
		}
	}
	fmt.Fprintf(w, "%s%s %s\n", indent, dimColor.Sprint("leaf"), strings.Join(entries, "  "))
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case nil:
		return "NULL"
	default:
		return fmt.Sprint(v)
	}
}
