package storage

import (
	"fmt"
	"strings"
)

// DatabaseMetadataFile lists the tables of a database directory.
const DatabaseMetadataFile = "database_metadata.json"

const (
	tableSuffix    = ".table.json"
	metadataSuffix = ".meta.json"
	indexSuffix    = ".idx"
)

// tableFileName names the JSON document holding a table's records.
// For example, "my table" → "my%20table.table.json".
func tableFileName(table string) string {
	return encodeName(table) + tableSuffix
}

// metadataFileName names the JSON document holding a table's definition.
func metadataFileName(table string) string {
	return encodeName(table) + metadataSuffix
}

// IndexFileName names the snapshot of the index on table.field. Both parts
// are percent-encoded, so the '.' separating them is unambiguous.
func IndexFileName(table, field string) string {
	return encodeName(table) + "." + encodeName(field) + indexSuffix
}

// ParseIndexFileName reverses IndexFileName.
func ParseIndexFileName(filename string) (table, field string, err error) {
	base, ok := strings.CutSuffix(filename, indexSuffix)
	if !ok {
		return "", "", fmt.Errorf("missing %s suffix: %q", indexSuffix, filename)
	}
	encTable, encField, ok := strings.Cut(base, ".")
	if !ok || strings.Contains(encField, ".") {
		return "", "", fmt.Errorf("malformed index file name %q", filename)
	}
	if table, err = decodeName(encTable); err != nil {
		return "", "", err
	}
	if field, err = decodeName(encField); err != nil {
		return "", "", err
	}
	return table, field, nil
}

// encodeName percent-encodes bytes outside [a-zA-Z0-9_-].
func encodeName(name string) string {
	var b strings.Builder
	for _, c := range []byte(name) {
		if isFilenameSafe(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func decodeName(encoded string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(encoded); {
		if encoded[i] != '%' {
			b.WriteByte(encoded[i])
			i++
			continue
		}
		if i+2 >= len(encoded) {
			return "", fmt.Errorf("truncated percent-encoding in %q at position %d", encoded, i)
		}
		hi, lo := unhex(encoded[i+1]), unhex(encoded[i+2])
		if hi < 0 || lo < 0 {
			return "", fmt.Errorf("invalid percent-encoding in %q at position %d", encoded, i)
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 3
	}
	return b.String(), nil
}

func isFilenameSafe(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return -1
	}
}
