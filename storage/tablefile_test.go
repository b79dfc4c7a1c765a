package storage

import "testing"

func TestFileNames(t *testing.T) {
	cases := []struct {
		table     string
		wantTable string
		wantMeta  string
	}{
		{"users", "users.table.json", "users.meta.json"},
		{"my_table", "my_table.table.json", "my_table.meta.json"},
		{"my table", "my%20table.table.json", "my%20table.meta.json"},
		{"a.b", "a%2Eb.table.json", "a%2Eb.meta.json"},
		{"users.meta", "users%2Emeta.table.json", "users%2Emeta.meta.json"},
	}
	for _, tc := range cases {
		t.Run(tc.table, func(t *testing.T) {
			if got := tableFileName(tc.table); got != tc.wantTable {
				t.Errorf("tableFileName(%q) = %q, want %q", tc.table, got, tc.wantTable)
			}
			if got := metadataFileName(tc.table); got != tc.wantMeta {
				t.Errorf("metadataFileName(%q) = %q, want %q", tc.table, got, tc.wantMeta)
			}
		})
	}
}

func TestIndexFileName_RoundTrip(t *testing.T) {
	cases := []struct {
		table, field string
		wantFile     string
	}{
		{"users", "id", "users.id.idx"},
		{"users", "signup date", "users.signup%20date.idx"},
		{"café", "größe", "caf%C3%A9.gr%C3%B6%C3%9Fe.idx"},
		{"a.b", "c.d", "a%2Eb.c%2Ed.idx"},
		{"100%done", "x", "100%25done.x.idx"},
		{"tbl/sub", "f", "tbl%2Fsub.f.idx"},
	}

	for _, tc := range cases {
		t.Run(tc.wantFile, func(t *testing.T) {
			got := IndexFileName(tc.table, tc.field)
			if got != tc.wantFile {
				t.Errorf("IndexFileName(%q, %q) = %q, want %q", tc.table, tc.field, got, tc.wantFile)
			}

			table, field, err := ParseIndexFileName(got)
			if err != nil {
				t.Fatalf("ParseIndexFileName(%q) error: %v", got, err)
			}
			if table != tc.table || field != tc.field {
				t.Errorf("round-trip: got (%q, %q), want (%q, %q)", table, field, tc.table, tc.field)
			}
		})
	}
}

func TestParseIndexFileName_Errors(t *testing.T) {
	cases := []string{
		"noext",
		"users.idx",      // no field part
		"a.b.c.idx",      // unencoded dot
		"bad%2.f.idx",    // truncated percent-encoding
		"t.bad%GG.idx",   // invalid hex
		"users.id.table", // wrong suffix
	}
	for _, tc := range cases {
		t.Run(tc, func(t *testing.T) {
			if _, _, err := ParseIndexFileName(tc); err == nil {
				t.Errorf("ParseIndexFileName(%q) should fail", tc)
			}
		})
	}
}
