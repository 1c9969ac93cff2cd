package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestCreateWritesHeaderAndEmptyRoot checks that a freshly created index
// is 2048 bytes with a valid header in block 0 (magic, root=1, next-free=2)
// and an empty leaf root (id=1, parent=0, no keys) in block 1.
func TestCreateWritesHeaderAndEmptyRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")

	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer idx.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() != 2048 {
		t.Errorf("expected file size 2048, got %d", info.Size())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(raw[0:8]) != "4348PRJ3" {
		t.Errorf("expected magic 4348PRJ3, got %q", raw[0:8])
	}
	if root, next := binary.BigEndian.Uint64(raw[8:]), binary.BigEndian.Uint64(raw[16:]); root != 1 || next != 2 {
		t.Errorf("expected header root=1 next-free=2, got root=%d next-free=%d", root, next)
	}

	leaf, id := raw[512], binary.BigEndian.Uint64(raw[513:])
	parent, keyCount := binary.BigEndian.Uint64(raw[521:]), binary.BigEndian.Uint32(raw[529:])
	if leaf != 1 || id != 1 || parent != 0 || keyCount != 0 {
		t.Errorf("expected empty leaf root id=1 parent=0, got leaf=%d id=%d parent=%d keyCount=%d", leaf, id, parent, keyCount)
	}
}

func TestCreateRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")

	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	idx.Close()

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if _, err := Create(path); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("expected the existing file to be left untouched")
	}
}

// TestInsertAndPrintProducesSortedRows checks that three out-of-order
// inserts followed by print produce exactly "3,30\n5,50\n9,90\n".
func TestInsertAndPrintProducesSortedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer idx.Close()

	for _, kv := range [][2]uint64{{5, 50}, {3, 30}, {9, 90}} {
		if err := idx.Insert(kv[0], kv[1]); err != nil {
			t.Fatalf("Insert(%d,%d) failed: %v", kv[0], kv[1], err)
		}
	}

	var buf bytes.Buffer
	if err := idx.Print(&buf); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	want := "3,30\n5,50\n9,90\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

// TestSearchFoundAndNotFound checks that search for a present key
// succeeds and search for an absent key reports ErrKeyNotFound.
func TestSearchFoundAndNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer idx.Close()

	if err := idx.Insert(5, 50); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	value, err := idx.Search(5)
	if err != nil || value != 50 {
		t.Errorf("expected (50, nil), got (%d, %v)", value, err)
	}

	if _, err := idx.Search(7); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

// TestBulkLoadSequentialKeys loads the 20 keys 1..20 in order through
// Load and checks every row is searchable afterward.
func TestBulkLoadSequentialKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer idx.Close()

	var rows strings.Builder
	for k := uint64(1); k <= 20; k++ {
		fmt.Fprintf(&rows, "%d,%d\n", k, k*10)
	}

	n, err := idx.Load(strings.NewReader(rows.String()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n != 20 {
		t.Errorf("expected 20 rows inserted, got %d", n)
	}

	for k := uint64(1); k <= 20; k++ {
		value, err := idx.Search(k)
		if err != nil || value != k*10 {
			t.Errorf("Search(%d): expected (%d, nil), got (%d, %v)", k, k*10, value, err)
		}
	}
}

func TestExtractRefusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer idx.Close()

	if err := idx.Insert(1, 2); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	outPath := filepath.Join(dir, "out.csv")
	if err := os.WriteFile(outPath, []byte("existing"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := idx.Extract(outPath); err != ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestExtractWritesPrintOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer idx.Close()

	for _, kv := range [][2]uint64{{2, 20}, {1, 10}} {
		if err := idx.Insert(kv[0], kv[1]); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	outPath := filepath.Join(dir, "out.csv")
	if err := idx.Extract(outPath); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "1,10\n2,20\n" {
		t.Errorf("expected %q, got %q", "1,10\n2,20\n", string(got))
	}
}

// TestOpenBadMagicLeavesFileUntouched checks that opening a file whose
// first 8 bytes are not the magic tag fails with ErrBadMagic and performs
// no mutation.
func TestOpenBadMagicLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	if err := os.WriteFile(path, make([]byte, 2048), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if _, err := Open(path); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("expected no mutation on bad-magic open")
	}
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")
	if _, err := Open(path); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadPersistsRowsBeforeParseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer idx.Close()

	input := "1,10\n2,20\nnotanumber,30\n4,40\n"
	n, err := idx.Load(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if n != 2 {
		t.Fatalf("expected 2 rows inserted before the failure, got %d", n)
	}

	if _, err := idx.Search(1); err != nil {
		t.Error("expected key 1 to have been persisted")
	}
	if _, err := idx.Search(2); err != nil {
		t.Error("expected key 2 to have been persisted")
	}
	if _, err := idx.Search(4); err != ErrKeyNotFound {
		t.Error("expected key 4 to never have been inserted")
	}
}

func TestIdempotentPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := idx.Insert(1, 2); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	idx.Close()

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	idx2, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	idx2.Close()

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("expected opening and closing without mutation to leave the file byte-identical")
	}
}
