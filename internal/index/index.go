// Package index binds the B-tree engine to the six operations the command
// surface exposes: create, insert, search, load, print, and extract.
package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"btidx/internal/block"
	"btidx/internal/btree"
)

// Sentinel errors surfaced to the CLI dispatcher, mapped to the exit codes
// and messages of the external interface.
var (
	ErrAlreadyExists      = errors.New("index: file already exists")
	ErrNotFound           = errors.New("index: file not found")
	ErrKeyNotFound        = errors.New("index: key not found")
	ErrLoadSourceNotFound = errors.New("index: load source file not found")
)

// ErrBadMagic re-exports btree.ErrBadMagic so callers outside this package
// never need to import internal/btree directly to recognize it.
var ErrBadMagic = btree.ErrBadMagic

// ErrDuplicateKey re-exports btree.ErrDuplicateKey.
var ErrDuplicateKey = btree.ErrDuplicateKey

// Index is the operation façade over one open index file.
type Index struct {
	dev  *block.Device
	tree *btree.Tree
}

// Create makes a brand-new, empty index file at path. It fails with
// ErrAlreadyExists if the path is already occupied.
func Create(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, ErrAlreadyExists
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("index: stat %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("index: create %s: %w", path, err)
	}

	dev := block.Open(f)
	tree, err := btree.Create(dev)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Index{dev: dev, tree: tree}, nil
}

// Open opens an existing index file at path, failing with ErrNotFound if it
// does not exist or ErrBadMagic if its header is not a valid index.
func Open(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}

	dev := block.Open(f)
	tree, err := btree.Open(dev)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Index{dev: dev, tree: tree}, nil
}

// Close releases the index file.
func (idx *Index) Close() error {
	return idx.tree.Close()
}

// Insert adds a (key, value) pair, rejecting a repeated key with
// ErrDuplicateKey rather than overwriting the existing value.
func (idx *Index) Insert(key, value uint64) error {
	return idx.tree.Insert(key, value)
}

// Search looks up key, returning ErrKeyNotFound if it is absent.
func (idx *Index) Search(key uint64) (uint64, error) {
	value, found, err := idx.tree.Search(key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrKeyNotFound
	}
	return value, nil
}

// All visits every (key, value) pair in ascending key order.
func (idx *Index) All(visit func(key, value uint64)) error {
	return idx.tree.Traverse(visit)
}

// Load streams (key, value) rows from r — two decimal fields separated by
// a comma, one row per line — and inserts each. Every insert is its own
// durable unit, so rows preceding a parse failure remain persisted.
func (idx *Index) Load(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	inserted := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, err := parseRow(line)
		if err != nil {
			return inserted, fmt.Errorf("index: line %d: %w", lineNo, err)
		}
		if err := idx.tree.Insert(key, value); err != nil {
			return inserted, fmt.Errorf("index: line %d: %w", lineNo, err)
		}
		inserted++
	}
	if err := scanner.Err(); err != nil {
		return inserted, fmt.Errorf("index: reading input: %w", err)
	}
	return inserted, nil
}

func parseRow(line string) (key, value uint64, err error) {
	fields := strings.SplitN(line, ",", 2)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("malformed row %q: expected two comma-separated fields", line)
	}
	key, err = strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed key %q: %w", fields[0], err)
	}
	value, err = strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed value %q: %w", fields[1], err)
	}
	return key, value, nil
}

// Print writes every entry in ascending key order to w, one "key,value"
// line per entry.
func (idx *Index) Print(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var visitErr error
	err := idx.All(func(key, value uint64) {
		if visitErr != nil {
			return
		}
		if _, err := fmt.Fprintf(bw, "%d,%d\n", key, value); err != nil {
			visitErr = err
		}
	})
	if err != nil {
		return err
	}
	if visitErr != nil {
		return visitErr
	}
	return bw.Flush()
}

// Extract writes Print's output to a new file at outPath, failing with
// ErrAlreadyExists if that file already exists.
func (idx *Index) Extract(outPath string) error {
	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("index: create %s: %w", outPath, err)
	}
	defer f.Close()
	return idx.Print(f)
}
