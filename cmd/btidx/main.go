// Command btidx is the CLI dispatcher for the single-file B-tree index:
// create, insert, search, load, print, and extract.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"btidx/internal/index"
)

func main() {
	logger := log.New(os.Stderr, "", 0)

	if len(os.Args) < 3 {
		logger.Printf("Usage: %s <indexfile> <command> [args...]", os.Args[0])
		os.Exit(1)
	}

	path, cmd, args := os.Args[1], os.Args[2], os.Args[3:]

	if err := run(path, cmd, args); err != nil {
		reportAndExit(logger, err)
	}
}

func run(path, cmd string, args []string) error {
	if cmd == "create" {
		idx, err := index.Create(path)
		if err != nil {
			return err
		}
		return idx.Close()
	}

	idx, err := index.Open(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	switch cmd {
	case "insert":
		return runInsert(idx, args)
	case "search":
		return runSearch(idx, args)
	case "load":
		return runLoad(idx, args)
	case "print":
		return idx.Print(os.Stdout)
	case "extract":
		return runExtract(idx, args)
	default:
		return fmt.Errorf("unknown or malformed command: %s", cmd)
	}
}

func runInsert(idx *index.Index, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("insert requires exactly 2 arguments: key value")
	}
	key, value, err := parseUints(args[0], args[1])
	if err != nil {
		return err
	}
	return idx.Insert(key, value)
}

func runSearch(idx *index.Index, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("search requires exactly 1 argument: key")
	}
	key, err := parseUint(args[0])
	if err != nil {
		return err
	}
	value, err := idx.Search(key)
	if err != nil {
		if errors.Is(err, index.ErrKeyNotFound) {
			fmt.Println("Error: Key not found")
		}
		return err
	}
	fmt.Printf("%d,%d\n", key, value)
	return nil
}

func runLoad(idx *index.Index, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("load requires exactly 1 argument: csv-path")
	}
	f, err := os.Open(args[0])
	if err != nil {
		if os.IsNotExist(err) {
			return index.ErrLoadSourceNotFound
		}
		return err
	}
	defer f.Close()
	_, err = idx.Load(f)
	return err
}

func runExtract(idx *index.Index, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("extract requires exactly 1 argument: out-path")
	}
	return idx.Extract(args[0])
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed integer argument %q: %w", s, err)
	}
	return v, nil
}

func parseUints(a, b string) (uint64, uint64, error) {
	x, err := parseUint(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseUint(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func reportAndExit(logger *log.Logger, err error) {
	switch {
	case errors.Is(err, index.ErrAlreadyExists):
		logger.Printf("Error: File already exists")
	case errors.Is(err, index.ErrNotFound):
		logger.Printf("Error: Index file does not exist")
	case errors.Is(err, index.ErrLoadSourceNotFound):
		logger.Printf("Error: CSV input file not found")
	case errors.Is(err, index.ErrBadMagic):
		logger.Printf("Error: Invalid index file")
	case errors.Is(err, index.ErrKeyNotFound):
		// already reported on stdout by runSearch
	case errors.Is(err, index.ErrDuplicateKey):
		logger.Printf("Error: %v", err)
	default:
		logger.Printf("Error: %v", err)
	}
	os.Exit(1)
}
