// Package block provides fixed-size, block-addressable file I/O.
// It implements the random-access layer the B-tree engine is built on.
package block

import (
	"fmt"
	"io"
	"os"
)

// Size is the fixed block size in bytes. Every block in the file, including
// the header at block 0, occupies exactly this many bytes.
const Size = 512

// Device is a thin abstraction over a seekable byte file, addressed by
// non-negative block index rather than byte offset.
type Device struct {
	file *os.File
}

// Open wraps an already-opened file as a block Device. The caller owns the
// file's lifecycle up to Close.
func Open(file *os.File) *Device {
	return &Device{file: file}
}

// ReadBlock reads the block at the given id. If the underlying file is
// shorter than (id+1)*Size bytes, the missing tail is returned as zero
// bytes, so a never-written block id reads back as an all-zero block.
func (d *Device) ReadBlock(id uint64) ([Size]byte, error) {
	var buf [Size]byte
	n, err := d.file.ReadAt(buf[:], int64(id)*Size)
	if err != nil && err != io.EOF {
		return buf, fmt.Errorf("read block %d: %w", id, err)
	}
	_ = n // short/zero reads are padded with the buffer's zero value
	return buf, nil
}

// WriteBlock writes exactly Size bytes at the given block id and flushes
// them to the operating system. A buffer of any other length is a
// programming error.
func (d *Device) WriteBlock(id uint64, data [Size]byte) error {
	if _, err := d.file.WriteAt(data[:], int64(id)*Size); err != nil {
		return fmt.Errorf("write block %d: %w", id, err)
	}
	return d.file.Sync()
}

// Size reports the number of whole blocks currently backing the file.
func (d *Device) Size() (uint64, error) {
	stat, err := d.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	return uint64(stat.Size()) / Size, nil
}

// Truncate grows or shrinks the file to exactly n blocks.
func (d *Device) Truncate(n uint64) error {
	if err := d.file.Truncate(int64(n) * Size); err != nil {
		return fmt.Errorf("truncate to %d blocks: %w", n, err)
	}
	return nil
}

// Close closes the underlying file.
func (d *Device) Close() error {
	return d.file.Close()
}
