package stability

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FS is the filesystem surface a probe needs.
type FS interface {
	// Size returns the current byte size of name.
	Size(name string) (int64, error)
	// ReadCheck opens name without contention and reads up to n bytes.
	ReadCheck(name string, n int) error
}

// OS is the real filesystem.
type OS struct{}

func (OS) Size(name string) (int64, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (OS) ReadCheck(name string, n int) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	unlock, err := tryShared(f)
	if err != nil {
		return fmt.Errorf("lock %s: %w", name, err)
	}
	defer unlock()

	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
