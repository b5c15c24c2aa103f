// Package safeio bounds how much input the service and the CLI read.
package safeio

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTooLarge is returned when a source holds more than the allowed bytes.
var ErrTooLarge = errors.New("safeio: input exceeds limit")

// ReadAll reads at most maxBytes from r. It reads one byte past the limit to
// tell "exactly at the limit" from "over it".
func ReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// ReadFile reads path, or stdin when path is "-", with the same bound.
func ReadFile(path string, maxBytes int64) ([]byte, error) {
	if path == "-" {
		return ReadAll(os.Stdin, maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("safeio: %s is a directory", path)
	}
	data, err := ReadAll(f, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
