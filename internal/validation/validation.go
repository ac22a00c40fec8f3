// Package validation guards file input read by the CLI: path checks, size
// limits and magic-byte type detection.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Limits to prevent resource exhaustion (CWE-400).
const (
	// MaxFileSize is the largest document or schema read (64 MB).
	MaxFileSize = 64 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnexpectedType   = errors.New("unexpected file type")
)

// ValidatePath checks a user-supplied path for length limits and
// invalid characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ReadFile reads path, failing with ErrFileTooLarge past limit bytes
// (limit <= 0 means MaxFileSize).
func ReadFile(path string, limit int64) ([]byte, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = MaxFileSize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, path, limit)
	}
	return data, nil
}

// FileType is a detected input file type.
type FileType string

// File types.
const (
	FileTypeXML     FileType = "xml"
	FileTypeXZ      FileType = "xz"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
}

// DetectFileType inspects the first bytes of data. Text starting with '<'
// after optional BOM and whitespace is XML.
func DetectFileType(data []byte) FileType {
	for _, m := range magicBytes {
		if bytes.HasPrefix(data, m.magic) {
			return m.fileType
		}
	}
	text := bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text = bytes.TrimLeftFunc(text, unicode.IsSpace)
	if len(text) > 0 && text[0] == '<' {
		return FileTypeXML
	}
	return FileTypeUnknown
}

// ExpectFileType reads the head of path and fails with ErrUnexpectedType
// unless it is want.
func ExpectFileType(path string, want FileType) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	if got := DetectFileType(head[:n]); got != want {
		return fmt.Errorf("%w: %s is %s, want %s", ErrUnexpectedType, path, got, want)
	}
	return nil
}
