package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultMaxFileSizeKB bounds the size of a file the scanner will parse.
// Real project files are a few hundred KB at most.
const DefaultMaxFileSizeKB = 4096

// headerSize is how much of a file is inspected before it is parsed.
const headerSize = 4 * 1024

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// FileValidator checks a file found by the scanner before it is parsed, so a
// huge or binary file carrying a project extension is reported instead of
// being read into memory.
type FileValidator struct {
	MaxSize    int64 // bytes; 0 disables the size check
	HeaderSize int64
}

func NewFileValidator(maxSizeKB int64) *FileValidator {
	return &FileValidator{
		MaxSize:    maxSizeKB * 1024,
		HeaderSize: headerSize,
	}
}

// Validate reads only the head of path and rejects files that are too large,
// look binary, or do not start with markup.
func (fv *FileValidator) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if fv.MaxSize > 0 && info.Size() > fv.MaxSize {
		return fmt.Errorf("file is %d KB, larger than the %d KB limit", info.Size()/1024, fv.MaxSize/1024)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, fv.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read header: %w", err)
	}
	header = header[:n]

	// UTF-16 is full of zero bytes; the decoder reports whether it is usable.
	if bytes.HasPrefix(header, utf16LEBOM) || bytes.HasPrefix(header, utf16BEBOM) {
		return nil
	}
	header = bytes.TrimPrefix(header, utf8BOM)

	if isBinaryData(header) {
		return errors.New("file appears to be binary")
	}
	if !startsWithMarkup(header) {
		return errors.New("file does not start with XML markup")
	}
	return nil
}

// isBinaryData reports whether more than 30% of data is control characters
// other than tab, LF and CR.
func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	nonPrintable := 0
	for _, b := range data {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}

// startsWithMarkup reports whether the first non-blank byte opens a tag. An
// empty file passes; the parser reports it.
func startsWithMarkup(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) == 0 || trimmed[0] == '<'
}
