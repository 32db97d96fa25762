package batch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSubject loads one session log, transparently decompressing .gz and
// .zst inputs. Session logs come from scrapers and proxies with no encoding
// discipline, so non-UTF-8 bytes are decoded as Latin-1 rather than
// rejected; a subject read never fails on encoding alone.
func ReadSubject(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var r io.Reader = f

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("open gzip input: %w", err)
		}
		defer gz.Close()
		r = gz
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("open zstd input: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	return decodeSubject(data), nil
}

func decodeSubject(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return string(data)
	}

	// Latin-1 maps all 256 byte values, so any input decodes.
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), string(utf8.RuneError))
	}

	return string(decoded)
}
