// Package storage is the tabular store: it loads and saves datasets as
// delimited text, spreadsheets or newline-delimited JSON.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qepting91/reddit-export/internal/domain"
)

// Format is an export file format.
type Format string

const (
	// FormatCSV is tab-separated text with a .csv extension, which is what
	// spreadsheet users double-click.
	FormatCSV    Format = "csv"
	FormatTSV    Format = "tsv"
	FormatXLSX   Format = "xlsx"
	FormatNDJSON Format = "ndjson"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatTSV, FormatXLSX, FormatNDJSON:
		return f, nil
	case "json", "jsonl":
		return FormatNDJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (use csv, tsv, xlsx or ndjson)", s)
	}
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string {
	return "." + string(f)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".txt":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".ndjson", ".jsonl", ".json":
		return FormatNDJSON, nil
	default:
		return "", fmt.Errorf("cannot tell the format of %s", path)
	}
}

// Load reads the dataset stored at path.
func Load(path string) (domain.Dataset, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return domain.Dataset{}, err
	}
	if format == FormatXLSX {
		return loadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Dataset{}, err
	}
	defer f.Close()

	if format == FormatNDJSON {
		return readNDJSON(f)
	}
	return readDelimited(f)
}

// Save writes ds to path. The file is written next to its destination and
// renamed into place, so a failed save never leaves a truncated export.
func Save(ds domain.Dataset, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := write(w, ds, format); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func write(w io.Writer, ds domain.Dataset, format Format) error {
	switch format {
	case FormatXLSX:
		return writeXLSX(w, ds)
	case FormatNDJSON:
		return writeNDJSON(w, ds)
	default:
		return writeDelimited(w, ds, '\t')
	}
}

// StripBOM drops a leading UTF-8 byte order mark, as written by Excel.
func StripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
