package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/qepting91/reddit-export/internal/domain"
)

func writeDelimited(w io.Writer, ds domain.Dataset, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(ds.Columns); err != nil {
		return err
	}
	row := make([]string, len(ds.Columns))
	for _, r := range ds.Records {
		for i, col := range ds.Columns {
			row[i] = r[col]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readDelimited(r io.Reader) (domain.Dataset, error) {
	br := bufio.NewReader(StripBOM(r))
	header, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return domain.Dataset{}, err
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(header)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	cols, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Dataset{}, errors.New("empty file")
	}
	if err != nil {
		return domain.Dataset{}, err
	}

	ds := domain.Dataset{Columns: cols}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Dataset{}, err
		}
		ds.Records = append(ds.Records, rowRecord(cols, row))
	}
	return ds, nil
}

// sniffDelimiter picks tab when the header line holds one, comma otherwise.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.IndexByte(head, '\t') >= 0 {
		return '\t'
	}
	return ','
}

func rowRecord(cols, row []string) domain.Record {
	rec := make(domain.Record, len(cols))
	for i, col := range cols {
		if i < len(row) {
			rec[col] = row[i]
		} else {
			rec[col] = ""
		}
	}
	return rec
}
