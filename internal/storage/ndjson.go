package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/qepting91/reddit-export/internal/domain"
)

// writeNDJSON writes one JSON object per record with keys in column order.
func writeNDJSON(w io.Writer, ds domain.Dataset) error {
	var buf bytes.Buffer
	for _, r := range ds.Records {
		buf.Reset()
		buf.WriteByte('{')
		for i, col := range ds.Columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(col)
			v, _ := json.Marshal(r[col])
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteString("}\n")
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// readNDJSON collects columns in first-seen key order across all lines.
func readNDJSON(r io.Reader) (domain.Dataset, error) {
	var ds domain.Dataset
	seen := map[string]struct{}{}

	scanner := bufio.NewScanner(StripBOM(r))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		keys, rec, err := decodeObject(text)
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				ds.Columns = append(ds.Columns, k)
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return domain.Dataset{}, err
	}
	for _, rec := range ds.Records {
		for _, col := range ds.Columns {
			if _, ok := rec[col]; !ok {
				rec[col] = ""
			}
		}
	}
	return ds, nil
}

// decodeObject decodes a flat JSON object keeping key order. Non-string
// scalars keep their JSON text; null becomes the empty string.
func decodeObject(data []byte) ([]string, domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected an object")
	}

	var keys []string
	rec := domain.Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected a key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		rec[key] = scalarText(raw)
	}
	return keys, rec, nil
}

func scalarText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "null":
		return ""
	case strings.HasPrefix(s, `"`):
		var out string
		if err := json.Unmarshal(raw, &out); err == nil {
			return out
		}
	}
	return s
}
