package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/qepting91/reddit-export/internal/domain"
	"github.com/qepting91/reddit-export/internal/storage"
)

// Regex for valid subreddit and user names
var (
	subNameRegex  = regexp.MustCompile(`^[A-Za-z0-9_]{2,21}$`)
	userNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)
)

// LoadTargets reads the first column of a CSV file (header skipped) and
// returns the distinct targets in file order. Rows that are not a valid
// name for selector are skipped.
func LoadTargets(path string, selector domain.Selector) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(storage.StripBOM(f))
	r.FieldsPerRecord = -1

	var targets []string
	seen := map[string]struct{}{}
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++
		if line == 1 {
			continue // Skip header
		}
		if len(record) == 0 {
			continue
		}

		// Validation (Fail-Soft)
		name := normalize(record[0], selector)
		if !valid(name, selector) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	return targets, nil
}

func normalize(raw string, selector domain.Selector) string {
	name := strings.TrimSpace(raw)
	switch selector {
	case domain.BySubreddit:
		name = strings.TrimPrefix(strings.TrimPrefix(name, "/"), "r/")
	case domain.ByAuthor:
		name = strings.TrimPrefix(strings.TrimPrefix(name, "/"), "u/")
	}
	return name
}

func valid(name string, selector domain.Selector) bool {
	switch selector {
	case domain.BySubreddit:
		return subNameRegex.MatchString(name)
	case domain.ByAuthor:
		return userNameRegex.MatchString(name)
	default:
		return name != ""
	}
}

// LoadIDs reads a JSON id file: either a plain array of ids or an object
// with an "id" array, as written by extract-ids.
func LoadIDs(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		var wrapped struct {
			ID []string `json:"id"`
		}
		if werr := json.Unmarshal(raw, &wrapped); werr != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		ids = wrapped.ID
	}

	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no ids", path)
	}
	return out, nil
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
