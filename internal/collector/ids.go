package collector

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	commentsPath = regexp.MustCompile(`/comments/([A-Za-z0-9]+)`)
	bareID       = regexp.MustCompile(`^[A-Za-z0-9]{1,12}$`)
)

// PostIDFromURL accepts a permalink, a short link, a fullname (t3_xxx) or a
// bare id and returns the bare post id.
func PostIDFromURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if m := commentsPath.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	if strings.HasPrefix(s, "https://redd.it/") || strings.HasPrefix(s, "http://redd.it/") {
		s = s[strings.LastIndex(s, "/")+1:]
	}
	s = strings.TrimPrefix(s, "t3_")
	if bareID.MatchString(s) {
		return s, nil
	}
	return "", fmt.Errorf("cannot find a post id in %q", s)
}

// splitIDs splits a comma-separated id list, normalising every entry.
func splitIDs(target string) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(target, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := PostIDFromURL(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ids in %q", target)
	}
	return ids, nil
}
