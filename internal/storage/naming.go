package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/qepting91/reddit-export/internal/domain"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Folder returns the output folder for a query.
func Folder(q domain.Query) string {
	switch q.Selector {
	case domain.BySubreddit:
		return "Subreddit"
	case domain.ByAuthor:
		return "User"
	case domain.ByTerm:
		return "Search"
	}
	if q.Kind == domain.KindComments {
		return "Comments"
	}
	return "Posts"
}

// ExportPath builds <outDir>/<Folder>/<kind>_<target>_<end>.<ext>.
func ExportPath(outDir string, q domain.Query, end time.Time, format Format) string {
	name := fmt.Sprintf("%s_%s_%d%s", q.Kind, FileTarget(q.Target), end.Unix(), format.Ext())
	return filepath.Join(outDir, Folder(q), name)
}

// FileTarget is the form a target takes inside an export file name.
func FileTarget(target string) string {
	target = unsafeName.ReplaceAllString(target, "-")
	target = strings.Trim(target, "-.")
	if len(target) > 64 {
		target = target[:64]
	}
	if target == "" {
		target = "export"
	}
	return target
}

// ExportName is what ParseExportName recovers from a file name.
type ExportName struct {
	Kind   domain.Kind
	Target string
	End    time.Time
	// Selector comes from the parent folder; empty when the file was moved
	// out of its folder.
	Selector domain.Selector
}

func folderSelector(folder string) domain.Selector {
	switch folder {
	case "Subreddit":
		return domain.BySubreddit
	case "User":
		return domain.ByAuthor
	case "Search":
		return domain.ByTerm
	case "Comments", "Posts":
		return domain.ByID
	}
	return ""
}

// ParseExportName reads back a name built by ExportPath. Targets may contain
// underscores; the kind is the first segment and the timestamp the last.
func ParseExportName(path string) (ExportName, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return ExportName{}, false
	}
	kind := domain.Kind(parts[0])
	if kind != domain.KindPosts && kind != domain.KindComments {
		return ExportName{}, false
	}
	end, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return ExportName{}, false
	}
	return ExportName{
		Kind:     kind,
		Target:   strings.Join(parts[1:len(parts)-1], "_"),
		End:      time.Unix(end, 0).UTC(),
		Selector: folderSelector(filepath.Base(filepath.Dir(path))),
	}, true
}
