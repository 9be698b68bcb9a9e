package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/reddit-export/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTargets_Subreddits(t *testing.T) {
	path := writeFile(t, "subs.csv", "\ufeffsubreddit,notes\n"+
		"france,main\n"+
		" r/golang \n"+
		"a\n"+ // too short
		"bad name!,x\n"+
		"france\n"+
		"\n"+
		"Python_3\n")

	got, err := LoadTargets(path, domain.BySubreddit)
	require.NoError(t, err)
	assert.Equal(t, []string{"france", "golang", "Python_3"}, got)
}

func TestLoadTargets_Authors(t *testing.T) {
	path := writeFile(t, "users.csv", "author\nspez\nu/kn0thing\nab\nsome-user_1\n")

	got, err := LoadTargets(path, domain.ByAuthor)
	require.NoError(t, err)
	assert.Equal(t, []string{"spez", "kn0thing", "some-user_1"}, got)
}

func TestLoadTargets_MissingFile(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.csv"), domain.BySubreddit)
	assert.Error(t, err)
}

func TestLoadIDs(t *testing.T) {
	got, err := LoadIDs(writeFile(t, "a.json", `["abc", " def ", ""]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "def"}, got)

	got, err = LoadIDs(writeFile(t, "b.json", `{"id": ["x1", "x2"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, got)

	_, err = LoadIDs(writeFile(t, "c.json", `[]`))
	assert.Error(t, err)

	_, err = LoadIDs(writeFile(t, "d.json", `not json`))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList(" a, b,,c ,"))
	assert.Nil(t, SplitList(""))
}
