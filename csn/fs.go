package csn

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/csndl/errutil"
)

const defaultFileExt = "mp3"

type OutputDir string

func (dir OutputDir) path() string {
	return string(dir)
}

// Album is the directory an album's files go under: <output>/<artist>/<album>.
func (dir OutputDir) Album(artist, album string) AlbumDir {
	return AlbumDir(filepath.Join(dir.path(), SanitizeFileName(artist), SanitizeFileName(album)))
}

type AlbumDir string

func (dir AlbumDir) Path() string {
	return string(dir)
}

func (dir AlbumDir) Create() error {
	return mkdirAll(dir.Path())
}

func (dir AlbumDir) Quality(q Quality) QualityDir {
	return QualityDir(filepath.Join(dir.Path(), q.String()))
}

type QualityDir string

func (dir QualityDir) Path() string {
	return string(dir)
}

func (dir QualityDir) Create() error {
	return mkdirAll(dir.Path())
}

func (dir QualityDir) File(name, ext string) string {
	return filepath.Join(dir.Path(), name+"."+ext)
}

func mkdirAll(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o0755); nil != err {
		flawP := flaw.P{"dir": dirPath, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to create directory: %v", err)).Append(flawP)
	}
	return nil
}

func fileExists(filePath string) (bool, error) {
	if _, err := os.Stat(filePath); nil != err {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		flawP := flaw.P{"file": filePath, "err_debug_tree": errutil.Tree(err).FlawP()}
		return false, flaw.From(fmt.Errorf("failed to stat file: %v", err)).Append(flawP)
	}
	return true, nil
}

var (
	invalidFileNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots         = regexp.MustCompile(`\.+$`)
	repeatedSpaces       = regexp.MustCompile(`\s+`)
)

// SanitizeFileName makes name usable as a single path element. Characters
// that are invalid on common filesystems become underscores.
func SanitizeFileName(name string) string {
	name = invalidFileNameChars.ReplaceAllString(name, "_")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = trailingDots.ReplaceAllString(name, "")
	if name == "" {
		return "_"
	}
	return name
}
