// Package source locates the crawled quad files of one source database and
// parses them one at a time.
package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"idpkg-go/logger"
	"idpkg-go/store"
)

// ErrMissingDir is returned when a source directory does not exist.
var ErrMissingDir = errors.New("source directory does not exist")

// File is one parsed crawl.
type File struct {
	Path   string
	Source string
	Data   *store.Dataset
}

// Reader lists and parses the files of one source directory.
type Reader struct {
	Name string
	Dir  string
	Ext  string
}

func NewReader(name, dir, ext string) *Reader {
	return &Reader{Name: name, Dir: dir, Ext: ext}
}

// Paths returns the files in Dir whose name ends in Ext, in directory-listing
// order. Sub-directories are not searched.
func (r *Reader) Paths() ([]string, error) {
	info, err := os.Stat(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingDir, "%s (%s)", r.Name, r.Dir)
		}
		return nil, errors.Wrapf(err, "stat %s", r.Dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s: %s is not a directory", r.Name, r.Dir)
	}

	matches, err := doublestar.Glob(os.DirFS(r.Dir), "*"+r.Ext, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", r.Dir)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(r.Dir, m))
	}
	return paths, nil
}

// ReadFile parses one file. Blank nodes are scoped to the file.
func (r *Reader) ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	data, err := store.Load(f, Scope(path))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	logger.Debug("Parsed source file",
		zap.String("source", r.Name),
		zap.String("path", path),
		zap.Int("statements", data.Len()))
	return &File{Path: path, Source: r.Name, Data: data}, nil
}

// Scope derives the blank node scope for a file from its path.
func Scope(path string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(path)))
	return "f" + strings.ReplaceAll(id.String(), "-", "")[:12]
}

// Files iterates over the parsed files of a Reader. Files are listed on the
// first call to Next and parsed one per call; the sequence cannot be
// restarted. Iteration stops at the first error, which Err then returns.
type Files struct {
	reader *Reader
	paths  []string
	listed bool
	next   int
	file   *File
	err    error
}

// Files returns a new iterator over r's files.
func (r *Reader) Files() *Files {
	return &Files{reader: r}
}

func (it *Files) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.listed {
		it.listed = true
		it.paths, it.err = it.reader.Paths()
		if it.err != nil {
			return false
		}
	}
	it.file = nil
	if it.next >= len(it.paths) {
		return false
	}
	path := it.paths[it.next]
	it.next++
	it.file, it.err = it.reader.ReadFile(path)
	return it.err == nil
}

// File returns the file parsed by the last call to Next.
func (it *Files) File() *File {
	return it.file
}

func (it *Files) Err() error {
	return it.err
}
