package program

import (
	"os"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/shipq/tsrpc/tsparse"
)

// DefaultCacheSize is the number of parsed files a FileCache keeps.
const DefaultCacheSize = 512

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// FileCache keeps parsed source files across loads. Entries are keyed by
// path, size and modification time, so an edited file is parsed again.
// It is safe for concurrent use.
type FileCache struct {
	files *lru.Cache[cacheKey, *tsparse.File]
}

// NewFileCache returns a cache holding up to size parsed files.
func NewFileCache(size int) (*FileCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	files, err := lru.New[cacheKey, *tsparse.File](size)
	if err != nil {
		return nil, err
	}
	return &FileCache{files: files}, nil
}

// Len returns the number of cached files.
func (c *FileCache) Len() int {
	return c.files.Len()
}

// parse returns the parsed form of the file at path, reading it through the
// cache when c is non-nil. display is the path reported in positions.
func (c *FileCache) parse(path, display string) (*tsparse.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := cacheKey{path: path + "\x00" + display, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if c != nil {
		if f, ok := c.files.Get(key); ok {
			return f, nil
		}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := tsparse.ParseFile(display, src)
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.files.Add(key, f)
	}
	return f, nil
}
