package transfer

import (
	"errors"
	"io"
)

var (
	ErrConnection  = errors.New("connection error")
	ErrNotFound    = errors.New("remote file not found")
	ErrUnsupported = errors.New("remote digest not supported")
)

type Lister interface {
	// List returns the regular file names of dir in server order. An empty dir
	// lists the current directory.
	List(dir string) ([]string, error)
}

type Downloader interface {
	Fetch(name string, w io.Writer) (int64, error)
}

type Digester interface {
	// RemoteDigest returns the hex digest the store reports for name.
	RemoteDigest(name, algo string) (string, error)
}

// RemoteSession is one logical connection to the remote store. Implementations
// must be safe for use by concurrent workers.
type RemoteSession interface {
	Lister
	Downloader
	Digester
	ChangeDir(dir string) error
	Close() error
}

// writeTracker remembers the last error returned by the local writer so copy
// failures can be told apart from remote read failures.
type writeTracker struct {
	w   io.Writer
	err error
}

func (t *writeTracker) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
