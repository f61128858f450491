package backup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chenjianlong/ftpbackup/pkg/transfer"
)

// fakeSession is an in-memory remote store. It fails loudly (through
// violations) when used after Close, and tracks how many fetches overlap.
type fakeSession struct {
	order     []string
	files     map[string][]byte
	digests   map[string]string
	fetchErr  map[string]error
	digestErr map[string]error
	listErr   error
	cwdErr    error
	panicOn   string
	// panicFetch panics mid-download after recording the writer in lastWriter.
	panicFetch string
	delay      time.Duration
	lastWriter io.Writer

	mu         sync.Mutex
	dir        string
	closed     bool
	closeCalls int
	violations []string

	inFlight    int32
	maxInFlight int32
}

func newFakeSession(files ...string) *fakeSession {
	s := &fakeSession{
		files:     map[string][]byte{},
		digests:   map[string]string{},
		fetchErr:  map[string]error{},
		digestErr: map[string]error{},
	}
	for _, name := range files {
		s.add(name, []byte("content of "+name))
	}
	return s
}

func (s *fakeSession) add(name string, data []byte) {
	s.order = append(s.order, name)
	s.files[name] = data
}

func (s *fakeSession) opener() Opener {
	return func() (transfer.RemoteSession, error) {
		return s, nil
	}
}

func (s *fakeSession) check(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.violations = append(s.violations, op+" after close")
	}
}

func (s *fakeSession) ChangeDir(dir string) error {
	s.check("cwd")
	if s.cwdErr != nil {
		return s.cwdErr
	}
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) List(dir string) ([]string, error) {
	s.check("list")
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]string(nil), s.order...), nil
}

func (s *fakeSession) Fetch(name string, w io.Writer) (int64, error) {
	s.check("fetch")
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.maxInFlight)
		if cur <= peak || atomic.CompareAndSwapInt32(&s.maxInFlight, peak, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if name == s.panicFetch {
		s.mu.Lock()
		s.lastWriter = w
		s.mu.Unlock()
		w.Write([]byte("partial"))
		panic("connection reset mid transfer")
	}
	if err := s.fetchErr[name]; err != nil {
		return 0, err
	}
	data, ok := s.files[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", transfer.ErrNotFound, name)
	}
	n, err := w.Write(data)
	return int64(n), err
}

func (s *fakeSession) RemoteDigest(name, algo string) (string, error) {
	s.check("digest")
	if name == s.panicOn {
		panic("remote exploded")
	}
	if err := s.digestErr[name]; err != nil {
		return "", err
	}
	if d, ok := s.digests[name]; ok {
		return d, nil
	}
	sum := md5.Sum(s.files[name])
	return hex.EncodeToString(sum[:]), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeCalls++
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
	err      error
}

func (n *recordingNotifier) Notify(subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return n.err
}

type recordingRecorder struct {
	results []BackupResult
	err     error
}

func (r *recordingRecorder) Record(result BackupResult) error {
	r.results = append(r.results, result)
	return r.err
}

var errRefused = fmt.Errorf("%w: dial tcp 127.0.0.1:21: connection refused", transfer.ErrConnection)
