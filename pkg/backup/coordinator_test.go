package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chenjianlong/ftpbackup/pkg/transfer"
)

func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}

	files := map[string]string{}
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		files[entry.Name()] = string(data)
	}
	return files
}

func checkSessionUse(t *testing.T, s *fakeSession) {
	t.Helper()

	if len(s.violations) > 0 {
		t.Errorf("session misuse: %v", s.violations)
	}
	if s.closeCalls != 1 {
		t.Errorf("session closed %d times, want 1", s.closeCalls)
	}
}

func TestRunAllVerified(t *testing.T) {
	session := newFakeSession("a.txt", "b.txt", "c.bin")
	local := filepath.Join(t.TempDir(), "mirror")
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/pub", local, 2)
	if !result.Success() {
		t.Fatalf("expected success, got err=%v failures=%v", result.Err, result.Failures)
	}
	if session.dir != "/pub" {
		t.Errorf("session dir = %q, want /pub", session.dir)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}
	for i, name := range []string{"a.txt", "b.txt", "c.bin"} {
		outcome := result.Outcomes[i]
		if outcome.FileName != name || outcome.Status != Verified {
			t.Errorf("outcome %d = %+v, want %s verified", i, outcome, name)
		}
		if outcome.Bytes != int64(len("content of "+name)) {
			t.Errorf("outcome %d bytes = %d", i, outcome.Bytes)
		}
	}

	files := readDir(t, local)
	for name, data := range session.files {
		if files[name] != string(data) {
			t.Errorf("local %s = %q, want %q", name, files[name], data)
		}
	}
	checkSessionUse(t, session)

	if result.Finished.Before(result.Started) {
		t.Error("finished before started")
	}
}

func TestRunHashMismatch(t *testing.T) {
	session := newFakeSession("a.txt", "b.txt")
	session.digests["b.txt"] = "00000000000000000000000000000000"
	local := t.TempDir()
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/", local, 2)
	if result.Success() {
		t.Fatal("expected failure")
	}
	if result.Err != nil {
		t.Fatalf("mismatch must not abort the run: %v", result.Err)
	}
	if len(result.Failures) != 1 || result.Failures[0].FileName != "b.txt" || result.Failures[0].Status != HashMismatch {
		t.Fatalf("failures = %+v, want [b.txt hash mismatch]", result.Failures)
	}
	if result.Failures[0].Err != nil {
		t.Errorf("hash mismatch should carry no error, got %v", result.Failures[0].Err)
	}

	files := readDir(t, local)
	if len(files) != 2 || files["b.txt"] != "content of b.txt" {
		t.Errorf("both files must stay on disk, got %v", files)
	}
	checkSessionUse(t, session)
}

func TestRunEmptyListing(t *testing.T) {
	session := newFakeSession()
	local := filepath.Join(t.TempDir(), "mirror")
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/", local, 4)
	if !result.Success() {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(result.Outcomes))
	}
	if files := readDir(t, local); len(files) != 0 {
		t.Errorf("expected no local files, got %v", files)
	}
	checkSessionUse(t, session)
}

func TestRunListFailure(t *testing.T) {
	session := newFakeSession("a.txt")
	session.listErr = errRefused
	local := filepath.Join(t.TempDir(), "mirror")
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/", local, 2)
	if result.Success() {
		t.Fatal("expected failure")
	}
	if !errors.Is(result.Err, transfer.ErrConnection) {
		t.Errorf("expected connection error, got %v", result.Err)
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(result.Outcomes))
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Errorf("local directory must not be created, stat err = %v", err)
	}
	checkSessionUse(t, session)
}

func TestRunChangeDirFailure(t *testing.T) {
	session := newFakeSession("a.txt")
	session.cwdErr = fmt.Errorf("%w: cwd /nope: 550", transfer.ErrConnection)
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/nope", t.TempDir(), 2)
	if !errors.Is(result.Err, transfer.ErrConnection) {
		t.Errorf("expected connection error, got %v", result.Err)
	}
	checkSessionUse(t, session)
}

func TestRunOpenFailure(t *testing.T) {
	c := &Coordinator{Open: func() (transfer.RemoteSession, error) {
		return nil, errRefused
	}}

	result := c.Run("/", t.TempDir(), 2)
	if result.Err != errRefused {
		t.Errorf("expected open error, got %v", result.Err)
	}
}

func TestRunLocalDirFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	session := newFakeSession("a.txt")
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/", filepath.Join(blocker, "mirror"), 2)
	if !errors.Is(result.Err, ErrLocalIO) {
		t.Errorf("expected local I/O error, got %v", result.Err)
	}
	checkSessionUse(t, session)
}

func TestRunIsolatesPerFileErrors(t *testing.T) {
	session := newFakeSession("a.txt", "gone.txt", "b.txt", "nodigest.txt", "c.txt")
	session.fetchErr["gone.txt"] = fmt.Errorf("%w: retr gone.txt: 550", transfer.ErrNotFound)
	session.digestErr["nodigest.txt"] = fmt.Errorf("%w: md5 for nodigest.txt", transfer.ErrUnsupported)
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/", t.TempDir(), 3)
	if result.Err != nil {
		t.Fatalf("per-file errors must not abort the run: %v", result.Err)
	}
	if len(result.Outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(result.Outcomes))
	}
	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", result.Failures)
	}

	gone, nodigest := result.Failures[0], result.Failures[1]
	if gone.FileName != "gone.txt" || gone.Status != TransferError || !errors.Is(gone.Err, transfer.ErrNotFound) {
		t.Errorf("first failure = %+v", gone)
	}
	if nodigest.FileName != "nodigest.txt" || nodigest.Status != TransferError || !errors.Is(nodigest.Err, transfer.ErrUnsupported) {
		t.Errorf("second failure = %+v", nodigest)
	}
	checkSessionUse(t, session)
}

func TestRunIdempotent(t *testing.T) {
	session := newFakeSession("a.txt", "b.txt")
	local := t.TempDir()
	c := &Coordinator{Open: session.opener()}

	first := c.Run("/", local, 2)
	before := readDir(t, local)

	session.closed = false
	second := c.Run("/", local, 2)
	after := readDir(t, local)

	if !first.Success() || !second.Success() {
		t.Fatalf("expected two successful runs, got %v / %v", first.Err, second.Err)
	}
	if len(before) != len(after) {
		t.Fatalf("file count changed: %d -> %d", len(before), len(after))
	}
	for name, data := range before {
		if after[name] != data {
			t.Errorf("%s changed between runs", name)
		}
	}
}

func TestRunBoundsWorkers(t *testing.T) {
	tests := []struct {
		name       string
		maxWorkers int
		wantMax    int32
	}{
		{"three workers", 3, 3},
		{"zero means one", 0, 1},
		{"negative means one", -2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newFakeSession()
			for i := 0; i < 12; i++ {
				session.add(fmt.Sprintf("f%02d.dat", i), []byte{byte(i)})
			}
			session.delay = 5 * time.Millisecond
			c := &Coordinator{Open: session.opener()}

			result := c.Run("/", t.TempDir(), tt.maxWorkers)
			if !result.Success() {
				t.Fatalf("expected success, got %v %v", result.Err, result.Failures)
			}
			if session.maxInFlight > tt.wantMax {
				t.Errorf("observed %d concurrent fetches, limit %d", session.maxInFlight, tt.wantMax)
			}
			if len(result.Outcomes) != 12 {
				t.Errorf("expected 12 outcomes, got %d", len(result.Outcomes))
			}
			checkSessionUse(t, session)
		})
	}
}

func TestRunExcludes(t *testing.T) {
	session := newFakeSession("a.txt", "upload.tmp", "b.part", "c.txt")
	local := t.TempDir()
	c := &Coordinator{Open: session.opener(), Excludes: []string{"*.tmp", "*.{part,partial}"}}

	result := c.Run("/", local, 2)
	if !result.Success() {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %+v", result.Outcomes)
	}
	files := readDir(t, local)
	if _, ok := files["upload.tmp"]; ok {
		t.Error("excluded file was downloaded")
	}
}

func TestRunBadExcludePattern(t *testing.T) {
	session := newFakeSession("a.txt")
	c := &Coordinator{Open: session.opener(), Excludes: []string{"[a-"}}

	result := c.Run("/", t.TempDir(), 1)
	if result.Err == nil {
		t.Fatal("expected bad pattern to abort the run")
	}
	checkSessionUse(t, session)
}

func TestRunDuplicateAndInvalidNames(t *testing.T) {
	session := newFakeSession("a.txt", "../evil.txt")
	session.order = append(session.order, "a.txt")
	root := t.TempDir()
	local := filepath.Join(root, "mirror")
	c := &Coordinator{Open: session.opener()}

	result := c.Run("/", local, 2)
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %+v", result.Outcomes)
	}
	if len(result.Failures) != 1 || !errors.Is(result.Failures[0].Err, ErrInvalidName) {
		t.Fatalf("expected invalid name failure, got %+v", result.Failures)
	}
	if _, err := os.Stat(filepath.Join(root, "evil.txt")); !os.IsNotExist(err) {
		t.Error("file escaped the local directory")
	}
}
