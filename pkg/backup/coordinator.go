package backup

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/chenjianlong/ftpbackup/pkg/transfer"
)

// Opener opens a new authenticated session to the remote store.
type Opener func() (transfer.RemoteSession, error)

type Coordinator struct {
	Open     Opener
	HashAlgo string
	// Excludes are doublestar patterns matched against listed file names.
	Excludes []string
}

// Run mirrors remoteDir into localDir with at most maxWorkers concurrent
// transfers. Failing to open the session, enter or list remoteDir, or create
// localDir aborts the run with result.Err set. Per-file failures never abort
// the run; every listed file gets exactly one outcome.
func (c *Coordinator) Run(remoteDir, localDir string, maxWorkers int) (result BackupResult) {
	result.RemoteDir = remoteDir
	result.LocalDir = localDir
	result.Started = time.Now()
	defer func() {
		result.Finished = time.Now()
	}()

	session, err := c.Open()
	if err != nil {
		result.Err = err
		return result
	}

	names, err := c.list(session, remoteDir)
	if err == nil {
		err = ensureDir(localDir)
	}
	if err != nil {
		closeSession(session)
		result.Err = err
		return result
	}

	log.Printf("Mirroring %d files from %s to %s\n", len(names), remoteDir, localDir)
	handles := make([]RemoteFileHandle, len(names))
	for i, name := range names {
		handles[i] = RemoteFileHandle{
			Name:       name,
			RemotePath: path.Join(remoteDir, name),
			LocalPath:  filepath.Join(localDir, name),
		}
	}

	worker := &Worker{Session: session, HashAlgo: c.HashAlgo}
	outcomes := dispatch(worker, handles, maxWorkers)
	closeSession(session)

	result.Outcomes = outcomes
	result.Failures = failures(outcomes)
	return result
}

func (c *Coordinator) list(session transfer.RemoteSession, remoteDir string) ([]string, error) {
	for _, pattern := range c.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}

	if err := session.ChangeDir(remoteDir); err != nil {
		return nil, err
	}

	listed, err := session.List("")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(listed))
	var names []string
	for _, name := range listed {
		if seen[name] {
			log.Printf("Skip duplicate listing entry %s\n", name)
			continue
		}
		seen[name] = true

		excluded, err := c.excluded(name)
		if err != nil {
			return nil, err
		}
		if excluded {
			log.Printf("Skip excluded file %s\n", name)
			continue
		}

		names = append(names, name)
	}
	return names, nil
}

func (c *Coordinator) excluded(name string) (bool, error) {
	for _, pattern := range c.Excludes {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// dispatch runs one transfer per handle on a pool of at most maxWorkers
// goroutines. outcomes[i] belongs to handles[i].
func dispatch(worker *Worker, handles []RemoteFileHandle, maxWorkers int) []TransferOutcome {
	outcomes := make([]TransferOutcome, len(handles))
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > len(handles) {
		maxWorkers = len(handles)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = worker.Transfer(handles[idx])
			}
		}()
	}

	for i := range handles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	return nil
}

func closeSession(session transfer.RemoteSession) {
	if err := session.Close(); err != nil {
		log.Println(err)
	}
}
