package backup

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chenjianlong/ftpbackup/pkg/hashutils"
	"github.com/chenjianlong/ftpbackup/pkg/transfer"
)

// Worker downloads and verifies single files over a shared session.
type Worker struct {
	Session  transfer.RemoteSession
	HashAlgo string
}

// Transfer fetches h into h.LocalPath and compares digests. It never panics
// and reports every failure through the returned outcome. The downloaded file
// is left in place on a mismatch.
func (w *Worker) Transfer(h RemoteFileHandle) (outcome TransferOutcome) {
	outcome.FileName = h.Name
	defer func() {
		if r := recover(); r != nil {
			outcome = TransferOutcome{
				FileName: h.Name,
				Status:   TransferError,
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if err := checkName(h.Name); err != nil {
		return failed(outcome, err)
	}

	n, err := w.download(h)
	outcome.Bytes = n
	if err != nil {
		return failed(outcome, err)
	}

	remote, err := w.Session.RemoteDigest(h.Name, w.HashAlgo)
	if err != nil {
		return failed(outcome, err)
	}
	outcome.RemoteDigest = remote

	local, err := hashutils.FileDigest(h.LocalPath, w.HashAlgo)
	if errors.Is(err, hashutils.ErrUnknownAlgorithm) {
		return failed(outcome, err)
	}
	if err != nil {
		return failed(outcome, fmt.Errorf("%w: %v", ErrLocalIO, err))
	}
	outcome.LocalDigest = local

	if !hashutils.Equal(local, remote) {
		log.Printf("Hash mismatch for %s: local %s, remote %s\n", h.Name, local, remote)
		outcome.Status = HashMismatch
		return outcome
	}

	log.Printf("Verified %s (%d bytes)\n", h.Name, n)
	outcome.Status = Verified
	return outcome
}

// download closes the local file on every path, including a panicking Fetch.
func (w *Worker) download(h RemoteFileHandle) (n int64, err error) {
	fs, err := os.Create(h.LocalPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	defer func() {
		if closeErr := fs.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("%w: %v", ErrLocalIO, closeErr)
		}
	}()

	return w.Session.Fetch(h.Name, localFile{fs})
}

func failed(outcome TransferOutcome, err error) TransferOutcome {
	log.Printf("Transfer of %s failed: %v\n", outcome.FileName, err)
	outcome.Status = TransferError
	outcome.Err = err
	return outcome
}

// checkName rejects names that would escape the local directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// localFile tags write failures so they are not mistaken for transport errors.
type localFile struct {
	f *os.File
}

func (l localFile) Write(p []byte) (int, error) {
	n, err := l.f.Write(p)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	return n, err
}
