package backup

import (
	"errors"
	"time"
)

var (
	// ErrLocalIO marks failures of the local filesystem.
	ErrLocalIO     = errors.New("local I/O error")
	ErrInvalidName = errors.New("invalid file name")
)

type Status int

const (
	Verified Status = iota
	HashMismatch
	TransferError
)

func (s Status) String() string {
	switch s {
	case Verified:
		return "verified"
	case HashMismatch:
		return "hash mismatch"
	case TransferError:
		return "transfer error"
	}
	return "unknown"
}

// RemoteFileHandle names one listed file and where it lives on both sides.
type RemoteFileHandle struct {
	Name       string
	RemotePath string
	LocalPath  string
}

// TransferOutcome is the result of transferring and verifying one file.
// Err is set only for TransferError.
type TransferOutcome struct {
	FileName     string
	Status       Status
	Err          error
	Bytes        int64
	LocalDigest  string
	RemoteDigest string
}

func (o TransferOutcome) Verified() bool {
	return o.Status == Verified
}

// BackupResult aggregates one run. Err is set when the run was aborted before
// any file was dispatched; Outcomes and Failures keep listing order.
type BackupResult struct {
	RemoteDir string
	LocalDir  string
	Started   time.Time
	Finished  time.Time
	Outcomes  []TransferOutcome
	Failures  []TransferOutcome
	Err       error
}

func (r BackupResult) Success() bool {
	return r.Err == nil && len(r.Failures) == 0
}

func failures(outcomes []TransferOutcome) []TransferOutcome {
	var failed []TransferOutcome
	for _, outcome := range outcomes {
		if !outcome.Verified() {
			failed = append(failed, outcome)
		}
	}
	return failed
}
