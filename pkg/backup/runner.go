package backup

import (
	"log"
	"time"
)

// Notifier delivers the run summary to a human.
type Notifier interface {
	Notify(subject, body string) error
}

// Recorder keeps a durable log of finished runs.
type Recorder interface {
	Record(result BackupResult) error
}

type Options struct {
	RemoteDir string
	LocalDir  string
	Workers   int
}

type Runner struct {
	Coordinator *Coordinator
	Notifier    Notifier
	// Recorder is optional.
	Recorder Recorder
}

// RunBackup performs one backup run, notifies exactly once and returns the
// process exit status: 0 on success, 1 otherwise.
func (r *Runner) RunBackup(opts Options) int {
	result := r.Coordinator.Run(opts.RemoteDir, opts.LocalDir, opts.Workers)
	if result.Err != nil {
		log.Printf("Backup aborted: %v\n", result.Err)
	} else {
		log.Printf("Backup finished: %d files, %d failed, took %s\n", len(result.Outcomes),
			len(result.Failures), result.Finished.Sub(result.Started).Round(time.Millisecond))
	}

	if r.Recorder != nil {
		if err := r.Recorder.Record(result); err != nil {
			log.Printf("Failed to record run history: %v\n", err)
		}
	}

	subject, body := Report(result)
	if err := r.Notifier.Notify(subject, body); err != nil {
		log.Printf("Failed to send notification: %v\n", err)
	}

	if result.Success() {
		return 0
	}
	return 1
}
