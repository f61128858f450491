package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chenjianlong/ftpbackup/pkg/backup"
	"go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// keyFormat is fixed width so keys sort chronologically.
const keyFormat = "2006-01-02T15:04:05.000000000Z07:00"

type FileRecord struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Bytes  int64  `json:"bytes"`
	Error  string `json:"error,omitempty"`
}

// RunRecord is the persisted summary of one backup run.
type RunRecord struct {
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	RemoteDir string       `json:"remote_dir"`
	LocalDir  string       `json:"local_dir"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
	Files     []FileRecord `json:"files"`
}

// BoltStore keeps run records keyed by their start time, so iteration order
// is chronological.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func NewRunRecord(result backup.BackupResult) *RunRecord {
	record := &RunRecord{
		Started:   result.Started,
		Finished:  result.Finished,
		RemoteDir: result.RemoteDir,
		LocalDir:  result.LocalDir,
		Success:   result.Success(),
		Files:     make([]FileRecord, 0, len(result.Outcomes)),
	}
	if result.Err != nil {
		record.Error = result.Err.Error()
	}

	for _, outcome := range result.Outcomes {
		file := FileRecord{
			Name:   outcome.FileName,
			Status: outcome.Status.String(),
			Bytes:  outcome.Bytes,
		}
		if outcome.Err != nil {
			file.Error = outcome.Err.Error()
		}
		record.Files = append(record.Files, file)
	}
	return record
}

// Record implements backup.Recorder.
func (s *BoltStore) Record(result backup.BackupResult) error {
	return s.Save(NewRunRecord(result))
}

func (s *BoltStore) Save(record *RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal run: %w", err)
		}

		key := []byte(record.Started.UTC().Format(keyFormat))
		if err = b.Put(key, data); err != nil {
			return fmt.Errorf("failed to put run: %w", err)
		}

		return nil
	})
}

// Runs returns all recorded runs, oldest first.
func (s *BoltStore) Runs() ([]*RunRecord, error) {
	var runs []*RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var record RunRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal run %s: %w", k, err)
			}
			runs = append(runs, &record)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return runs, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
