package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"
	"github.com/jeandeaual/go-locale"
	"github.com/mitchellh/go-ps"

	"github.com/chenjianlong/ftpbackup/pkg/backup"
	"github.com/chenjianlong/ftpbackup/pkg/config"
	"github.com/chenjianlong/ftpbackup/pkg/fsutils"
	"github.com/chenjianlong/ftpbackup/pkg/history"
	"github.com/chenjianlong/ftpbackup/pkg/i18n"
	"github.com/chenjianlong/ftpbackup/pkg/notify"
	"github.com/chenjianlong/ftpbackup/pkg/transfer"
)

const AppName = "FTPBackup"

// Exit status when another instance is still running.
const exitAlreadyRunning = 2

func main() {
	os.Exit(run())
}

func run() int {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	var args struct {
		Path string `arg:"-p" default:"config.ini" help:"config path"`
	}

	arg.MustParse(&args)

	loc, err := locale.GetLocale()
	if err != nil {
		log.Printf("Failed to detect locale, using English: %v\n", err)
		loc = "en"
	}
	i18n.InitBundle(loc)

	cfg, err := config.Load(args.Path)
	fsutils.CheckError(err)

	if otherInstanceRunning() {
		log.Printf("Another %s is still running, skip this run\n", AppName)
		return exitAlreadyRunning
	}

	runner := &backup.Runner{
		Coordinator: &backup.Coordinator{
			Open:     newTransfer(cfg),
			HashAlgo: cfg.HashAlgo,
			Excludes: cfg.Excludes,
		},
		Notifier: newNotifier(cfg),
	}

	if cfg.History {
		store, err := openHistory(cfg)
		if err != nil {
			log.Printf("Run history disabled: %v\n", err)
		} else {
			defer store.Close()
			runner.Recorder = store
		}
	}

	return runner.RunBackup(backup.Options{
		RemoteDir: cfg.RemoteDir,
		LocalDir:  cfg.LocalDir,
		Workers:   cfg.Workers,
	})
}

func newTransfer(cfg *config.Config) backup.Opener {
	if cfg.S3 != nil {
		s3 := *cfg.S3
		return func() (transfer.RemoteSession, error) {
			return transfer.NewS3Transfer(s3.Endpoint, s3.BucketName, s3.AccessKeyID, s3.SecretAccessKey, s3.Secure)
		}
	}

	ftp := *cfg.FTP
	return func() (transfer.RemoteSession, error) {
		return transfer.NewFTPTransfer(ftp.Addr, ftp.User, ftp.Password)
	}
}

func newNotifier(cfg *config.Config) backup.Notifier {
	if cfg.SMTP == nil {
		return notify.LogNotifier{}
	}

	return &notify.SMTPNotifier{
		Server:   cfg.SMTP.Server,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
	}
}

func openHistory(cfg *config.Config) (*history.BoltStore, error) {
	p := cfg.HistoryPath
	if p == "" {
		appData, err := fsutils.AppDataDir(AppName)
		if err != nil {
			return nil, err
		}
		p = filepath.Join(appData, "history.db")
	}

	return history.NewBoltStore(p)
}

func otherInstanceRunning() bool {
	self, err := ps.FindProcess(os.Getpid())
	if err != nil || self == nil {
		return false
	}

	processes, err := ps.Processes()
	if err != nil {
		log.Printf("Failed to list processes: %v\n", err)
		return false
	}

	for _, proc := range processes {
		if proc.Pid() != self.Pid() && proc.Executable() == self.Executable() {
			return true
		}
	}

	return false
}
