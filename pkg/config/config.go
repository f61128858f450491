package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/chenjianlong/ftpbackup/pkg/hashutils"
	"gopkg.in/ini.v1"
)

type FTP struct {
	Addr     string
	User     string
	Password string
}

type S3 struct {
	Endpoint        string
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Secure          bool
}

type SMTP struct {
	Server   string
	Port     int
	User     string
	Password string
	// From defaults to User.
	From string
	To   string
}

type Config struct {
	// Exactly one of FTP and S3 is set.
	FTP *FTP
	S3  *S3
	// SMTP is nil when mail notification is not configured.
	SMTP *SMTP

	RemoteDir string
	LocalDir  string
	Workers   int
	HashAlgo  string
	Excludes  []string

	History     bool
	HistoryPath string
}

func Load(path string) (*Config, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	return Parse(iniFile)
}

func Parse(iniFile *ini.File) (*Config, error) {
	cfg := new(Config)
	if s3Section, err := iniFile.GetSection("s3"); err == nil {
		cfg.S3 = &S3{
			Endpoint:        s3Section.Key("endpoint").String(),
			BucketName:      s3Section.Key("bucketName").String(),
			AccessKeyID:     s3Section.Key("accessKeyID").String(),
			SecretAccessKey: s3Section.Key("secretAccessKey").String(),
			Secure:          s3Section.Key("secure").MustBool(true),
		}
	} else if ftpSection, err := iniFile.GetSection("ftp"); err == nil {
		cfg.FTP = &FTP{
			Addr:     ftpSection.Key("addr").String(),
			User:     ftpSection.Key("user").MustString("anonymous"),
			Password: ftpSection.Key("password").String(),
		}
		if _, _, err := net.SplitHostPort(cfg.FTP.Addr); err != nil {
			cfg.FTP.Addr = net.JoinHostPort(cfg.FTP.Addr, "21")
		}
	} else {
		return nil, fmt.Errorf("invalid config: no s3 and ftp section")
	}

	backupSection := iniFile.Section("backup")
	cfg.RemoteDir = backupSection.Key("remoteDir").MustString("/")
	cfg.LocalDir = backupSection.Key("localDir").String()
	cfg.Workers = backupSection.Key("workers").MustInt(4)
	cfg.HashAlgo = strings.ToLower(backupSection.Key("hashAlgo").MustString(hashutils.MD5))
	cfg.History = backupSection.Key("history").MustBool(false)
	cfg.HistoryPath = backupSection.Key("historyPath").String()
	for _, pattern := range backupSection.Key("exclude").Strings(",") {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
		cfg.Excludes = append(cfg.Excludes, pattern)
	}

	if cfg.LocalDir == "" {
		return nil, fmt.Errorf("invalid config: backup.localDir is required")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("invalid config: backup.workers must be positive, got %d", cfg.Workers)
	}
	if _, err := hashutils.New(cfg.HashAlgo); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if smtpSection, err := iniFile.GetSection("smtp"); err == nil {
		cfg.SMTP = &SMTP{
			Server:   smtpSection.Key("server").String(),
			Port:     smtpSection.Key("port").MustInt(587),
			User:     smtpSection.Key("user").String(),
			Password: smtpSection.Key("password").String(),
			From:     smtpSection.Key("from").MustString(smtpSection.Key("user").String()),
			To:       smtpSection.Key("to").String(),
		}
	}

	return cfg, nil
}
