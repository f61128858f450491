package transfer

import (
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
)

const dialTimeout = 5 * time.Second

// FTPTransfer shares one control connection between all callers. Every
// command exchange, including the data transfer of a RETR and its closing
// reply, runs under mu.
type FTPTransfer struct {
	mu       sync.Mutex
	conn     *ftp.ServerConn
	cmd      *cmdConn
	addr     string
	user     string
	password string
}

func NewFTPTransfer(addr, user, password string) (RemoteSession, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}

	if err = conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: login %s: %v", ErrConnection, addr, err)
	}

	transfer := new(FTPTransfer)
	transfer.conn = conn
	transfer.addr = addr
	transfer.user = user
	transfer.password = password
	return transfer, nil
}

func (t *FTPTransfer) ChangeDir(dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.conn.ChangeDir(dir); err != nil {
		return fmt.Errorf("%w: cwd %s: %v", ErrConnection, dir, err)
	}

	// The digest channel resolves names relative to its own working directory.
	if t.cmd != nil {
		if _, _, err := t.cmd.cmd(2, "CWD %s", dir); err != nil {
			return fmt.Errorf("%w: cwd %s: %v", ErrConnection, dir, err)
		}
	}
	return nil
}

func (t *FTPTransfer) List(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.conn.List(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrConnection, dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}

		names = append(names, entry.Name)
	}
	return names, nil
}

func (t *FTPTransfer) Fetch(name string, w io.Writer) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	resp, err := t.conn.Retr(name)
	if err != nil {
		return 0, replyError("retr", name, err)
	}

	tracker := &writeTracker{w: w}
	n, err := io.Copy(tracker, resp)
	closeErr := resp.Close()
	if tracker.err != nil {
		return n, tracker.err
	}
	if err != nil {
		return n, fmt.Errorf("%w: retr %s: %v", ErrConnection, name, err)
	}
	if closeErr != nil {
		return n, replyError("retr", name, closeErr)
	}
	return n, nil
}

func (t *FTPTransfer) RemoteDigest(name, algo string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		cmd, err := dialCmd(t.addr, t.user, t.password)
		if err != nil {
			return "", fmt.Errorf("%w: digest channel: %v", ErrConnection, err)
		}

		if dir, err := t.conn.CurrentDir(); err == nil {
			if _, _, err = cmd.cmd(2, "CWD %s", dir); err != nil {
				cmd.Close()
				return "", fmt.Errorf("%w: digest channel: %v", ErrConnection, err)
			}
		}
		t.cmd = cmd
	}

	return t.cmd.digest(name, algo)
}

func (t *FTPTransfer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		t.cmd.Close()
		t.cmd = nil
	}

	if err := t.conn.Quit(); err != nil {
		return fmt.Errorf("%w: quit: %v", ErrConnection, err)
	}
	return nil
}

func replyError(op, name string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("%w: %s %s: %v", ErrNotFound, op, name, err)
	}

	return fmt.Errorf("%w: %s %s: %v", ErrConnection, op, name, err)
}
