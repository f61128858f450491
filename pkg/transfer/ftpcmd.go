package transfer

import (
	"fmt"
	"net"
	"net/textproto"
	"strings"

	"github.com/chenjianlong/ftpbackup/pkg/hashutils"
	"github.com/jlaffaye/ftp"
)

// cmdConn is a bare FTP control connection used for the digest extension
// commands (XMD5, MD5, XSHA*, HASH), which ftp.ServerConn cannot send.
type cmdConn struct {
	conn *textproto.Conn
}

type digestCommand struct {
	opts string
	cmd  string
}

// Commands tried in order for each algorithm. HASH needs the algorithm to be
// selected first with OPTS.
var digestCommands = map[string][]digestCommand{
	hashutils.MD5: {
		{cmd: "XMD5 %s"},
		{cmd: "MD5 %s"},
		{opts: "OPTS HASH MD5", cmd: "HASH %s"},
	},
	hashutils.SHA1: {
		{cmd: "XSHA1 %s"},
		{opts: "OPTS HASH SHA-1", cmd: "HASH %s"},
	},
	hashutils.SHA256: {
		{cmd: "XSHA256 %s"},
		{opts: "OPTS HASH SHA-256", cmd: "HASH %s"},
	},
}

func dialCmd(addr, user, password string) (*cmdConn, error) {
	nc, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}

	c := &cmdConn{conn: textproto.NewConn(nc)}
	if _, _, err = c.conn.ReadResponse(ftp.StatusReady); err != nil {
		c.conn.Close()
		return nil, err
	}

	code, msg, err := c.cmd(0, "USER %s", user)
	if err == nil && code == ftp.StatusUserOK {
		code, msg, err = c.cmd(0, "PASS %s", password)
	}
	if err == nil && code != ftp.StatusLoggedIn {
		err = &textproto.Error{Code: code, Msg: msg}
	}
	if err != nil {
		c.conn.Close()
		return nil, err
	}
	return c, nil
}

// cmd sends one command and reads its reply. A non-zero expected code is
// checked the way textproto.Reader.ReadResponse does.
func (c *cmdConn) cmd(expected int, format string, args ...interface{}) (int, string, error) {
	if _, err := c.conn.Cmd(format, args...); err != nil {
		return 0, "", err
	}

	return c.conn.ReadResponse(expected)
}

func (c *cmdConn) digest(name, algo string) (string, error) {
	algo = strings.ToLower(algo)
	if algo == "" {
		algo = hashutils.MD5
	}

	for _, dc := range digestCommands[algo] {
		if dc.opts != "" {
			code, _, err := c.cmd(0, "%s", dc.opts)
			if err != nil {
				return "", fmt.Errorf("%w: %s: %v", ErrConnection, dc.opts, err)
			}
			if code/100 != 2 {
				continue
			}
		}

		code, msg, err := c.cmd(0, dc.cmd, name)
		if err != nil {
			return "", fmt.Errorf("%w: digest %s: %v", ErrConnection, name, err)
		}

		switch {
		case code/100 == 2:
			if digest, ok := parseDigestReply(msg, name, algo); ok {
				return digest, nil
			}
			return "", fmt.Errorf("%w: digest %s: unrecognized reply %q", ErrConnection, name, msg)
		case code == ftp.StatusFileUnavailable:
			return "", fmt.Errorf("%w: digest %s: %d %s", ErrNotFound, name, code, msg)
		case code >= 500 && code <= 504:
			continue
		default:
			return "", fmt.Errorf("%w: digest %s: %d %s", ErrConnection, name, code, msg)
		}
	}

	return "", fmt.Errorf("%w: %s for %s", ErrUnsupported, algo, name)
}

func (c *cmdConn) Close() error {
	c.cmd(0, "QUIT")
	return c.conn.Close()
}

// parseDigestReply picks the digest out of the reply text. Servers disagree on
// the layout ("251 name hash", "213 SHA-256 0-49 hash name", "250 hash"), so
// the first field that looks like a digest of algo and is not the file name
// itself wins.
func parseDigestReply(msg, name, algo string) (string, bool) {
	for _, field := range strings.Fields(msg) {
		field = strings.Trim(field, `"`)
		if field == name {
			continue
		}
		if hashutils.IsHex(field, algo) {
			return strings.ToLower(field), true
		}
	}

	return "", false
}
