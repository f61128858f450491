package hashutils

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

const BlockSize = 4096

var ErrUnknownAlgorithm = errors.New("unsupported hash algorithm")

const (
	MD5    = "md5"
	SHA1   = "sha1"
	SHA256 = "sha256"
)

// New returns a fresh hasher for algo. An empty algo selects MD5.
func New(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "", MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	}

	return nil, fmt.Errorf("%w %q", ErrUnknownAlgorithm, algo)
}

// Size returns the hex length of a digest produced by algo, or 0 if algo is unknown.
func Size(algo string) int {
	h, err := New(algo)
	if err != nil {
		return 0
	}

	return h.Size() * 2
}

// Digest reads r to EOF in BlockSize chunks and returns the lowercase hex digest.
func Digest(r io.Reader, algo string) (string, error) {
	h, err := New(algo)
	if err != nil {
		return "", err
	}

	block := make([]byte, BlockSize)
	for {
		n, err := r.Read(block)
		if n > 0 {
			h.Write(block[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileDigest digests the file at path. An unknown algo is reported before the
// file is opened.
func FileDigest(path, algo string) (string, error) {
	if _, err := New(algo); err != nil {
		return "", err
	}

	fs, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fs.Close()

	return Digest(fs, algo)
}

// Equal compares two hex digests ignoring case and surrounding blanks.
func Equal(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// IsHex reports whether s looks like a hex digest of algo.
func IsHex(s, algo string) bool {
	if len(s) != Size(algo) || len(s) == 0 {
		return false
	}

	_, err := hex.DecodeString(s)
	return err == nil
}
