package crypto

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// HashReader wraps an io.Reader and computes hashes while reading.
// Public file uploads use it to obtain the MD5 cache-buster of the stored
// content in a single pass.
type HashReader struct {
	reader io.Reader
	sha256 hash.Hash
	md5    hash.Hash
	size   int64
}

// NewHashReader creates a new HashReader that computes SHA-256 and MD5.
func NewHashReader(r io.Reader) *HashReader {
	return &HashReader{
		reader: r,
		sha256: sha256.New(),
		md5:    md5.New(),
	}
}

// Read implements io.Reader and updates hash computations.
func (h *HashReader) Read(p []byte) (n int, err error) {
	n, err = h.reader.Read(p)
	if n > 0 {
		h.sha256.Write(p[:n])
		h.md5.Write(p[:n])
		h.size += int64(n)
	}
	return n, err
}

// SHA256 returns the hex-encoded SHA-256 hash.
// Should only be called after reading is complete.
func (h *HashReader) SHA256() string {
	return hex.EncodeToString(h.sha256.Sum(nil))
}

// MD5 returns the hex-encoded MD5 hash.
// Should only be called after reading is complete.
func (h *HashReader) MD5() string {
	return hex.EncodeToString(h.md5.Sum(nil))
}

// Size returns the total number of bytes read.
func (h *HashReader) Size() int64 {
	return h.size
}

// ComputeMD5 computes the hex-encoded MD5 hash of a byte slice.
func ComputeMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ComputeSHA256 computes the hex-encoded SHA-256 hash of a byte slice.
func ComputeSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
