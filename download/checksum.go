package download

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// digest accumulates the hash of a file as it is assembled, including any
// bytes already on disk from an earlier attempt. A nil digest accepts
// everything.
type digest struct {
	hash hash.Hash
	want []byte
}

func newDigest(h hash.Hash, expected string) (*digest, error) {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return nil, fmt.Errorf("expected checksum is not hex: %w", err)
	}
	if len(want) != h.Size() {
		return nil, fmt.Errorf("expected checksum has %d bytes, hash produces %d", len(want), h.Size())
	}
	return &digest{hash: h, want: want}, nil
}

func (d *digest) Write(p []byte) (int, error) {
	return d.hash.Write(p)
}

// absorb hashes the first n bytes of r.
func (d *digest) absorb(r io.Reader, n int64) error {
	if d == nil || n == 0 {
		return nil
	}
	_, err := io.CopyN(d.hash, r, n)
	return err
}

func (d *digest) reset() {
	if d != nil {
		d.hash.Reset()
	}
}

func (d *digest) verify() error {
	if d == nil {
		return nil
	}

	got := d.hash.Sum(nil)
	if !bytes.Equal(got, d.want) {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %x, got %x", d.want, got),
		}
	}
	return nil
}
