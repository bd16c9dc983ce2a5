// Package hash computes and compares the content digests declared by packs.
//
// Every byte stream that packsync trusts passes through a Reader, which
// hashes the bytes as they're consumed. Once the stream has been read, the
// Reader can be compared with the expected digest without reading the
// content a second time.
package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	goHash "hash"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/sidkik/packsync/pkg/errors"
)

// Hash is a digest along with the algorithm that produced it.
type Hash struct {
	Format string `json:"format"`
	Value  string `json:"value"`
}

// Equal returns whether the two hashes describe the same digest.
func (h Hash) Equal(other Hash) bool {
	return strings.EqualFold(h.Format, other.Format) &&
		strings.EqualFold(strings.TrimSpace(h.Value), strings.TrimSpace(other.Value))
}

// IsZero returns whether the hash is unset.
func (h Hash) IsZero() bool {
	return h.Value == ""
}

func (h Hash) String() string {
	return h.Format + ":" + h.Value
}

// A Hasher knows how to compute a single hash format.
type Hasher struct {
	Format string
	new    func() goHash.Hash
	encode func([]byte) string
}

var hashers = map[string]Hasher{
	"sha1":    {Format: "sha1", new: sha1.New, encode: hex.EncodeToString},
	"sha256":  {Format: "sha256", new: sha256.New, encode: hex.EncodeToString},
	"sha512":  {Format: "sha512", new: sha512.New, encode: hex.EncodeToString},
	"md5":     {Format: "md5", new: md5.New, encode: hex.EncodeToString},
	"blake3":  {Format: "blake3", new: func() goHash.Hash { return blake3.New() }, encode: hex.EncodeToString},
	"murmur2": {Format: "murmur2", new: newMurmur2, encode: encodeMurmur2},
}

// Get returns the Hasher for `format`.
func Get(format string) (Hasher, error) {
	h, ok := hashers[strings.ToLower(format)]
	if !ok {
		return Hasher{}, errors.UnsupportedHashFormatError{Format: format}
	}
	return h, nil
}

// Formats returns the supported hash formats in sorted order.
func Formats() []string {
	var formats []string
	for f := range hashers {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Parse validates `value` as a digest of the given format and returns it in
// canonical form.
func Parse(format, value string) (Hash, error) {
	hasher, err := Get(format)
	if err != nil {
		return Hash{}, err
	}

	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return Hash{}, errors.MissingFieldError{Field: "hash"}
	}

	if hasher.Format == "murmur2" {
		if _, err := strconv.ParseUint(value, 10, 32); err != nil {
			return Hash{}, errors.WithContext(err, "parse murmur2 hash")
		}
	} else {
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return Hash{}, errors.WithContext(err, "decode hex")
		}
		if exp := hasher.new().Size(); len(decoded) != exp {
			return Hash{}, errors.Errorf("%s hash is %d bytes, want %d",
				hasher.Format, len(decoded), exp)
		}
	}
	return Hash{Format: hasher.Format, Value: value}, nil
}

// Sum hashes `data` in one go.
func (hasher Hasher) Sum(data []byte) Hash {
	h := hasher.new()
	h.Write(data)
	return Hash{Format: hasher.Format, Value: hasher.encode(h.Sum(nil))}
}

// NewReader wraps `r` so that everything read through it is hashed.
func (hasher Hasher) NewReader(r io.Reader) *Reader {
	return &Reader{
		src:    r,
		digest: hasher.new(),
		hasher: hasher,
	}
}

// Reader hashes the bytes of the underlying stream as they're read.
type Reader struct {
	src    io.Reader
	digest goHash.Hash
	hasher Hasher
	n      int64
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.digest.Write(p[:n])
		r.n += int64(n)
	}
	return n, err
}

// BytesRead returns the number of bytes that have passed through the reader.
func (r *Reader) BytesRead() int64 {
	return r.n
}

// Sum returns the digest of everything read so far.
func (r *Reader) Sum() Hash {
	return Hash{Format: r.hasher.Format, Value: r.hasher.encode(r.digest.Sum(nil))}
}

// Equal returns whether the digest of everything read so far matches
// `expected`.
func (r *Reader) Equal(expected Hash) bool {
	return r.Sum().Equal(expected)
}

// murmur2 is the variant of MurmurHash2 used by CurseForge for file
// fingerprints: whitespace bytes are ignored and the seed is 1. The whole
// input is needed up front since the length seeds the hash.
type murmur2 struct {
	data []byte
}

func newMurmur2() goHash.Hash {
	return &murmur2{}
}

func (m *murmur2) Write(p []byte) (int, error) {
	for _, b := range p {
		switch b {
		case 9, 10, 13, 32:
		default:
			m.data = append(m.data, b)
		}
	}
	return len(p), nil
}

func (m *murmur2) Sum(b []byte) []byte {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], murmur2Sum(m.data, 1))
	return append(b, out[:]...)
}

func (m *murmur2) Reset()         { m.data = nil }
func (m *murmur2) Size() int      { return 4 }
func (m *murmur2) BlockSize() int { return 4 }

func murmur2Sum(data []byte, seed uint32) uint32 {
	const (
		mul   = 0x5bd1e995
		shift = 24
	)

	h := seed ^ uint32(len(data))
	i := 0
	for ; len(data)-i >= 4; i += 4 {
		k := binary.LittleEndian.Uint32(data[i:])
		k *= mul
		k ^= k >> shift
		k *= mul
		h *= mul
		h ^= k
	}

	switch len(data) - i {
	case 3:
		h ^= uint32(data[i+2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[i+1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[i])
		h *= mul
	}

	h ^= h >> 13
	h *= mul
	h ^= h >> 15
	return h
}

func encodeMurmur2(sum []byte) string {
	return strconv.FormatUint(uint64(binary.BigEndian.Uint32(sum)), 10)
}
