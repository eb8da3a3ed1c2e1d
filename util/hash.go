package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

const (
	Hash256Size       = 32
	MaxHashStringSize = Hash256Size * 2
)

type Hash [Hash256Size]byte

var HashZero = Hash{}

// DoubleSha256Hash calculates sha256(sha256(b)) and returns the resulting
// bytes as a Hash.
func DoubleSha256Hash(buf []byte) Hash {
	first := sha256.Sum256(buf)
	return Hash(sha256.Sum256(first[:]))
}

func (hash *Hash) ToString() string {
	b := hash.GetCloneBytes()
	for i := 0; i < Hash256Size/2; i++ {
		b[i], b[Hash256Size-1-i] = b[Hash256Size-1-i], b[i]
	}
	return hex.EncodeToString(b)
}

func (hash *Hash) GetCloneBytes() []byte {
	b := make([]byte, Hash256Size)
	copy(b, hash[:])
	return b
}

func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

func (hash *Hash) IsNull() bool {
	return *hash == HashZero
}

func (hash *Hash) SetBytes(newHash []byte) error {
	length := len(newHash)
	if length != Hash256Size {
		return ErrHashLength
	}
	copy(hash[:], newHash)
	return nil
}

func (hash *Hash) Serialize(w io.Writer) (int, error) {
	return w.Write(hash[:])
}

func (hash *Hash) Unserialize(r io.Reader) (int, error) {
	return io.ReadFull(r, hash[:])
}

func (hash *Hash) Cmp(other *Hash) int {
	hashFlip := hash.GetCloneBytes()
	otherFlip := other.GetCloneBytes()
	for i := 0; i < Hash256Size/2; i++ {
		hashFlip[i], hashFlip[Hash256Size-1-i] = hashFlip[Hash256Size-1-i], hashFlip[i]
		otherFlip[i], otherFlip[Hash256Size-1-i] = otherFlip[Hash256Size-1-i], otherFlip[i]
	}
	return bytes.Compare(hashFlip, otherFlip)
}

// HashFromString parses a big-endian hex string (as hashes are printed)
// into a Hash. Short strings are zero padded at the high end.
func HashFromString(hexString string) *Hash {
	if len(hexString) > MaxHashStringSize {
		panic("hex string length more than max hash string size")
	}
	if len(hexString)%2 != 0 {
		hexString = "0" + hexString
	}
	buf, err := hex.DecodeString(hexString)
	if err != nil {
		panic("hex string decode error")
	}
	var hash Hash
	for i, b := range buf {
		hash[len(buf)-1-i] = b
	}
	return &hash
}
