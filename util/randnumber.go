package util

import (
	"crypto/rand"
	"encoding/binary"
)

// new a insecure rand creator from crypto/rand seed
func newInsecureRand(n int) []byte {
	randByte := make([]byte, n)
	_, err := rand.Read(randByte)
	if err != nil {
		panic("init rand number creator failed...")
	}
	return randByte
}

// InsecureRand32 create a random number in [0, math.MaxUint32]
func InsecureRand32() uint32 {
	r := newInsecureRand(4)
	return binary.LittleEndian.Uint32(r)
}

func GetRandHash() *Hash {
	var hash Hash
	copy(hash[:], newInsecureRand(Hash256Size))
	return &hash
}
