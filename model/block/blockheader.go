package block

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/copernet/bip9/util"
)

type BlockHeader struct {
	Version       int32
	HashPrevBlock util.Hash
	MerkleRoot    util.Hash
	Time          uint32
	Bits          uint32
	Nonce         uint32
}

const blockHeaderLength = 16 + util.Hash256Size*2

func NewBlockHeader() *BlockHeader {
	return &BlockHeader{}
}

func (bh *BlockHeader) IsNull() bool {
	return bh.Bits == 0
}

func (bh *BlockHeader) GetBlockTime() int64 {
	return int64(bh.Time)
}

func (bh *BlockHeader) GetHash() util.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, blockHeaderLength))
	bh.Serialize(buf)
	return util.DoubleSha256Hash(buf.Bytes())
}

func (bh *BlockHeader) SetNull() {
	*bh = BlockHeader{}
}

func (bh *BlockHeader) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, bh.Version); err != nil {
		return err
	}
	if _, err := bh.HashPrevBlock.Serialize(w); err != nil {
		return err
	}
	if _, err := bh.MerkleRoot.Serialize(w); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, []uint32{bh.Time, bh.Bits, bh.Nonce})
}

func (bh *BlockHeader) Unserialize(r io.Reader) error {
	if err := binary.Read(r, binary.LittleEndian, &bh.Version); err != nil {
		return err
	}
	if _, err := bh.HashPrevBlock.Unserialize(r); err != nil {
		return err
	}
	if _, err := bh.MerkleRoot.Unserialize(r); err != nil {
		return err
	}
	tail := make([]uint32, 3)
	if err := binary.Read(r, binary.LittleEndian, tail); err != nil {
		return err
	}
	bh.Time, bh.Bits, bh.Nonce = tail[0], tail[1], tail[2]
	return nil
}

func (bh *BlockHeader) String() string {
	hash := bh.GetHash()
	return fmt.Sprintf("Block version : %d, hashPrevBlock : %s, hashMerkleRoot : %s, "+
		"Time : %d, Bits : %d, nonce : %d, BlockHash : %s", bh.Version, bh.HashPrevBlock.ToString(),
		bh.MerkleRoot.ToString(), bh.Time, bh.Bits, bh.Nonce, hash.ToString())
}
