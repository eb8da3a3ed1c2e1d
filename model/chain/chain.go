package chain

import (
	"github.com/copernet/bip9/errcode"
	"github.com/copernet/bip9/model/blockindex"
	"github.com/copernet/bip9/model/chainparams"
	"github.com/copernet/bip9/util"
)

// Chain an in-memory indexed chain of blocks. Unlike the node it was carved
// out of there is no process-wide instance; every consumer is handed the
// chain it should look at, so several profiles can coexist in tests.
type Chain struct {
	active   []*blockindex.BlockIndex
	indexMap map[util.Hash]*blockindex.BlockIndex
	params   *chainparams.BitcoinParams
}

func NewChain(params *chainparams.BitcoinParams) *Chain {
	return &Chain{
		indexMap: make(map[util.Hash]*blockindex.BlockIndex),
		params:   params,
	}
}

func (c *Chain) GetParams() *chainparams.BitcoinParams {
	return c.params
}

// Genesis returns the index entry for the genesis block of this chain,
// or nil if none.
func (c *Chain) Genesis() *blockindex.BlockIndex {
	if len(c.active) > 0 {
		return c.active[0]
	}

	return nil
}

func (c *Chain) Tip() *blockindex.BlockIndex {
	if len(c.active) > 0 {
		return c.active[len(c.active)-1]
	}

	return nil
}

func (c *Chain) TipHeight() int32 {
	if len(c.active) > 0 {
		return c.Tip().Height
	}

	return 0
}

func (c *Chain) FindBlockIndex(hash util.Hash) *blockindex.BlockIndex {
	return c.indexMap[hash]
}

func (c *Chain) GetIndex(height int32) *blockindex.BlockIndex {
	if height < 0 || height >= int32(len(c.active)) {
		return nil
	}

	return c.active[height]
}

// Contains efficiently check whether a block is present in this chain.
func (c *Chain) Contains(index *blockindex.BlockIndex) bool {
	if index == nil {
		return false
	}
	return c.GetIndex(index.Height) == index
}

// Next find the successor of a block in this chain, or nil if the given
// index is not found or is the tip.
func (c *Chain) Next(index *blockindex.BlockIndex) *blockindex.BlockIndex {
	if index == nil {
		return nil
	}
	if c.Contains(index) {
		return c.GetIndex(index.Height + 1)
	}
	return nil
}

// Height return the maximal height in the chain, -1 when empty.
func (c *Chain) Height() int32 {
	return int32(len(c.active)) - 1
}

// SetTip set/initialize a chain with a given tip.
func (c *Chain) SetTip(index *blockindex.BlockIndex) {
	if index == nil {
		c.active = []*blockindex.BlockIndex{}
		return
	}

	tmp := make([]*blockindex.BlockIndex, index.Height+1)
	copy(tmp, c.active)
	c.active = tmp
	for index != nil && c.active[index.Height] != index {
		c.active[index.Height] = index
		index = index.Prev
	}
}

// AddToIndexMap registers a block index so it can be located by hash. The
// parent must already be known except for the genesis block.
func (c *Chain) AddToIndexMap(index *blockindex.BlockIndex) error {
	if index.Prev != nil {
		if _, ok := c.indexMap[*index.Prev.GetBlockHash()]; !ok {
			return errcode.New(errcode.ErrorBlockHeaderNoParent)
		}
	}
	c.indexMap[*index.GetBlockHash()] = index
	return nil
}

// FindFork find the last common block between this chain and a block index
// entry.
func (c *Chain) FindFork(index *blockindex.BlockIndex) *blockindex.BlockIndex {
	if index == nil {
		return nil
	}

	if index.Height > c.Height() {
		index = index.GetAncestor(c.Height())
	}

	for index != nil && !c.Contains(index) {
		index = index.Prev
	}
	return index
}
