package blockindex

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/copernet/bip9/model/block"
	"github.com/copernet/bip9/util"
)

/**
 * The block chain is a tree shaped structure starting with the genesis block
 * at the root, with each block potentially having multiple candidates to be
 * the next block. A blockIndex may have multiple prev pointing to it, but at
 * most one of them can be part of the currently active branch.
 */

const (
	statusHeaderValid uint32 = 1 << iota
	statusAllValid
	statusAccepted

	statusNone = 0
)

type BlockIndex struct {
	Header block.BlockHeader
	// hash of the block
	BlockHash util.Hash
	// pointer to the index of the predecessor of this block
	Prev *BlockIndex
	// pointer to the index of some further predecessor of this block
	Skip *BlockIndex
	// height of the entry in the chain. The genesis block has height 0
	Height int32
	// (memory only) Total amount of work (expected number of hashes) in the
	// chain up to and including this block
	ChainWork big.Int
	// status of this block. See enum
	Status uint32
	// (memory only) Maximum time in the chain upto and including this block
	TimeMax uint32
}

const medianTimeSpan = 11

func (bIndex *BlockIndex) SetNull() {
	bIndex.Header.SetNull()
	bIndex.BlockHash = util.Hash{}
	bIndex.Prev = nil
	bIndex.Skip = nil

	bIndex.Height = 0
	bIndex.ChainWork = big.Int{}
	bIndex.Status = statusNone
	bIndex.TimeMax = 0
}

func (bIndex *BlockIndex) HeaderValid() bool {
	return bIndex.Status&statusHeaderValid != 0
}

func (bIndex *BlockIndex) Accepted() bool {
	return bIndex.Status&statusAccepted != 0
}

func (bIndex *BlockIndex) GetBlockHeader() *block.BlockHeader {
	return &bIndex.Header
}

func (bIndex *BlockIndex) GetBlockHash() *util.Hash {
	return &bIndex.BlockHash
}

func (bIndex *BlockIndex) GetBlockTime() uint32 {
	return bIndex.Header.Time
}

func (bIndex *BlockIndex) GetBlockTimeMax() uint32 {
	return bIndex.TimeMax
}

func (bIndex *BlockIndex) GetMedianTimePast() int64 {
	median := make([]int64, 0, medianTimeSpan)
	index := bIndex
	numNodes := 0
	for i := 0; i < medianTimeSpan && index != nil; i++ {
		median = append(median, int64(index.GetBlockTime()))
		index = index.Prev
		numNodes++
	}
	median = median[:numNodes]
	sort.Slice(median, func(i, j int) bool {
		return median[i] < median[j]
	})

	return median[numNodes/2]
}

func (bIndex *BlockIndex) BuildSkip() {
	if bIndex.Prev != nil {
		bIndex.Skip = bIndex.Prev.GetAncestor(getSkipHeight(bIndex.Height))
	}
}

// Turn the lowest '1' bit in the binary representation of a number into a '0'.
func invertLowestOne(n int32) int32 {
	return n & (n - 1)
}

// getSkipHeight Compute what height to jump back to with the skip pointer.
func getSkipHeight(height int32) int32 {
	if height < 2 {
		return 0
	}

	// Determine which height to jump back to. Any number strictly lower than
	// height is acceptable, but the following expression seems to perform well
	// in simulations (max 110 steps to go back up to 2**18 blocks).
	if (height & 1) > 0 {
		return invertLowestOne(invertLowestOne(height-1)) + 1
	}
	return invertLowestOne(height)
}

// GetAncestor efficiently find an ancestor of this block.
func (bIndex *BlockIndex) GetAncestor(height int32) *BlockIndex {
	if height > bIndex.Height || height < 0 {
		return nil
	}
	indexWalk := bIndex
	heightWalk := bIndex.Height
	for heightWalk > height {
		heightSkip := getSkipHeight(heightWalk)
		heightSkipPrev := getSkipHeight(heightWalk - 1)
		if indexWalk.Skip != nil && (heightSkip == height ||
			(heightSkip > height && !(heightSkipPrev < heightSkip-2 && heightSkipPrev >= height))) {
			// Only follow skip if prev->skip isn't better than skip->prev.
			indexWalk = indexWalk.Skip
			heightWalk = heightSkip
		} else {
			if indexWalk.Prev == nil {
				panic("The blockIndex pointer should not be nil")
			}
			indexWalk = indexWalk.Prev
			heightWalk--
		}
	}

	return indexWalk
}

func (bIndex *BlockIndex) String() string {
	hash := bIndex.GetBlockHash()
	return fmt.Sprintf("BlockIndex(pprev=%p, height=%d, hashBlock=%s)", bIndex.Prev,
		bIndex.Height, hash.ToString())
}

func NewBlockIndex(blkHeader *block.BlockHeader) *BlockIndex {
	bIndex := new(BlockIndex)
	bIndex.SetNull()
	bIndex.Header = *blkHeader
	bIndex.BlockHash = blkHeader.GetHash()
	return bIndex
}
