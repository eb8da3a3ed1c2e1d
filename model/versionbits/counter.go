package versionbits

import (
	"github.com/copernet/bip9/model/blockindex"
	"github.com/copernet/bip9/model/chainparams"
)

// versionSignals reports whether a block version field signals readiness for
// the given bit. Blocks must carry the top-bits marker to opt into the
// signalling mechanism at all; without it no bit counts.
func versionSignals(version int32, bit int) bool {
	return (int64(version)&VersionBitsTopMask) == VersionBitsTopBits &&
		(version>>uint(bit))&1 != 0
}

// SignalWindow holds the version fields of consecutive blocks, oldest first.
// A full window spans exactly one confirmation period.
type SignalWindow []int32

// GatherSignalWindow collects the version fields of the size blocks ending
// at indexLast. The window comes back shorter when the chain does, which
// only the partial-period statistics path relies on; state evaluation always
// asks for a full period.
func GatherSignalWindow(indexLast *blockindex.BlockIndex, size uint32) SignalWindow {
	window := make(SignalWindow, 0, size)
	walk := indexLast
	for i := uint32(0); i < size && walk != nil; i++ {
		window = append(window, walk.Header.Version)
		walk = walk.Prev
	}
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}

// CountSignalling counts the blocks in the window signalling the given bit.
func (window SignalWindow) CountSignalling(bit int) uint32 {
	count := uint32(0)
	for _, version := range window {
		if versionSignals(version, bit) {
			count++
		}
	}
	return count
}

// countSignalling tallies the checker condition over the period whose last
// block is indexLast. Callers align indexLast to a period boundary.
func countSignalling(vc AbstractThresholdConditionChecker, indexLast *blockindex.BlockIndex,
	params *chainparams.BitcoinParams, period int) int {

	count := 0
	indexCount := indexLast
	for i := 0; i < period && indexCount != nil; i++ {
		if vc.Condition(indexCount, params) {
			count++
		}
		indexCount = indexCount.Prev
	}
	return count
}
