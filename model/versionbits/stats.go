package versionbits

import (
	"github.com/copernet/bip9/model/blockindex"
	"github.com/copernet/bip9/model/chainparams"
	"github.com/copernet/bip9/model/consensus"
)

// BIP9Stats describes the signalling progress of the period containing the
// block after indexPrev, for status reporting.
type BIP9Stats struct {
	Period    uint32
	Threshold uint32
	Elapsed   uint32
	Count     uint32
	// Possible is false once too few signalling slots remain in this period
	// to still reach the threshold.
	Possible bool
}

// VersionBitsStatistics tallies the partially elapsed period above indexPrev.
func VersionBitsStatistics(indexPrev *blockindex.BlockIndex, params *chainparams.BitcoinParams,
	pos consensus.DeploymentPos) BIP9Stats {

	period := params.DeploymentPeriod(pos)
	threshold := params.DeploymentThreshold(pos)
	stats := BIP9Stats{
		Period:    period,
		Threshold: threshold,
		Possible:  true,
	}
	if indexPrev == nil {
		return stats
	}

	stats.Elapsed = (uint32(indexPrev.Height) + 1) % period
	window := GatherSignalWindow(indexPrev, stats.Elapsed)
	stats.Count = window.CountSignalling(params.Deployments[pos].Bit)
	stats.Possible = (period - threshold) >= (stats.Elapsed - stats.Count)
	return stats
}
