package versionbits

import (
	"github.com/copernet/bip9/log"
	"github.com/copernet/bip9/model/blockindex"
	"github.com/copernet/bip9/model/chainparams"
	"github.com/copernet/bip9/model/consensus"
)

// WarningBitsConditionChecker watches a single version bit that no known
// deployment accounts for. When enough of a period signals it, the software
// is probably out of date.
type WarningBitsConditionChecker struct {
	bit int
	vbc *VersionBitsCache
}

func NewWarningBitsConChecker(bitIn int, vbc *VersionBitsCache) *WarningBitsConditionChecker {
	w := new(WarningBitsConditionChecker)
	w.bit = bitIn
	w.vbc = vbc
	return w
}

func (w *WarningBitsConditionChecker) BeginHeight(params *chainparams.BitcoinParams) int64 {
	return 0
}

func (w *WarningBitsConditionChecker) EndHeight(params *chainparams.BitcoinParams) int64 {
	return consensus.NoTimeout
}

func (w *WarningBitsConditionChecker) Period(params *chainparams.BitcoinParams) int {
	return int(params.MinerConfirmationWindow)
}

func (w *WarningBitsConditionChecker) Threshold(params *chainparams.BitcoinParams) int {
	return int(params.RuleChangeActivationThreshold)
}

func (w *WarningBitsConditionChecker) Condition(index *blockindex.BlockIndex, params *chainparams.BitcoinParams) bool {
	return versionSignals(index.Header.Version, w.bit) &&
		(ComputeBlockVersion(index.Prev, params, w.vbc)>>uint(w.bit))&1 == 0
}

func NewWarnBitsCache(bitNum int) []ThresholdConditionCache {
	w := make([]ThresholdConditionCache, 0, bitNum)
	for i := 0; i < bitNum; i++ {
		thres := make(ThresholdConditionCache)
		w = append(w, thres)
	}

	return w
}

// CheckUnknownRules scans every version bit for signalling that none of our
// deployments explains, logging each suspicious bit. warnCaches must come
// from NewWarnBitsCache(VersionBitsNumBits) and be reused across tips.
// Returns true when an unknown rule has locked in or activated.
func CheckUnknownRules(indexNew *blockindex.BlockIndex, params *chainparams.BitcoinParams,
	vbc *VersionBitsCache, warnCaches []ThresholdConditionCache) bool {

	unexpected := false
	for bit := 0; bit < VersionBitsNumBits; bit++ {
		checker := NewWarningBitsConChecker(bit, vbc)
		state := GetStateFor(checker, indexNew, params, warnCaches[bit])
		if state == ThresholdActive || state == ThresholdLockedIn {
			unexpected = true
			log.Print("versionbits", "warn",
				"unknown new rules activated (versionbit %d)", bit)
		} else if state == ThresholdStarted {
			log.Print("versionbits", "warn",
				"unknown new rules are about to activate (versionbit %d)", bit)
		}
	}
	return unexpected
}
