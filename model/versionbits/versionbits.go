package versionbits

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/copernet/bip9/model/blockindex"
	"github.com/copernet/bip9/model/chain"
	"github.com/copernet/bip9/model/chainparams"
	"github.com/copernet/bip9/model/consensus"
)

const (
	// VersionBitsLastOldBlockVersion what block version to use for new blocks (pre versionBits)
	VersionBitsLastOldBlockVersion = 4
	// VersionBitsTopBits what bits to set in version for versionBits blocks
	VersionBitsTopBits = 0x20000000
	// VersionBitsTopMask What bitMask determines whether versionBits is in use
	VersionBitsTopMask int64 = 0xE0000000
	// VersionBitsNumBits Total bits available for versionBits
	VersionBitsNumBits = consensus.VersionBitsNumBits

	// blockVersionCacheSize bounds the per-tip computed version memo.
	blockVersionCacheSize = 64
)

type ThresholdState int

const (
	ThresholdDefined ThresholdState = iota
	ThresholdStarted
	ThresholdLockedIn
	ThresholdActive
	ThresholdFailed
)

var thresholdStateStrings = map[ThresholdState]string{
	ThresholdDefined:  "ThresholdDefined",
	ThresholdStarted:  "ThresholdStarted",
	ThresholdLockedIn: "ThresholdLockedIn",
	ThresholdActive:   "ThresholdActive",
	ThresholdFailed:   "ThresholdFailed",
}

func (t ThresholdState) String() string {
	if s, ok := thresholdStateStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ThresholdState (%d)", int(t))
}

type BIP9DeploymentInfo struct {
	Name     string
	GbtForce bool
}

// VersionBitsDeploymentInfo is indexed by consensus.DeploymentPos.
var VersionBitsDeploymentInfo = []BIP9DeploymentInfo{
	{
		Name:     "testdummy",
		GbtForce: true,
	},
	{
		Name:     "taproot",
		GbtForce: true,
	},
	{
		Name:     "dynafed",
		GbtForce: true,
	},
}

type ThresholdConditionCache map[*blockindex.BlockIndex]ThresholdState

type AbstractThresholdConditionChecker interface {
	Condition(index *blockindex.BlockIndex, params *chainparams.BitcoinParams) bool
	BeginHeight(params *chainparams.BitcoinParams) int64
	EndHeight(params *chainparams.BitcoinParams) int64
	Period(params *chainparams.BitcoinParams) int
	Threshold(params *chainparams.BitcoinParams) int
}

// VersionBitsCache memoizes the threshold state at each period boundary, one
// map per deployment, plus a small per-tip memo of computed block versions.
// Lookups take shared access; compute-and-insert and eviction take exclusive
// access.
type VersionBitsCache struct {
	sync.RWMutex
	cache    [consensus.MaxVersionBitsDeployments]ThresholdConditionCache
	versions *lru.Cache
}

func NewVersionBitsCache() *VersionBitsCache {
	var cache [consensus.MaxVersionBitsDeployments]ThresholdConditionCache
	for i := 0; i < int(consensus.MaxVersionBitsDeployments); i++ {
		cache[i] = make(ThresholdConditionCache)
	}
	versions, err := lru.New(blockVersionCacheSize)
	if err != nil {
		panic(err)
	}
	return &VersionBitsCache{cache: cache, versions: versions}
}

func (vbc *VersionBitsCache) Clear() {
	vbc.Lock()
	defer vbc.Unlock()
	for i := 0; i < int(consensus.MaxVersionBitsDeployments); i++ {
		vbc.cache[i] = make(ThresholdConditionCache)
	}
	vbc.versions.Purge()
}

// Invalidate evicts every memoized boundary that is no longer part of the
// active chain. Call after the tip moves to a competing branch; entries on
// the new branch are recomputed lazily on the next lookup.
func (vbc *VersionBitsCache) Invalidate(activeChain *chain.Chain) {
	vbc.Lock()
	defer vbc.Unlock()
	for i := 0; i < int(consensus.MaxVersionBitsDeployments); i++ {
		for index := range vbc.cache[i] {
			if index != nil && !activeChain.Contains(index) {
				delete(vbc.cache[i], index)
			}
		}
	}
	vbc.versions.Purge()
}

// VersionBitsState returns the deployment state for the block AFTER indexPrev.
func VersionBitsState(indexPrev *blockindex.BlockIndex, params *chainparams.BitcoinParams,
	pos consensus.DeploymentPos, vbc *VersionBitsCache) ThresholdState {

	if params.Deployments[pos].AlwaysActive() {
		return ThresholdActive
	}

	vc := &VersionBitsConditionChecker{id: pos}

	boundary := periodBoundary(vc, indexPrev, params)
	vbc.RLock()
	state, ok := vbc.cache[pos][boundary]
	vbc.RUnlock()
	if ok {
		return state
	}

	vbc.Lock()
	defer vbc.Unlock()
	return GetStateFor(vc, indexPrev, params, vbc.cache[pos])
}

// VersionBitsStateSinceHeight returns the height at which the current state
// for the deployment first applied.
func VersionBitsStateSinceHeight(indexPrev *blockindex.BlockIndex, params *chainparams.BitcoinParams,
	pos consensus.DeploymentPos, vbc *VersionBitsCache) int32 {

	if params.Deployments[pos].AlwaysActive() {
		return 0
	}

	vc := &VersionBitsConditionChecker{id: pos}
	vbc.Lock()
	defer vbc.Unlock()
	return GetStateSinceHeightFor(vc, indexPrev, params, vbc.cache[pos])
}

func VersionBitsMask(params *chainparams.BitcoinParams, pos consensus.DeploymentPos) uint32 {
	vc := VersionBitsConditionChecker{id: pos}
	return uint32(vc.Mask(params))
}

type VersionBitsConditionChecker struct {
	id consensus.DeploymentPos
}

func (vc *VersionBitsConditionChecker) BeginHeight(params *chainparams.BitcoinParams) int64 {
	return params.Deployments[vc.id].StartHeight
}

func (vc *VersionBitsConditionChecker) EndHeight(params *chainparams.BitcoinParams) int64 {
	return params.Deployments[vc.id].TimeoutHeight
}

func (vc *VersionBitsConditionChecker) Period(params *chainparams.BitcoinParams) int {
	return int(params.DeploymentPeriod(vc.id))
}

func (vc *VersionBitsConditionChecker) Threshold(params *chainparams.BitcoinParams) int {
	return int(params.DeploymentThreshold(vc.id))
}

func (vc *VersionBitsConditionChecker) Condition(index *blockindex.BlockIndex, params *chainparams.BitcoinParams) bool {
	return versionSignals(index.Header.Version, params.Deployments[vc.id].Bit)
}

func (vc *VersionBitsConditionChecker) Mask(params *chainparams.BitcoinParams) int32 {
	return int32(1) << uint(params.Deployments[vc.id].Bit)
}

// boundaryHeight is the chain-time coordinate a boundary is judged at: the
// height of the first block of the period that starts after indexPrev. The
// parent of the genesis block is represented by nil.
func boundaryHeight(indexPrev *blockindex.BlockIndex) int64 {
	if indexPrev == nil {
		return 0
	}
	return int64(indexPrev.Height) + 1
}

// periodBoundary snaps indexPrev back to the last block of the previous
// period. A block's state is always the same as that of the first of its
// period, so states are computed from an indexPrev whose height is a
// multiple of the period minus one.
func periodBoundary(vc AbstractThresholdConditionChecker, indexPrev *blockindex.BlockIndex,
	params *chainparams.BitcoinParams) *blockindex.BlockIndex {

	if indexPrev == nil {
		return nil
	}
	nPeriod := int32(vc.Period(params))
	return indexPrev.GetAncestor(indexPrev.Height - (indexPrev.Height+1)%nPeriod)
}

// GetStateFor computes the threshold state for the block after indexPrev,
// memoizing every period boundary it visits. The transition for boundary N
// depends only on the state at N-1, the signal count of the just-completed
// period, the boundary height and the parameters.
func GetStateFor(vc AbstractThresholdConditionChecker, indexPrev *blockindex.BlockIndex,
	params *chainparams.BitcoinParams, cache ThresholdConditionCache) ThresholdState {

	startHeight := vc.BeginHeight(params)
	if startHeight == consensus.AlwaysActive {
		return ThresholdActive
	}

	nPeriod := vc.Period(params)
	nThreshold := vc.Threshold(params)
	timeoutHeight := vc.EndHeight(params)

	indexPrev = periodBoundary(vc, indexPrev, params)

	// Walk backwards in steps of nPeriod to find an indexPrev whose
	// information is known.
	toCompute := make([]*blockindex.BlockIndex, 0)
	for {
		if _, ok := cache[indexPrev]; !ok {
			if indexPrev == nil {
				// The genesis block is by definition defined.
				cache[indexPrev] = ThresholdDefined
				break
			}
			if boundaryHeight(indexPrev) < startHeight {
				// Optimization: don't recompute down further, as we know
				// every earlier block will be before the start height.
				cache[indexPrev] = ThresholdDefined
				break
			}
			toCompute = append(toCompute, indexPrev)
			indexPrev = indexPrev.GetAncestor(indexPrev.Height - int32(nPeriod))
		} else {
			break
		}
	}

	// At this point, cache[indexPrev] is known
	state, ok := cache[indexPrev]
	if !ok {
		panic("there should be a element in cache")
	}

	// Now walk forward and compute the state of descendants of indexPrev
	for len(toCompute) > 0 {
		stateNext := state
		indexPrev = toCompute[len(toCompute)-1]
		toCompute = toCompute[:(len(toCompute) - 1)]

		switch state {
		case ThresholdDefined:
			{
				// Only the start check runs here. A deployment whose start
				// and timeout coincide still gets one Started period; the
				// timeout can not fire before the deployment has been
				// Started for a full period.
				if boundaryHeight(indexPrev) >= startHeight {
					stateNext = ThresholdStarted
				}
			}
		case ThresholdStarted:
			{
				// The timeout wins over lock-in whatever this period counted.
				if boundaryHeight(indexPrev) >= timeoutHeight {
					stateNext = ThresholdFailed
					break
				}
				count := countSignalling(vc, indexPrev, params, nPeriod)
				if count >= nThreshold {
					stateNext = ThresholdLockedIn
				}
			}
		case ThresholdLockedIn:
			{
				// Always progresses into ACTIVE.
				stateNext = ThresholdActive
			}
		case ThresholdFailed, ThresholdActive:
			{
				// Nothing happens, these are terminal states.
			}
		}
		state = stateNext
		cache[indexPrev] = state
	}
	return state
}

// GetStateSinceHeightFor returns the first height the current state applied
// at.
func GetStateSinceHeightFor(vc AbstractThresholdConditionChecker, indexPrev *blockindex.BlockIndex,
	params *chainparams.BitcoinParams, cache ThresholdConditionCache) int32 {

	if vc.BeginHeight(params) == consensus.AlwaysActive {
		return 0
	}

	initialState := GetStateFor(vc, indexPrev, params, cache)
	// BIP 9 about state DEFINED: "The genesis block is by definition in this
	// state for each deployment."
	if initialState == ThresholdDefined {
		return 0
	}
	if indexPrev == nil {
		return 0
	}

	nPeriod := int32(vc.Period(params))
	// A block's state is always the same as that of the first of its period,
	// so it is computed based on an indexPrev whose height equals a multiple
	// of nPeriod - 1. Right now indexPrev points to the block prior to the
	// block that we are computing for, thus: if we are computing for the last
	// block of a period, then indexPrev points to the second to last block of
	// the period, and if we are computing for the first block of a period,
	// then indexPrev points to the last block of the previous period. The
	// parent of the genesis block is represented by nil.
	indexPrev = indexPrev.GetAncestor(indexPrev.Height - (indexPrev.Height+1)%nPeriod)
	previousPeriodParent := indexPrev.GetAncestor(indexPrev.Height - nPeriod)
	for previousPeriodParent != nil && GetStateFor(vc, previousPeriodParent, params, cache) == initialState {
		indexPrev = previousPeriodParent
		previousPeriodParent = indexPrev.GetAncestor(indexPrev.Height - nPeriod)
	}

	// Adjust the result because right now we point to the parent block.
	return indexPrev.Height + 1
}

// BitStates maps every deployment's signalling bit to its current state for
// the block after indexPrev. Block builders set exactly the bits whose
// deployments are still signalling.
func BitStates(indexPrev *blockindex.BlockIndex, params *chainparams.BitcoinParams,
	vbc *VersionBitsCache) map[int]ThresholdState {

	states := make(map[int]ThresholdState, int(consensus.MaxVersionBitsDeployments))
	for i := 0; i < int(consensus.MaxVersionBitsDeployments); i++ {
		pos := consensus.DeploymentPos(i)
		states[params.Deployments[pos].Bit] = VersionBitsState(indexPrev, params, pos, vbc)
	}
	return states
}

// ComputeBlockVersion assembles the version field for a block built on
// indexPrev: the top-bits marker plus the mask of every deployment that is
// Started or LockedIn. Memoized per tip since every template request
// recomputes it.
func ComputeBlockVersion(indexPrev *blockindex.BlockIndex, params *chainparams.BitcoinParams,
	vbc *VersionBitsCache) int32 {

	if indexPrev != nil {
		if cached, ok := vbc.versions.Get(*indexPrev.GetBlockHash()); ok {
			return cached.(int32)
		}
	}

	version := int32(VersionBitsTopBits)
	for i := 0; i < int(consensus.MaxVersionBitsDeployments); i++ {
		pos := consensus.DeploymentPos(i)
		state := VersionBitsState(indexPrev, params, pos, vbc)
		if state == ThresholdLockedIn || state == ThresholdStarted {
			version |= int32(VersionBitsMask(params, pos))
		}
	}

	if indexPrev != nil {
		vbc.versions.Add(*indexPrev.GetBlockHash(), version)
	}
	return version
}
