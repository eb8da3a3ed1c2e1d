package versionbits

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"

	"github.com/copernet/bip9/model/blockindex"
	"github.com/copernet/bip9/model/chain"
	"github.com/copernet/bip9/model/chainparams"
	"github.com/copernet/bip9/model/consensus"
	"github.com/copernet/bip9/util"
)

var paramsDummy = chainparams.BitcoinParams{}

const (
	testPeriod    = 1000
	testThreshold = 900
	testStart     = 10000
	testTimeout   = 20000
)

// ConditionChecker signals through an out-of-band bit so the tests control
// the count directly.
type ConditionChecker struct {
	cache ThresholdConditionCache

	begin int64
	end   int64
}

var randomNum = util.InsecureRand32()

func (tc *ConditionChecker) BeginHeight(params *chainparams.BitcoinParams) int64 {
	if tc.begin != 0 {
		return tc.begin
	}
	return testStart
}

func (tc *ConditionChecker) EndHeight(params *chainparams.BitcoinParams) int64 {
	if tc.end != 0 {
		return tc.end
	}
	return testTimeout
}

func (tc *ConditionChecker) Period(params *chainparams.BitcoinParams) int {
	return testPeriod
}

func (tc *ConditionChecker) Threshold(params *chainparams.BitcoinParams) int {
	return testThreshold
}

func (tc *ConditionChecker) Condition(index *blockindex.BlockIndex, params *chainparams.BitcoinParams) bool {
	return index.Header.Version&0x100 != 0
}

func (tc *ConditionChecker) GetStateFor(indexPrev *blockindex.BlockIndex) ThresholdState {
	return GetStateFor(tc, indexPrev, &paramsDummy, tc.cache)
}

func (tc *ConditionChecker) GetStateSinceHeightFor(indexPrev *blockindex.BlockIndex) int32 {
	return GetStateSinceHeightFor(tc, indexPrev, &paramsDummy, tc.cache)
}

const CHECKERS = 6

// VersionBitsTester mines a fake chain and checks the state through several
// independent checkers. The first one performs all checks, the second only
// 50%, the third only 25%, etc. This is to test whether lack of cached
// information leads to the same results.
type VersionBitsTester struct {
	// Test counter (to identify failures)
	num int
	// A fake blockchain
	block []*blockindex.BlockIndex
	// Independent checkers for the same bit.
	checker [CHECKERS]ConditionChecker
}

func newVersionBitsTester() *VersionBitsTester {
	vt := VersionBitsTester{
		num:   0,
		block: make([]*blockindex.BlockIndex, 0),
	}

	var checker [CHECKERS]ConditionChecker
	for i := 0; i < CHECKERS; i++ {
		checker[i] = ConditionChecker{cache: make(ThresholdConditionCache)}
	}
	vt.checker = checker
	return &vt
}

func (vt *VersionBitsTester) Tip() *blockindex.BlockIndex {
	if len(vt.block) == 0 {
		return nil
	}
	return vt.block[len(vt.block)-1]
}

func (vt *VersionBitsTester) Reset() *VersionBitsTester {
	vt.block = make([]*blockindex.BlockIndex, 0)
	for i := 0; i < CHECKERS; i++ {
		vt.checker[i] = ConditionChecker{}
		vt.checker[i].cache = make(ThresholdConditionCache)
	}

	return vt
}

// Mine the block, until the chain height equals height - 1.
func (vt *VersionBitsTester) Mine(height int32, version int32) *VersionBitsTester {
	for int32(len(vt.block)) < height {
		index := &blockindex.BlockIndex{}
		index.SetNull()
		index.Height = int32(len(vt.block))
		index.Prev = nil
		if len(vt.block) > 0 {
			index.Prev = vt.block[len(vt.block)-1]
		}
		index.Header.Version = version
		index.BlockHash = *util.GetRandHash()
		index.BuildSkip()
		vt.block = append(vt.block, index)
	}
	return vt
}

func (vt *VersionBitsTester) checkState(t *testing.T, expect ThresholdState) *VersionBitsTester {
	for i := 0; i < CHECKERS; i++ {
		if (randomNum & ((1 << uint(i)) - 1)) != 0 {
			continue
		}
		got := vt.checker[i].GetStateFor(vt.Tip())
		if got != expect {
			t.Errorf("test %d: actual state : %v, expect state : %v", vt.num, got, expect)
		}
	}
	vt.num++
	return vt
}

func (vt *VersionBitsTester) TestDefined(t *testing.T) *VersionBitsTester {
	return vt.checkState(t, ThresholdDefined)
}

func (vt *VersionBitsTester) TestStarted(t *testing.T) *VersionBitsTester {
	return vt.checkState(t, ThresholdStarted)
}

func (vt *VersionBitsTester) TestLockedIn(t *testing.T) *VersionBitsTester {
	return vt.checkState(t, ThresholdLockedIn)
}

func (vt *VersionBitsTester) TestActive(t *testing.T) *VersionBitsTester {
	return vt.checkState(t, ThresholdActive)
}

func (vt *VersionBitsTester) TestFailed(t *testing.T) *VersionBitsTester {
	return vt.checkState(t, ThresholdFailed)
}

func (vt *VersionBitsTester) TestStateSinceHeight(t *testing.T, height int32) *VersionBitsTester {
	for i := 0; i < CHECKERS; i++ {
		if (randomNum & ((1 << uint(i)) - 1)) != 0 {
			continue
		}
		got := vt.checker[i].GetStateSinceHeightFor(vt.Tip())
		if got != height {
			t.Errorf("test %d: actual since-height : %d, expect : %d", vt.num, got, height)
		}
	}
	vt.num++
	return vt
}

func TestVersionBitsActivation(t *testing.T) {
	vt := newVersionBitsTester()

	// Signalling before the start height is meaningless.
	vt.TestDefined(t).TestStateSinceHeight(t, 0).
		Mine(1, 0x100).TestDefined(t).
		Mine(9999, 0x100).TestDefined(t).TestStateSinceHeight(t, 0).
		// Boundary at height 10000 reaches the start height.
		Mine(10000, 0x100).TestStarted(t).TestStateSinceHeight(t, 10000).
		// One full period of unanimous signalling locks in.
		Mine(11000, 0x100).TestLockedIn(t).TestStateSinceHeight(t, 11000).
		// Lock-in holds until the next boundary, however the period signals.
		Mine(11999, 0).TestLockedIn(t).
		// Exactly one period later the rule binds.
		Mine(12000, 0).TestActive(t).TestStateSinceHeight(t, 12000).
		// Terminal: the timeout height long gone by now changes nothing.
		Mine(21000, 0).TestActive(t).
		Mine(30000, 0x100).TestActive(t).TestStateSinceHeight(t, 12000)
}

func TestVersionBitsJustShortOfThreshold(t *testing.T) {
	vt := newVersionBitsTester()

	// 899 of 1000 signalling blocks per period never locks in, and the
	// attempt expires at the timeout height.
	vt.Mine(10000, 0x100).TestStarted(t)
	for p := int32(10000); p < testTimeout-testPeriod; p += testPeriod {
		vt.Mine(p+testThreshold-1, 0x100).Mine(p+testPeriod, 0).TestStarted(t)
	}
	vt.Mine(20000, 0).TestFailed(t).TestStateSinceHeight(t, 20000).
		// Terminal even under unanimous signalling afterwards.
		Mine(21000, 0x100).TestFailed(t)
}

func TestVersionBitsTimeoutBeatsLockIn(t *testing.T) {
	vt := newVersionBitsTester()

	// The last period before the timeout signals unanimously; the timeout
	// still wins at the boundary where both conditions hold.
	vt.Mine(10000, 0).TestStarted(t).
		Mine(19000, 0).TestStarted(t).
		Mine(20000, 0x100).TestFailed(t)
}

func TestVersionBitsStartEqualsTimeout(t *testing.T) {
	tc := ConditionChecker{
		cache: make(ThresholdConditionCache),
		begin: testStart,
		end:   testStart,
	}
	vt := newVersionBitsTester()

	// The start check runs before the timeout check, so the deployment is
	// Started for exactly one period and can never lock in.
	vt.Mine(10000, 0x100)
	assert.Equal(t, ThresholdStarted, GetStateFor(&tc, vt.Tip(), &paramsDummy, tc.cache))
	vt.Mine(11000, 0x100)
	assert.Equal(t, ThresholdFailed, GetStateFor(&tc, vt.Tip(), &paramsDummy, tc.cache))
}

func TestVersionBitsAlwaysActive(t *testing.T) {
	tc := ConditionChecker{
		cache: make(ThresholdConditionCache),
		begin: consensus.AlwaysActive,
	}

	// Active with no chain at all, and at every height, with all-zero
	// signalling.
	assert.Equal(t, ThresholdActive, GetStateFor(&tc, nil, &paramsDummy, tc.cache))
	assert.Equal(t, int32(0), GetStateSinceHeightFor(&tc, nil, &paramsDummy, tc.cache))

	vt := newVersionBitsTester()
	vt.Mine(12345, 0)
	assert.Equal(t, ThresholdActive, GetStateFor(&tc, vt.Tip(), &paramsDummy, tc.cache))
	assert.Equal(t, int32(0), GetStateSinceHeightFor(&tc, vt.Tip(), &paramsDummy, tc.cache))
}

// smallWindowChecker shrinks the window to make exact-threshold tests cheap.
type smallWindowChecker struct {
	cache ThresholdConditionCache
}

func (sc *smallWindowChecker) BeginHeight(params *chainparams.BitcoinParams) int64 { return 0 }
func (sc *smallWindowChecker) EndHeight(params *chainparams.BitcoinParams) int64 {
	return consensus.NoTimeout
}
func (sc *smallWindowChecker) Period(params *chainparams.BitcoinParams) int    { return 100 }
func (sc *smallWindowChecker) Threshold(params *chainparams.BitcoinParams) int { return 75 }
func (sc *smallWindowChecker) Condition(index *blockindex.BlockIndex, params *chainparams.BitcoinParams) bool {
	return index.Header.Version&0x100 != 0
}

func TestVersionBitsExactThreshold(t *testing.T) {
	// Exactly 75 of 100 locks in.
	sc := smallWindowChecker{cache: make(ThresholdConditionCache)}
	vt := newVersionBitsTester()
	vt.Mine(100, 0) // Started from height 100 on
	assert.Equal(t, ThresholdStarted, GetStateFor(&sc, vt.Tip(), &paramsDummy, sc.cache))
	vt.Mine(175, 0x100).Mine(200, 0)
	assert.Equal(t, ThresholdLockedIn, GetStateFor(&sc, vt.Tip(), &paramsDummy, sc.cache))

	// 74 of 100 does not.
	sc = smallWindowChecker{cache: make(ThresholdConditionCache)}
	vt = newVersionBitsTester()
	vt.Mine(100, 0).Mine(174, 0x100).Mine(200, 0)
	assert.Equal(t, ThresholdStarted, GetStateFor(&sc, vt.Tip(), &paramsDummy, sc.cache))
}

// coldWalkChecker starts late with a short window, so a single query against
// an empty cache has to compute a long run of boundaries in one pass.
type coldWalkChecker struct {
	cache ThresholdConditionCache

	end int64
}

func (cc *coldWalkChecker) BeginHeight(params *chainparams.BitcoinParams) int64 { return 1000 }
func (cc *coldWalkChecker) EndHeight(params *chainparams.BitcoinParams) int64 {
	if cc.end != 0 {
		return cc.end
	}
	return consensus.NoTimeout
}
func (cc *coldWalkChecker) Period(params *chainparams.BitcoinParams) int    { return 100 }
func (cc *coldWalkChecker) Threshold(params *chainparams.BitcoinParams) int { return 75 }
func (cc *coldWalkChecker) Condition(index *blockindex.BlockIndex, params *chainparams.BitcoinParams) bool {
	return index.Header.Version&0x100 != 0
}

func TestVersionBitsColdCacheWalk(t *testing.T) {
	// Eleven periods of unanimous signalling queried exactly once: the walk
	// must drain every pending boundary, ending LockedIn with both the
	// Started boundary (999) and the lock-in boundary (1099) memoized.
	cc := coldWalkChecker{cache: make(ThresholdConditionCache)}
	vt := newVersionBitsTester()
	vt.Mine(1100, 0x100)
	assert.Equal(t, ThresholdLockedIn, GetStateFor(&cc, vt.Tip(), &paramsDummy, cc.cache))

	heights := make([]int32, 0, len(cc.cache))
	for index := range cc.cache {
		if index != nil {
			heights = append(heights, index.Height)
		}
	}
	assert.Contains(t, heights, int32(999))
	assert.Contains(t, heights, int32(1099))

	// Same answer from the now-warm cache, and Active one period later.
	assert.Equal(t, ThresholdLockedIn, GetStateFor(&cc, vt.Tip(), &paramsDummy, cc.cache))
	vt.Mine(1200, 0x100)
	assert.Equal(t, ThresholdActive, GetStateFor(&cc, vt.Tip(), &paramsDummy, cc.cache))
}

func TestVersionBitsColdCacheTimeout(t *testing.T) {
	// Five quiet periods past the start, then the timeout boundary. A cold
	// query spanning the whole run must land on Failed, not stop part way
	// through the pending boundaries.
	cc := coldWalkChecker{cache: make(ThresholdConditionCache), end: 1500}
	vt := newVersionBitsTester()
	vt.Mine(1600, 0)
	assert.Equal(t, ThresholdFailed, GetStateFor(&cc, vt.Tip(), &paramsDummy, cc.cache))
}

func TestVersionBitsStateIdempotent(t *testing.T) {
	vt := newVersionBitsTester()
	vt.Mine(12000, 0x100)

	tc := ConditionChecker{cache: make(ThresholdConditionCache)}
	first := GetStateFor(&tc, vt.Tip(), &paramsDummy, tc.cache)
	for i := 0; i < 10; i++ {
		if got := GetStateFor(&tc, vt.Tip(), &paramsDummy, tc.cache); got != first {
			t.Fatalf("state changed between queries: %v != %v\ncache: %s",
				got, first, spew.Sdump(tc.cache))
		}
	}
}

// mineOn extends parent with count blocks of the given version, giving every
// block a distinct hash.
func mineOn(parent *blockindex.BlockIndex, count int, version int32) *blockindex.BlockIndex {
	tip := parent
	for i := 0; i < count; i++ {
		index := &blockindex.BlockIndex{}
		index.SetNull()
		index.Prev = tip
		if tip != nil {
			index.Height = tip.Height + 1
		}
		index.Header.Version = version
		index.BlockHash = *util.GetRandHash()
		index.BuildSkip()
		tip = index
	}
	return tip
}

func signalVersion(bit int) int32 {
	return int32(VersionBitsTopBits) | int32(1)<<uint(bit)
}

func TestVersionBitsReorgInvalidation(t *testing.T) {
	params := &chainparams.RegressionNetParams
	bit := params.Deployments[consensus.DeploymentTestDummy].Bit
	window := int(params.MinerConfirmationWindow)
	vbc := NewVersionBitsCache()

	// Chain A signals throughout: Started after one period, LockedIn after
	// the second, Active after the third.
	fork := mineOn(nil, window, signalVersion(bit))
	tipA := mineOn(fork, 2*window, signalVersion(bit))
	assert.Equal(t, ThresholdActive,
		VersionBitsState(tipA, params, consensus.DeploymentTestDummy, vbc))

	// A competing branch from the same fork point never signals; querying
	// its tip must recompute from branch B's headers, not replay chain A.
	tipB := mineOn(fork, 2*window, int32(VersionBitsTopBits))
	assert.Equal(t, ThresholdStarted,
		VersionBitsState(tipB, params, consensus.DeploymentTestDummy, vbc))

	// After the reorg to B, entries whose boundary left the active chain are
	// evicted; B's own entries survive.
	activeChain := chain.NewChain(params)
	activeChain.SetTip(tipB)
	vbc.Invalidate(activeChain)
	for pos := 0; pos < int(consensus.MaxVersionBitsDeployments); pos++ {
		for index := range vbc.cache[pos] {
			if index != nil && !activeChain.Contains(index) {
				t.Fatalf("stale cache entry for %s at height %d", index.String(), index.Height)
			}
		}
	}
	assert.Equal(t, ThresholdStarted,
		VersionBitsState(tipB, params, consensus.DeploymentTestDummy, vbc))
}

func TestComputeBlockVersion(t *testing.T) {
	params := &chainparams.RegressionNetParams
	vbc := NewVersionBitsCache()

	// Nothing is signalling in the genesis period.
	assert.Equal(t, int32(VersionBitsTopBits), ComputeBlockVersion(nil, params, vbc))

	// One full window in, testdummy (bit 28) and dynafed (bit 25, shorter
	// override period) are both Started and should be signalled. Taproot is
	// always active on regtest and must NOT be signalled.
	tip := mineOn(nil, int(params.MinerConfirmationWindow), int32(VersionBitsTopBits))
	want := int32(VersionBitsTopBits) |
		int32(VersionBitsMask(params, consensus.DeploymentTestDummy)) |
		int32(VersionBitsMask(params, consensus.DeploymentDynaFed))
	assert.Equal(t, want, ComputeBlockVersion(tip, params, vbc))
	// Memoized per tip.
	assert.Equal(t, want, ComputeBlockVersion(tip, params, vbc))
}

func TestBitStates(t *testing.T) {
	params := &chainparams.RegressionNetParams
	vbc := NewVersionBitsCache()
	tip := mineOn(nil, int(params.MinerConfirmationWindow), int32(VersionBitsTopBits))

	states := BitStates(tip, params, vbc)
	assert.Equal(t, ThresholdStarted, states[params.Deployments[consensus.DeploymentTestDummy].Bit])
	assert.Equal(t, ThresholdStarted, states[params.Deployments[consensus.DeploymentDynaFed].Bit])
	assert.Equal(t, ThresholdActive, states[params.Deployments[consensus.DeploymentTaproot].Bit])
}

func TestVersionBitsMask(t *testing.T) {
	params := &chainparams.MainNetParams
	assert.Equal(t, uint32(1)<<28, VersionBitsMask(params, consensus.DeploymentTestDummy))
	assert.Equal(t, uint32(1)<<2, VersionBitsMask(params, consensus.DeploymentTaproot))
	assert.Equal(t, uint32(1)<<25, VersionBitsMask(params, consensus.DeploymentDynaFed))
}

func TestThresholdStateString(t *testing.T) {
	assert.Equal(t, "ThresholdDefined", ThresholdDefined.String())
	assert.Equal(t, "ThresholdFailed", ThresholdFailed.String())
	assert.Equal(t, "Unknown ThresholdState (42)", ThresholdState(42).String())
}
