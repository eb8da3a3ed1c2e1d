package consensus

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/copernet/bip9/errcode"
	"github.com/copernet/bip9/util"
)

type DeploymentPos int

const (
	DeploymentTestDummy DeploymentPos = iota
	// DeploymentTaproot deployment of Schnorr/Taproot (BIPs 340-342)
	DeploymentTaproot
	// DeploymentDynaFed deployment of dynamic federation
	DeploymentDynaFed
	// MaxVersionBitsDeployments NOTE: Also add new deployments to
	// VersionBitsDeploymentInfo in versionbits.go
	MaxVersionBitsDeployments
)

// VersionBitsNumBits total bits available for versionbits signalling. Bit 29
// and above are claimed by the top-bits marker.
const VersionBitsNumBits = 29

const (
	// NoTimeout is a TimeoutHeight very far in the future: the deployment
	// attempt never expires.
	NoTimeout int64 = math.MaxInt64

	// AlwaysActive is a special StartHeight indicating that the deployment is
	// always active. This is useful for testing, as it means tests don't need
	// to deal with the activation process (which takes at least 3 BIP9
	// intervals). Only tests that specifically test the behaviour during
	// activation cannot use this.
	AlwaysActive int64 = -1
)

// BIP9Deployment one individual consensus rule change tracked through the
// BIP9 lifecycle. Start and timeout are interpreted as block heights; the
// same coordinate is used for both comparisons.
type BIP9Deployment struct {
	// Bit position to select the particular bit in nVersion.
	Bit int
	// StartHeight height at which the bit gains its meaning.
	StartHeight int64
	// TimeoutHeight height at which the deployment attempt expires. Setting
	// it equal to StartHeight makes the deployment impossible to lock in.
	TimeoutHeight int64
	// Period overrides the confirmation window length for this deployment
	// when present.
	Period *uint32
	// Threshold overrides the activation threshold for this deployment when
	// present.
	Threshold *uint32
}

// AlwaysActive reports whether this deployment skips the state machine and
// is active from genesis.
func (dep *BIP9Deployment) AlwaysActive() bool {
	return dep.StartHeight == AlwaysActive
}

// NeverActive reports whether this deployment was written so it can never
// reach lock-in.
func (dep *BIP9Deployment) NeverActive() bool {
	return !dep.AlwaysActive() && dep.TimeoutHeight == dep.StartHeight
}

type Param struct {
	GenesisHash            *util.Hash
	SubsidyHalvingInterval int
	// Block height and hash at which BIP34 becomes active
	BIP34Height int32
	BIP34Hash   util.Hash
	// Block height at which BIP65 becomes active
	BIP65Height int32
	// Block height at which BIP66 becomes active
	BIP66Height int32
	// Block height at which CSV (BIP68, BIP112 and BIP113) becomes active
	CSVHeight int32

	// Minimum blocks including miner confirmation of the total of 2016 blocks
	// in a retargeting period, (nPowTargetTimespan / nPowTargetSpacing) which
	// is also used for BIP9 deployments.
	// Examples: 1916 for 95%, 1512 for testchains.
	RuleChangeActivationThreshold uint32

	MinerConfirmationWindow uint32

	Deployments [MaxVersionBitsDeployments]BIP9Deployment

	// Proof of work parameters
	PowLimit                     *big.Int
	FPowAllowMinDifficultyBlocks bool
	FPowNoRetargeting            bool
	TargetTimePerBlock           time.Duration
	TargetTimespan               time.Duration

	// The best chain should have at least this much work.
	MinimumChainWork util.Hash

	// By default assume that the signatures in ancestors of this block are valid.
	DefaultAssumeValid util.Hash
}

func (pm *Param) DifficultyAdjustmentInterval() int64 {
	return int64(pm.TargetTimespan / pm.TargetTimePerBlock)
}

// DeploymentPeriod resolves the confirmation window in effect for the given
// deployment: its override when present, else the chain-wide window. Every
// read of the window goes through here so defaulting can not diverge.
func (pm *Param) DeploymentPeriod(pos DeploymentPos) uint32 {
	if dep := &pm.Deployments[pos]; dep.Period != nil {
		return *dep.Period
	}
	return pm.MinerConfirmationWindow
}

// DeploymentThreshold resolves the activation threshold in effect for the
// given deployment, mirroring DeploymentPeriod.
func (pm *Param) DeploymentThreshold(pos DeploymentPos) uint32 {
	if dep := &pm.Deployments[pos]; dep.Threshold != nil {
		return *dep.Threshold
	}
	return pm.RuleChangeActivationThreshold
}

// CheckDeployments validates the deployment table once at load time. The
// table is trusted everywhere after this, so a failure here is fatal to
// startup.
func (pm *Param) CheckDeployments() error {
	for pos := DeploymentPos(0); pos < MaxVersionBitsDeployments; pos++ {
		dep := &pm.Deployments[pos]
		if dep.Bit < 0 || dep.Bit >= VersionBitsNumBits {
			return errcode.NewError(errcode.ErrorBadDeploymentBit, deploymentName(pos))
		}
		if pm.DeploymentThreshold(pos) > pm.DeploymentPeriod(pos) {
			return errcode.NewError(errcode.ErrorDeploymentThresholdTooLarge, deploymentName(pos))
		}
		if !dep.AlwaysActive() && dep.TimeoutHeight < dep.StartHeight {
			return errcode.NewError(errcode.ErrorDeploymentTimeoutBeforeStart, deploymentName(pos))
		}
	}

	// Bits are shared between deployments, so two of them may only claim the
	// same bit when their signalling windows can not overlap. Deployments
	// that never signal are exempt.
	for a := DeploymentPos(0); a < MaxVersionBitsDeployments; a++ {
		depA := &pm.Deployments[a]
		if depA.AlwaysActive() || depA.NeverActive() {
			continue
		}
		for b := a + 1; b < MaxVersionBitsDeployments; b++ {
			depB := &pm.Deployments[b]
			if depB.AlwaysActive() || depB.NeverActive() {
				continue
			}
			if depA.Bit != depB.Bit {
				continue
			}
			if depA.StartHeight < depB.TimeoutHeight && depB.StartHeight < depA.TimeoutHeight {
				return errcode.NewError(errcode.ErrorDeploymentBitCollision, deploymentName(a))
			}
		}
	}
	return nil
}

func deploymentName(pos DeploymentPos) string {
	return fmt.Sprintf("deployment %d", int(pos))
}
