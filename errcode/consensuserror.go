package errcode

import "fmt"

type ConsensusErr int

const (
	ErrorBadDeploymentBit ConsensusErr = ConsensusErrorBase + iota
	ErrorDeploymentThresholdTooLarge
	ErrorDeploymentTimeoutBeforeStart
	ErrorDeploymentBitCollision
)

var consensusErrString = map[ConsensusErr]string{
	ErrorBadDeploymentBit:             "The deployment bit is outside the version-bits range",
	ErrorDeploymentThresholdTooLarge:  "The activation threshold exceeds the confirmation window",
	ErrorDeploymentTimeoutBeforeStart: "The deployment timeout height is below its start height",
	ErrorDeploymentBitCollision:       "Two deployments signal on the same bit in overlapping windows",
}

func (consensuserr ConsensusErr) String() string {
	if s, ok := consensusErrString[consensuserr]; ok {
		return s
	}
	return fmt.Sprintf("Unknown code (%d)", consensuserr)
}
