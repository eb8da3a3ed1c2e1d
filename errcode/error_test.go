package errcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesModuleAndCode(t *testing.T) {
	err := New(ErrorBadDeploymentBit)
	pe, ok := err.(ProjectError)
	assert.True(t, ok)
	assert.Equal(t, "consensus", pe.Module)
	assert.Equal(t, int(ErrorBadDeploymentBit), pe.Code)
	assert.Contains(t, err.Error(), "consensus")

	err = New(ErrorBlockHeaderNoParent)
	pe = err.(ProjectError)
	assert.Equal(t, "chain", pe.Module)
}

func TestNewErrorAppendsDetail(t *testing.T) {
	err := NewError(ErrorDeploymentBitCollision, "deployment 2")
	assert.Contains(t, err.Error(), "deployment 2")
	assert.True(t, IsErrorCode(err, ErrorDeploymentBitCollision))
}

func TestIsErrorCode(t *testing.T) {
	err := New(ErrorDeploymentTimeoutBeforeStart)
	assert.True(t, IsErrorCode(err, ErrorDeploymentTimeoutBeforeStart))
	assert.False(t, IsErrorCode(err, ErrorBadDeploymentBit))
	assert.False(t, IsErrorCode(nil, ErrorBadDeploymentBit))
}

func TestStringUnknownCode(t *testing.T) {
	assert.Contains(t, ConsensusErr(999).String(), "Unknown code")
	assert.Contains(t, ChainErr(1999).String(), "Unknown code")
}
