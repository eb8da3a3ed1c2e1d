package errcode

import "fmt"

type ChainErr int

const (
	ErrorBlockNotInActiveChain ChainErr = ChainErrorBase + iota
	ErrorBlockHeaderNoParent
)

var chainErrString = map[ChainErr]string{
	ErrorBlockNotInActiveChain: "The block index is not part of the active chain",
	ErrorBlockHeaderNoParent:   "Can not find this block header's parent",
}

func (chainerr ChainErr) String() string {
	if s, ok := chainErrString[chainerr]; ok {
		return s
	}
	return fmt.Sprintf("Unknown code (%d)", chainerr)
}
