package chainparams

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/copernet/bip9/model/consensus"
	"github.com/copernet/bip9/util"
)

var (
	bigOne = big.NewInt(1)
	// 2^224 -1
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)
	// 2^255 -1
	regressingPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
	testNetPowLimit    = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)
)

var (
	// MainNetGenesisHash genesis block hash of the main network.
	MainNetGenesisHash = *util.HashFromString("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")
	// TestNetGenesisHash genesis block hash of the test network (version 3).
	TestNetGenesisHash = *util.HashFromString("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943")
	// RegTestGenesisHash genesis block hash of the regression test network.
	RegTestGenesisHash = *util.HashFromString("0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206")
)

type BitcoinParams struct {
	consensus.Param
	Name                string
	DefaultPort         string
	PowLimitBits        uint32
	GenerateSupported   bool
	MineBlocksOnDemands bool
}

func overrideU32(v uint32) *uint32 {
	return &v
}

var MainNetParams = BitcoinParams{
	Param: consensus.Param{
		GenesisHash: &MainNetGenesisHash,

		SubsidyHalvingInterval: 210000,
		BIP34Height:            227931,
		// little endian
		BIP34Hash: *util.HashFromString("000000000000024b89b42a942fe0d9fea3bb44ab7bd1b19115dd6a759c0808b8"),
		// 000000000000000004c2b624ed5d7756c508d90fd0da2c7c679febfa6c4735f0
		BIP65Height: 388381,
		// 00000000000000000379eaa19dce8c9b722d46ae6a57c2f1a988119488b50931
		BIP66Height: 363725,
		// 000000000000000004a1b34462cb8aeebd5799177f7a29cf28f2d1961716b5b5
		CSVHeight:                     419328,
		PowLimit:                      mainPowLimit,
		TargetTimespan:                60 * 60 * 24 * 14,
		TargetTimePerBlock:            60 * 10,
		FPowAllowMinDifficultyBlocks:  false,
		FPowNoRetargeting:             false,
		RuleChangeActivationThreshold: 1916,
		MinerConfirmationWindow:       2016,
		Deployments: [consensus.MaxVersionBitsDeployments]consensus.BIP9Deployment{
			consensus.DeploymentTestDummy: {
				Bit:           28,
				StartHeight:   0,
				TimeoutHeight: 0,
			},
			consensus.DeploymentTaproot: {
				Bit:           2,
				StartHeight:   681408,
				TimeoutHeight: 760032,
			},
			consensus.DeploymentDynaFed: {
				Bit:           25,
				StartHeight:   1517040,
				TimeoutHeight: consensus.NoTimeout,
				Period:        overrideU32(10080),
				Threshold:     overrideU32(8640),
			},
		},

		// The best chain should have at least this much work.
		MinimumChainWork: *util.HashFromString("000000000000000000000000000000000000000000b8702680bcb0fec8548e05"),

		// By default assume that the signatures in ancestors of this block are
		// valid.
		DefaultAssumeValid: *util.HashFromString("0000000000000000007e11995a8969e2d8838e72da271cdd1903ae4c6753064a"),
	},

	Name:                "main",
	DefaultPort:         "8333",
	PowLimitBits:        0x1d00ffff,
	GenerateSupported:   false,
	MineBlocksOnDemands: false,
}

var TestNetParams = BitcoinParams{
	Param: consensus.Param{
		GenesisHash: &TestNetGenesisHash,

		SubsidyHalvingInterval: 210000,
		BIP34Height:            21111,
		BIP34Hash:              *util.HashFromString("0000000023b3a96d3484e5abb3755c413e7d41500f8e2a5c3f0dd01299cd8ef8"),
		// 00000000007f6655f22f98e72ed80d8b06dc761d5da09df0fa1dc4be4f861eb6
		BIP65Height: 581885,
		// 000000002104c8c45e99a8853285a3b592602a3ccde2b832481da85e9e4ba182
		BIP66Height: 330776,
		// 00000000025e930139bac5c6c31a403776da130831ab85be56578f3fa75369bb
		CSVHeight:                     770112,
		PowLimit:                      testNetPowLimit,
		TargetTimespan:                60 * 60 * 24 * 14,
		TargetTimePerBlock:            60 * 10,
		FPowAllowMinDifficultyBlocks:  true,
		FPowNoRetargeting:             false,
		RuleChangeActivationThreshold: 1512,
		MinerConfirmationWindow:       2016,
		Deployments: [consensus.MaxVersionBitsDeployments]consensus.BIP9Deployment{
			consensus.DeploymentTestDummy: {
				Bit:           28,
				StartHeight:   0,
				TimeoutHeight: 0,
			},
			consensus.DeploymentTaproot: {
				Bit:           2,
				StartHeight:   2011968,
				TimeoutHeight: consensus.NoTimeout,
			},
			consensus.DeploymentDynaFed: {
				Bit:           25,
				StartHeight:   2090880,
				TimeoutHeight: consensus.NoTimeout,
			},
		},

		MinimumChainWork: *util.HashFromString("00000000000000000000000000000000000000000000002888c34d61b53a244a"),

		DefaultAssumeValid: *util.HashFromString("0000000000327972b8470c11755adf8f4319796bafae01f5a6650490b98a17db"),
	},

	Name:                "test",
	DefaultPort:         "18333",
	PowLimitBits:        0x1d00ffff,
	GenerateSupported:   false,
	MineBlocksOnDemands: false,
}

var RegressionNetParams = BitcoinParams{
	Param: consensus.Param{
		GenesisHash: &RegTestGenesisHash,

		SubsidyHalvingInterval: 150,
		// BIP34 has not activated on regtest (far in the future so block v1 are
		// not rejected in tests)
		BIP34Height:                   100000000,
		BIP34Hash:                     util.Hash{},
		BIP65Height:                   1351,
		BIP66Height:                   1251,
		CSVHeight:                     576,
		PowLimit:                      regressingPowLimit,
		TargetTimespan:                60 * 60 * 24 * 14,
		TargetTimePerBlock:            60 * 10,
		FPowAllowMinDifficultyBlocks:  true,
		FPowNoRetargeting:             true,
		RuleChangeActivationThreshold: 108, // 75% for testchains
		MinerConfirmationWindow:       144, // Faster than normal for regtest
		Deployments: [consensus.MaxVersionBitsDeployments]consensus.BIP9Deployment{
			consensus.DeploymentTestDummy: {
				Bit:           28,
				StartHeight:   0,
				TimeoutHeight: consensus.NoTimeout,
			},
			consensus.DeploymentTaproot: {
				Bit:           2,
				StartHeight:   consensus.AlwaysActive,
				TimeoutHeight: consensus.NoTimeout,
			},
			consensus.DeploymentDynaFed: {
				Bit:           25,
				StartHeight:   0,
				TimeoutHeight: consensus.NoTimeout,
				Period:        overrideU32(128),
				Threshold:     overrideU32(96),
			},
		},

		MinimumChainWork:   util.Hash{},
		DefaultAssumeValid: util.Hash{},
	},

	Name:                "regtest",
	DefaultPort:         "18444",
	PowLimitBits:        0x207fffff,
	GenerateSupported:   true,
	MineBlocksOnDemands: true,
}

// ByName selects a chain profile. The caller owns the decision which chain
// to run; there is no process-wide active profile.
func ByName(name string) (*BitcoinParams, error) {
	switch name {
	case "main", "mainnet", "":
		return &MainNetParams, nil
	case "test", "testnet":
		return &TestNetParams, nil
	case "regtest", "regression":
		return &RegressionNetParams, nil
	}
	return nil, errors.Errorf("unknown chain profile %q", name)
}

func init() {
	for _, params := range []*BitcoinParams{&MainNetParams, &TestNetParams, &RegressionNetParams} {
		if err := params.CheckDeployments(); err != nil {
			panic(err)
		}
	}
}
