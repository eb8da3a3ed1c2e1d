package conf

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/copernet/bip9/log"
	"github.com/copernet/bip9/model/chainparams"
)

const defaultDataDirname = "bip9"

type Config struct {
	DataDir   string
	Chain     string
	LogLevel  string
	LogModule []string
}

// InitConfig resolves configuration from flags, environment and an optional
// config file, then brings up logging. Flags win over the file, the file
// wins over defaults.
func InitConfig(args []string) (*Config, error) {
	opts, err := InitArgs(args)
	if err != nil {
		return nil, errors.Wrap(err, "parse args")
	}
	if opts.RegTest && opts.TestNet {
		return nil, errors.New("regtest and testnet can not both be set")
	}

	v := viper.New()
	v.SetEnvPrefix("bip9")
	v.AutomaticEnv()
	v.SetDefault("datadir", defaultDataDir())
	v.SetDefault("chain", "main")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.module", []string{"all"})

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", opts.ConfigFile)
		}
	}

	cfg := &Config{
		DataDir:   v.GetString("datadir"),
		Chain:     v.GetString("chain"),
		LogLevel:  v.GetString("log.level"),
		LogModule: v.GetStringSlice("log.module"),
	}

	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.RegTest {
		cfg.Chain = "regtest"
	}
	if opts.TestNet {
		cfg.Chain = "test"
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if len(opts.LogModule) > 0 {
		cfg.LogModule = opts.LogModule
	}

	if _, err := chainparams.ByName(cfg.Chain); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0740); err != nil {
		return nil, errors.Wrapf(err, "create datadir %s", cfg.DataDir)
	}
	if err := log.Init(cfg.DataDir, cfg.LogLevel, cfg.LogModule); err != nil {
		return nil, errors.Wrap(err, "init logging")
	}

	return cfg, nil
}

// ChainParams returns the profile the configuration selected.
func (cfg *Config) ChainParams() *chainparams.BitcoinParams {
	params, err := chainparams.ByName(cfg.Chain)
	if err != nil {
		// InitConfig already vetted the name.
		panic(err)
	}
	return params
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirname
	}
	return filepath.Join(home, "."+defaultDataDirname)
}
