package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	flag "github.com/spf13/pflag"
)

// NodeConfig holds everything a single colosseum-node process needs to
// watch or drive one output-index's challenge to completion.
type NodeConfig struct {
	ConfigFile string `koanf:"config"`

	L1RPC               string `koanf:"l1-rpc"`
	OutputOracleAddress string `koanf:"output-oracle"`
	BondPoolAddress     string `koanf:"bond-pool"`
	TrieVerifierAddress string `koanf:"trie-verifier"`

	RedisURL        string `koanf:"redis-url"`
	ReplayKeyPrefix string `koanf:"replay-key-prefix"`
	ApprovalStream  string `koanf:"approval-stream"`

	Role            string `koanf:"role"`
	OutputIndex     uint64 `koanf:"output-index"`
	CallerKey       string `koanf:"caller-key"`
	GnarkVKPath     string `koanf:"gnark-vk"`
	SegmentsFile    string `koanf:"segments-file"`
	SegmentsBase    uint64 `koanf:"segments-base"`
	SegmentsLengths string `koanf:"segments-lengths"`

	BisectionTimeoutSeconds int    `koanf:"bisection-timeout-seconds"`
	ProvingTimeoutSeconds   int    `koanf:"proving-timeout-seconds"`
	DummyHash               string `koanf:"dummy-hash"`
	MaxTxs                  uint64 `koanf:"max-txs"`

	PollInterval    time.Duration `koanf:"poll-interval"`
	OracleCacheSize int           `koanf:"oracle-cache-size"`
	LogLevel        string        `koanf:"log-level"`

	LogFile       string `koanf:"log-file"`
	LogFileMaxMB  int    `koanf:"log-file-max-mb"`
	LogFileMaxAge int    `koanf:"log-file-max-age-days"`
}

// DefaultNodeConfig mirrors the production defaults a watchtower deployment
// starts from.
var DefaultNodeConfig = NodeConfig{
	RedisURL:                "redis://127.0.0.1:6379/0",
	ReplayKeyPrefix:         "colosseum:replay:",
	ApprovalStream:          "colosseum:approvals",
	Role:                    "watchtower",
	PollInterval:            5 * time.Second,
	OracleCacheSize:         1024,
	LogLevel:                "info",
	SegmentsLengths:         "5,5",
	BisectionTimeoutSeconds: 3600,
	ProvingTimeoutSeconds:   3600,
	MaxTxs:                  100,
	LogFileMaxMB:            100,
	LogFileMaxAge:           7,
}

func parseConfig(args []string) (*NodeConfig, error) {
	fs := flag.NewFlagSet("colosseum-node", flag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("l1-rpc", DefaultNodeConfig.L1RPC, "L1 JSON-RPC endpoint")
	fs.String("output-oracle", "", "output oracle contract address")
	fs.String("bond-pool", "", "bond pool contract address")
	fs.String("trie-verifier", "", "reserved for a future on-chain trie verifier precompile address")
	fs.String("redis-url", DefaultNodeConfig.RedisURL, "redis URL backing the replay set and approval queue")
	fs.String("replay-key-prefix", DefaultNodeConfig.ReplayKeyPrefix, "redis key prefix for the replay set")
	fs.String("approval-stream", DefaultNodeConfig.ApprovalStream, "redis stream name for council approval jobs")
	fs.String("role", DefaultNodeConfig.Role, "challenger, asserter, or watchtower")
	fs.Uint64("output-index", 0, "output index to track")
	fs.String("caller-key", "", "hex-encoded private key this node signs moves with; empty runs watchtower-only")
	fs.String("gnark-vk", "", "path to the groth16 verifying key")
	fs.String("segments-file", "", "path to a newline-delimited file of hex output roots this node trusts, one per L2 block")
	fs.Uint64("segments-base", 0, "absolute L2 block number the first line of segments-file corresponds to")
	fs.String("segments-lengths", DefaultNodeConfig.SegmentsLengths, "comma-separated L[1..K], the required segment count per turn")
	fs.Int("bisection-timeout-seconds", DefaultNodeConfig.BisectionTimeoutSeconds, "per-turn bisection response deadline")
	fs.Int("proving-timeout-seconds", DefaultNodeConfig.ProvingTimeoutSeconds, "final-turn proving response deadline")
	fs.String("dummy-hash", "", "hex sentinel hash used to pad the transaction-hash slots of the public-input digest")
	fs.Uint64("max-txs", DefaultNodeConfig.MaxTxs, "maximum transactions considered per recomputed block")
	fs.Duration("poll-interval", DefaultNodeConfig.PollInterval, "how often the tracker re-evaluates challenge status")
	fs.Int("oracle-cache-size", DefaultNodeConfig.OracleCacheSize, "finalized-checkpoint LRU cache size")
	fs.String("log-level", DefaultNodeConfig.LogLevel, "panic, fatal, error, warn, info, debug, or trace")
	fs.String("log-file", "", "path to a rotating log file; empty logs to stderr only")
	fs.Int("log-file-max-mb", DefaultNodeConfig.LogFileMaxMB, "rotate the log file after it reaches this size")
	fs.Int("log-file-max-age-days", DefaultNodeConfig.LogFileMaxAge, "delete rotated log files older than this many days")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("applying flags: %w", err)
	}

	cfg := DefaultNodeConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func parseSegmentsLengths(s string) ([]uint64, error) {
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid segments-lengths entry %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}
