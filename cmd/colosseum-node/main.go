// Command colosseum-node runs a single tracker process that watches one
// output index's dispute and, depending on role, submits bisections and
// timeouts on its behalf. The tracker is started without a proof builder,
// so this command never submits fault proofs.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/TomTaehoonKim/kroma/colosseum"
	"github.com/TomTaehoonKim/kroma/colosseum/localsegments"
	"github.com/TomTaehoonKim/kroma/colosseum/tracker"
	"github.com/TomTaehoonKim/kroma/pubsub"
	"github.com/TomTaehoonKim/kroma/staker"
	"github.com/TomTaehoonKim/kroma/staker/validatorwallet"
)

func main() {
	os.Exit(mainImpl())
}

func mainImpl() int {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", cfg.LogLevel, err)
		return 1
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if cfg.LogFile != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxSize:  cfg.LogFileMaxMB,
			MaxAge:   cfg.LogFileMaxAge,
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Error("colosseum-node exited with error")
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *NodeConfig) error {
	l1, err := ethclient.DialContext(ctx, cfg.L1RPC)
	if err != nil {
		return fmt.Errorf("dialing L1 RPC: %w", err)
	}

	var wallet validatorwallet.Wallet
	var auth *bind.TransactOpts
	if cfg.CallerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.CallerKey, "0x"))
		if err != nil {
			return fmt.Errorf("parsing caller key: %w", err)
		}
		chainID, err := l1.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("fetching chain ID: %w", err)
		}
		auth, err = bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return fmt.Errorf("building transactor: %w", err)
		}
		wallet = validatorwallet.NewNoOp(crypto.PubkeyToAddress(key.PublicKey))
	} else {
		wallet = validatorwallet.NewNoOp(common.Address{})
	}
	wallet.Start(ctx)
	defer wallet.StopAndWait()

	rawOracle, err := staker.NewOnChainOracle(ctx, common.HexToAddress(cfg.OutputOracleAddress), l1, auth)
	if err != nil {
		return fmt.Errorf("binding output oracle: %w", err)
	}
	oracle, err := staker.NewCachingOracle(rawOracle, cfg.OracleCacheSize)
	if err != nil {
		return fmt.Errorf("wrapping oracle cache: %w", err)
	}

	bondPool := staker.NewOnChainBondPool(common.HexToAddress(cfg.BondPoolAddress), l1, big.NewInt(0), auth)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	replaySet := colosseum.NewRedisReplaySet(redisClient, cfg.ReplayKeyPrefix)

	council, err := colosseum.NewPubSubCouncilFromConfig(ctx, &pubsub.ProducerConfig{
		RedisURL:    cfg.RedisURL,
		RedisStream: cfg.ApprovalStream,
	})
	if err != nil {
		return fmt.Errorf("starting approval producer: %w", err)
	}

	zkVerifier, err := loadGnarkVerifier(cfg.GnarkVKPath)
	if err != nil {
		return fmt.Errorf("loading groth16 verifying key: %w", err)
	}

	segmentsLengths, err := parseSegmentsLengths(cfg.SegmentsLengths)
	if err != nil {
		return err
	}

	co, err := colosseum.NewCoordinator(colosseum.Params{
		Config: colosseum.Config{
			BisectionTimeout: time.Duration(cfg.BisectionTimeoutSeconds) * time.Second,
			ProvingTimeout:   time.Duration(cfg.ProvingTimeoutSeconds) * time.Second,
			DummyHash:        common.HexToHash(cfg.DummyHash),
			MaxTxs:           cfg.MaxTxs,
			SegmentsLengths:  segmentsLengths,
			TrieVerifierAddr: common.HexToAddress(cfg.TrieVerifierAddress),
		},
		Oracle:    oracle,
		BondPool:  bondPool,
		Council:   council,
		ZK:        zkVerifier,
		Trie:      colosseum.ZkTrieVerifier{},
		ReplaySet: replaySet,
	})
	if err != nil {
		return fmt.Errorf("constructing coordinator: %w", err)
	}

	role, err := parseRole(cfg.Role)
	if err != nil {
		return err
	}

	roots, err := readSegmentsFile(cfg.SegmentsFile)
	if err != nil {
		return fmt.Errorf("reading segments file: %w", err)
	}
	source, err := localsegments.New(cfg.SegmentsBase, roots)
	if err != nil {
		return fmt.Errorf("constructing local segment source: %w", err)
	}

	t := tracker.New(co, source, cfg.OutputIndex, wallet.Address(), role, cfg.PollInterval, nil)
	t.Start(ctx)
	defer t.StopAndWait()

	logrus.WithFields(logrus.Fields{
		"outputIndex": cfg.OutputIndex,
		"role":        cfg.Role,
	}).Info("colosseum-node tracking challenge")

	<-ctx.Done()
	return nil
}

func parseRole(s string) (tracker.Role, error) {
	switch strings.ToLower(s) {
	case "challenger":
		return tracker.RoleChallenger, nil
	case "asserter", "watchtower":
		return tracker.RoleAsserter, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func readSegmentsFile(path string) ([]common.Hash, error) {
	if path == "" {
		return []common.Hash{{}}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var roots []common.Hash
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		roots = append(roots, common.HexToHash(line))
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("segments file %s contains no roots", path)
	}
	return roots, nil
}

func loadGnarkVerifier(path string) (*colosseum.GnarkVerifier, error) {
	if path == "" {
		return colosseum.NewGnarkVerifier(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, err
	}
	return colosseum.NewGnarkVerifier(vk), nil
}
