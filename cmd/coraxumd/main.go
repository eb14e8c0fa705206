// Command coraxumd runs the full node: it loads configuration, opens the
// configured storage backend, and serves the RPC and gossip surfaces,
// following the single main() wiring layout exccd's cmd/exccd uses rather
// than splitting startup across multiple binaries.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coraxum/coraxumd/consensus"
	"github.com/coraxum/coraxumd/internal/config"
	"github.com/coraxum/coraxumd/internal/gossip"
	coraxumlog "github.com/coraxum/coraxumd/internal/log"
	"github.com/coraxum/coraxumd/internal/mempool"
	"github.com/coraxum/coraxumd/internal/rpc"
	"github.com/coraxum/coraxumd/miner"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/store/boltstore"
	"github.com/coraxum/coraxumd/store/mongostore"
	"github.com/coraxum/coraxumd/utxo"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "coraxumd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	if err := coraxumlog.InitLogRotator(cfg.LogFilePath()); err != nil {
		return err
	}
	coraxumlog.SetLogLevels(cfg.LogLevel)
	log := coraxumlog.Logger(coraxumlog.TagChain)

	bs, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	pendingTxns := mempool.New()
	idx := utxo.New(bs, pendingTxns, 5*time.Minute)
	defer idx.Close()

	verifier := consensus.NewBlockVerifier(bs, idx)
	factory := miner.NewBlockFactory(bs, idx, cfg.Network())

	rpcCfg := rpc.Config{}
	if cfg.PublicKey != "" && cfg.PrivateKey != "" {
		rpcCfg.ProducerPubKeyHex = cfg.PublicKey
		priv, err := privateKeyFromHex(cfg.PrivateKey)
		if err != nil {
			return fmt.Errorf("coraxumd: invalid private_key: %w", err)
		}
		rpcCfg.ProducerPrivKey = priv
	}

	rpcServer := rpc.New(bs, idx, pendingTxns, factory, cfg.Network(), coraxumlog.Logger(coraxumlog.TagRPC), rpcCfg, 20)
	hub := gossip.NewHub(bs, verifier)

	mux := http.NewServeMux()
	mux.Handle("/", rpcServer.Handler())
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.Handler())

	log.Infof("coraxumd listening on %s (network=%s)", cfg.RPCListen, cfg.Network())
	return http.ListenAndServe(cfg.RPCListen, mux)
}

func privateKeyFromHex(s string) (*secp256k1.PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return secp256k1.PrivKeyFromBytes(b), nil
}

// openStore selects bbolt when no Mongo URI is configured, and MongoDB
// otherwise, matching the original's choice of MongoDB as its canonical
// store while giving a single-process deployment an embedded alternative.
func openStore(cfg *config.Config) (store.BlockStore, func(), error) {
	if cfg.MongoURI == "" {
		bs, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return bs, func() { bs.Close() }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, err
	}
	ms := mongostore.New(client.Database("coraxum"))
	if err := ms.EnsureIndexes(context.Background()); err != nil {
		return nil, nil, err
	}
	return ms, func() { client.Disconnect(context.Background()) }, nil
}
