// Copyright 2025 Certen Protocol
//
// vmsctl - command-line entrypoint for a VMS vault node. Subcommands:
//
//	vmsctl init                 load or generate an Ed25519 identity, print it, and exit
//	vmsctl commit <text>        create one event from stdin/arg text and commit
//	vmsctl listen                run as a sync receiver on cfg.ListenAddr
//	vmsctl dial <addr>           run as a sync sender against a peer

package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/certen/vms/pkg/chain"
	"github.com/certen/vms/pkg/config"
	"github.com/certen/vms/pkg/metrics"
	"github.com/certen/vms/pkg/red"
	"github.com/certen/vms/pkg/store"
	"github.com/certen/vms/pkg/sync"
	"github.com/certen/vms/pkg/vault"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <init|commit|listen|dial> [args]\n", os.Args[0])
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	switch args[0] {
	case "init":
		runInit(cfg)
	case "commit":
		runCommit(cfg, args[1:])
	case "listen":
		runListen(cfg)
	case "dial":
		runDial(cfg, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runInit(cfg *config.Config) {
	priv, err := loadOrGenerateEd25519Key(cfg)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	log.Printf("owner=%s pubkey=%s", cfg.OwnerPrincipalID, hex.EncodeToString(priv.Public().(ed25519.PublicKey)))
}

func runCommit(cfg *config.Config, args []string) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	text := strings.Join(args, " ")
	if text == "" {
		scanner := bufio.NewScanner(os.Stdin)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		text = strings.Join(lines, "\n")
	}
	if text == "" {
		log.Fatal("commit: no event text given (pass as argument or on stdin)")
	}

	ctx := context.Background()
	v, closeStore, err := openVault(ctx, cfg)
	if err != nil {
		log.Fatalf("open vault: %v", err)
	}
	defer closeStore()

	if _, err := v.CreateEvent(ctx, []byte(text), vault.WithFeatureText(text)); err != nil {
		log.Fatalf("create event: %v", err)
	}
	block, err := v.Commit(ctx)
	if err != nil {
		log.Fatalf("commit: %v", err)
	}
	log.Printf("committed block_no=%d", block.BlockNo)
}

func runListen(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, closeStore, err := openVault(ctx, cfg)
	if err != nil {
		log.Fatalf("open vault: %v", err)
	}
	defer closeStore()

	priv, err := loadOrGenerateEd25519Key(cfg)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	policy := chain.SingleKeyPolicy{Owner: priv.Public().(ed25519.PublicKey)}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}
	defer ln.Close()
	log.Printf("vmsctl listening on %s", cfg.ListenAddr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("accept: %v", err)
			continue
		}
		go func() {
			defer conn.Close()
			sc := sync.NewStreamConn(conn)
			applied, err := sync.RunReceiver(ctx, sc, v.VaultID(), v, policy)
			if err != nil {
				log.Printf("receive from %s: %v", conn.RemoteAddr(), err)
				return
			}
			log.Printf("received %d block(s) from %s", applied, conn.RemoteAddr())
		}()
	}
}

func runDial(cfg *config.Config, args []string) {
	if len(args) != 1 {
		log.Fatal("dial: expected exactly one peer address")
	}
	peerAddr := args[0]

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TransferTimeout)
	defer cancel()

	v, closeStore, err := openVault(ctx, cfg)
	if err != nil {
		log.Fatalf("open vault: %v", err)
	}
	defer closeStore()

	conn, err := net.DialTimeout("tcp", peerAddr, cfg.DialTimeout)
	if err != nil {
		log.Fatalf("dial %s: %v", peerAddr, err)
	}
	defer conn.Close()

	sc := sync.NewStreamConn(conn)
	if err := sync.RunSender(ctx, sc, v.VaultID(), v); err != nil {
		log.Fatalf("sync to %s: %v", peerAddr, err)
	}
	log.Printf("sync to %s complete", peerAddr)
}

// openVault wires the configured content store backend, RED engine
// overrides, identity, and metrics into a ready-to-use Vault.
func openVault(ctx context.Context, cfg *config.Config) (*vault.Vault, func(), error) {
	backend, closeStore, err := openStoreBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	priv, err := loadOrGenerateEd25519Key(cfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	signer := chain.NewEd25519Signer(priv)

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}

	engine := red.NewEngine(red.WithDimensions(cfg.RedDimensions), red.WithLearningRate(cfg.RedLearningRate))

	objs := store.NewTyped(backend)
	v, err := vault.New(ctx, objs, signer,
		vault.WithOwner(cfg.OwnerPrincipalID),
		vault.WithRedEngine(engine),
		vault.WithMetrics(m),
	)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return v, closeStore, nil
}

func openStoreBackend(ctx context.Context, cfg *config.Config) (store.ContentStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory, "":
		return store.NewMemoryStore(), func() {}, nil
	case config.StoreBackendCometBFT:
		if err := os.MkdirAll(cfg.CometDBPath, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create comet db dir: %w", err)
		}
		db, err := dbm.NewGoLevelDB(cfg.CometDBName, cfg.CometDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open comet db: %w", err)
		}
		return store.NewCometBackend(db), func() { db.Close() }, nil
	case config.StoreBackendPostgres:
		backend, err := store.NewPostgresBackend(ctx, store.PostgresConfig{
			DatabaseURL:  cfg.DatabaseURL,
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { backend.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// loadOrGenerateEd25519Key loads the node's signing key from
// cfg.Ed25519KeyPath, generating and persisting a fresh one on first run.
func loadOrGenerateEd25519Key(cfg *config.Config) (ed25519.PrivateKey, error) {
	keyPath := cfg.Ed25519KeyPath
	if keyPath == "" {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "./data"
		}
		keyPath = filepath.Join(dataDir, "ed25519_key.hex")
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
			return nil, fmt.Errorf("save ed25519 key to %s: %w", keyPath, err)
		}
		log.Printf("generated new ed25519 key at %s", keyPath)
		return priv, nil
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ed25519 key from %s: %w", keyPath, err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode ed25519 key from %s: %w", keyPath, err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 key size in %s: expected %d, got %d", keyPath, ed25519.PrivateKeySize, len(keyBytes))
	}
	return ed25519.PrivateKey(keyBytes), nil
}
