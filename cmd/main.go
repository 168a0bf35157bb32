package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	_ "github.com/joho/godotenv/autoload"

	"twapd/internal/api"
	"twapd/internal/chain"
	"twapd/internal/common"
	"twapd/internal/eip712"
	"twapd/internal/manager"
	"twapd/internal/permit"
	"twapd/internal/signer"
	"twapd/internal/tracker"
	"twapd/internal/ws"
)

func initServer(server *http.Server, done chan bool, logger *log.Logger) {
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			panic(fmt.Sprintf("server error: %s", err))
		}
	}()

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Println("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("Server forced to shutdown with error: %v", err)
	}

	logger.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "twapd: ", log.LstdFlags)

	chainID := common.ChainID(envInt64("CHAIN_ID", int64(common.EthereumMainnet)))

	limitOrderAddr, err := eip712.GetLimitOrderContract(chainID)
	if err != nil {
		logger.Fatalf("unsupported chain: %v", err)
	}
	if override := os.Getenv("LIMIT_ORDER_CONTRACT"); override != "" {
		limitOrderAddr = ethcommon.HexToAddress(override)
	}
	permit2Addr := ethcommon.HexToAddress(os.Getenv("PERMIT2_CONTRACT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := chain.Dial(ctx, os.Getenv("RPC_URL"), os.Getenv("PRIVATE_KEY"), limitOrderAddr, permit2Addr, logger)
	if err != nil {
		logger.Fatalf("failed to connect to chain: %v", err)
	}
	defer client.Close()

	key := loadKey(logger)
	sgn := signer.New(chainID, limitOrderAddr, key)

	trk := tracker.New(client, logger)
	submitter := chain.NewSubmitter(client, logger)

	pollInterval := time.Duration(envInt64("POLL_INTERVAL_SECONDS", 30)) * time.Second
	mgr := manager.NewManager(trk, submitter, pollInterval, logger)
	mgr.SetRefreshPermit(refreshPermitFunc(client, key, chainID, permit2Addr))

	// create the servers
	apiServer := api.NewAPIServer(mgr, sgn, logger)
	wsServer := ws.NewWSServer(mgr, logger)

	// Create done channels to signal when the shutdown is complete
	apiDone := make(chan bool, 1)
	wsDone := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go initServer(apiServer, apiDone, logger)
	go initServer(wsServer, wsDone, logger)

	// Drive the fill schedule
	go mgr.Run(ctx)

	// Wait for the graceful shutdown to complete
	select {
	case <-apiDone:
		logger.Println("API server shutdown complete.")
	case <-wsDone:
		logger.Println("WebSocket server shutdown complete.")
	}

	logger.Println("Servers down, now closing the manager...")
	cancel()
	mgr.Close()

	logger.Println("Manager closed.")
	logger.Println("Graceful shutdown complete.")
}

func loadKey(logger *log.Logger) *ecdsa.PrivateKey {
	raw := os.Getenv("PRIVATE_KEY")
	if raw == "" {
		logger.Println("no PRIVATE_KEY set, running in build-only mode")
		return nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		logger.Fatalf("invalid private key: %v", err)
	}
	return key
}

// refreshPermitFunc builds the authorization retry path: re-read the nonce
// bitmap, allocate the next free bit, and re-sign the same authorization with
// a fresh deadline. Used only on the specific nonce-already-used rejection.
func refreshPermitFunc(client *chain.Client, key *ecdsa.PrivateKey, chainID common.ChainID, permit2Addr ethcommon.Address) manager.PermitRefresher {
	return func(ctx context.Context, owner ethcommon.Address, previous *permit.SignedPermit) (*permit.SignedPermit, error) {
		bitmap, err := client.NonceBitmap(ctx, owner, big.NewInt(0))
		if err != nil {
			return nil, err
		}

		nonce, err := permit.NextFreeNonce(bitmap)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		p := previous.Permit
		p.Nonce = nonce
		p.Deadline = permit.ClampDeadline(now, time.Time{})

		return permit.SignTransferPermit(key, chainID, permit2Addr, p, now)
	}
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
