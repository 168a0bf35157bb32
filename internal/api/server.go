package api

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/joho/godotenv/autoload"

	"twapd/internal/manager"
	"twapd/internal/signer"
)

type APIServer struct {
	port     int
	hookAddr ethcommon.Address
	manager  *manager.Manager
	signer   *signer.Signer
	logger   *log.Logger
}

func NewAPIServer(mgr *manager.Manager, sgn *signer.Signer, logger *log.Logger) *http.Server {
	port, _ := strconv.Atoi(os.Getenv("API_PORT"))
	hookAddr := ethcommon.HexToAddress(os.Getenv("TWAP_HOOK"))

	NewAPIServer := &APIServer{
		port:     port,
		hookAddr: hookAddr,
		manager:  mgr,
		signer:   sgn,
		logger:   logger,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewAPIServer.port),
		Handler:      NewAPIServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
