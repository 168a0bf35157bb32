package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/schema"

	"twapd/internal/common"
	"twapd/internal/eip712"
	"twapd/internal/interaction"
	"twapd/internal/manager"
	"twapd/internal/permit"
	"twapd/internal/schedule"
	"twapd/internal/signer"
)

func (s *APIServer) RegisterRoutes() http.Handler {
	router := gin.New()

	// Register routes
	router.GET("/", s.DefaultHandler)

	router.GET("/schedule/v1.0/preview", s.SchedulePreview)
	router.POST("/orders/v1.0/build", s.BuildOrder)
	router.POST("/orders/v1.0/submit", s.SubmitOrder)
	router.GET("/orders/v1.0/status/:orderHash", s.GetOrderStatus)
	router.POST("/orders/v1.0/cancel/:orderHash", s.CancelOrder)

	// Wrap the router with CORS middleware
	return s.corsMiddleware(router)
}

func (s *APIServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// specToParams converts the wire form of schedule parameters into calculator
// inputs. Absent caps stay nil/zero so the calculator sees them as unset.
func specToParams(spec common.ScheduleSpec) (schedule.Params, error) {
	p := schedule.Params{
		IntervalSeconds: spec.IntervalSeconds,
		SlippagePercent: spec.SlippagePercent,
	}

	chunk, ok := new(big.Int).SetString(spec.ChunkAmount, 10)
	if !ok {
		return schedule.Params{}, schedule.ErrNonPositiveChunk
	}
	p.ChunkAmount = chunk

	if spec.TotalAmount != "" {
		total, ok := new(big.Int).SetString(spec.TotalAmount, 10)
		if !ok {
			return schedule.Params{}, schedule.ErrNonPositiveTotal
		}
		p.TotalAmount = total
	}
	if spec.EndDate != 0 {
		p.EndDate = time.Unix(spec.EndDate, 0)
	}
	if spec.QuotedChunkOut != "" {
		quoted, ok := new(big.Int).SetString(spec.QuotedChunkOut, 10)
		if ok {
			p.QuotedChunkOut = quoted
		}
	}

	return p, nil
}

// SchedulePreview computes a fill schedule without touching the chain so the
// caller can show cycle count, per-fill minimum output and projected
// completion before anything is signed.
func (s *APIServer) SchedulePreview(c *gin.Context) {
	var spec common.ScheduleSpec
	if err := decoder.Decode(&spec, c.Request.URL.Query()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	params, err := specToParams(spec)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sched, err := schedule.Calculate(params, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sched)
}

// indefiniteCycleHorizon is the making-amount multiplier signed for
// runs-forever orders: a cycle count no realistic schedule reaches, so the
// order never runs out of remaining amount before it is cancelled.
const indefiniteCycleHorizon = 1 << 20

// BuildOrder constructs an unsigned order with its TWAP interactions blob and
// returns it together with the order hash and the exact signing domain, so
// the maker can sign client-side and detect any domain mismatch up front.
func (s *APIServer) BuildOrder(c *gin.Context) {
	body := c.Request.Body
	defer body.Close()

	req := common.BuildOrderRequest{}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid build request"})
		return
	}

	if req.Schedule.ChunkAmount == "" {
		s.buildSingleFillOrder(c, req)
		return
	}

	params, err := specToParams(req.Schedule)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sched, err := schedule.Calculate(params, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hookParams := interaction.FromSchedule(sched)
	if req.PostFill != nil && req.PostFill.Deposit {
		hookParams = hookParams.WithPostFillDeposit(
			ethcommon.HexToAddress(req.PostFill.Recipient),
			ethcommon.HexToAddress(req.PostFill.Pool),
		)
	}

	interactions, err := interaction.Encode(s.hookAddr, hookParams)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	making, taking := orderAmounts(sched)
	order, hash, err := s.signer.BuildOrder(signer.OrderParams{
		Maker:         ethcommon.HexToAddress(req.Maker),
		Receiver:      ethcommon.HexToAddress(req.Receiver),
		MakerAsset:    ethcommon.HexToAddress(req.MakerAsset),
		TakerAsset:    ethcommon.HexToAddress(req.TakerAsset),
		MakingAmount:  making,
		TakingAmount:  taking,
		AllowedSender: ethcommon.HexToAddress(req.AllowedSender),
		Interactions:  interactions,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":     order,
		"orderHash": hash.Hex(),
		"schedule":  sched,
		"domain":    s.signer.Domain(),
	})
}

// buildSingleFillOrder handles the schedule-less case: one chunk for the
// full amount filled in a single shot, zero minimum output.
func (s *APIServer) buildSingleFillOrder(c *gin.Context, req common.BuildOrderRequest) {
	making, ok := new(big.Int).SetString(req.MakingAmount, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid making amount"})
		return
	}
	taking, ok := new(big.Int).SetString(req.TakingAmount, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid taking amount"})
		return
	}

	interactions, err := interaction.EncodeSingleFill(s.hookAddr, making)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, hash, err := s.signer.BuildOrder(signer.OrderParams{
		Maker:         ethcommon.HexToAddress(req.Maker),
		Receiver:      ethcommon.HexToAddress(req.Receiver),
		MakerAsset:    ethcommon.HexToAddress(req.MakerAsset),
		TakerAsset:    ethcommon.HexToAddress(req.TakerAsset),
		MakingAmount:  making,
		TakingAmount:  taking,
		AllowedSender: ethcommon.HexToAddress(req.AllowedSender),
		Interactions:  interactions,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":     order,
		"orderHash": hash.Hex(),
		"domain":    s.signer.Domain(),
	})
}

// orderAmounts derives the total order amounts from the schedule: the full
// committed input, and the summed minimum output (at least 1 so the order
// rate stays well-defined when no quote was supplied).
func orderAmounts(sched *common.FillSchedule) (*big.Int, *big.Int) {
	cycles := sched.TotalCycles
	if sched.WillRunForever {
		cycles = indefiniteCycleHorizon
	}

	making := new(big.Int).SetUint64(cycles)
	making.Mul(making, sched.ChunkInAmount)

	taking := new(big.Int).SetUint64(cycles)
	taking.Mul(taking, sched.MinOutPerChunk)
	if taking.Sign() == 0 {
		taking = big.NewInt(1)
	}

	return making, taking
}

// SubmitOrder accepts a fully signed order and starts tracked execution.
func (s *APIServer) SubmitOrder(c *gin.Context) {
	body := c.Request.Body
	defer body.Close()

	sub := common.OrderSubmission{}
	if err := json.NewDecoder(body).Decode(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order data"})
		s.logger.Printf("Failed to decode order data: %v", err)
		return
	}

	domain, err := eip712.GetLimitOrderDomain(sub.ChainID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if local := s.signer.Domain(); (*big.Int)(domain.ChainId).Cmp((*big.Int)(local.ChainId)) != 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order targets a different chain than this daemon fills"})
		return
	}

	if sub.Order.Interactions != "" && sub.Order.Interactions != "0x" {
		blob, err := hexutil.Decode(sub.Order.Interactions)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid interactions encoding"})
			return
		}
		if _, err := interaction.VerifyHook(blob, s.hookAddr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	hash, err := s.signer.OrderHash(&sub.Order)
	if err != nil {
		s.logger.Printf("Error computing order hash: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute order hash"})
		return
	}
	s.logger.Printf("Received signed order %s", hash.Hex())

	params, err := specToParams(sub.Schedule)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sched, err := schedule.Calculate(params, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var signedPermit *permit.SignedPermit
	if sub.Permit != nil {
		signedPermit, err = permit.FromSubmission(sub.Permit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	entry := &manager.OrderEntry{
		ID:            uuid.New(),
		OrderHash:     hash,
		Submission:    &sub,
		Schedule:      sched,
		Permit:        signedPermit,
		OrderMutMutex: new(sync.Mutex),
	}

	if err := s.manager.SetOrder(entry); err != nil {
		s.logger.Printf("Error tracking order: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderHash":  hash.Hex(),
		"trackingId": entry.ID,
	})
}

// GetOrderStatus returns the latest execution snapshot for a tracked order.
func (s *APIServer) GetOrderStatus(c *gin.Context) {
	orderHash := c.Param("orderHash")
	if orderHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order hash is required"})
		return
	}

	entry, err := s.manager.GetOrder(orderHash)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderHash": entry.OrderHash.Hex(),
		"schedule":  entry.Schedule,
		"fillCount": entry.FillCount(),
		"state":     entry.State(),
	})
}

// CancelOrder submits the on-chain cancellation for a tracked order and
// reports the transaction hash. The on-chain path and simply abandoning the
// poll are independent; this is the on-chain one.
func (s *APIServer) CancelOrder(c *gin.Context) {
	orderHash := c.Param("orderHash")
	if orderHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order hash is required"})
		return
	}

	txHash, err := s.manager.CancelOrder(c.Request.Context(), orderHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"txHash": txHash.Hex()})
}

func (s *APIServer) DefaultHandler(c *gin.Context) {
	c.String(http.StatusOK, "twapd up")
}
