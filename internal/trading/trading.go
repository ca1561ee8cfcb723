package trading

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/ledger"
	"github.com/azabchk/zappppppix/internal/types"
	"github.com/azabchk/zappppppix/pkg/response"
)

// Book depth and trade history bounds for the public market-data
// endpoints.
const (
	DefaultBookDepth = 10
	MaxBookDepth     = 25
	DefaultTradeHist = 10
	MaxTradeHist     = 100
)

// Service handles order submission, matching and market data.
type Service struct {
	db       *Database
	balances *ledger.Database
	gate     *ledger.Gate
	logger   zerolog.Logger
}

// NewService creates a new trading service. All balance movement runs
// through the shared gate.
func NewService(gormDB *gorm.DB, balances *ledger.Database, gate *ledger.Gate) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		balances: balances,
		gate:     gate,
		logger:   log.With().Str("service", "trading").Logger(),
	}
}

// SubmitOrder validates, persists and matches a new order. Limit orders
// that do not fill completely rest on the book; market orders execute
// against available liquidity and never rest.
func (s *Service) SubmitOrder(userID string, req PlaceOrderRequest) (*types.Order, error) {
	ticker, ok := types.NormalizeTicker(req.Ticker)
	if !ok {
		return nil, fmt.Errorf("%w: malformed ticker %q", types.ErrInvalidInput, req.Ticker)
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", types.ErrInvalidInput, req.Side)
	}
	if !req.OrderType.Valid() {
		return nil, fmt.Errorf("%w: unknown order type %q", types.ErrInvalidInput, req.OrderType)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", types.ErrInvalidInput)
	}

	// Market orders carry no price, whatever the client sent.
	var price *int64
	if req.OrderType == types.OrderTypeLimit {
		if req.Price == nil || *req.Price <= 0 {
			return nil, fmt.Errorf("%w: limit orders need a positive price", types.ErrInvalidInput)
		}
		p := *req.Price
		price = &p
	}

	instrument, err := s.db.GetInstrument(ticker)
	if err != nil {
		return nil, err
	}
	if instrument == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInstrumentNotFound, ticker)
	}

	if err := s.checkFunds(userID, ticker, req.Side, req.Quantity, price); err != nil {
		return nil, err
	}

	order := &types.Order{
		OrderID:   uuid.New().String(),
		UserID:    userID,
		Ticker:    ticker,
		Side:      req.Side,
		OrderType: req.OrderType,
		Price:     price,
		Quantity:  req.Quantity,
		Status:    types.OrderStatusNew,
		CreatedAt: time.Now().UTC(),
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	err = s.db.Transaction(func(tx *Database) error {
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		return s.matchOrder(tx, order)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("order submission rolled back")
		return nil, err
	}

	return order, nil
}

// checkFunds is the pre-trade affordability screen. Sells need the full
// asset quantity. Buys need quantity*price of the quote currency; market
// buys are screened against a notional price of 1 and the binding check
// happens at settlement. The screen can go stale before the gate is
// acquired, which over-admits but never corrupts balances.
func (s *Service) checkFunds(userID, ticker string, side types.Side, quantity int64, price *int64) error {
	if side == types.SideSell {
		ok, err := s.balances.HasAtLeast(userID, ticker, quantity)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: need %d %s", types.ErrInsufficientFunds, quantity, ticker)
		}
		return nil
	}

	notional := int64(1)
	if price != nil {
		notional = *price
	}
	required := quantity * notional
	ok, err := s.balances.HasAtLeast(userID, types.QuoteCurrency, required)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: need %d %s", types.ErrInsufficientFunds, required, types.QuoteCurrency)
	}
	return nil
}

// CancelOrder cancels a resting limit order owned by userID. Market
// orders, terminal orders and fully filled orders cannot be cancelled.
func (s *Service) CancelOrder(userID, orderID string) (*types.Order, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	order, err := s.db.GetUserOrder(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrOrderNotFound, orderID)
	}
	if order.OrderType != types.OrderTypeLimit || !order.Status.Open() || order.Remaining() <= 0 {
		return nil, fmt.Errorf("%w: %s is %s", types.ErrOrderNotCancellable, orderID, order.Status)
	}

	order.Status = types.OrderStatusCancelled
	if err := s.db.UpdateOrder(order); err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", orderID).Msg("order cancelled")
	return order, nil
}

// GetOrder returns one of the user's orders with execution stats.
func (s *Service) GetOrder(userID, orderID string) (*types.OrderResponse, error) {
	order, err := s.db.GetUserOrder(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrOrderNotFound, orderID)
	}
	return s.toResponse(order)
}

// ListOrders returns all of the user's orders, newest first.
func (s *Service) ListOrders(userID string) ([]types.OrderResponse, error) {
	orders, err := s.db.ListUserOrders(userID)
	if err != nil {
		return nil, err
	}

	responses := make([]types.OrderResponse, 0, len(orders))
	for i := range orders {
		resp, err := s.toResponse(&orders[i])
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

// OrderBook snapshots resting liquidity to the requested depth. Unknown
// tickers yield an empty book rather than an error.
func (s *Service) OrderBook(rawTicker string, depth int) (*types.OrderBook, error) {
	ticker, ok := types.NormalizeTicker(rawTicker)
	if !ok {
		return nil, fmt.Errorf("%w: malformed ticker %q", types.ErrInvalidInput, rawTicker)
	}

	bids, err := s.db.BookLevels(ticker, types.SideBuy, depth)
	if err != nil {
		return nil, err
	}
	asks, err := s.db.BookLevels(ticker, types.SideSell, depth)
	if err != nil {
		return nil, err
	}

	return &types.OrderBook{Ticker: ticker, Bids: bids, Asks: asks}, nil
}

// RecentTrades returns the latest executions for a ticker, newest first.
// Unknown tickers yield an empty list.
func (s *Service) RecentTrades(rawTicker string, limit int) ([]types.Trade, error) {
	ticker, ok := types.NormalizeTicker(rawTicker)
	if !ok {
		return nil, fmt.Errorf("%w: malformed ticker %q", types.ErrInvalidInput, rawTicker)
	}
	return s.db.RecentTrades(ticker, limit)
}

// toResponse decorates an order with remaining quantity and the
// volume-weighted average price over its executions.
func (s *Service) toResponse(order *types.Order) (*types.OrderResponse, error) {
	resp := &types.OrderResponse{
		OrderID:           order.OrderID,
		Ticker:            order.Ticker,
		Side:              order.Side,
		OrderType:         order.OrderType,
		Price:             order.Price,
		Quantity:          order.Quantity,
		FilledQuantity:    order.FilledQuantity,
		RemainingQuantity: order.Remaining(),
		Status:            order.Status,
		CreatedAt:         order.CreatedAt,
	}

	if order.FilledQuantity > 0 {
		quantity, value, err := s.db.FillTotals(order.OrderID)
		if err != nil {
			return nil, err
		}
		if quantity > 0 {
			avg := float64(value) / float64(quantity)
			resp.AverageExecutionPrice = &avg
		}
	}
	return resp, nil
}

// GinHandlers contains HTTP handlers for trading endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for trading endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceOrderHandler handles POST requests to submit new orders
// Requires a valid JWT token; the order is matched before returning
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			response.Unauthorized(c, "Authentication required")
			return
		}

		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.service.SubmitOrder(userID, req)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		resp, err := h.service.toResponse(order)
		response.Handle(c, resp, err)
	}
}

// ListOrdersHandler handles GET requests for the caller's orders
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			response.Unauthorized(c, "Authentication required")
			return
		}

		orders, err := h.service.ListOrders(userID)
		response.Handle(c, orders, err)
	}
}

// GetOrderHandler handles GET requests for a single order
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			response.Unauthorized(c, "Authentication required")
			return
		}

		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.GetOrder(userID, orderID)
		response.Handle(c, order, err)
	}
}

// CancelOrderHandler handles DELETE requests to cancel a resting order
// URL parameter: order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			response.Unauthorized(c, "Authentication required")
			return
		}

		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.CancelOrder(userID, orderID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		resp, err := h.service.toResponse(order)
		response.Handle(c, resp, err)
	}
}

// OrderBookHandler handles GET requests for a public book snapshot
// URL parameter: ticker; query parameter: limit (depth, 1-25)
func (h *GinHandlers) OrderBookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		depth, ok := parseLimit(c, DefaultBookDepth, MaxBookDepth)
		if !ok {
			response.BadRequest(c, fmt.Sprintf("limit must be between 1 and %d", MaxBookDepth))
			return
		}

		book, err := h.service.OrderBook(c.Param("ticker"), depth)
		response.Handle(c, book, err)
	}
}

// TransactionsHandler handles GET requests for public trade history
// URL parameter: ticker; query parameter: limit (1-100)
func (h *GinHandlers) TransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := parseLimit(c, DefaultTradeHist, MaxTradeHist)
		if !ok {
			response.BadRequest(c, fmt.Sprintf("limit must be between 1 and %d", MaxTradeHist))
			return
		}

		trades, err := h.service.RecentTrades(c.Param("ticker"), limit)
		response.Handle(c, trades, err)
	}
}

// parseLimit reads the limit query parameter, enforcing [1, max].
func parseLimit(c *gin.Context, fallback, max int) (int, bool) {
	raw := c.DefaultQuery("limit", strconv.Itoa(fallback))
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		return 0, false
	}
	return limit, true
}
