package ledger

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/types"
	"github.com/azabchk/zappppppix/pkg/response"
)

// Service handles balance queries and admin-driven adjustments. Every
// mutation runs under the shared gate so it cannot interleave with trade
// settlement.
type Service struct {
	db     *Database
	gate   *Gate
	logger zerolog.Logger
}

// NewService creates a new ledger service
func NewService(gormDB *gorm.DB, gate *Gate) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		gate:   gate,
		logger: log.With().Str("service", "ledger").Logger(),
	}
}

// Store exposes the balance store for services that settle trades inside
// their own transactions.
func (s *Service) Store() *Database {
	return s.db
}

// Balances returns the user's holdings keyed by ticker.
func (s *Service) Balances(userID string) (map[string]int64, error) {
	rows, err := s.db.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	balances := make(map[string]int64, len(rows))
	for _, row := range rows {
		balances[row.Ticker] = row.Amount
	}
	return balances, nil
}

// Deposit credits amount of ticker to the user.
func (s *Service) Deposit(userID, ticker string, amount int64) error {
	ticker, err := s.validateAdjustment(userID, ticker, amount)
	if err != nil {
		return err
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	if err := s.db.ApplyDelta(userID, ticker, amount); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("ticker", ticker).
		Int64("amount", amount).
		Msg("balance deposited")
	return nil
}

// Withdraw debits amount of ticker from the user. The sufficiency check
// and the debit run inside the gate as one unit.
func (s *Service) Withdraw(userID, ticker string, amount int64) error {
	ticker, err := s.validateAdjustment(userID, ticker, amount)
	if err != nil {
		return err
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	held, err := s.db.GetBalance(userID, ticker)
	if err != nil {
		return err
	}
	if held < amount {
		return fmt.Errorf("%w: hold %d %s, withdrawal needs %d", types.ErrInsufficientFunds, held, ticker, amount)
	}
	if err := s.db.ApplyDelta(userID, ticker, -amount); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("ticker", ticker).
		Int64("amount", amount).
		Msg("balance withdrawn")
	return nil
}

// validateAdjustment shares the checks between deposits and withdrawals:
// well-formed positive amount, known user, listed ticker.
func (s *Service) validateAdjustment(userID, ticker string, amount int64) (string, error) {
	ticker, ok := types.NormalizeTicker(ticker)
	if !ok {
		return "", fmt.Errorf("%w: malformed ticker", types.ErrInvalidInput)
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", types.ErrInvalidInput)
	}

	exists, err := s.db.UserExists(userID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", types.ErrUserNotFound, userID)
	}

	listed, err := s.db.InstrumentExists(ticker)
	if err != nil {
		return "", err
	}
	if !listed {
		return "", fmt.Errorf("%w: %s", types.ErrInstrumentNotFound, ticker)
	}
	return ticker, nil
}

// AdjustmentRequest is the admin body for deposits and withdrawals.
type AdjustmentRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Ticker string `json:"ticker" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// GinHandlers contains HTTP handlers for balance endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for balance endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// BalancesHandler handles GET requests for the caller's balances
func (h *GinHandlers) BalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			response.Unauthorized(c, "Authentication required")
			return
		}

		balances, err := h.service.Balances(userID)
		response.Handle(c, balances, err)
	}
}

// DepositHandler handles POST requests to credit a user's balance
func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		err := h.service.Deposit(req.UserID, req.Ticker, req.Amount)
		response.Handle(c, gin.H{"status": "ok"}, err)
	}
}

// WithdrawHandler handles POST requests to debit a user's balance
func (h *GinHandlers) WithdrawHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		err := h.service.Withdraw(req.UserID, req.Ticker, req.Amount)
		response.Handle(c, gin.H{"status": "ok"}, err)
	}
}
