package instruments

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/ledger"
	"github.com/azabchk/zappppppix/internal/types"
	"github.com/azabchk/zappppppix/pkg/response"
)

// DefaultInstrumentType is used when a listing request omits the type.
const DefaultInstrumentType = "CURRENCY"

// Service manages the instrument registry.
type Service struct {
	db     *Database
	gate   *ledger.Gate
	logger zerolog.Logger
}

// NewService creates a new instruments service
func NewService(gormDB *gorm.DB, gate *ledger.Gate) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		gate:   gate,
		logger: log.With().Str("service", "instruments").Logger(),
	}
}

// List returns all listed instruments.
func (s *Service) List() ([]types.Instrument, error) {
	return s.db.List()
}

// Create lists a new instrument.
func (s *Service) Create(ticker, instrumentType string) (*types.Instrument, error) {
	ticker, ok := types.NormalizeTicker(ticker)
	if !ok {
		return nil, fmt.Errorf("%w: malformed ticker", types.ErrInvalidInput)
	}
	if instrumentType == "" {
		instrumentType = DefaultInstrumentType
	}

	existing, err := s.db.GetByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInstrumentExists, ticker)
	}

	instrument := &types.Instrument{
		Ticker:    ticker,
		Type:      instrumentType,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(instrument); err != nil {
		return nil, err
	}

	s.logger.Info().Str("ticker", ticker).Str("type", instrumentType).Msg("instrument listed")
	return instrument, nil
}

// Delete delists a ticker and removes every order, balance and trade that
// references it. The cascade runs under the gate so no settlement can
// observe a half-deleted instrument.
func (s *Service) Delete(ticker string) error {
	ticker, ok := types.NormalizeTicker(ticker)
	if !ok {
		return fmt.Errorf("%w: malformed ticker", types.ErrInvalidInput)
	}
	if ticker == types.QuoteCurrency {
		return fmt.Errorf("%w: the quote currency cannot be delisted", types.ErrInvalidInput)
	}

	existing, err := s.db.GetByTicker(ticker)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", types.ErrInstrumentNotFound, ticker)
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	if err := s.db.DeleteCascade(ticker); err != nil {
		return err
	}

	s.logger.Info().Str("ticker", ticker).Msg("instrument delisted")
	return nil
}

// CreateInstrumentRequest is the admin body for listing an instrument.
type CreateInstrumentRequest struct {
	Ticker string `json:"ticker" binding:"required"`
	Type   string `json:"type"`
}

// GinHandlers contains HTTP handlers for instrument endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for instrument endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListHandler handles GET requests for the public instrument list
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		instruments, err := h.service.List()
		response.Handle(c, instruments, err)
	}
}

// CreateHandler handles POST requests to list a new instrument
func (h *GinHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateInstrumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		instrument, err := h.service.Create(req.Ticker, req.Type)
		response.Handle(c, instrument, err)
	}
}

// DeleteHandler handles DELETE requests to delist an instrument
func (h *GinHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.service.Delete(c.Param("ticker"))
		response.Handle(c, gin.H{"status": "ok"}, err)
	}
}
