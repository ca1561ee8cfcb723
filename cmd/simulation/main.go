package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/azabchk/zappppppix/internal/auth"
	"github.com/azabchk/zappppppix/internal/config"
	"github.com/azabchk/zappppppix/internal/database"
	"github.com/azabchk/zappppppix/internal/instruments"
	"github.com/azabchk/zappppppix/internal/ledger"
	"github.com/azabchk/zappppppix/internal/trading"
	"github.com/azabchk/zappppppix/internal/types"
	"github.com/azabchk/zappppppix/pkg/middleware"
)

const (
	minOrders     = 40
	maxOrders     = 200
	numWorkers    = 5
	numTraders    = 8
	cancelEvery   = 4
	serverAddress = "http://localhost:8080"

	// Seed funding per trader, in quote currency and in units of every
	// listed ticker.
	seedCash   = 10_000_000
	seedAssets = 50_000
)

var (
	tickers = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
	sides   = []types.Side{types.SideBuy, types.SideSell}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// trader is one simulated account with its issued credentials.
type trader struct {
	userID string
	name   string
	apiKey string
	token  string
}

// placedOrder ties an accepted order back to the trader that owns it,
// since order lookup and cancellation are scoped to the owner.
type placedOrder struct {
	orderID string
	trader  *trader
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the exchange API
type simulationClient struct {
	baseURL    string
	adminToken string
	client     *http.Client
	stats      map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates the admin account and prepares performance tracking
func newSimulationClient(adminKey string) (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"register":   {name: "Register Trader"},
			"token":      {name: "Issue Token"},
			"instrument": {name: "List Instrument"},
			"deposit":    {name: "Admin Deposit"},
			"order":      {name: "Place Order"},
			"cancel":     {name: "Cancel Order"},
			"get":        {name: "Get Order"},
			"book":       {name: "Order Book"},
			"trades":     {name: "Recent Trades"},
		},
	}

	// Get admin auth token
	token, err := sc.issueToken(adminKey)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate admin: %w", err)
	}
	sc.adminToken = token

	return sc, nil
}

// issueToken exchanges an api key for a JWT
func (sc *simulationClient) issueToken(apiKey string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["token"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key": apiKey,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		sc.stats["token"].failures++
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["token"].failures++
		return "", fmt.Errorf("token request failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool               `json:"success"`
		Data    auth.TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// registerTrader creates a new account and exchanges its api key for a JWT
func (sc *simulationClient) registerTrader(name string) (*trader, error) {
	start := time.Now()

	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/public/register", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		sc.stats["register"].failures++
		return nil, err
	}
	defer resp.Body.Close()
	sc.stats["register"].addDuration(time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Register response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["register"].failures++
		return nil, fmt.Errorf("register failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool       `json:"success"`
		Data    types.User `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.UserID == "" {
		return nil, fmt.Errorf("no user ID in response: %s", string(respBody))
	}

	token, err := sc.issueToken(result.Data.APIKey)
	if err != nil {
		return nil, err
	}

	return &trader{
		userID: result.Data.UserID,
		name:   result.Data.Name,
		apiKey: result.Data.APIKey,
		token:  token,
	}, nil
}

// createInstrument lists a ticker on the exchange via the admin API.
// A conflict is not an error, re-runs share the same database file.
func (sc *simulationClient) createInstrument(ticker string) error {
	start := time.Now()
	defer func() {
		sc.stats["instrument"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(map[string]string{
		"ticker": ticker,
		"type":   "STOCK",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/admin/instrument", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.adminToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["instrument"].failures++
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		log.Debug().Str("ticker", ticker).Msg("Instrument already listed")
		return nil
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["instrument"].failures++
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("list instrument failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// deposit credits a trader's balance via the admin API
func (sc *simulationClient) deposit(userID, ticker string, amount int64) error {
	start := time.Now()
	defer func() {
		sc.stats["deposit"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(ledger.AdjustmentRequest{
		UserID: userID,
		Ticker: ticker,
		Amount: amount,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/admin/balance/deposit", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.adminToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["deposit"].failures++
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["deposit"].failures++
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deposit failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// placeOrder submits a new order on behalf of a trader
// Returns the order ID on success
func (sc *simulationClient) placeOrder(t *trader, order *trading.PlaceOrderRequest) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["order"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(order)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/order", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["order"].failures++
		return "", err
	}
	defer resp.Body.Close()

	// Read and log the full response for debugging
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Place order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["order"].failures++
		return "", fmt.Errorf("place order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                `json:"success"`
		Data    types.OrderResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.OrderID == "" {
		return "", fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return result.Data.OrderID, nil
}

// cancelOrder asks the exchange to cancel a resting order
// Returns false without error when the order is no longer cancellable
func (sc *simulationClient) cancelOrder(t *trader, orderID string) (bool, error) {
	start := time.Now()
	defer func() {
		sc.stats["cancel"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"DELETE",
		fmt.Sprintf("%s/api/v1/order/%s", sc.baseURL, orderID),
		nil,
	)
	if err != nil {
		return false, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["cancel"].failures++
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return false, nil
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["cancel"].failures++
		respBody, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("cancel order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return true, nil
}

// getOrder retrieves the current state of an order
func (sc *simulationClient) getOrder(t *trader, orderID string) (*types.OrderResponse, error) {
	start := time.Now()
	defer func() {
		sc.stats["get"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/order/%s", sc.baseURL, orderID),
		nil,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["get"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Get order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats["get"].failures++
		return nil, fmt.Errorf("get order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                `json:"success"`
		Data    types.OrderResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// getOrderBook fetches the public depth snapshot for a ticker
func (sc *simulationClient) getOrderBook(ticker string) (*types.OrderBook, error) {
	start := time.Now()
	defer func() {
		sc.stats["book"].addDuration(time.Since(start))
	}()

	resp, err := sc.client.Get(
		fmt.Sprintf("%s/api/v1/public/orderbook/%s?limit=25", sc.baseURL, ticker),
	)
	if err != nil {
		sc.stats["book"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sc.stats["book"].failures++
		return nil, fmt.Errorf("order book failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool            `json:"success"`
		Data    types.OrderBook `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// getTrades fetches the public trade history for a ticker
func (sc *simulationClient) getTrades(ticker string) ([]types.Trade, error) {
	start := time.Now()
	defer func() {
		sc.stats["trades"].addDuration(time.Since(start))
	}()

	resp, err := sc.client.Get(
		fmt.Sprintf("%s/api/v1/public/transactions/%s?limit=100", sc.baseURL, ticker),
	)
	if err != nil {
		sc.stats["trades"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sc.stats["trades"].failures++
		return nil, fmt.Errorf("trade history failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool          `json:"success"`
		Data    []types.Trade `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 110))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 110))

	order := []string{"register", "token", "instrument", "deposit", "order", "cancel", "get", "book", "trades"}
	for _, key := range order {
		stats := sc.stats[key]
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 110))
}

// main runs the exchange simulation
// It starts a local API server, funds a set of traders and lets worker
// goroutines trade against each other
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	cfg := config.Load()

	// Initialize simulation client with the seeded admin account
	simClient, err := newSimulationClient(cfg.AdminToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// List the simulated instruments
	for _, ticker := range tickers {
		if err := simClient.createInstrument(ticker); err != nil {
			log.Fatal().Err(err).Str("ticker", ticker).Msg("Failed to list instrument")
		}
	}

	// Register and fund the traders
	traders := make([]*trader, 0, numTraders)
	for i := 0; i < numTraders; i++ {
		t, err := simClient.registerTrader(fmt.Sprintf("trader-%d", i+1))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to register trader")
		}

		if err := simClient.deposit(t.userID, types.QuoteCurrency, seedCash); err != nil {
			log.Fatal().Err(err).Str("user_id", t.userID).Msg("Failed to deposit cash")
		}
		for _, ticker := range tickers {
			if err := simClient.deposit(t.userID, ticker, seedAssets); err != nil {
				log.Fatal().Err(err).Str("user_id", t.userID).Str("ticker", ticker).Msg("Failed to deposit assets")
			}
		}

		traders = append(traders, t)
		log.Info().
			Str("user_id", t.userID).
			Str("name", t.name).
			Msg("Trader registered and funded")
	}

	// Generate random number of orders to process
	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	// Channel to collect accepted orders
	ordersChan := make(chan placedOrder, targetOrders)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createOrdersHTTP(workerID, targetOrders/numWorkers, simClient, traders, ordersChan)
		}(i)
	}

	// Wait for all orders to be placed
	wg.Wait()
	close(ordersChan)

	// Collect all accepted orders
	var placedOrders []placedOrder
	for placed := range ordersChan {
		placedOrders = append(placedOrders, placed)
	}

	log.Info().Int("orders_placed", len(placedOrders)).Msg("All orders placed")

	// Collect statistics during processing
	stats := struct {
		TotalOrders     int
		ExecutedOrders  int
		PartialOrders   int
		RestingOrders   int
		CancelledOrders int
		CancelRequests  int
		CancelRejected  int
		FailedLookups   int
		FilledNotional  float64
		StartTime       time.Time
		Symbols         map[string]int
		Sides           map[types.Side]int
	}{
		StartTime: time.Now(),
		Symbols:   make(map[string]int),
		Sides:     make(map[types.Side]int),
	}

	stats.TotalOrders = len(placedOrders)

	// Cancel a slice of the placed orders
	for i, placed := range placedOrders {
		if i%cancelEvery != 0 {
			continue
		}
		stats.CancelRequests++

		cancelled, err := simClient.cancelOrder(placed.trader, placed.orderID)
		if err != nil {
			log.Error().Err(err).Str("order_id", placed.orderID).Msg("Failed to cancel order")
			continue
		}
		if !cancelled {
			stats.CancelRejected++
			continue
		}
		log.Info().
			Str("order_id", placed.orderID).
			Str("user_id", placed.trader.userID).
			Msg("Order cancelled")
	}

	// Read back every order for final state statistics
	for _, placed := range placedOrders {
		order, err := simClient.getOrder(placed.trader, placed.orderID)
		if err != nil || order == nil {
			log.Error().Err(err).Str("order_id", placed.orderID).Msg("Failed to read order")
			stats.FailedLookups++
			continue
		}

		stats.Symbols[order.Ticker]++
		stats.Sides[order.Side]++

		switch order.Status {
		case types.OrderStatusExecuted:
			stats.ExecutedOrders++
		case types.OrderStatusPartiallyExecuted:
			stats.PartialOrders++
		case types.OrderStatusCancelled:
			stats.CancelledOrders++
		default:
			stats.RestingOrders++
		}

		if order.AverageExecutionPrice != nil {
			stats.FilledNotional += *order.AverageExecutionPrice * float64(order.FilledQuantity)
		}

		log.Info().
			Str("order_id", order.OrderID).
			Str("ticker", order.Ticker).
			Str("status", string(order.Status)).
			Int64("filled", order.FilledQuantity).
			Msg("Order state")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 EXCHANGE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	// Every trade reports through both of its orders, so the traded value
	// is half the notional summed over orders.
	fmt.Printf(`
📊 Order Statistics
------------------
Total Orders:     %d
Executed:         %d
Partially Filled: %d
Resting:          %d
Cancelled:        %d
Cancel Requests:  %d
Cancel Rejected:  %d
Failed Lookups:   %d
Value Traded:     %.2f %s
Duration:         %v

📈 Symbol Distribution
--------------------
`, stats.TotalOrders, stats.ExecutedOrders, stats.PartialOrders, stats.RestingOrders,
		stats.CancelledOrders, stats.CancelRequests, stats.CancelRejected, stats.FailedLookups,
		stats.FilledNotional/2, types.QuoteCurrency, duration.Round(time.Millisecond))

	// Print symbol distribution with simple ASCII bar chart
	maxSymbolCount := 0
	for _, count := range stats.Symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}

	for _, symbol := range tickers {
		count := stats.Symbols[symbol]
		barLength := 0
		if maxSymbolCount > 0 {
			barLength = int(float64(count) / float64(maxSymbolCount) * 20)
		}
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-6s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\n📉 Side Distribution")
	fmt.Println("------------------")
	for _, side := range sides {
		count := stats.Sides[side]
		barLength := 0
		if stats.TotalOrders > 0 {
			barLength = int(float64(count) / float64(stats.TotalOrders) * 20)
		}
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-4s: %s (%d)\n", side, bar, count)
	}

	// Print the closing books and last trades
	fmt.Println("\n📚 Closing Books")
	fmt.Println(strings.Repeat("-", 80))
	for _, ticker := range tickers {
		book, err := simClient.getOrderBook(ticker)
		if err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("Failed to fetch order book")
			continue
		}

		trades, err := simClient.getTrades(ticker)
		if err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("Failed to fetch trades")
			continue
		}

		bestBid, bestAsk, lastTrade := "-", "-", "-"
		if len(book.Bids) > 0 {
			bestBid = fmt.Sprintf("%d", book.Bids[0].Price)
		}
		if len(book.Asks) > 0 {
			bestAsk = fmt.Sprintf("%d", book.Asks[0].Price)
		}
		if len(trades) > 0 {
			lastTrade = fmt.Sprintf("%d", trades[0].Price)
		}

		fmt.Printf("%-6s bid %4s / ask %4s  (%d bid levels, %d ask levels, last trade %s, %d recent trades)\n",
			ticker, bestBid, bestAsk, len(book.Bids), len(book.Asks), lastTrade, len(trades))
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	// Fill rate calculation
	fillRate := 0.0
	if stats.TotalOrders > 0 {
		fillRate = float64(stats.ExecutedOrders+stats.PartialOrders) / float64(stats.TotalOrders) * 100
	}
	log.Info().
		Float64("fill_rate", fillRate).
		Int("total_orders", stats.TotalOrders).
		Int("executed_orders", stats.ExecutedOrders).
		Float64("value_traded", stats.FilledNotional/2).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// createOrdersHTTP generates and submits random orders to the API
// Runs as a worker goroutine, sending accepted orders to ordersChan
func createOrdersHTTP(workerID, numOrders int, simClient *simulationClient, traders []*trader, ordersChan chan<- placedOrder) {
	for i := 0; i < numOrders; i++ {
		t := traders[rand.Intn(len(traders))]

		order := &trading.PlaceOrderRequest{
			Ticker:    tickers[rand.Intn(len(tickers))],
			Side:      sides[rand.Intn(len(sides))],
			OrderType: types.OrderTypeLimit,
			Quantity:  int64(rand.Intn(100) + 1),
		}

		// Every fourth order crosses the book at market
		if rand.Intn(4) == 0 {
			order.OrderType = types.OrderTypeMarket
		} else {
			price := int64(rand.Intn(101) + 50)
			order.Price = &price
		}

		orderID, err := simClient.placeOrder(t, order)
		if err != nil {
			log.Error().Err(err).
				Str("worker_id", fmt.Sprintf("%d", workerID)).
				Str("ticker", order.Ticker).
				Msg("Failed to place order")
			continue
		}

		ordersChan <- placedOrder{orderID: orderID, trader: t}
		log.Info().
			Str("worker_id", fmt.Sprintf("%d", workerID)).
			Str("order_id", orderID).
			Str("user_id", t.userID).
			Str("ticker", order.Ticker).
			Str("side", string(order.Side)).
			Str("order_type", string(order.OrderType)).
			Int64("quantity", order.Quantity).
			Msg("Order placed")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the exchange API server
// Sets up all required services, handlers and routes
func startServer() error {
	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Bootstrap(db, cfg); err != nil {
		return fmt.Errorf("failed to bootstrap database: %w", err)
	}

	gate := ledger.NewGate()

	// Initialize services
	authService := auth.NewService(db, cfg.JWTSecret, gate)
	ledgerService := ledger.NewService(db, gate)
	instrumentService := instruments.NewService(db, gate)
	tradingService := trading.NewService(db, ledgerService.Store(), gate)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	instrumentHandlers := instruments.NewGinHandlers(instrumentService)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	// Setup routes. The per-client rate limiter is left out, the whole
	// load originates from one address.
	setupRoutes(cfg, router, authHandlers, tradingHandlers, ledgerHandlers, instrumentHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	cfg *config.Config,
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	tradingHandlers *trading.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	instrumentHandlers *instruments.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("/public")
		{
			public.POST("/register", authHandlers.RegisterHandler())
			public.GET("/instrument", instrumentHandlers.ListHandler())
			public.GET("/orderbook/:ticker", tradingHandlers.OrderBookHandler())
			public.GET("/transactions/:ticker", tradingHandlers.TransactionsHandler())
		}

		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order and balance routes
		orders := v1.Group("")
		orders.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			orders.POST("/order", tradingHandlers.PlaceOrderHandler())
			orders.GET("/order", tradingHandlers.ListOrdersHandler())
			orders.GET("/order/:order_id", tradingHandlers.GetOrderHandler())
			orders.DELETE("/order/:order_id", tradingHandlers.CancelOrderHandler())
			orders.GET("/balance", ledgerHandlers.BalancesHandler())
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.JWTSecret))
		{
			admin.POST("/balance/deposit", ledgerHandlers.DepositHandler())
			admin.POST("/balance/withdraw", ledgerHandlers.WithdrawHandler())
			admin.POST("/instrument", instrumentHandlers.CreateHandler())
			admin.DELETE("/instrument/:ticker", instrumentHandlers.DeleteHandler())
			admin.DELETE("/user/:user_id", authHandlers.DeleteUserHandler())
		}
	}
}
