package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/database"
	"github.com/azabchk/zappppppix/internal/ledger"
	"github.com/azabchk/zappppppix/internal/types"
)

const testSecret = "auth-test-secret"

// newTestDB opens a fresh in-memory database with the full schema, capped
// at one connection so it stays alive for the whole test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrapping sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

// newTestService wires an auth service around a fresh database.
func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewService(db, testSecret, ledger.NewGate()), db
}

func TestRegister_CreatesUser(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register("Alice Trader")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.UserID == "" {
		t.Error("expected a generated user id")
	}
	if user.Role != types.RoleUser {
		t.Errorf("expected role USER, got %s", user.Role)
	}
	if !strings.HasPrefix(user.APIKey, "key-") {
		t.Errorf("expected api key with key- prefix, got %q", user.APIKey)
	}

	stored, err := svc.db.GetUserByID(user.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || stored.Name != "Alice Trader" {
		t.Errorf("expected persisted user, got %+v", stored)
	}
}

func TestRegister_RejectsShortName(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Register("ab"); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a 2-character name, got %v", err)
	}
	// Whitespace does not count towards the minimum length.
	if _, err := svc.Register("  a   "); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a padded 1-character name, got %v", err)
	}
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register("Alice Trader")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := svc.GenerateToken(user.APIKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Token == "" {
		t.Fatal("expected a signed token")
	}
	if remaining := time.Until(token.Expiration); remaining < 23*time.Hour || remaining > 25*time.Hour {
		t.Errorf("expected roughly 24h of validity, got %s", remaining)
	}

	claims, err := svc.ValidateToken(token.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID != user.UserID {
		t.Errorf("expected user id %s in claims, got %s", user.UserID, claims.UserID)
	}
	if claims.Role != types.RoleUser {
		t.Errorf("expected role USER in claims, got %s", claims.Role)
	}
}

func TestGenerateToken_UnknownAPIKey(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.GenerateToken("key-unknown"); !errors.Is(err, types.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateToken_RejectsForgery(t *testing.T) {
	svc, _ := newTestService(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-1",
		Role:   types.RoleUser,
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("signing forged token: %v", err)
	}

	if _, err := svc.ValidateToken(forged); err == nil {
		t.Error("expected a token signed with another secret to be rejected")
	}
	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Error("expected garbage input to be rejected")
	}
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	svc, _ := newTestService(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UserID: "user-1",
		Role:   types.RoleUser,
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing expired token: %v", err)
	}

	if _, err := svc.ValidateToken(expired); err == nil {
		t.Error("expected an expired token to be rejected")
	}
}

func TestDeleteUser_CascadesOwnedRows(t *testing.T) {
	svc, db := newTestService(t)

	alice, err := svc.Register("Alice Trader")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bob, err := svc.Register("Bob Trader")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []interface{}{
		&types.Order{OrderID: "ord-a", UserID: alice.UserID, Ticker: "AAPL", Side: types.SideSell, OrderType: types.OrderTypeLimit, Quantity: 5, Status: types.OrderStatusNew, CreatedAt: time.Now().UTC()},
		&types.Order{OrderID: "ord-b", UserID: bob.UserID, Ticker: "AAPL", Side: types.SideBuy, OrderType: types.OrderTypeLimit, Quantity: 5, Status: types.OrderStatusNew, CreatedAt: time.Now().UTC()},
		&types.Balance{UserID: alice.UserID, Ticker: "AAPL", Amount: 10, UpdatedAt: time.Now().UTC()},
		&types.Balance{UserID: bob.UserID, Ticker: "AAPL", Amount: 10, UpdatedAt: time.Now().UTC()},
		// Shared trade referencing alice's order, and one that does not.
		&types.Trade{Ticker: "AAPL", Price: 100, Quantity: 1, BuyOrderID: "ord-b", SellOrderID: "ord-a", ExecutedAt: time.Now().UTC()},
		&types.Trade{Ticker: "AAPL", Price: 100, Quantity: 1, BuyOrderID: "ord-b", SellOrderID: "ord-z", ExecutedAt: time.Now().UTC()},
	}
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seeding %T: %v", row, err)
		}
	}

	if err := svc.DeleteUser(alice.UserID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, err := svc.db.GetUserByID(alice.UserID); err != nil || got != nil {
		t.Errorf("expected the user gone, got %+v (err %v)", got, err)
	}

	var orderCount int64
	if err := db.Model(&types.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("counting orders: %v", err)
	}
	if orderCount != 1 {
		t.Errorf("expected only bob's order to survive, got %d rows", orderCount)
	}

	var balanceCount int64
	if err := db.Model(&types.Balance{}).Where("user_id = ?", alice.UserID).Count(&balanceCount).Error; err != nil {
		t.Fatalf("counting balances: %v", err)
	}
	if balanceCount != 0 {
		t.Errorf("expected alice's balances gone, got %d rows", balanceCount)
	}

	var tradeCount int64
	if err := db.Model(&types.Trade{}).Count(&tradeCount).Error; err != nil {
		t.Fatalf("counting trades: %v", err)
	}
	if tradeCount != 1 {
		t.Errorf("expected only the unrelated trade to survive, got %d rows", tradeCount)
	}
}

func TestDeleteUser_Unknown(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.DeleteUser("no-such-user"); !errors.Is(err, types.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
