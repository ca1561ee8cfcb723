package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// perform runs Handle against a recorded request and returns the recorder
// together with the decoded envelope.
func perform(t *testing.T, method string, data interface{}, handleErr error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(method, "/", nil)

	Handle(c, data, handleErr)

	var body Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return recorder, body
}

func TestHandle_Success(t *testing.T) {
	recorder, body := perform(t, http.MethodGet, gin.H{"ok": true}, nil)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", recorder.Code)
	}
	if !body.Success {
		t.Error("expected success=true")
	}
	if body.Error != nil {
		t.Errorf("expected no error payload, got %+v", body.Error)
	}
}

func TestHandle_SuccessOnPostCreates(t *testing.T) {
	recorder, _ := perform(t, http.MethodPost, gin.H{"ok": true}, nil)

	if recorder.Code != http.StatusCreated {
		t.Errorf("expected 201 for POST, got %d", recorder.Code)
	}
}

func TestHandle_MapsSentinelErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"instrument not found", fmt.Errorf("%w: AAPL", types.ErrInstrumentNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"order not found", types.ErrOrderNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"user not found", types.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"invalid input", fmt.Errorf("%w: quantity must be positive", types.ErrInvalidInput), http.StatusBadRequest, ErrCodeBadRequest},
		{"insufficient funds", types.ErrInsufficientFunds, http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid credentials", types.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"order not cancellable", types.ErrOrderNotCancellable, http.StatusConflict, ErrCodeDuplicateResource},
		{"instrument exists", types.ErrInstrumentExists, http.StatusConflict, ErrCodeDuplicateResource},
		{"gorm record not found", gorm.ErrRecordNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, http.StatusConflict, ErrCodeDuplicateResource},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder, body := perform(t, http.MethodGet, nil, tc.err)
			if recorder.Code != tc.wantCode {
				t.Errorf("expected status %d, got %d", tc.wantCode, recorder.Code)
			}
			if body.Success {
				t.Error("expected success=false")
			}
			if body.Error == nil || body.Error.Code != tc.wantErr {
				t.Errorf("expected error code %s, got %+v", tc.wantErr, body.Error)
			}
		})
	}
}

func TestHandle_InternalErrorHidesDetail(t *testing.T) {
	_, body := perform(t, http.MethodGet, nil, errors.New("connection reset by peer"))

	if body.Error == nil {
		t.Fatal("expected an error payload")
	}
	// Raw storage errors never leak to clients.
	if body.Error.Message != "An unexpected error occurred" {
		t.Errorf("expected the generic message, got %q", body.Error.Message)
	}
}

func TestHandle_WrappedSentinelKeepsDetail(t *testing.T) {
	recorder, body := perform(t, http.MethodGet, nil, fmt.Errorf("%w: need 500 RUB", types.ErrInsufficientFunds))

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", recorder.Code)
	}
	if body.Error == nil || body.Error.Message != "insufficient funds: need 500 RUB" {
		t.Errorf("expected the wrapped message passed through, got %+v", body.Error)
	}
}
