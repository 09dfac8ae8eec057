package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courier-dispatch/internal/adapter/http/middleware"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/internal/core/ports/mocks"
	"courier-dispatch/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	sender = &domain.UserAccount{ID: "sender-1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleSender, PasswordHash: "$argon2id$secret"}
	rider  = &domain.UserAccount{ID: "rider-1", Name: "Tunde", Role: domain.RoleRider, PlateNumber: "LAG-442-XP"}
)

func newContext(method, path string, body any, user *domain.UserAccount) (*gin.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if user != nil {
		c.Set(middleware.CtxUser, user)
		c.Set(middleware.CtxUserID, user.ID)
	}
	return c, w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

// --- Auth Handler Tests ---

func TestSignup_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Signup(gomock.Any(), ports.SignupRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret123",
		Role:     domain.RoleSender,
	}).Return(sender, nil)

	c, w := newContext(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"name": " Ada ", "email": "ada@example.com", "password": "secret123", "role": "sender",
	}, nil)
	h.Signup(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "argon2")
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "sender-1", data["id"])
	assert.Equal(t, "sender", data["role"])
}

func TestSignup_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/auth/signup", map[string]string{}, nil)
	h.Signup(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "GEN_400", errorCode(t, w))
}

func TestSignup_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Signup(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrEmailExists())

	c, w := newContext(http.MethodPost, "/", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "secret123",
	}, nil)
	h.Signup(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	mockAuth.EXPECT().Login(gomock.Any(), "ada@example.com", "p&ss<word>").
		Return(&ports.LoginResult{Token: "jwt", ExpiresAt: expiry, User: sender}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "ada@example.com", "password": "p&ss<word>",
	}, nil)
	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jwt", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInvalidCredentials())

	c, w := newContext(http.MethodPost, "/", map[string]string{"email": "ada@example.com", "password": "nope"}, nil)
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", errorCode(t, w))
}

// --- Wallet Handler Tests ---

func TestUpdateMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	name := "Ada &lt;L&gt;"
	renamed := *sender
	renamed.Name = name
	mockAuth.EXPECT().UpdateProfile(gomock.Any(), sender, ports.ProfileUpdate{Name: &name}).
		Return(&renamed, nil)

	c, w := newContext(http.MethodPatch, "/api/v1/me", map[string]string{"name": " Ada <L> "}, sender)
	h.UpdateMe(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "argon2")
}

func TestUpdateMe_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	c, w := newContext(http.MethodPatch, "/", map[string]string{"name": "A"}, sender)
	h.UpdateMe(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newContext(http.MethodPatch, "/", map[string]string{"name": "Ada"}, nil)
	h.UpdateMe(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	mockAuth.EXPECT().UpdateProfile(gomock.Any(), sender, gomock.Any()).
		Return(nil, apperror.Validation("vehicle details apply to riders only"))
	c, w = newContext(http.MethodPatch, "/", map[string]string{"plate_number": "EKY-101-AA"}, sender)
	h.UpdateMe(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "GEN_400", errorCode(t, w))
}

func TestSetAvailability(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	offline := *rider
	offline.IsAvailable = false
	mockAuth.EXPECT().SetAvailability(gomock.Any(), rider, false).Return(&offline, nil)

	c, w := newContext(http.MethodPost, "/api/v1/rider/availability", map[string]bool{"available": false}, rider)
	h.SetAvailability(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			IsAvailable bool `json:"is_available"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.IsAvailable)
}

func TestSetAvailability_MissingFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := newContext(http.MethodPost, "/", map[string]string{}, rider)
	h.SetAvailability(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "GEN_400", errorCode(t, w))
}

func TestWalletFund(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	mockWallet.EXPECT().Fund(gomock.Any(), "sender-1", int64(2500)).
		Return(&domain.WalletAccount{AccountID: "sender-1", Balance: 7500}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/wallet/fund", map[string]int64{"amount": 2500}, sender)
	h.Fund(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":7500`)
}

func TestWalletFund_RejectsNonPositive(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl))

	for _, amount := range []int64{0, -100} {
		c, w := newContext(http.MethodPost, "/api/v1/wallet/fund", map[string]int64{"amount": amount}, sender)
		h.Fund(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestWalletGet_NoUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl))

	c, w := newContext(http.MethodGet, "/api/v1/wallet", nil, nil)
	h.Get(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Quote Handler Tests ---

func TestQuoteRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockQuotes := mocks.NewMockQuoteService(ctrl)
	h := NewQuoteHandler(mockQuotes)

	mockQuotes.EXPECT().RequestQuote(gomock.Any(), "sender-1", domain.QuoteRequest{
		Pickup: "12 Marina", Dropoff: "Lekki Phase 1", Items: []string{"Cake &amp; cards"},
	}).Return(&domain.Quote{ID: "q1", Price: 2030}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/quotes", map[string]any{
		"pickup": " 12 Marina ", "dropoff": "Lekki Phase 1", "items": []string{"Cake & cards"},
	}, sender)
	h.Request(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"price":2030`)
}

// --- Delivery Handler Tests ---

func TestBook_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockBooking := mocks.NewMockBookingService(ctrl)
	h := NewDeliveryHandler(mocks.NewMockDeliveryService(ctrl), mockBooking)

	quoteID := "5b0c2c7e-4a0e-4d43-9a55-2f8f1b9c7e11"
	mockBooking.EXPECT().Confirm(gomock.Any(), ports.ConfirmBookingRequest{
		Sender: sender, QuoteID: quoteID, Priority: "HIGH",
	}).Return(nil, apperror.ErrInsufficientFunds())

	c, w := newContext(http.MethodPost, "/api/v1/deliveries", map[string]string{"quote_id": quoteID, "priority": "HIGH"}, sender)
	h.Book(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "PAY_001", errorCode(t, w))
}

func TestGetDelivery_Visibility(t *testing.T) {
	own := &domain.Delivery{ID: "BR-1", SenderID: "sender-1", Status: domain.StatusPending}
	other := &domain.Delivery{ID: "BR-2", SenderID: "sender-2", Status: domain.StatusPending}
	taken := &domain.Delivery{ID: "BR-3", SenderID: "sender-2", Status: domain.StatusAccepted, Rider: &domain.RiderStamp{ID: "rider-9"}}

	tests := []struct {
		name     string
		user     *domain.UserAccount
		delivery *domain.Delivery
		want     int
	}{
		{"sender sees own", sender, own, http.StatusOK},
		{"sender cannot see others", sender, other, http.StatusNotFound},
		{"rider sees open job", rider, other, http.StatusOK},
		{"rider cannot see another rider's job", rider, taken, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockDeliveries := mocks.NewMockDeliveryService(ctrl)
			h := NewDeliveryHandler(mockDeliveries, nil)
			mockDeliveries.EXPECT().Get(gomock.Any(), tt.delivery.ID).Return(tt.delivery, nil)

			c, w := newContext(http.MethodGet, "/api/v1/deliveries/"+tt.delivery.ID, nil, tt.user)
			c.Params = gin.Params{{Key: "id", Value: tt.delivery.ID}}
			h.Get(c)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCancel_WithoutBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDeliveries := mocks.NewMockDeliveryService(ctrl)
	h := NewDeliveryHandler(mockDeliveries, nil)

	d := &domain.Delivery{ID: "BR-1", SenderID: "sender-1", Status: domain.StatusPending}
	mockDeliveries.EXPECT().Get(gomock.Any(), "BR-1").Return(d, nil)
	mockDeliveries.EXPECT().Cancel(gomock.Any(), "BR-1", "").
		Return(&domain.Delivery{ID: "BR-1", Status: domain.StatusCancelled}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/deliveries/BR-1/cancel", nil, sender)
	c.Params = gin.Params{{Key: "id", Value: "BR-1"}}
	h.Cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"CANCELLED"`)
}

// --- Rider Handler Tests ---

func TestRiderJobs_FiltersForeignJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDeliveries := mocks.NewMockDeliveryService(ctrl)
	h := NewRiderHandler(mockDeliveries, nil)

	mockDeliveries.EXPECT().ActiveJobs(gomock.Any()).Return([]*domain.Delivery{
		{ID: "BR-1", Status: domain.StatusPending},
		{ID: "BR-2", Status: domain.StatusAccepted, Rider: &domain.RiderStamp{ID: "rider-1"}},
		{ID: "BR-3", Status: domain.StatusAccepted, Rider: &domain.RiderStamp{ID: "rider-2"}},
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/rider/jobs", nil, rider)
	h.Jobs(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []domain.Delivery `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "BR-1", resp.Data[0].ID)
	assert.Equal(t, "BR-2", resp.Data[1].ID)
}

func TestRiderAdvance(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDeliveries := mocks.NewMockDeliveryService(ctrl)
	h := NewRiderHandler(mockDeliveries, nil)

	mockDeliveries.EXPECT().Advance(gomock.Any(), "BR-1", domain.StatusAccepted, rider.Stamp()).
		Return(&domain.Delivery{ID: "BR-1", Status: domain.StatusAccepted}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/rider/jobs/BR-1/advance", map[string]string{"status": "ACCEPTED"}, rider)
	c.Params = gin.Params{{Key: "id", Value: "BR-1"}}
	h.Advance(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRiderAdvance_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDeliveries := mocks.NewMockDeliveryService(ctrl)
	h := NewRiderHandler(mockDeliveries, nil)

	// unknown status never reaches the service
	c, w := newContext(http.MethodPost, "/", map[string]string{"status": "TELEPORTED"}, rider)
	c.Params = gin.Params{{Key: "id", Value: "BR-1"}}
	h.Advance(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mockDeliveries.EXPECT().Advance(gomock.Any(), "BR-1", domain.StatusDelivered, gomock.Any()).
		Return(nil, apperror.ErrInvalidTransition("PENDING", "DELIVERED"))
	c, w = newContext(http.MethodPost, "/", map[string]string{"status": "DELIVERED"}, rider)
	c.Params = gin.Params{{Key: "id", Value: "BR-1"}}
	h.Advance(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DLV_001", errorCode(t, w))
}

func TestRiderInsights(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockInsights := mocks.NewMockInsightService(ctrl)
	h := NewRiderHandler(nil, mockInsights)

	mockInsights.EXPECT().Insights(gomock.Any(), rider).Return(domain.DefaultInsights(), nil)

	c, w := newContext(http.MethodGet, "/api/v1/rider/insights", nil, rider)
	h.Insights(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domain.InsightSafety)
}

// --- Health ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(_ context.Context) error { return s.err }
func (s stubChecker) Name() string                 { return s.name }

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(stubChecker{name: "redis"}, stubChecker{name: "postgresql", err: errors.New("refused")}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), "refused")
}
