package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"courier-dispatch/internal/adapter/http/dto"
	httpHandler "courier-dispatch/internal/adapter/http/handler"
	redisStorage "courier-dispatch/internal/adapter/storage/redis"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp runs the whole HTTP stack over redis storage backed by miniredis.
type testApp struct {
	server *httptest.Server
	bus    *service.EventBus
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := zerolog.New(io.Discard)
	locker := service.NewBoundedLocker(redisStorage.NewLocker(rdb, 10*time.Second, log), 5*time.Second)
	users := redisStorage.NewUserRepo(rdb, log)
	quoteStore := redisStorage.NewQuoteStore(rdb)
	bus := service.NewEventBus(64, log)

	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32})
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "courier-dispatch-test")
	authSvc := service.NewAuthService(users, hashSvc, tokenSvc, log)
	walletSvc := service.NewWalletService(redisStorage.NewWalletRepo(rdb, log), locker, 5000, log)
	deliverySvc := service.NewDeliveryService(redisStorage.NewDeliveryRepo(rdb, log), locker, bus, log)
	quoteSvc := service.NewQuoteService(service.NewLocalEstimator(), quoteStore, 15*time.Minute, time.UTC, log)
	matcher := service.NewDirectoryMatcher(users, 0, log)
	bookingSvc := service.NewBookingService(quoteSvc, quoteStore, matcher, walletSvc, deliverySvc, locker, log)
	insightSvc := service.NewInsightService(nil, deliverySvc, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		WalletSvc:      walletSvc,
		QuoteSvc:       quoteSvc,
		BookingSvc:     bookingSvc,
		DeliverySvc:    deliverySvc,
		InsightSvc:     insightSvc,
		Events:         bus,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: nil,
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testApp{server: server, bus: bus}
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// signup creates an account and returns its token.
func (a *testApp) signup(t *testing.T, name, role string) string {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	status, _ := a.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret123", "role": role,
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": strings.ToUpper(email), "password": "secret123",
	})
	require.Equal(t, http.StatusOK, status)
	return decode[dto.LoginResponse](t, env).Token
}

func (a *testApp) quote(t *testing.T, token string) domain.Quote {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/quotes", token, map[string]any{
		"pickup": "12 Marina, Lagos", "dropoff": "3 Admiralty Way, Lekki", "items": []string{"Documents"},
	})
	require.Equal(t, http.StatusCreated, status)
	return decode[domain.Quote](t, env)
}

func TestApp_SignupLoginAndMe(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "Ada Obi", "")

	status, env := app.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(env.Data), "password")

	me := decode[dto.UserResponse](t, env)
	assert.Equal(t, "sender", me.Role)
	assert.Equal(t, "ada.obi@example.com", me.Email)

	// duplicate email, any case
	status, env = app.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ada Again", "email": "ADA.OBI@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AUTH_002", env.ErrorCode)

	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ada.obi@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = app.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApp_ProfileAndAvailability(t *testing.T) {
	app := newTestApp(t)
	sender := app.signup(t, "Ada Obi", "sender")
	rider := app.signup(t, "Tunde Bello", "rider")

	status, _ := app.do(t, http.MethodPost, "/api/v1/wallet/fund", sender, map[string]int64{"amount": 100000})
	require.Equal(t, http.StatusOK, status)

	status, env := app.do(t, http.MethodPatch, "/api/v1/me", rider, map[string]string{
		"vehicle_type": "Motorcycle", "plate_number": "eky-101-aa",
	})
	require.Equal(t, http.StatusOK, status, env.ErrorCode)
	assert.Equal(t, "EKY-101-AA", decode[dto.UserResponse](t, env).PlateNumber)

	status, env = app.do(t, http.MethodPatch, "/api/v1/me", sender, map[string]string{"plate_number": "ABC-1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "GEN_400", env.ErrorCode)

	status, _ = app.do(t, http.MethodPost, "/api/v1/rider/availability", sender, map[string]bool{"available": false})
	assert.Equal(t, http.StatusForbidden, status)

	// off duty: bookings go through unassigned
	status, env = app.do(t, http.MethodPost, "/api/v1/rider/availability", rider, map[string]bool{"available": false})
	require.Equal(t, http.StatusOK, status, env.ErrorCode)
	assert.False(t, decode[dto.UserResponse](t, env).IsAvailable)

	q := app.quote(t, sender)
	status, env = app.do(t, http.MethodPost, "/api/v1/deliveries", sender, map[string]string{"quote_id": q.ID})
	require.Equal(t, http.StatusCreated, status, env.ErrorCode)
	assert.Nil(t, decode[domain.Delivery](t, env).Rider)

	status, env = app.do(t, http.MethodGet, "/api/v1/me", rider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[dto.UserResponse](t, env).IsAvailable)

	// back on duty with the new plate stamped on the job
	status, _ = app.do(t, http.MethodPost, "/api/v1/rider/availability", rider, map[string]bool{"available": true})
	require.Equal(t, http.StatusOK, status)

	q = app.quote(t, sender)
	status, env = app.do(t, http.MethodPost, "/api/v1/deliveries", sender, map[string]string{"quote_id": q.ID})
	require.Equal(t, http.StatusCreated, status, env.ErrorCode)
	matched := decode[domain.Delivery](t, env)
	require.NotNil(t, matched.Rider)
	assert.Equal(t, "EKY-101-AA", matched.Rider.Plate)
}

func TestApp_BookingLifecycle(t *testing.T) {
	app := newTestApp(t)
	sender := app.signup(t, "Ada Obi", "sender")
	rider := app.signup(t, "Tunde Bello", "rider")

	status, env := app.do(t, http.MethodGet, "/api/v1/wallet", sender, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(5000), decode[domain.WalletAccount](t, env).Balance)

	q := app.quote(t, sender)
	assert.Equal(t, domain.SourceLocal, q.Source)
	assert.Equal(t, q.Breakdown.Total, q.Price)

	status, env = app.do(t, http.MethodPost, "/api/v1/deliveries", sender, map[string]string{
		"quote_id": q.ID, "customer_name": "Chidi", "priority": "high",
	})
	require.Equal(t, http.StatusCreated, status, env.ErrorCode)
	booked := decode[domain.Delivery](t, env)
	assert.Equal(t, domain.StatusPending, booked.Status)
	require.NotNil(t, booked.Rider, "the only available rider is matched")
	assert.Equal(t, "Tunde Bello", booked.Rider.Name)

	status, env = app.do(t, http.MethodGet, "/api/v1/wallet", sender, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5000-q.Price, decode[domain.WalletAccount](t, env).Balance)

	// quotes are single-use
	status, env = app.do(t, http.MethodPost, "/api/v1/deliveries", sender, map[string]string{"quote_id": q.ID})
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "DLV_004", env.ErrorCode)

	status, env = app.do(t, http.MethodGet, "/api/v1/rider/jobs", rider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.Delivery](t, env), 1)

	// skipping a step is rejected
	status, env = app.do(t, http.MethodPost, "/api/v1/rider/jobs/"+booked.ID+"/advance", rider, map[string]string{"status": "DELIVERED"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DLV_001", env.ErrorCode)

	for _, next := range []string{"ACCEPTED", "PICKED_UP", "IN_TRANSIT", "DELIVERED"} {
		status, env = app.do(t, http.MethodPost, "/api/v1/rider/jobs/"+booked.ID+"/advance", rider, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status, "advance to %s: %s", next, env.ErrorCode)
	}
	done := decode[domain.Delivery](t, env)
	assert.Equal(t, domain.StatusDelivered, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Len(t, done.History, 5)

	status, env = app.do(t, http.MethodPost, "/api/v1/deliveries/"+booked.ID+"/cancel", sender, map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DLV_001", env.ErrorCode)

	status, env = app.do(t, http.MethodGet, "/api/v1/rider/summary", rider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, fmt.Sprintf(`{"rider_id":%q,"active_jobs":0,"completed":1,"earnings":%d}`, booked.Rider.ID, q.Price), string(env.Data))

	status, env = app.do(t, http.MethodGet, "/api/v1/rider/insights", rider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.Insight](t, env), 3)
}

func TestApp_RoleAndOwnershipChecks(t *testing.T) {
	app := newTestApp(t)
	ada := app.signup(t, "Ada Obi", "sender")
	kemi := app.signup(t, "Kemi Ade", "sender")
	rider := app.signup(t, "Tunde Bello", "rider")

	status, _ := app.do(t, http.MethodPost, "/api/v1/quotes", rider, map[string]string{"pickup": "a1", "dropoff": "b2"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = app.do(t, http.MethodGet, "/api/v1/rider/jobs", ada, nil)
	assert.Equal(t, http.StatusForbidden, status)

	q := app.quote(t, ada)
	status, env := app.do(t, http.MethodPost, "/api/v1/deliveries", ada, map[string]string{"quote_id": q.ID})
	require.Equal(t, http.StatusCreated, status)
	d := decode[domain.Delivery](t, env)
	require.NotNil(t, d.Rider)

	// a rider who joined after matching cannot see or move the job
	bola := app.signup(t, "Bola Ade", "rider")
	status, env = app.do(t, http.MethodPost, "/api/v1/rider/jobs/"+d.ID+"/advance", bola, map[string]string{"status": "ACCEPTED"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "GEN_404", env.ErrorCode)
	status, _ = app.do(t, http.MethodGet, "/api/v1/deliveries/"+d.ID, bola, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = app.do(t, http.MethodGet, "/api/v1/deliveries/"+d.ID, kemi, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = app.do(t, http.MethodPost, "/api/v1/deliveries/"+d.ID+"/cancel", kemi, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = app.do(t, http.MethodGet, "/api/v1/deliveries/not%20an%20id", ada, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/deliveries/"+d.ID+"/cancel", ada, map[string]string{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, status)
	cancelled := decode[domain.Delivery](t, env)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)

	status, env = app.do(t, http.MethodGet, "/api/v1/deliveries", kemi, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]domain.Delivery](t, env))
}

func TestApp_InsufficientFundsThenFund(t *testing.T) {
	app := newTestApp(t)
	sender := app.signup(t, "Ada Obi", "sender")

	// drain the opening balance with bookings
	for {
		q := app.quote(t, sender)
		status, env := app.do(t, http.MethodPost, "/api/v1/deliveries", sender, map[string]string{"quote_id": q.ID})
		if status == http.StatusPaymentRequired {
			assert.Equal(t, "PAY_001", env.ErrorCode)

			status, env = app.do(t, http.MethodPost, "/api/v1/wallet/fund", sender, map[string]int64{"amount": 10000})
			require.Equal(t, http.StatusOK, status)
			assert.GreaterOrEqual(t, decode[domain.WalletAccount](t, env).Balance, q.Price)

			status, _ = app.do(t, http.MethodPost, "/api/v1/deliveries", sender, map[string]string{"quote_id": q.ID})
			assert.Equal(t, http.StatusCreated, status)
			return
		}
		require.Equal(t, http.StatusCreated, status)
	}
}

func TestApp_ValidationErrors(t *testing.T) {
	app := newTestApp(t)
	sender := app.signup(t, "Ada Obi", "sender")

	tests := []struct {
		name string
		path string
		body any
	}{
		{"bad email", "/api/v1/auth/signup", map[string]string{"name": "Bo", "email": "nope", "password": "secret123"}},
		{"short password", "/api/v1/auth/signup", map[string]string{"name": "Bo", "email": "bo@example.com", "password": "123"}},
		{"unknown role", "/api/v1/auth/signup", map[string]string{"name": "Bo", "email": "bo@example.com", "password": "secret123", "role": "admin"}},
		{"zero top-up", "/api/v1/wallet/fund", map[string]int64{"amount": 0}},
		{"blank pickup", "/api/v1/quotes", map[string]string{"pickup": "  ", "dropoff": "Lekki"}},
		{"quote id not uuid", "/api/v1/deliveries", map[string]string{"quote_id": "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := sender
			if strings.HasPrefix(tt.path, "/api/v1/auth") {
				token = ""
			}
			status, env := app.do(t, http.MethodPost, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "GEN_400", env.ErrorCode)
		})
	}
}

func TestApp_ConcurrentBookingsNeverOverdraw(t *testing.T) {
	app := newTestApp(t)
	sender := app.signup(t, "Ada Obi", "sender")

	const n = 8
	quotes := make([]domain.Quote, n)
	for i := range quotes {
		quotes[i] = app.quote(t, sender)
	}
	price := quotes[0].Price

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		booked int64
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(q domain.Quote) {
			defer wg.Done()
			b, _ := json.Marshal(map[string]string{"quote_id": q.ID})
			req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/deliveries", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+sender)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				mu.Lock()
				booked++
				mu.Unlock()
			}
		}(quotes[i])
	}
	wg.Wait()

	// same trip, same price
	assert.Equal(t, 5000/price, booked)

	status, env := app.do(t, http.MethodGet, "/api/v1/wallet", sender, nil)
	require.Equal(t, http.StatusOK, status)
	w := decode[domain.WalletAccount](t, env)
	assert.Equal(t, 5000-booked*price, w.Balance)
	assert.GreaterOrEqual(t, w.Balance, int64(0))
}

func TestApp_DeliveryStream(t *testing.T) {
	app := newTestApp(t)
	sender := app.signup(t, "Ada Obi", "sender")
	rider := app.signup(t, "Tunde Bello", "rider")

	q := app.quote(t, sender)
	status, env := app.do(t, http.MethodPost, "/api/v1/deliveries", sender, map[string]string{"quote_id": q.ID})
	require.Equal(t, http.StatusCreated, status)
	d := decode[domain.Delivery](t, env)

	wsURL := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/api/v1/deliveries/" + d.ID + "/stream?token=" + sender
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first dto.StreamMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, httpHandler.StreamSnapshot, first.Type)
	require.NotNil(t, first.Delivery)
	assert.Equal(t, d.ID, first.Delivery.ID)

	for _, next := range []string{"ACCEPTED", "PICKED_UP", "IN_TRANSIT", "DELIVERED"} {
		status, _ := app.do(t, http.MethodPost, "/api/v1/rider/jobs/"+d.ID+"/advance", rider, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status)

		var msg dto.StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, string(domain.EventDeliveryAdvanced), msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, domain.DeliveryStatus(next), msg.Event.Status)
	}

	// the server closes the stream after the terminal event
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestApp_StreamRejectsStrangers(t *testing.T) {
	app := newTestApp(t)
	ada := app.signup(t, "Ada Obi", "sender")
	kemi := app.signup(t, "Kemi Ade", "sender")

	q := app.quote(t, ada)
	status, env := app.do(t, http.MethodPost, "/api/v1/deliveries", ada, map[string]string{"quote_id": q.ID})
	require.Equal(t, http.StatusCreated, status)
	d := decode[domain.Delivery](t, env)

	wsURL := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/api/v1/deliveries/" + d.ID + "/stream?token=" + kemi
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Eventually(t, func() bool { return app.bus.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestApp_Health(t *testing.T) {
	app := newTestApp(t)
	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
