package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	httpHandler "mybank/internal/adapter/http/handler"
	"mybank/internal/adapter/storage/memory"
	redisStorage "mybank/internal/adapter/storage/redis"
	"mybank/internal/core/ports"
	"mybank/internal/metrics"
	"mybank/internal/service"
	"mybank/pkg/keylock"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the real HTTP layer, services, desks and Redis stores on top
// of the in-memory account store and miniredis.
type testApp struct {
	server *httptest.Server
	desk   *service.AsyncDesk
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	store := memory.NewStore(log)
	engine := service.NewTransferService(store, store, keylock.NewManager[string](log), service.IsolationLocal, log)

	asyncMetrics, err := metrics.New("async")
	require.NoError(t, err)
	syncMetrics, err := metrics.New("sync")
	require.NoError(t, err)

	asyncDesk := service.NewAsyncDesk(engine, asyncMetrics, 50, log)
	asyncDesk.Start()

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:     service.NewAccountService(store, log),
		SyncDesk:       service.NewSyncDesk(engine, syncMetrics, log),
		Tracker:        service.NewTransferTracker(asyncDesk, redisStorage.NewTransferStatusStore(rdb), time.Hour, log),
		AsyncMetrics:   asyncMetrics,
		SyncMetrics:    syncMetrics,
		IdempCache:     redisStorage.NewIdempotencyCache(rdb),
		IdempTTL:       time.Hour,
		HealthCheckers: []ports.HealthChecker{store, redisStorage.NewHealthCheck(rdb)},
		Mode:           gin.TestMode,
		Logger:         log,
	})

	app := &testApp{server: httptest.NewServer(router), desk: asyncDesk}
	t.Cleanup(func() {
		app.server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = asyncDesk.Shutdown(ctx)
	})
	return app
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (a *testApp) do(t *testing.T, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
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

func (a *testApp) createAccount(t *testing.T, id string, balance float64) {
	t.Helper()
	code, _ := a.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"id": id, "initial_balance": balance})
	require.Equal(t, http.StatusCreated, code)
}

func (a *testApp) balance(t *testing.T, id string) float64 {
	t.Helper()
	code, env := a.do(t, http.MethodGet, "/api/v1/accounts/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	var acc struct {
		Balance float64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	return acc.Balance
}

func transferBody(from, to string, amount float64) map[string]any {
	return map[string]any{"from_account_id": from, "to_account_id": to, "amount": amount}
}

func TestAPI_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestAPI_AccountsAndSyncTransfer(t *testing.T) {
	app := newTestApp(t)
	app.createAccount(t, "alice", 1000)
	app.createAccount(t, "bob", 0)

	code, env := app.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"id": "alice", "initial_balance": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ACC_004", env.ErrorCode)

	code, _ = app.do(t, http.MethodPost, "/api/v1/transfers", transferBody("alice", "bob", 250))
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, 750.0, app.balance(t, "alice"))
	assert.Equal(t, 250.0, app.balance(t, "bob"))

	code, env = app.do(t, http.MethodPost, "/api/v1/transfers", transferBody("bob", "alice", 1000))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "ACC_002", env.ErrorCode)

	code, env = app.do(t, http.MethodPost, "/api/v1/transfers", transferBody("alice", "ghost", 1))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ACC_003", env.ErrorCode)

	code, env = app.do(t, http.MethodGet, "/api/v1/accounts/total", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"total_balance":1000}`, string(env.Data))
}

// Ten concurrent transfers of 100 against a balance of 500: exactly five
// succeed and the balance ends at zero.
func TestAPI_ConcurrentTransfers_InsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	app.createAccount(t, "src", 500)
	app.createAccount(t, "dst", 0)

	const concurrency = 10
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		rejected  atomic.Int64
	)
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(transferBody("src", "dst", 100))
			resp, err := http.Post(app.server.URL+"/api/v1/transfers", "application/json", bytes.NewReader(b))
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)

			switch resp.StatusCode {
			case http.StatusOK:
				succeeded.Add(1)
			case http.StatusUnprocessableEntity:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), succeeded.Load())
	assert.Equal(t, int64(5), rejected.Load())
	assert.Equal(t, 0.0, app.balance(t, "src"))
	assert.Equal(t, 500.0, app.balance(t, "dst"))
}

func TestAPI_AsyncTransferStatusAndMetrics(t *testing.T) {
	app := newTestApp(t)
	app.createAccount(t, "a", 100)
	app.createAccount(t, "b", 0)

	code, env := app.do(t, http.MethodPost, "/api/v1/transfers/async", transferBody("a", "b", 40))
	require.Equal(t, http.StatusAccepted, code)
	var queued struct {
		TransferID string `json:"transfer_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &queued))
	require.NotEmpty(t, queued.TransferID)

	require.Eventually(t, func() bool {
		code, env := app.do(t, http.MethodGet, "/api/v1/transfers/"+queued.TransferID, nil)
		if code != http.StatusOK {
			return false
		}
		var rec struct {
			Status string `json:"status"`
		}
		return json.Unmarshal(env.Data, &rec) == nil && rec.Status == "COMPLETED"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 60.0, app.balance(t, "a"))
	assert.Equal(t, 40.0, app.balance(t, "b"))

	code, env = app.do(t, http.MethodPost, "/api/v1/transfers/async?wait=true", transferBody("a", "b", 1000))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "ACC_002", env.ErrorCode)

	code, env = app.do(t, http.MethodGet, "/api/v1/metrics/queue", nil)
	require.Equal(t, http.StatusOK, code)
	var report struct {
		Submitted int64 `json:"transfers_submitted"`
		Completed int64 `json:"transfers_completed"`
		Failed    int64 `json:"transfers_failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, int64(2), report.Submitted)
	assert.Equal(t, int64(2), report.Completed)
	assert.Equal(t, int64(1), report.Failed)

	code, _ = app.do(t, http.MethodPost, "/api/v1/metrics/queue/reset", nil)
	require.Equal(t, http.StatusOK, code)
	_, env = app.do(t, http.MethodGet, "/api/v1/metrics/queue", nil)
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Zero(t, report.Submitted)

	code, _ = app.do(t, http.MethodGet, "/api/v1/transfers/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_IdempotentTransfer(t *testing.T) {
	app := newTestApp(t)
	app.createAccount(t, "a", 100)
	app.createAccount(t, "b", 0)

	for i := range 3 {
		code, _ := app.do(t, http.MethodPost, "/api/v1/transfers", transferBody("a", "b", 10),
			httpHandler.HeaderIdempotencyKey, "pay-once")
		require.Equal(t, http.StatusOK, code, fmt.Sprintf("attempt %d", i))
	}

	assert.Equal(t, 90.0, app.balance(t, "a"))
	assert.Equal(t, 10.0, app.balance(t, "b"))

	code, env := app.do(t, http.MethodPost, "/api/v1/transfers", transferBody("a", "b", 20),
		httpHandler.HeaderIdempotencyKey, "pay-once")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "REQ_001", env.ErrorCode)
}

// Twenty concurrent retries of one transfer under the same key move the
// money once; the rest replay the stored response or are told to retry.
func TestAPI_IdempotentTransfer_ConcurrentSameKey(t *testing.T) {
	app := newTestApp(t)
	app.createAccount(t, "a", 100)
	app.createAccount(t, "b", 0)

	const concurrency = 20
	var (
		wg       sync.WaitGroup
		ok       atomic.Int64
		conflict atomic.Int64
		other    atomic.Int64
	)
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(transferBody("a", "b", 10))
			req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/transfers", bytes.NewReader(b))
			if !assert.NoError(t, err) {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(httpHandler.HeaderIdempotencyKey, "same-key")
			resp, err := http.DefaultClient.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)

			switch resp.StatusCode {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusConflict:
				conflict.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, ok.Load(), int64(1))
	assert.Equal(t, int64(concurrency), ok.Load()+conflict.Load())
	assert.Zero(t, other.Load())
	assert.Equal(t, 90.0, app.balance(t, "a"))
	assert.Equal(t, 10.0, app.balance(t, "b"))

	code, _ := app.do(t, http.MethodPost, "/api/v1/transfers", transferBody("a", "b", 10),
		httpHandler.HeaderIdempotencyKey, "same-key")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 90.0, app.balance(t, "a"))
}
