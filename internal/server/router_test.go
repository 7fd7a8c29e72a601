package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/handler"
	"dapp-core/internal/model"
	"dapp-core/internal/service"
	"dapp-core/internal/service/notify"
	"dapp-core/internal/service/session"
	"dapp-core/internal/wallet/wallettest"
	"dapp-core/pkg/cache"
	"dapp-core/pkg/config"
	"dapp-core/pkg/errno"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	chain  *wallettest.FakeChain
	hub    *notify.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chain := wallettest.NewFakeChain(2)
	hub := notify.NewHub(nil)
	mgr := session.NewManager(session.Options{
		Injected:            &wallettest.Connector{Provider: chain},
		Addresses:           contracts.Addresses{Token: chain.TokenAddress, Sale: chain.SaleAddress},
		Networks:            config.Default().Network,
		ReceiptPollInterval: time.Millisecond,
		Publisher:           hub,
	})
	projection := service.NewProjectionService(mgr, mgr, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, hub)
	txs := service.NewTransactionService(mgr, projection, hub, service.TxOptions{})
	mgr.OnReset(txs.Reset)
	mgr.OnBindingChanged(txs.DropStale)
	mgr.OnReset(projection.Reset)
	t.Cleanup(func() {
		txs.Close()
		_ = hub.Close()
	})

	r := NewHTTPRouter(Handlers{
		Wallet:     handler.NewWalletHandler(mgr),
		Tx:         handler.NewTxHandler(txs),
		Projection: handler.NewProjectionHandler(projection),
		WS:         handler.NewWSHandler(hub),
	})
	return &testServer{router: r, chain: chain, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, body string) apiResponse {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, errno.OK.Code, resp.Code)
	assert.Contains(t, string(resp.Data), "UP")
}

func TestWalletAndTransactionFlow(t *testing.T) {
	s := newTestServer(t)

	// 未连接
	resp := s.do(t, http.MethodPost, "/api/v1/tx/buy", `{"amount":"0.1"}`)
	assert.Equal(t, errno.ErrNotConnected.Code, resp.Code)
	assert.Equal(t, errno.ErrNotConnected.Message, resp.Msg)

	resp = s.do(t, http.MethodPost, "/api/v1/wallet/connect", "")
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	var info model.SessionInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, model.SessionConnected, info.State)
	assert.Equal(t, int64(31337), info.NetworkID)
	assert.True(t, info.IsOwner)

	resp = s.do(t, http.MethodPost, "/api/v1/tx/buy", `{"amount":"abc"}`)
	assert.Equal(t, errno.ErrInvalidAmount.Code, resp.Code)
	assert.Equal(t, "Please enter a valid amount of ETH to pay.", resp.Msg)

	resp = s.do(t, http.MethodPost, "/api/v1/tx/buy", `{"amount":"0.1"}`)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	var req model.TransactionRequest
	require.NoError(t, json.Unmarshal(resp.Data, &req))
	assert.Equal(t, model.TxKindBuy, req.Kind)
	assert.Equal(t, "100000000000000000", req.AmountWei)

	assert.Eventually(t, func() bool {
		resp := s.do(t, http.MethodGet, "/api/v1/tx/buy", "")
		var st model.TxStatus
		if json.Unmarshal(resp.Data, &st) != nil || st.Outcome == nil {
			return false
		}
		return st.Active == nil && st.Outcome.State == model.TxStateConfirmed
	}, 5*time.Second, 10*time.Millisecond)

	resp = s.do(t, http.MethodGet, "/api/v1/projection", "")
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	var p model.Projection
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	assert.Equal(t, "MTK", p.TokenSymbol)
	assert.Equal(t, "0.1000", p.SaleEthBalance)

	resp = s.do(t, http.MethodPost, "/api/v1/wallet/disconnect", "")
	require.Equal(t, errno.OK.Code, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, model.SessionDisconnected, info.State)
}

func TestTxInputAndKinds(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/v1/tx/swap", "")
	assert.Equal(t, errno.ErrUnknownKind.Code, resp.Code)

	resp = s.do(t, http.MethodPut, "/api/v1/tx/withdraw/input", `{"value":"2.5"}`)
	require.Equal(t, errno.OK.Code, resp.Code)
	var st model.TxStatus
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	assert.Equal(t, "2.5", st.Input)

	resp = s.do(t, http.MethodPut, "/api/v1/tx/withdraw/input", `not json`)
	assert.Equal(t, errno.ErrBind.Code, resp.Code)
}

func TestSelectAccount(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/wallet/accounts", `{}`)
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	resp = s.do(t, http.MethodPost, "/api/v1/wallet/accounts", `{"index":1}`)
	assert.Equal(t, errno.ErrNotConnected.Code, resp.Code)

	s.do(t, http.MethodPost, "/api/v1/wallet/connect", "")
	// 注入钱包不支持切换账户
	resp = s.do(t, http.MethodPost, "/api/v1/wallet/accounts", `{"index":1}`)
	assert.Equal(t, errno.ErrAccountSwitchFailed.Code, resp.Code)
}

func TestSnapshotStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var snap model.Snapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, model.SessionDisconnected, snap.Session.State)

	resp := s.do(t, http.MethodPost, "/api/v1/wallet/connect", "")
	require.Equal(t, errno.OK.Code, resp.Code)

	for snap.Session.State != model.SessionConnected {
		require.NoError(t, conn.ReadJSON(&snap))
	}
	assert.Equal(t, "Hardhat Network", snap.Session.NetworkName)
}
