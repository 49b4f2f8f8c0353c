package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callcenter-analytics/internal/auth"
	"callcenter-analytics/internal/calls"
	"callcenter-analytics/internal/config"
	"callcenter-analytics/internal/feedback"
	"callcenter-analytics/internal/knowledge"
	"callcenter-analytics/internal/kpi"
	"callcenter-analytics/internal/rbac"

	"github.com/gin-gonic/gin"
)

type fixedIndex struct {
	results []knowledge.Result
}

func (f fixedIndex) Search(ctx context.Context, query string, topK int, filter map[string]string) ([]knowledge.Result, error) {
	return f.results, nil
}

type testEnv struct {
	router   *gin.Engine
	calls    *calls.MemoryRepo
	feedback *feedback.MemoryRepo
	auth     *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	callRepo := calls.NewMemoryRepo()
	fbRepo := feedback.NewMemoryRepo(callRepo)

	manager, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	h := Handlers{
		Auth:      manager,
		Calls:     callRepo,
		Feedback:  feedback.NewService(fbRepo),
		KPI:       kpi.NewService(callRepo, fbRepo, nil),
		Knowledge: knowledge.NewService(fixedIndex{}),
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.GET("/calls", h.ListCalls)
	v1.GET("/calls/:call_id", h.GetCall)
	v1.GET("/kpis", h.GetKPIs)
	v1.POST("/calls/:call_id/feedback", h.CreateFeedback)
	v1.DELETE("/feedback/:feedback_id", h.DeleteFeedback)
	v1.POST("/knowledge/search", h.SearchKnowledge)
	v1.POST("/auth/login", h.Login)

	admin := v1.Group("/admin")
	admin.Use(auth.RequireAccessToken(manager))
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	admin.DELETE("/calls/:call_id", h.DeleteCall)

	return &testEnv{router: r, calls: callRepo, feedback: fbRepo, auth: manager}
}

func (e *testEnv) seedCall(t *testing.T, id, conv string, start time.Time) {
	t.Helper()
	_, err := e.calls.Create(context.Background(), calls.Call{
		ID:               id,
		ConversationID:   conv,
		AgentID:          "agent-1",
		Status:           "done",
		StartTime:        start,
		EndTime:          start.Add(time.Minute),
		CallDurationSecs: 60,
	})
	if err != nil {
		t.Fatalf("seed call %s: %v", id, err)
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestListCalls_PaginationAndOrder(t *testing.T) {
	env := newTestEnv(t)
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 25; i++ {
		env.seedCall(t, callID(i), convID(i), base.Add(time.Duration(i)*time.Hour))
	}

	w := env.do(t, http.MethodGet, "/v1/calls?page=2&pageSize=10", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	items := body["calls"].([]any)
	if len(items) != 10 {
		t.Fatalf("page size = %d, want 10", len(items))
	}
	// Newest first, so page 2 starts at the 11th newest.
	first := items[0].(map[string]any)
	if first["id"] != callID(14) {
		t.Fatalf("first item = %v, want %s", first["id"], callID(14))
	}

	pg := body["pagination"].(map[string]any)
	if pg["totalItems"] != float64(25) || pg["totalPages"] != float64(3) {
		t.Fatalf("pagination = %v", pg)
	}
	if pg["hasNext"] != true || pg["hasPrevious"] != true {
		t.Fatalf("pagination flags = %v", pg)
	}
}

func TestListCalls_ClampsOutOfRangePaging(t *testing.T) {
	env := newTestEnv(t)
	env.seedCall(t, "c-1", "conv-1", time.Unix(1700000000, 0).UTC())

	w := env.do(t, http.MethodGet, "/v1/calls?page=0&pageSize=1000", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	pg := decode(t, w)["pagination"].(map[string]any)
	if pg["page"] != float64(1) || pg["pageSize"] != float64(100) {
		t.Fatalf("pagination = %v, want page 1 size 100", pg)
	}
}

func TestListCalls_RejectsBadDates(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/calls?fromDate=not-a-date", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/calls?fromDate=2024-02-01&untilDate=2024-01-01", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status = %d, want 400", w.Code)
	}
}

func TestGetCall_IncludesFeedback(t *testing.T) {
	env := newTestEnv(t)
	env.seedCall(t, "c-1", "conv-1", time.Unix(1700000000, 0).UTC())
	if _, err := env.feedback.CreateForCall(context.Background(), feedback.Feedback{ID: "f-1", CallID: "c-1", Rating: 5}); err != nil {
		t.Fatalf("seed feedback: %v", err)
	}

	w := env.do(t, http.MethodGet, "/v1/calls/c-1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	call := decode(t, w)["call"].(map[string]any)
	if call["conversationId"] != "conv-1" {
		t.Fatalf("call = %v", call)
	}
	fbs := call["feedback"].([]any)
	if len(fbs) != 1 {
		t.Fatalf("feedback rows = %d, want 1", len(fbs))
	}
}

func TestGetCall_UnknownIs404(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/calls/ghost", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetKPIs(t *testing.T) {
	env := newTestEnv(t)
	base := time.Unix(1700000000, 0).UTC()
	env.seedCall(t, "c-1", "conv-1", base.Add(time.Hour))

	w := env.do(t, http.MethodGet, "/v1/kpis", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing range status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/kpis?fromDate=2023-11-14T00:00:00Z&untilDate=2023-11-16T00:00:00Z", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["total_calls"] != float64(1) {
		t.Fatalf("total_calls = %v", body["total_calls"])
	}
	if body["avg_call_duration"] != float64(60) {
		t.Fatalf("avg_call_duration = %v", body["avg_call_duration"])
	}
	if body["avg_call_rating"] != nil {
		t.Fatalf("avg_call_rating = %v, want null", body["avg_call_rating"])
	}
}

func TestCreateFeedback(t *testing.T) {
	env := newTestEnv(t)
	env.seedCall(t, "c-1", "conv-1", time.Unix(1700000000, 0).UTC())

	w := env.do(t, http.MethodPost, "/v1/calls/c-1/feedback", `{"rating": 4, "comment": "helpful"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	fb := decode(t, w)["feedback"].(map[string]any)
	if fb["rating"] != float64(4) {
		t.Fatalf("feedback = %v", fb)
	}

	w = env.do(t, http.MethodPost, "/v1/calls/c-1/feedback", `{"rating": 9}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range rating status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/calls/ghost/feedback", `{"rating": 3}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown call status = %d, want 404", w.Code)
	}
}

func TestDeleteFeedback(t *testing.T) {
	env := newTestEnv(t)
	env.seedCall(t, "c-1", "conv-1", time.Unix(1700000000, 0).UTC())
	if _, err := env.feedback.CreateForCall(context.Background(), feedback.Feedback{ID: "f-1", CallID: "c-1", Rating: 2}); err != nil {
		t.Fatalf("seed feedback: %v", err)
	}

	w := env.do(t, http.MethodDelete, "/v1/feedback/f-1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/v1/feedback/f-1", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestSearchKnowledge(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/knowledge/search", `{"query": "breakfast hours"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["query"] != "breakfast hours" || body["topK"] != float64(knowledge.TopKDefault) {
		t.Fatalf("response = %v", body)
	}

	w = env.do(t, http.MethodPost, "/v1/knowledge/search", `{"query": "   "}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty query status = %d, want 400", w.Code)
	}
}

func TestAdminDeleteCall_RBAC(t *testing.T) {
	env := newTestEnv(t)
	env.seedCall(t, "c-1", "conv-1", time.Unix(1700000000, 0).UTC())

	// No token.
	w := env.do(t, http.MethodDelete, "/v1/admin/calls/c-1", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", w.Code)
	}

	// Analyst token is not allowed.
	analystTok, err := env.auth.IssueAccess(time.Now(), "u-1", rbac.RoleAnalyst)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w = env.do(t, http.MethodDelete, "/v1/admin/calls/c-1", "", map[string]string{"Authorization": "Bearer " + analystTok})
	if w.Code != http.StatusForbidden {
		t.Fatalf("analyst status = %d, want 403", w.Code)
	}

	// Admin token deletes.
	adminTok, err := env.auth.IssueAccess(time.Now(), "u-2", rbac.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w = env.do(t, http.MethodDelete, "/v1/admin/calls/c-1", "", map[string]string{"Authorization": "Bearer " + adminTok})
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d, body %s", w.Code, w.Body.String())
	}
	if len(env.calls.Calls) != 0 {
		t.Fatalf("call not deleted")
	}

	w = env.do(t, http.MethodDelete, "/v1/admin/calls/c-1", "", map[string]string{"Authorization": "Bearer " + adminTok})
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/login", `{"user_id": "u-1", "role": "admin"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	tok, _ := decode(t, w)["access_token"].(string)
	if tok == "" {
		t.Fatalf("expected access_token")
	}
	if _, err := env.auth.Verify(tok, time.Now()); err != nil {
		t.Fatalf("issued token must verify: %v", err)
	}

	w = env.do(t, http.MethodPost, "/v1/auth/login", `{"user_id": ""}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields status = %d, want 400", w.Code)
	}
}

func callID(i int) string { return fmt.Sprintf("call-%02d", i) }
func convID(i int) string { return fmt.Sprintf("conv-%02d", i) }
