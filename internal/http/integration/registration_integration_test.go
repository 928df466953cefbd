package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/communityhub/events/internal/config"
	"github.com/communityhub/events/internal/domain/event"
	apphttp "github.com/communityhub/events/internal/http"
	"github.com/communityhub/events/internal/identity"
	"github.com/communityhub/events/internal/observability"
)

const testSecret = "test-secret-key"

func testConfig() config.Config {
	return config.Config{
		Env:               "test",
		IdentitySecret:    testSecret,
		ListCacheTTL:      time.Millisecond,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
	}
}

type apiErrorResponse struct {
	Error struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"requestId"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

// setupTestRouter wires the real router against a live database. Tests are
// skipped when TEST_DB_DSN is not set.
func setupTestRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping integration test")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	promReg := prometheus.NewRegistry()

	router := apphttp.NewRouter(apphttp.Deps{
		Cfg:     testConfig(),
		Log:     logger,
		Pool:    pool,
		Prom:    observability.NewProm(promReg),
		PromReg: promReg,
	})

	resetDB(t, pool)

	return router, pool
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `TRUNCATE events, jobs`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func mintToken(t *testing.T, userID, email, role string) string {
	t.Helper()

	tok, err := identity.NewVerifier(testSecret).MintForTest(userID, email, role, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func doRequest(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedEvent(t *testing.T, router *gin.Engine, token string, capacity int) event.Event {
	t.Helper()

	body := `{
		"title": "Capacity test event",
		"description": "Integration seed.",
		"location": "Hall A",
		"date": "2027-01-15T18:00:00Z",
		"category": "meetup",
		"capacity": ` + jsonInt(capacity) + `
	}`

	w := doRequest(router, http.MethodPost, "/events", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("seed event: status = %d, body=%s", w.Code, w.Body.String())
	}

	var e event.Event
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("seed event: unmarshal: %v", err)
	}
	return e
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestRegistrationLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)

	organizer := mintToken(t, "organizer-1", "org@example.com", identity.RoleStaff)
	member := mintToken(t, "member-1", "m1@example.com", identity.RoleMember)

	e := seedEvent(t, router, organizer, 5)

	// register
	w := doRequest(router, http.MethodPost, "/events/"+e.ID+"/registrations", member, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body=%s", w.Code, w.Body.String())
	}

	// duplicate register conflicts
	w = doRequest(router, http.MethodPost, "/events/"+e.ID+"/registrations", member, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status = %d, body=%s", w.Code, w.Body.String())
	}
	var dup apiErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &dup); err != nil {
		t.Fatal(err)
	}
	if dup.Error.Code != "already_registered" {
		t.Errorf("duplicate code = %q", dup.Error.Code)
	}

	// status reflects the registration
	w = doRequest(router, http.MethodGet, "/events/"+e.ID+"/registrations/me", member, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: status = %d, body=%s", w.Code, w.Body.String())
	}
	var snap struct {
		IsRegistered  bool `json:"isRegistered"`
		AttendeeCount int  `json:"attendeeCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if !snap.IsRegistered || snap.AttendeeCount != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	// cancel frees the seat
	w = doRequest(router, http.MethodDelete, "/events/"+e.ID+"/registrations", member, "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d, body=%s", w.Code, w.Body.String())
	}

	// cancelling again conflicts
	w = doRequest(router, http.MethodDelete, "/events/"+e.ID+"/registrations", member, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("second cancel: status = %d, body=%s", w.Code, w.Body.String())
	}
}

func TestConcurrentRegistrationHonorsCapacity(t *testing.T) {
	router, pool := setupTestRouter(t)

	organizer := mintToken(t, "organizer-1", "org@example.com", identity.RoleStaff)
	e := seedEvent(t, router, organizer, 3)

	const contenders = 10

	var wg sync.WaitGroup
	codes := make([]int, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := mintToken(t, "racer-"+jsonInt(i), "r@example.com", identity.RoleMember)
			w := doRequest(router, http.MethodPost, "/events/"+e.ID+"/registrations", tok, "")
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	conflicts := 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", c)
		}
	}

	if created != 3 || conflicts != 7 {
		t.Errorf("created=%d conflicts=%d, want 3/7", created, conflicts)
	}

	var count int
	err := pool.QueryRow(context.Background(),
		`SELECT jsonb_array_length(attendees) FROM events WHERE id = $1`, e.ID).Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("attendee count = %d, want exactly capacity", count)
	}
}

func TestRegistrationEnqueuesConfirmationJob(t *testing.T) {
	router, pool := setupTestRouter(t)

	organizer := mintToken(t, "organizer-1", "org@example.com", identity.RoleStaff)
	member := mintToken(t, "member-1", "m1@example.com", identity.RoleMember)

	e := seedEvent(t, router, organizer, 5)

	w := doRequest(router, http.MethodPost, "/events/"+e.ID+"/registrations", member, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body=%s", w.Code, w.Body.String())
	}

	var jobCount int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM jobs WHERE type = 'registration.confirmation' AND payload->>'eventId' = $1`,
		e.ID).Scan(&jobCount)
	if err != nil {
		t.Fatal(err)
	}
	if jobCount != 1 {
		t.Errorf("confirmation jobs = %d, want 1", jobCount)
	}
}
