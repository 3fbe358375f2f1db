package handler_test

// End-to-end scenarios against a running server. Set INTEGRATION_TESTS=1
// and point HALLPASS_HTTP_ADDR at an instance backed by a database with
// schema.sql applied and two schools seeded: HALLPASS_SCHOOL_ID (used for
// traffic) and HALLPASS_EMPTY_SCHOOL_ID (no passes, for the sentinel
// check). Accounts are registered per run with unique emails, so reruns
// do not collide.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func skipUnlessIntegration(t *testing.T) string {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	return getenv("HALLPASS_HTTP_ADDR", "http://127.0.0.1:8080")
}

// doJSON sends a JSON request and decodes the JSON response body into a
// generic map. A nil body sends an empty request.
func doJSON(t *testing.T, method, url, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

// register creates a fresh account and returns its access token. Emails
// carry a nanosecond suffix so repeated runs never hit the unique index.
func register(t *testing.T, base, role string, schoolID uint64) string {
	t.Helper()
	email := fmt.Sprintf("it-%s-%d@test.local", role, time.Now().UnixNano())
	status, body := doJSON(t, http.MethodPost, base+"/v1/auth/register", "", map[string]interface{}{
		"email":      email,
		"password":   "integration-pw",
		"role":       role,
		"school_id":  schoolID,
		"first_name": "Test",
		"last_name":  role,
	})
	require.Equal(t, http.StatusCreated, status, "register %s: %v", role, body)
	access := body["access"].(map[string]interface{})
	return access["token"].(string)
}

// createLocation adds a destination as the given admin and returns its ID.
func createLocation(t *testing.T, base, adminToken, name string, requiresApproval bool, duration int) uint64 {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, base+"/v1/locations", adminToken, map[string]interface{}{
		"name":              name,
		"default_duration":  duration,
		"requires_approval": requiresApproval,
	})
	require.Equal(t, http.StatusCreated, status, "create location: %v", body)
	item := body["item"].(map[string]interface{})
	return uint64(item["id"].(float64))
}

func item(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	m, ok := body["item"].(map[string]interface{})
	require.True(t, ok, "response has no item: %v", body)
	return m
}

func schoolID(t *testing.T) uint64 {
	t.Helper()
	n := 0
	fmt.Sscanf(getenv("HALLPASS_SCHOOL_ID", "1"), "%d", &n)
	require.Greater(t, n, 0)
	return uint64(n)
}

func TestPreApprovedPassLifecycle(t *testing.T) {
	base := skipUnlessIntegration(t)
	sid := schoolID(t)
	admin := register(t, base, "ADMIN", sid)
	teacher := register(t, base, "TEACHER", sid)
	student := register(t, base, "STUDENT", sid)

	locName := fmt.Sprintf("Nurse %d", time.Now().UnixNano())
	locID := createLocation(t, base, admin, locName, false, 20)

	// Pre-approved destination: the pass skips PENDING entirely.
	status, body := doJSON(t, http.MethodPost, base+"/v1/passes/request", student, map[string]interface{}{
		"location_id": locID,
	})
	require.Equal(t, http.StatusCreated, status, "request: %v", body)
	pass := item(t, body)
	require.Equal(t, "APPROVED", pass["status"])
	passID := uint64(pass["id"].(float64))
	require.Nil(t, pass["verification_code"])

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passID), student, nil)
	require.Equal(t, http.StatusOK, status, "activate: %v", body)
	pass = item(t, body)
	require.Equal(t, "ACTIVE", pass["status"])
	code, ok := pass["verification_code"].(string)
	require.True(t, ok, "active pass has no verification code")
	require.Len(t, code, 8)

	// Activating twice is an idempotent no-op with the same code.
	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passID), student, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, code, item(t, body)["verification_code"])

	// The hallway check resolves the code while the pass is out.
	status, body = doJSON(t, http.MethodGet, base+"/v1/passes/verify/"+code, teacher, nil)
	require.Equal(t, http.StatusOK, status, "verify: %v", body)
	require.Equal(t, float64(passID), item(t, body)["id"])

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/complete", base, passID), student, nil)
	require.Equal(t, http.StatusOK, status, "complete: %v", body)
	pass = item(t, body)
	require.Equal(t, "COMPLETED", pass["status"])
	duration, ok := pass["duration_minutes"].(float64)
	require.True(t, ok, "completed pass has no duration")
	require.GreaterOrEqual(t, duration, float64(0))

	// Once the pass leaves ACTIVE the same code no longer resolves.
	status, _ = doJSON(t, http.MethodGet, base+"/v1/passes/verify/"+code, teacher, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestDeniedPassCannotActivate(t *testing.T) {
	base := skipUnlessIntegration(t)
	sid := schoolID(t)
	admin := register(t, base, "ADMIN", sid)
	teacher := register(t, base, "TEACHER", sid)
	student := register(t, base, "STUDENT", sid)

	locName := fmt.Sprintf("Bathroom %d", time.Now().UnixNano())
	locID := createLocation(t, base, admin, locName, true, 10)

	status, body := doJSON(t, http.MethodPost, base+"/v1/passes/request", student, map[string]interface{}{
		"location_id": locID,
	})
	require.Equal(t, http.StatusCreated, status, "request: %v", body)
	pass := item(t, body)
	require.Equal(t, "PENDING", pass["status"])
	passID := uint64(pass["id"].(float64))

	status, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/v1/passes/%d/decide", base, passID), teacher, map[string]interface{}{
		"decision": "deny",
	})
	require.Equal(t, http.StatusOK, status, "deny: %v", body)
	require.Equal(t, "DENIED", item(t, body)["status"])

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passID), student, nil)
	require.Equal(t, http.StatusConflict, status, "activate denied pass: %v", body)
}

func TestAdmissionCapSerializesActivation(t *testing.T) {
	base := skipUnlessIntegration(t)
	sid := schoolID(t)
	admin := register(t, base, "ADMIN", sid)
	studentA := register(t, base, "STUDENT", sid)
	studentB := register(t, base, "STUDENT", sid)

	// Remember the school's limit so the test can put it back.
	status, body := doJSON(t, http.MethodGet, base+"/v1/schools/me", admin, nil)
	require.Equal(t, http.StatusOK, status)
	originalLimit := int(item(t, body)["concurrent_pass_limit"].(float64))
	defer func() {
		doJSON(t, http.MethodPatch, base+"/v1/schools/me", admin, map[string]interface{}{
			"concurrent_pass_limit": originalLimit,
		})
	}()

	status, body = doJSON(t, http.MethodPatch, base+"/v1/schools/me", admin, map[string]interface{}{
		"concurrent_pass_limit": 1,
	})
	require.Equal(t, http.StatusOK, status, "set limit: %v", body)

	locName := fmt.Sprintf("Office %d", time.Now().UnixNano())
	locID := createLocation(t, base, admin, locName, false, 15)

	requestPass := func(token string) uint64 {
		status, body := doJSON(t, http.MethodPost, base+"/v1/passes/request", token, map[string]interface{}{
			"location_id": locID,
		})
		require.Equal(t, http.StatusCreated, status, "request: %v", body)
		return uint64(item(t, body)["id"].(float64))
	}
	passA := requestPass(studentA)
	passB := requestPass(studentB)

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passA), studentA, nil)
	require.Equal(t, http.StatusOK, status, "activate A: %v", body)

	// The single slot is taken; B stays APPROVED and may retry.
	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passB), studentB, nil)
	require.Equal(t, http.StatusConflict, status, "activate B at capacity: %v", body)
	require.Equal(t, "at_capacity", body["reason"])

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/complete", base, passA), studentA, nil)
	require.Equal(t, http.StatusOK, status, "complete A: %v", body)

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passB), studentB, nil)
	require.Equal(t, http.StatusOK, status, "activate B after release: %v", body)
	require.Equal(t, "ACTIVE", item(t, body)["status"])

	doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/complete", base, passB), studentB, nil)
}

func TestDuplicatePassRejected(t *testing.T) {
	base := skipUnlessIntegration(t)
	sid := schoolID(t)
	admin := register(t, base, "ADMIN", sid)
	student := register(t, base, "STUDENT", sid)

	locName := fmt.Sprintf("Library %d", time.Now().UnixNano())
	locID := createLocation(t, base, admin, locName, false, 15)

	status, body := doJSON(t, http.MethodPost, base+"/v1/passes/request", student, map[string]interface{}{
		"location_id": locID,
	})
	require.Equal(t, http.StatusCreated, status, "first request: %v", body)
	passID := uint64(item(t, body)["id"].(float64))

	// One open pass per student: a second request is rejected while the
	// first is still in flight, both before and after activation.
	status, body = doJSON(t, http.MethodPost, base+"/v1/passes/request", student, map[string]interface{}{
		"location_id": locID,
	})
	require.Equal(t, http.StatusConflict, status, "second request: %v", body)
	require.Equal(t, "duplicate_pass", body["reason"])

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passID), student, nil)
	require.Equal(t, http.StatusOK, status, "activate: %v", body)

	status, body = doJSON(t, http.MethodPost, base+"/v1/passes/request", student, map[string]interface{}{
		"location_id": locID,
	})
	require.Equal(t, http.StatusConflict, status, "request while active: %v", body)
	require.Equal(t, "duplicate_pass", body["reason"])

	// Closing the pass frees the student to request again.
	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/complete", base, passID), student, nil)
	require.Equal(t, http.StatusOK, status, "complete: %v", body)

	status, body = doJSON(t, http.MethodPost, base+"/v1/passes/request", student, map[string]interface{}{
		"location_id": locID,
	})
	require.Equal(t, http.StatusCreated, status, "request after complete: %v", body)
	nextID := uint64(item(t, body)["id"].(float64))
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, nextID), student, nil)
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/complete", base, nextID), student, nil)
}

func TestOverdueApprovedPassReadsExpired(t *testing.T) {
	base := skipUnlessIntegration(t)
	sid := schoolID(t)
	admin := register(t, base, "ADMIN", sid)
	student := register(t, base, "STUDENT", sid)

	locName := fmt.Sprintf("Counselor %d", time.Now().UnixNano())
	locID := createLocation(t, base, admin, locName, false, 15)

	// A window that closes in a few seconds.
	end := time.Now().UTC().Add(3 * time.Second)
	status, body := doJSON(t, http.MethodPost, base+"/v1/passes/request", student, map[string]interface{}{
		"location_id":        locID,
		"requested_end_time": end,
	})
	require.Equal(t, http.StatusCreated, status, "request: %v", body)
	pass := item(t, body)
	require.Equal(t, "APPROVED", pass["status"])
	passID := uint64(pass["id"].(float64))

	time.Sleep(5 * time.Second)

	// Past the deadline the pass reads EXPIRED on every read path, even
	// before any write or sweep touches the row.
	status, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/passes/%d", base, passID), student, nil)
	require.Equal(t, http.StatusOK, status, "get: %v", body)
	require.Equal(t, "EXPIRED", item(t, body)["status"])

	status, body = doJSON(t, http.MethodGet, base+"/v1/passes/mine?status=EXPIRED", student, nil)
	require.Equal(t, http.StatusOK, status, "mine: %v", body)
	items, ok := body["items"].([]interface{})
	require.True(t, ok, "mine has no items: %v", body)
	found := false
	for _, it := range items {
		if uint64(it.(map[string]interface{})["id"].(float64)) == passID {
			found = true
		}
	}
	require.True(t, found, "overdue pass missing from EXPIRED filter")

	// And it cannot be activated anymore.
	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/passes/%d/activate", base, passID), student, nil)
	require.Equal(t, http.StatusConflict, status, "activate overdue pass: %v", body)
}

func TestEmptyWindowDashboardReportsSentinel(t *testing.T) {
	base := skipUnlessIntegration(t)
	n := 0
	fmt.Sscanf(getenv("HALLPASS_EMPTY_SCHOOL_ID", "2"), "%d", &n)
	require.Greater(t, n, 0)
	teacher := register(t, base, "TEACHER", uint64(n))

	status, body := doJSON(t, http.MethodGet, base+"/v1/dashboard/teacher?window=week", teacher, nil)
	require.Equal(t, http.StatusOK, status, "dashboard: %v", body)
	school, ok := body["school"].(map[string]interface{})
	require.True(t, ok, "dashboard has no school block: %v", body)
	require.Equal(t, "Not Enough Data", school["metric_status"])
	require.Nil(t, school["average_duration_minutes"])
	require.Equal(t, float64(0), school["completed_passes"])

	// The teacher's personal block carries its own sample status; a
	// fresh account has approved nothing.
	mine, ok := body["mine"].(map[string]interface{})
	require.True(t, ok, "dashboard has no mine block: %v", body)
	require.Equal(t, "Not Enough Data", mine["metric_status"])
	require.Nil(t, mine["average_duration_minutes"])
	require.Equal(t, float64(0), mine["completed_passes"])
	require.Equal(t, float64(0), body["decided_by_me"])
}
