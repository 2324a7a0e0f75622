package bwt_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/septivank/water-softener-worker/internal/bwt"
	"go.uber.org/zap"
)

const testDeviceKey = "00248808:1781377"

const chartBody = `{
	"dataset": {
		"online": true,
		"connected": true,
		"lastSeenDateTime": "2024-01-02 08:00:00",
		"deviceDataHistory": {
			"codes": ["date", "waterUse", "regenCount"],
			"lines": [["2024-01-02", 1500, 3], ["2024-01-01", 1400, 3]]
		}
	}
}`

func newTestClient(baseURL string) *bwt.Client {
	return bwt.NewClient(bwt.Config{
		BaseURL:   baseURL,
		Username:  "user@example.com",
		Password:  "secret",
		DeviceKey: testDeviceKey,
		Timeout:   5 * time.Second,
	}, zap.NewNop())
}

func TestFetchData_LoginAttachesCookies(t *testing.T) {
	var sawReceiptKey string
	var sawUsername string

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse login form: %v", err)
		}
		sawUsername = r.PostForm.Get("_username")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sawReceiptKey = r.URL.Query().Get("receiptLineKey")
		fmt.Fprint(w, chartBody)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	snapshot, err := client.FetchData(context.Background())
	if err != nil {
		t.Fatalf("FetchData failed: %v", err)
	}
	if snapshot == nil {
		t.Fatal("Expected snapshot, got nil")
	}

	if sawUsername != "user@example.com" {
		t.Errorf("Expected form-encoded username, got %q", sawUsername)
	}
	if sawReceiptKey != testDeviceKey {
		t.Errorf("Expected receiptLineKey %q, got %q", testDeviceKey, sawReceiptKey)
	}
	if snapshot.Date != "2024-01-02" || snapshot.WaterLiters != 1500 {
		t.Errorf("Unexpected snapshot: %+v", snapshot)
	}
}

func TestFetchData_LoginCookieSetOnRedirect(t *testing.T) {
	// The vendor sets the session cookie on the redirect response, not
	// on the final page.
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "redirected"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "redirected" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, chartBody)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	snapshot, err := client.FetchData(context.Background())
	if err != nil {
		t.Fatalf("FetchData failed: %v", err)
	}
	if snapshot == nil || snapshot.WaterLiters != 1500 {
		t.Errorf("Unexpected snapshot: %+v", snapshot)
	}
}

func TestLogin_NoCookies_AuthenticationError(t *testing.T) {
	dataHits := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		// Bad credentials still answer 200, just without cookies.
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		dataHits++
		fmt.Fprint(w, chartBody)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	if err := client.Login(context.Background()); !errors.Is(err, bwt.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}

	// The session stayed unauthenticated, so FetchData must fail at
	// the login step without touching the data endpoint.
	if _, err := client.FetchData(context.Background()); !errors.Is(err, bwt.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication from FetchData, got %v", err)
	}
	if dataHits != 0 {
		t.Errorf("Expected no data requests after failed login, got %d", dataHits)
	}
}

func TestFetchData_ReauthenticatesOnceOnExpiredSession(t *testing.T) {
	loginCount := 0
	dataCount := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		loginCount++
		http.SetCookie(w, &http.Cookie{Name: "session", Value: fmt.Sprintf("v%d", loginCount)})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		dataCount++
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "v2" {
			// The first session is treated as expired.
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, chartBody)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	snapshot, err := client.FetchData(context.Background())
	if err != nil {
		t.Fatalf("FetchData failed: %v", err)
	}
	if snapshot == nil || snapshot.WaterLiters != 1500 {
		t.Errorf("Expected retried payload's snapshot, got %+v", snapshot)
	}

	if loginCount != 2 {
		t.Errorf("Expected exactly 2 logins (initial + re-auth), got %d", loginCount)
	}
	if dataCount != 2 {
		t.Errorf("Expected exactly 2 data requests (original + retry), got %d", dataCount)
	}
}

func TestFetchData_TwoFailures_NoThirdAttempt(t *testing.T) {
	dataCount := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		dataCount++
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	_, err := client.FetchData(context.Background())
	if !errors.Is(err, bwt.ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", err)
	}
	if dataCount != 2 {
		t.Errorf("Expected exactly 2 data requests, got %d", dataCount)
	}
}

func TestFetchData_MissingDataset_MalformedResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"unexpected": true}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	if _, err := client.FetchData(context.Background()); !errors.Is(err, bwt.ErrMalformedResponse) {
		t.Errorf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestFetchData_NotJSON_MalformedResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	if _, err := client.FetchData(context.Background()); !errors.Is(err, bwt.ErrMalformedResponse) {
		t.Errorf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestFetchData_EmptyHistory_NilSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/device/ajaxChart", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dataset":{"online":true,"deviceDataHistory":{"codes":["date"],"lines":[]}}}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	defer client.Close()

	snapshot, err := client.FetchData(context.Background())
	if err != nil {
		t.Fatalf("Expected no error for empty history, got %v", err)
	}
	if snapshot != nil {
		t.Errorf("Expected nil snapshot for empty history, got %+v", snapshot)
	}
}
