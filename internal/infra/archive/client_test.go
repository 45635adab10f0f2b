package archive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newArchiveServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	txs := make(map[string][]byte)
	byIdentifier := make(map[string]string)

	mux := http.NewServeMux()
	mux.HandleFunc("/tx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		txID := "tx-" + r.URL.Query().Get("id")
		txs[txID] = body
		byIdentifier[r.URL.Query().Get("id")] = txID
		_ = json.NewEncoder(w).Encode(map[string]string{"tx_id": txID})
	})
	mux.HandleFunc("/published", func(w http.ResponseWriter, r *http.Request) {
		txID, ok := byIdentifier[r.URL.Query().Get("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"published": true, "tx_id": txID})
	})
	mux.HandleFunc("/tx/", func(w http.ResponseWriter, r *http.Request) {
		txID := r.URL.Path[len("/tx/"):]
		payload, ok := txs[txID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(payload)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, txs
}

func TestClientPublishAndFetch(t *testing.T) {
	server, _ := newArchiveServer(t)
	client, err := NewClient(server.URL, "test-key", 5*time.Second, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	payload := []byte(`{"batch":1}`)
	txID, err := client.PublishTransaction(context.Background(), payload, "application/json", "batch-1-manifest")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if txID == "" {
		t.Fatalf("expected tx id")
	}

	published, err := client.IsPublished(context.Background(), "batch-1-manifest")
	if err != nil {
		t.Fatalf("is published: %v", err)
	}
	if !published {
		t.Fatalf("expected identifier to be published")
	}

	got, err := client.FetchByTxID(context.Background(), txID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected payload %s, got %s", payload, got)
	}
}

func TestClientUnknownIdentifier(t *testing.T) {
	server, _ := newArchiveServer(t)
	client, err := NewClient(server.URL, "test-key", 5*time.Second, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	published, err := client.IsPublished(context.Background(), "never-sent")
	if err != nil {
		t.Fatalf("is published: %v", err)
	}
	if published {
		t.Fatalf("expected unknown identifier to be unpublished")
	}

	got, err := client.FetchByTxID(context.Background(), "tx-missing")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil payload for missing tx")
	}
}

func TestClientRejectsBadCredentials(t *testing.T) {
	server, _ := newArchiveServer(t)
	client, err := NewClient(server.URL, "wrong-key", 5*time.Second, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.PublishTransaction(context.Background(), []byte("x"), "application/json", "batch-2-manifest"); err == nil {
		t.Fatalf("expected publish with bad credentials to fail")
	}
}

func TestClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  ", "", 0, nil); err == nil {
		t.Fatalf("expected missing base url to be rejected")
	}
}
