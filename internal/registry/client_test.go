package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/stakeholder", func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("identity")
		if identity == "missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Stakeholder{
			Identity:   identity,
			Role:       RoleSupplier,
			IsVerified: identity != "shady",
		})
	})
	mux.HandleFunc("/chemical", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Chemical{
			ID:         r.URL.Query().Get("id"),
			Exists:     true,
			IsApproved: true,
		})
	})
	mux.HandleFunc("/chemical/delivered", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["id"] == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.Client(), srv.URL)
}

func TestClient_ResolveStakeholder(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	sh, err := client.ResolveStakeholder(ctx, "sup-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sh.Identity != "sup-1" || sh.Role != RoleSupplier || !sh.IsVerified {
		t.Fatalf("stakeholder=%+v", sh)
	}

	verified, err := client.IsVerified(ctx, "shady")
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if verified {
		t.Fatal("shady reported verified")
	}
}

func TestClient_ResolveStakeholder_APIError(t *testing.T) {
	_, client := newTestServer(t)

	_, err := client.ResolveStakeholder(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("status=%d want 404", apiErr.Status)
	}
}

func TestClient_GetChemical(t *testing.T) {
	_, client := newTestServer(t)

	chem, err := client.GetChemical(context.Background(), "chem-1")
	if err != nil {
		t.Fatalf("get chemical: %v", err)
	}
	if chem.ID != "chem-1" || !chem.Exists || !chem.IsApproved {
		t.Fatalf("chemical=%+v", chem)
	}
}

func TestClient_MarkChemicalDelivered(t *testing.T) {
	_, client := newTestServer(t)

	if err := client.MarkChemicalDelivered(context.Background(), "chem-1"); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if err := client.MarkChemicalDelivered(context.Background(), ""); err == nil {
		t.Fatal("empty id accepted")
	}
}

func TestClient_Ping(t *testing.T) {
	srv, client := newTestServer(t)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	srv.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("ping succeeded against closed server")
	}
}
