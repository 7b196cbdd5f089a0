package clinic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/clinicdesk/consult/internal/domain/prescription"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:     srv.URL,
		AutosaveURL: srv.URL + "/autosave/appt-1",
	}, srv.Client(), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestAutosavePostsSparseJSON(t *testing.T) {
	var got map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/autosave/appt-1", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})

	c, _ := newTestClient(t, mux)
	payload := map[string]string{"symptoms": "Fever,Cough", "bp": "120/80"}
	if err := c.Autosave(context.Background(), payload); err != nil {
		t.Fatalf("autosave: %v", err)
	}
	if got["symptoms"] != "Fever,Cough" || got["bp"] != "120/80" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestAutosaveWithoutEndpoint(t *testing.T) {
	c, err := New(Config{BaseURL: "http://clinic.local"}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Autosave(context.Background(), map[string]string{"x": "y"}); !errors.Is(err, ErrNoAutosaveEndpoint) {
		t.Errorf("expected ErrNoAutosaveEndpoint, got %v", err)
	}
}

func TestSavePrescriptionForbiddenMapsToAlreadyFinalized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/save_prescription/appt-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	c, _ := newTestClient(t, mux)
	err := c.SavePrescription(context.Background(), "appt-1", []prescription.Item{{Medicine: "Dolo 650"}})
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestSavePrescriptionServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/save_prescription/appt-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c, _ := newTestClient(t, mux)
	err := c.SavePrescription(context.Background(), "appt-1", []prescription.Item{{Medicine: "Dolo 650"}})
	if err == nil || errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("expected plain error, got %v", err)
	}
}

func TestFinalizeSubmitsForm(t *testing.T) {
	var gotText string
	mux := http.NewServeMux()
	mux.HandleFunc("/finalize/appt-1", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotText = r.PostFormValue("finalPrescription")
		w.WriteHeader(http.StatusOK)
	})

	c, _ := newTestClient(t, mux)
	form := url.Values{}
	form.Set("finalPrescription", "Dolo 650 | 1-1-1 | 3 days")
	if err := c.Finalize(context.Background(), "appt-1", form); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if gotText != "Dolo 650 | 1-1-1 | 3 days" {
		t.Errorf("unexpected snapshot %q", gotText)
	}
}

func TestSearchTemplates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/templates/search", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "fever" {
			t.Errorf("unexpected query %q", q)
		}
		json.NewEncoder(w).Encode([]prescription.TemplateRef{{ID: "t1", Name: "Fever Standard"}})
	})

	c, _ := newTestClient(t, mux)
	refs, err := c.SearchTemplates(context.Background(), "fever")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "Fever Standard" {
		t.Errorf("unexpected refs %+v", refs)
	}
}

func TestFetchTemplate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/templates/t1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(prescription.Template{
			Items: []prescription.Item{{Medicine: "Paracetamol 650mg", Dose: "1-0-1", Days: "5", Notes: "After food"}},
		})
	})

	c, _ := newTestClient(t, mux)
	tpl, err := c.FetchTemplate(context.Background(), "t1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(tpl.Items) != 1 || tpl.Items[0].Medicine != "Paracetamol 650mg" {
		t.Errorf("unexpected template %+v", tpl)
	}
}

func TestSearchSymptomTemplatesDegradesWhenCircuitOpen(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/symptom-templates/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c, _ := newTestClient(t, mux)

	// Drive the breaker open with consecutive failures, then expect the
	// fallback's empty result instead of an error.
	for i := 0; i < 3; i++ {
		c.SearchSymptomTemplates(context.Background(), "fev")
	}
	tpls, err := c.SearchSymptomTemplates(context.Background(), "fev")
	if err != nil {
		t.Fatalf("expected degraded result, got error %v", err)
	}
	if len(tpls) != 0 {
		t.Errorf("expected empty result, got %+v", tpls)
	}
}
