package editor

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/clinicdesk/consult/internal/clinic"
	"github.com/clinicdesk/consult/internal/domain/prescription"
)

// fakeClinic records every collaborator call the session makes
type fakeClinic struct {
	mu            sync.Mutex
	autosaves     []map[string]string
	saved         [][]prescription.Item
	finalized     int
	finalizeForms []url.Values
	saveStatus    int

	templates        map[string]prescription.Template
	templateRefs     []prescription.TemplateRef
	symptomTemplates []prescription.SymptomTemplate
	searches         int
}

func newFakeClinic() *fakeClinic {
	return &fakeClinic{
		saveStatus: http.StatusOK,
		templates:  make(map[string]prescription.Template),
	}
}

func (f *fakeClinic) handler() http.Handler {
	// go1.21-compatible routing: method-prefixed ServeMux patterns and
	// r.PathValue require go1.22.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(path, "/autosave/"):
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			f.mu.Lock()
			f.autosaves = append(f.autosaves, payload)
			f.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && strings.HasPrefix(path, "/save_prescription/"):
			var body struct {
				Items []prescription.Item `json:"items"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.saved = append(f.saved, body.Items)
			status := f.saveStatus
			f.mu.Unlock()
			w.WriteHeader(status)
		case r.Method == http.MethodPost && strings.HasPrefix(path, "/finalize/"):
			r.ParseForm()
			f.mu.Lock()
			f.finalized++
			f.finalizeForms = append(f.finalizeForms, r.PostForm)
			f.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && path == "/templates/search":
			f.mu.Lock()
			f.searches++
			refs := f.templateRefs
			f.mu.Unlock()
			json.NewEncoder(w).Encode(refs)
		case r.Method == http.MethodGet && strings.HasPrefix(path, "/templates/"):
			id := strings.TrimPrefix(path, "/templates/")
			f.mu.Lock()
			tpl, ok := f.templates[id]
			f.mu.Unlock()
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(tpl)
		case r.Method == http.MethodPost && path == "/templates/save":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && path == "/symptom-templates/search":
			f.mu.Lock()
			f.searches++
			tpls := f.symptomTemplates
			f.mu.Unlock()
			json.NewEncoder(w).Encode(tpls)
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeClinic) autosaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.autosaves)
}

func (f *fakeClinic) lastAutosave() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.autosaves) == 0 {
		return nil
	}
	return f.autosaves[len(f.autosaves)-1]
}

func (f *fakeClinic) finalizeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized
}

func (f *fakeClinic) lastFinalizeForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.finalizeForms) == 0 {
		return nil
	}
	return f.finalizeForms[len(f.finalizeForms)-1]
}

func (f *fakeClinic) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func newTestSession(t *testing.T, f *fakeClinic, opts ...Option) *Session {
	t.Helper()

	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	client, err := clinic.New(clinic.Config{
		BaseURL:     srv.URL,
		AutosaveURL: srv.URL + "/autosave/appt-1",
	}, srv.Client(), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	s, err := New(Config{
		AppointmentID:    "appt-1",
		AutosaveInterval: 30 * time.Millisecond,
		SearchInterval:   20 * time.Millisecond,
	}, client, nil, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// settle waits out the debounce window plus in-flight sends
func settle(s *Session) {
	time.Sleep(120 * time.Millisecond)
	s.inflight.Wait()
}
