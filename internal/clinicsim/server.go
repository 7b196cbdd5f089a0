// Package clinicsim is an in-memory clinic server for developing and
// testing the consultation editor without the real backend. It implements
// the editor's collaborator endpoints with the same wire contracts and
// lock semantics: partial saves accumulate per appointment, finalizing
// locks the record, and a locked record rejects further writes the way
// the production server does.
package clinicsim

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/domain/prescription"
)

// record is the server-side state of one appointment
type record struct {
	fields    map[string]string
	items     []prescription.Item
	finalText string
	finalized bool
	updatedAt time.Time
}

// Server holds the in-memory clinic state
type Server struct {
	logger *zap.Logger

	mu               sync.Mutex
	records          map[string]*record
	templates        map[string]prescription.Template
	symptomTemplates []prescription.SymptomTemplate
}

// New creates a simulator seeded with a few prescription and symptom
// templates so pickers have something to find
func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:    logger,
		records:   make(map[string]*record),
		templates: make(map[string]prescription.Template),
	}
	s.seed()
	return s
}

func (s *Server) seed() {
	for _, tpl := range []prescription.Template{
		{
			ID:   uuid.New().String(),
			Name: "Fever Standard",
			Items: []prescription.Item{
				{Medicine: "Paracetamol 650mg", Dose: "1-0-1", Days: "5", Notes: "After food"},
			},
		},
		{
			ID:   uuid.New().String(),
			Name: "Viral Infection",
			Items: []prescription.Item{
				{Medicine: "Dolo 650", Dose: "1-1-1", Days: "3"},
				{Medicine: "Cetirizine 10mg", Dose: "0-0-1", Days: "5"},
			},
		},
	} {
		s.templates[tpl.ID] = tpl
	}
	s.symptomTemplates = []prescription.SymptomTemplate{
		{Name: "Viral Fever", Content: "Fever, Body ache, Headache"},
		{Name: "Upper Respiratory", Content: "Cough, Cold, Sore throat"},
	}
}

// Routes returns the simulator's router with the standard middleware
// chain attached
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(CORS)
	r.Use(Recover(s.logger))
	r.Use(Logger(s.logger))
	r.Use(Tracing("clinic-sim"))

	r.Get("/health", s.health)
	r.Post("/autosave/{appt}", s.autosave)
	r.Post("/save_prescription/{appt}", s.savePrescription)
	r.Post("/finalize/{appt}", s.finalize)
	r.Get("/prescription/{appt}", s.document)
	r.Get("/templates/search", s.searchTemplates)
	r.Get("/templates/{id}", s.getTemplate)
	r.Post("/templates/save", s.saveTemplate)
	r.Get("/symptom-templates/search", s.searchSymptomTemplates)
	return r
}

// Finalized reports whether an appointment's record is locked
func (s *Server) Finalized(appointmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[appointmentID]
	return ok && rec.finalized
}

// Fields returns a copy of the accumulated partial-save fields
func (s *Server) Fields(appointmentID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[appointmentID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(rec.fields))
	for k, v := range rec.fields {
		out[k] = v
	}
	return out
}

func (s *Server) record(appointmentID string) *record {
	rec, ok := s.records[appointmentID]
	if !ok {
		rec = &record{fields: make(map[string]string)}
		s.records[appointmentID] = rec
	}
	return rec
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"clinic-sim"}`)
}

// autosave merges a sparse partial update into the appointment record.
// Writes to a finalized record are rejected with 409.
func (s *Server) autosave(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appt")

	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		s.jsonError(w, "empty payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	rec := s.record(appointmentID)
	if rec.finalized {
		s.mu.Unlock()
		s.jsonError(w, "consultation already finalized", http.StatusConflict)
		return
	}
	for k, v := range payload {
		rec.fields[k] = v
	}
	rec.updatedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("partial save",
		zap.String("appointment_id", appointmentID),
		zap.Int("fields", len(payload)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "saved"})
}

// savePrescription stores the structured items. A finalized record
// answers 403, which the editor treats as benign during finalize.
func (s *Server) savePrescription(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appt")

	var body struct {
		Items []prescription.Item `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	items := prescription.NormalizeItems(body.Items)
	if len(items) == 0 {
		s.jsonError(w, "at least one medicine is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	rec := s.record(appointmentID)
	if rec.finalized {
		s.mu.Unlock()
		s.jsonError(w, "prescription already finalized", http.StatusForbidden)
		return
	}
	rec.items = items
	rec.updatedAt = time.Now()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "saved", "count": len(items)})
}

// finalize locks the record and stores the submitted snapshot text
func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appt")

	if err := r.ParseForm(); err != nil {
		s.jsonError(w, "invalid form body", http.StatusBadRequest)
		return
	}
	snapshot := r.PostForm.Get("finalPrescription")

	s.mu.Lock()
	rec := s.record(appointmentID)
	if rec.finalized {
		s.mu.Unlock()
		s.jsonError(w, "consultation already finalized", http.StatusConflict)
		return
	}
	rec.finalized = true
	rec.finalText = snapshot
	rec.updatedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("consultation finalized",
		zap.String("appointment_id", appointmentID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "finalized",
		"document": "/prescription/" + appointmentID,
	})
}

// document serves the finalized prescription text
func (s *Server) document(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appt")

	s.mu.Lock()
	rec, ok := s.records[appointmentID]
	finalized := ok && rec.finalized
	var text string
	if finalized {
		text = rec.finalText
	}
	s.mu.Unlock()

	if !finalized {
		s.jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, text)
}

func (s *Server) searchTemplates(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	s.mu.Lock()
	refs := make([]prescription.TemplateRef, 0, len(s.templates))
	for _, tpl := range s.templates {
		if query == "" || strings.Contains(strings.ToLower(tpl.Name), query) {
			refs = append(refs, prescription.TemplateRef{ID: tpl.ID, Name: tpl.Name})
		}
	}
	s.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(refs)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	tpl, ok := s.templates[id]
	s.mu.Unlock()
	if !ok {
		s.jsonError(w, "template not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tpl)
}

func (s *Server) saveTemplate(w http.ResponseWriter, r *http.Request) {
	var req prescription.SaveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tpl := prescription.Template{
		ID:    uuid.New().String(),
		Name:  req.Name,
		Items: prescription.NormalizeItems(req.Items),
	}

	s.mu.Lock()
	s.templates[tpl.ID] = tpl
	s.mu.Unlock()

	s.logger.Info("template saved", zap.String("name", tpl.Name))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": tpl.ID})
}

func (s *Server) searchSymptomTemplates(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	s.mu.Lock()
	tpls := make([]prescription.SymptomTemplate, 0, len(s.symptomTemplates))
	for _, tpl := range s.symptomTemplates {
		if query == "" ||
			strings.Contains(strings.ToLower(tpl.Name), query) ||
			strings.Contains(strings.ToLower(tpl.Content), query) {
			tpls = append(tpls, tpl)
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tpls)
}

func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
