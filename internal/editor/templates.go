package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/domain/consultation"
	"github.com/clinicdesk/consult/internal/domain/prescription"
)

// ApplyTemplate fetches a prescription template by id and replaces the
// table rows with its items plus a trailing blank row
func (s *Session) ApplyTemplate(ctx context.Context, id string) error {
	tpl, err := s.client.FetchTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch template: %w", err)
	}

	s.mu.Lock()
	err = s.draft.ApplyTemplate(tpl.Items)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.TemplatesApplied.Inc()
	}
	s.edited()
	return nil
}

// SaveAsTemplate persists the current items, symptoms, and diagnosis under
// the given name. Validation failures block the save with no network call.
func (s *Session) SaveAsTemplate(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.draft.Locked() {
		s.mu.Unlock()
		return consultation.ErrLocked
	}
	req := &prescription.SaveTemplateRequest{
		Name:      strings.TrimSpace(name),
		Symptoms:  s.draft.TagJoin(consultation.FieldSymptoms),
		Diagnosis: s.draft.TagJoin(consultation.FieldDiagnosis),
		Items:     s.draft.Items(),
	}
	s.mu.Unlock()

	if err := req.Validate(); err != nil {
		return fmt.Errorf("template not saved: %w", err)
	}

	if err := s.client.SaveTemplate(ctx, req); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TemplatesSaved.Inc()
	}
	s.logger.Info("template saved", zap.String("name", req.Name))
	return nil
}

// SearchTemplates runs an immediate template search, bypassing the
// debounced picker. Line-oriented clients use this; keystroke-driven UIs
// should go through TemplatePicker instead.
func (s *Session) SearchTemplates(ctx context.Context, query string) ([]prescription.TemplateRef, error) {
	return s.client.SearchTemplates(ctx, query)
}

// ApplySymptomTemplate overwrites the symptoms field from a suggested
// template's joined content and arms the autosave channel
func (s *Session) ApplySymptomTemplate(tpl prescription.SymptomTemplate) error {
	return s.RebuildTags(consultation.FieldSymptoms, tpl.Content)
}

// TemplatePicker is a debounced searchable picker over prescription
// templates. SetQuery is called per keystroke; results arrive on the
// callback after the quiet window.
type TemplatePicker struct {
	session   *Session
	logger    *zap.Logger
	onResults func([]prescription.TemplateRef)

	mu    sync.Mutex
	query string
	deb   debouncer
}

// debouncer is the subset of pkg/debounce used by pickers
type debouncer interface {
	Trigger()
	Stop()
}

// NewTemplatePicker creates a picker delivering results to onResults
func (s *Session) NewTemplatePicker(onResults func([]prescription.TemplateRef)) (*TemplatePicker, error) {
	if onResults == nil {
		return nil, fmt.Errorf("results callback is required")
	}
	p := &TemplatePicker{
		session:   s,
		logger:    s.logger,
		onResults: onResults,
	}
	deb, err := s.newSearchDebouncer("template-search", p.fire)
	if err != nil {
		return nil, err
	}
	p.deb = deb
	return p, nil
}

// SetQuery updates the pending query. An empty query clears results
// immediately without a network call.
func (p *TemplatePicker) SetQuery(q string) {
	q = strings.TrimSpace(q)
	p.mu.Lock()
	p.query = q
	p.mu.Unlock()

	if q == "" {
		p.onResults(nil)
		return
	}
	p.deb.Trigger()
}

// Close cancels any pending search
func (p *TemplatePicker) Close() { p.deb.Stop() }

func (p *TemplatePicker) fire() {
	p.mu.Lock()
	q := p.query
	p.mu.Unlock()
	if q == "" {
		return
	}

	refs, err := p.session.client.SearchTemplates(context.Background(), q)
	if err != nil {
		p.logger.Debug("template search failed", zap.String("query", q), zap.Error(err))
		p.onResults(nil)
		return
	}
	p.onResults(refs)
}

// SymptomTemplatePicker is the debounced picker over symptom templates
type SymptomTemplatePicker struct {
	session   *Session
	logger    *zap.Logger
	onResults func([]prescription.SymptomTemplate)

	mu    sync.Mutex
	query string
	deb   debouncer
}

// NewSymptomTemplatePicker creates a picker delivering results to onResults
func (s *Session) NewSymptomTemplatePicker(onResults func([]prescription.SymptomTemplate)) (*SymptomTemplatePicker, error) {
	if onResults == nil {
		return nil, fmt.Errorf("results callback is required")
	}
	p := &SymptomTemplatePicker{
		session:   s,
		logger:    s.logger,
		onResults: onResults,
	}
	deb, err := s.newSearchDebouncer("symptom-search", p.fire)
	if err != nil {
		return nil, err
	}
	p.deb = deb
	return p, nil
}

// SetQuery updates the pending query, clearing results on empty input
func (p *SymptomTemplatePicker) SetQuery(q string) {
	q = strings.TrimSpace(q)
	p.mu.Lock()
	p.query = q
	p.mu.Unlock()

	if q == "" {
		p.onResults(nil)
		return
	}
	p.deb.Trigger()
}

// Close cancels any pending search
func (p *SymptomTemplatePicker) Close() { p.deb.Stop() }

func (p *SymptomTemplatePicker) fire() {
	p.mu.Lock()
	q := p.query
	p.mu.Unlock()
	if q == "" {
		return
	}

	tpls, err := p.session.client.SearchSymptomTemplates(context.Background(), q)
	if err != nil {
		p.logger.Debug("symptom template search failed", zap.String("query", q), zap.Error(err))
		p.onResults(nil)
		return
	}
	p.onResults(tpls)
}
