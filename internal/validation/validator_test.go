package validation

import (
	"context"
	"errors"
	"iter"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-validator/internal/document"
	"github.com/spigell/cv-validator/internal/metrics"
)

type stubDocument struct {
	pages   []string
	pageErr error
	panics  bool
	closed  *int
}

func (d *stubDocument) Pages() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if d.panics {
			panic("corrupt xref table")
		}
		for _, page := range d.pages {
			if !yield(page, nil) {
				return
			}
		}
		if d.pageErr != nil {
			yield("", d.pageErr)
		}
	}
}

func (d *stubDocument) Close() error {
	*d.closed++
	return nil
}

type stubExtractor struct {
	pages   []string
	openErr error
	pageErr error
	panics  bool

	opened int
	closed int
}

func (s *stubExtractor) Open(_ context.Context, _ string) (document.Document, error) {
	s.opened++
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &stubDocument{pages: s.pages, pageErr: s.pageErr, panics: s.panics, closed: &s.closed}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []*Result
	err     error
}

func (n *recordingNotifier) Deliver(_ context.Context, result *Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, result)
	return n.err
}

func TestValidateScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pages      []string
		claims     Claims
		status     Status
		mismatches map[string]Mismatch
	}{
		{
			name:   "claim absent from the document",
			pages:  []string{"Jane Doe, Software Engineer, 5 years experience"},
			claims: Claims{"name": "Jane Doe", "role": "Manager"},
			status: StatusFailed,
			mismatches: map[string]Mismatch{
				"role": {Expected: "Manager", Found: NotFound},
			},
		},
		{
			name:       "empty claims",
			pages:      []string{"Jane Doe"},
			claims:     Claims{},
			status:     StatusSuccess,
			mismatches: map[string]Mismatch{},
		},
		{
			name:       "all claims across pages",
			pages:      []string{"Jane Doe", "jane@example.com", "Go, Kubernetes"},
			claims:     Claims{"fullName": "jane doe", "email": "JANE@EXAMPLE.COM", "skill": "kubernetes"},
			status:     StatusSuccess,
			mismatches: map[string]Mismatch{},
		},
		{
			name:   "pages do not merge into new words",
			pages:  []string{"Jane", "Doe"},
			claims: Claims{"fullName": "JaneDoe"},
			status: StatusFailed,
			mismatches: map[string]Mismatch{
				"fullName": {Expected: "JaneDoe", Found: NotFound},
			},
		},
		{
			name:   "list claim is checked like any other field",
			pages:  []string{"John Doe john@x.io Go Python"},
			claims: Claims{"fullName": "John Doe", "email": "nobody@x.io", "skills": []any{"Go", "Python"}},
			status: StatusFailed,
			mismatches: map[string]Mismatch{
				"email":  {Expected: "nobody@x.io", Found: NotFound},
				"skills": {Expected: []any{"Go", "Python"}, Found: NotFound},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			extractor := &stubExtractor{pages: tt.pages}
			notifier := &recordingNotifier{}
			v := New(extractor, notifier, zap.NewNop(), nil)

			result, err := v.Validate(context.Background(), "sub-1", "uploads/sub-1.pdf", tt.claims)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.SubmissionID != "sub-1" {
				t.Fatalf("expected submission id echoed, got %q", result.SubmissionID)
			}
			if result.Status != tt.status {
				t.Fatalf("expected status %s, got %s", tt.status, result.Status)
			}
			if result.Err != nil {
				t.Fatalf("unexpected result error: %v", result.Err)
			}
			if !reflect.DeepEqual(result.Mismatches, tt.mismatches) {
				t.Fatalf("expected mismatches %+v, got %+v", tt.mismatches, result.Mismatches)
			}
			if len(notifier.results) != 1 || notifier.results[0] != result {
				t.Fatalf("expected exactly one delivery of the result, got %d", len(notifier.results))
			}
			if extractor.closed != 1 {
				t.Fatalf("expected document to be closed once, got %d", extractor.closed)
			}
		})
	}
}

func TestValidateDocumentFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		extractor *stubExtractor
		claims    Claims
		wantErr   string
		closed    int
	}{
		{
			name:      "document missing",
			extractor: &stubExtractor{openErr: document.ErrNotFound},
			claims:    Claims{"name": "Jane Doe"},
			wantErr:   "document not found",
			closed:    0,
		},
		{
			name:      "extraction fails midway",
			extractor: &stubExtractor{pages: []string{"Jane"}, pageErr: errors.New("malformed page 2")},
			claims:    Claims{"name": "Jane"},
			wantErr:   "malformed page 2",
			closed:    1,
		},
		{
			name:      "extraction panics",
			extractor: &stubExtractor{panics: true},
			claims:    Claims{"name": "Jane"},
			wantErr:   "corrupt xref table",
			closed:    1,
		},
		{
			name:      "empty claims still need a readable document",
			extractor: &stubExtractor{openErr: document.ErrNotFound},
			claims:    Claims{},
			wantErr:   "document not found",
			closed:    0,
		},
		{
			name:      "claim without string form",
			extractor: &stubExtractor{pages: []string{"Go Python"}},
			claims:    Claims{"hook": func() {}},
			wantErr:   `claim "hook"`,
			closed:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			notifier := &recordingNotifier{}
			v := New(tt.extractor, notifier, nil, nil)

			result, err := v.Validate(context.Background(), "sub-2", "uploads/sub-2.pdf", tt.claims)
			if err != nil {
				t.Fatalf("document failures must not be returned, got %v", err)
			}

			if result.Status != StatusFailed {
				t.Fatalf("expected FAILED, got %s", result.Status)
			}

			payload := result.MismatchPayload()
			if len(payload) != 1 {
				t.Fatalf("expected a single error entry, got %+v", payload)
			}
			msg, ok := payload[ErrorKey].(string)
			if !ok || msg == "" {
				t.Fatalf("expected non-empty error description, got %#v", payload[ErrorKey])
			}
			if !strings.Contains(msg, tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, msg)
			}

			if len(notifier.results) != 1 {
				t.Fatalf("expected error result to be delivered once, got %d", len(notifier.results))
			}
			if tt.extractor.closed != tt.closed {
				t.Fatalf("expected document closed %d times, got %d", tt.closed, tt.extractor.closed)
			}
		})
	}
}

func TestValidateWrapsDocumentAccessErrors(t *testing.T) {
	t.Parallel()

	v := New(&stubExtractor{openErr: document.ErrNotFound}, &recordingNotifier{}, nil, nil)

	result := v.Check(context.Background(), "sub", "missing.pdf", Claims{})

	var accessErr *DocumentAccessError
	if !errors.As(result.Err, &accessErr) {
		t.Fatalf("expected DocumentAccessError, got %T", result.Err)
	}
	if accessErr.Ref != "missing.pdf" {
		t.Fatalf("expected reference in error, got %q", accessErr.Ref)
	}
	if !errors.Is(result.Err, document.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound")
	}
}

func TestValidateReturnsDeliveryError(t *testing.T) {
	t.Parallel()

	deliveryErr := errors.New("connection refused")
	notifier := &recordingNotifier{err: deliveryErr}
	v := New(&stubExtractor{pages: []string{"Jane Doe"}}, notifier, nil, nil)

	result, err := v.Validate(context.Background(), "sub-3", "cv.pdf", Claims{"name": "Jane Doe"})
	if !errors.Is(err, deliveryErr) {
		t.Fatalf("expected delivery error, got %v", err)
	}

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DeliveryError, got %T", err)
	}
	if de.Result != result || result.Status != StatusSuccess {
		t.Fatalf("expected the successful result to be attached")
	}
	if len(notifier.results) != 1 {
		t.Fatalf("expected a single delivery attempt, got %d", len(notifier.results))
	}
}

func TestValidateRejectsMissingSubmissionID(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{pages: []string{"Jane Doe"}}
	notifier := &recordingNotifier{}

	_, err := New(extractor, notifier, nil, nil).Validate(context.Background(), "  ", "cv.pdf", Claims{})
	if !errors.Is(err, ErrMissingSubmissionID) {
		t.Fatalf("expected ErrMissingSubmissionID, got %v", err)
	}
	if extractor.opened != 0 || len(notifier.results) != 0 {
		t.Fatalf("expected no work for a rejected submission")
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{pages: []string{"Jane Doe, Software Engineer"}}
	notifier := &recordingNotifier{}
	v := New(extractor, notifier, nil, nil)
	claims := Claims{"name": "Jane Doe", "role": "Manager", "years": 5}

	first, err := v.Validate(context.Background(), "sub", "cv.pdf", claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := v.Validate(context.Background(), "sub", "cv.pdf", claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestValidateRecordsMetricsAndLogs(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())

	v := New(&stubExtractor{pages: []string{"Jane Doe"}}, &recordingNotifier{}, zap.New(core), m)
	if _, err := v.Validate(context.Background(), "sub-5", "cv.pdf", Claims{"name": "Jane Doe", "role": "Manager"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("FAILED")); got != 1 {
		t.Fatalf("expected 1 failed validation, got %v", got)
	}
	if got := testutil.ToFloat64(m.FieldMismatches); got != 1 {
		t.Fatalf("expected 1 field mismatch, got %v", got)
	}

	completed := observed.FilterMessage("validation completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected one completion log, got %d", len(completed))
	}
	ctx := completed[0].ContextMap()
	if ctx["submission_id"] != "sub-5" {
		t.Fatalf("expected submission id in log, got %v", ctx["submission_id"])
	}

	v = New(&stubExtractor{openErr: document.ErrNotFound}, &recordingNotifier{}, zap.New(core), m)
	if _, err := v.Validate(context.Background(), "sub-6", "missing.pdf", Claims{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("not_found")); got != 1 {
		t.Fatalf("expected 1 not_found failure, got %v", got)
	}
}

func TestNotifiersDeliverToAll(t *testing.T) {
	t.Parallel()

	first := &recordingNotifier{err: errors.New("callback down")}
	second := &recordingNotifier{}

	result := newResult("sub", nil)
	err := Notifiers{first, second}.Deliver(context.Background(), result)
	if err == nil || !strings.Contains(err.Error(), "callback down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(first.results) != 1 || len(second.results) != 1 {
		t.Fatalf("expected both notifiers to receive the result")
	}

	if err := (Notifiers{}).Deliver(context.Background(), result); err != nil {
		t.Fatalf("expected nil error for no notifiers, got %v", err)
	}
}

func TestBestEffortSwallowsErrors(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	callback := &recordingNotifier{}
	kafka := &recordingNotifier{err: errors.New("broker unavailable")}

	notifier := Notifiers{callback, BestEffort("kafka", kafka, zap.New(core))}
	v := New(&stubExtractor{pages: []string{"Jane Doe"}}, notifier, nil, nil)

	result, err := v.Validate(context.Background(), "sub-5", "cv.pdf", Claims{"name": "Jane Doe"})
	if err != nil {
		t.Fatalf("a failed best-effort notifier must not fail the delivery, got %v", err)
	}
	if len(callback.results) != 1 || len(kafka.results) != 1 || kafka.results[0] != result {
		t.Fatalf("expected both notifiers to receive the result")
	}

	logs := observed.FilterMessage("best-effort delivery failed").All()
	if len(logs) != 1 {
		t.Fatalf("expected one warning, got %d", len(logs))
	}
	if logs[0].ContextMap()["notifier"] != "kafka" {
		t.Fatalf("expected notifier field, got %+v", logs[0].ContextMap())
	}
}

func TestBestEffortKeepsPrimaryErrors(t *testing.T) {
	t.Parallel()

	callback := &recordingNotifier{err: errors.New("connection refused")}
	notifier := Notifiers{callback, BestEffort("kafka", &recordingNotifier{}, nil)}

	_, err := New(&stubExtractor{pages: []string{"Jane"}}, notifier, nil, nil).
		Validate(context.Background(), "sub-6", "cv.pdf", Claims{})

	var de *DeliveryError
	if !errors.As(err, &de) || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected callback failure as DeliveryError, got %v", err)
	}
}
