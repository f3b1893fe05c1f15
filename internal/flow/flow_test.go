package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/studiowebux/restflow/internal/executor"
	"github.com/studiowebux/restflow/internal/parser"
	"github.com/studiowebux/restflow/internal/runner"
	"github.com/studiowebux/restflow/internal/types"
)

type memoryStore struct {
	flows    map[string]*types.Flow
	requests map[string]*types.Request
	envs     map[string]*types.Environment
	cols     map[string]*types.Collection
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		flows:    map[string]*types.Flow{},
		requests: map[string]*types.Request{},
		envs:     map[string]*types.Environment{},
		cols:     map[string]*types.Collection{},
	}
}

func (s *memoryStore) GetFlow(id string) (*types.Flow, error) {
	if f, ok := s.flows[id]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("flow %q: %w", id, types.ErrNotFound)
}

func (s *memoryStore) GetRequest(id string) (*types.Request, error) {
	if r, ok := s.requests[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("request %q: %w", id, types.ErrNotFound)
}

func (s *memoryStore) GetEnvironment(id string) (*types.Environment, error) {
	if e, ok := s.envs[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("environment %q: %w", id, types.ErrNotFound)
}

func (s *memoryStore) GetCollection(id string) (*types.Collection, error) {
	if c, ok := s.cols[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collection %q: %w", id, types.ErrNotFound)
}

// scriptedDispatcher answers by resolved URL
type scriptedDispatcher struct {
	status map[string]int
	body   map[string]string
	seen   []*types.Request
	onCall func(n int)
}

func (d *scriptedDispatcher) Execute(_ context.Context, req *types.Request) (*types.RequestResponse, error) {
	d.seen = append(d.seen, req)
	if d.onCall != nil {
		d.onCall(len(d.seen))
	}
	code, ok := d.status[req.URL]
	if !ok {
		code = http.StatusOK
	}
	return &types.RequestResponse{
		StatusCode:    code,
		StatusMessage: http.StatusText(code),
		Body:          d.body[req.URL],
		SentRequest:   &types.SentRequest{URL: req.URL, Method: req.Method},
	}, nil
}

type countingGenerator struct{ n int }

func (g *countingGenerator) GenerateValue(v types.DynamicVariable) string {
	g.n++
	return fmt.Sprintf("%s-%d", v.Name, g.n)
}

func (g *countingGenerator) ValidateConfiguration(types.DynamicVariable) bool { return true }

func addRequest(s *memoryStore, id, url string) {
	s.requests[id] = &types.Request{ID: id, Name: id, Kind: types.KindRest, Method: "GET", URL: url}
}

func newOrchestrator(s *memoryStore, d runner.Dispatcher, opts ...Option) *Orchestrator {
	r := runner.New(parser.NewVariableResolver(&countingGenerator{}), d, s, s)
	opts = append([]Option{WithIDFunc(func() string { return "run-1" })}, opts...)
	return New(s, s, r, opts...)
}

func step(order int, requestID string, continueOnError bool) types.FlowStep {
	return types.FlowStep{Order: order, RequestID: requestID, Enabled: true, ContinueOnError: continueOnError}
}

func statuses(res *types.FlowExecutionResult) []types.StepStatus {
	var out []types.StepStatus
	for _, sr := range res.StepResults {
		out = append(out, sr.Status)
	}
	return out
}

func TestRun_FailureStopsFlow(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "ok1", "http://api/ok1")
	addRequest(s, "bad", "http://api/bad")
	addRequest(s, "ok2", "http://api/ok2")
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{
		step(1, "ok1", false),
		step(2, "bad", false),
		step(3, "ok2", false),
	}}
	d := &scriptedDispatcher{status: map[string]int{"http://api/bad": 500}}

	res, err := newOrchestrator(s, d).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != types.FlowFailed {
		t.Errorf("expected Failed, got %s", res.Status)
	}
	got := statuses(res)
	if len(got) != 2 || got[0] != types.StepSuccess || got[1] != types.StepFailed {
		t.Errorf("expected [success failed], got %v", got)
	}
	if len(d.seen) != 2 {
		t.Errorf("third step must never run, dispatched %d", len(d.seen))
	}
	if res.Error == "" || !strings.Contains(res.StepResults[1].Error, "500") {
		t.Errorf("expected error mentioning status, got run %q step %q", res.Error, res.StepResults[1].Error)
	}
	if res.RunID != "run-1" || res.FlowID != "f" || res.CompletedAt == nil {
		t.Errorf("unexpected run metadata %+v", res)
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "bad", "http://api/bad")
	addRequest(s, "ok", "http://api/ok")
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{
		step(1, "bad", true),
		step(2, "ok", false),
	}}
	d := &scriptedDispatcher{status: map[string]int{"http://api/bad": 503}}

	res, err := newOrchestrator(s, d).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != types.FlowCompleted || res.Error != "" {
		t.Errorf("expected Completed without error, got %s %q", res.Status, res.Error)
	}
	got := statuses(res)
	if len(got) != 2 || got[0] != types.StepFailedContinued || got[1] != types.StepSuccess {
		t.Errorf("expected [failed_continued success], got %v", got)
	}
	if res.StepResults[0].Response == nil || res.StepResults[0].Response.StatusCode != 503 {
		t.Error("continued failure should keep its response")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	s := newMemoryStore()
	var steps []types.FlowStep
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("r%d", i)
		addRequest(s, id, "http://api/"+id)
		steps = append(steps, step(i, id, false))
	}
	s.flows["f"] = &types.Flow{ID: "f", Steps: steps}
	d := &scriptedDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newOrchestrator(s, d).Run(ctx, "f", "")
	if err != nil {
		t.Fatalf("cancellation is not an error: %v", err)
	}
	if res.Status != types.FlowCancelled || len(res.StepResults) != 0 || len(d.seen) != 0 {
		t.Errorf("expected Cancelled with no steps, got %s with %d results", res.Status, len(res.StepResults))
	}
}

func TestRun_CancelledBetweenSteps(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "a", "http://api/a")
	addRequest(s, "b", "http://api/b")
	addRequest(s, "c", "http://api/c")
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{step(1, "a", false), step(2, "b", false), step(3, "c", false)}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &scriptedDispatcher{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	res, err := newOrchestrator(s, d).Run(ctx, "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.FlowCancelled {
		t.Errorf("expected Cancelled, got %s", res.Status)
	}
	if got := statuses(res); len(got) != 2 || got[1] != types.StepSuccess {
		t.Errorf("expected the in-flight step to finish and nothing after, got %v", got)
	}
}

func TestRun_SkipsDisabledAndOrdersSteps(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "first", "http://api/first")
	addRequest(s, "second", "http://api/second")
	addRequest(s, "third", "http://api/third")
	disabled := step(2, "second", false)
	disabled.Enabled = false
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{step(30, "third", false), disabled, step(1, "first", false)}}
	d := &scriptedDispatcher{}

	var observed []int
	res, err := newOrchestrator(s, d, WithObserver(func(r types.FlowStepResult) {
		observed = append(observed, r.Order)
	})).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != types.FlowCompleted {
		t.Errorf("expected Completed, got %s", res.Status)
	}
	var orders []int
	for _, sr := range res.StepResults {
		orders = append(orders, sr.Order)
	}
	if fmt.Sprint(orders) != "[1 2 30]" || fmt.Sprint(observed) != "[1 2 30]" {
		t.Errorf("expected ascending order, got results %v observed %v", orders, observed)
	}
	if res.StepResults[1].Status != types.StepSkipped || res.StepResults[1].Response != nil {
		t.Errorf("expected skipped step without response, got %+v", res.StepResults[1])
	}
	if len(d.seen) != 2 {
		t.Errorf("disabled step must not execute, dispatched %d", len(d.seen))
	}
}

func TestRun_MissingRequestIsStepFailure(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "ok", "http://api/ok")
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{step(1, "ghost", true), step(2, "ok", false)}}

	res, err := newOrchestrator(s, &scriptedDispatcher{}).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := statuses(res); len(got) != 2 || got[0] != types.StepFailedContinued {
		t.Errorf("expected missing request to be a continued failure, got %v", got)
	}
	if res.StepResults[0].RequestName != "ghost" {
		t.Errorf("expected request id as name, got %q", res.StepResults[0].RequestName)
	}
}

func TestRun_LookupErrors(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "ok", "http://api/ok")
	s.flows["dup"] = &types.Flow{ID: "dup", Steps: []types.FlowStep{step(1, "ok", false), step(1, "ok", false)}}
	s.flows["f"] = &types.Flow{ID: "f", EnvironmentID: "gone", Steps: []types.FlowStep{step(1, "ok", false)}}
	o := newOrchestrator(s, &scriptedDispatcher{})

	if _, err := o.Run(context.Background(), "unknown", ""); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown flow, got %v", err)
	}
	if _, err := o.Run(context.Background(), "dup", ""); !errors.Is(err, types.ErrInvalidFlow) {
		t.Errorf("expected ErrInvalidFlow, got %v", err)
	}
	if _, err := o.Run(context.Background(), "f", ""); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown environment, got %v", err)
	}
}

func TestRun_DynamicValuesSharedAcrossSteps(t *testing.T) {
	s := newMemoryStore()
	s.envs["dev"] = &types.Environment{
		ID:               "dev",
		Variables:        map[string]string{"base": "http://api"},
		DynamicVariables: []types.DynamicVariable{{Name: "orderId", Type: types.GenUUID}},
	}
	addRequest(s, "create", "{{base}}/orders/{{orderId}}")
	addRequest(s, "fetch", "{{base}}/orders/{{orderId}}?again=1")
	s.flows["f"] = &types.Flow{ID: "f", EnvironmentID: "dev", Steps: []types.FlowStep{step(1, "create", false), step(2, "fetch", false)}}
	d := &scriptedDispatcher{}
	o := newOrchestrator(s, d)

	if _, err := o.Run(context.Background(), "f", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.seen[0].URL != "http://api/orders/orderId-1" || d.seen[1].URL != "http://api/orders/orderId-1?again=1" {
		t.Errorf("expected one value per run, got %q and %q", d.seen[0].URL, d.seen[1].URL)
	}

	if _, err := o.Run(context.Background(), "f", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.seen[2].URL != "http://api/orders/orderId-2" {
		t.Errorf("expected a fresh value for a new run, got %q", d.seen[2].URL)
	}
}

func TestRun_ExtractionFeedsLaterSteps(t *testing.T) {
	s := newMemoryStore()
	s.envs["dev"] = &types.Environment{ID: "dev", Variables: map[string]string{"base": "http://api"}}
	s.cols["shop"] = &types.Collection{ID: "shop", Variables: map[string]string{}}
	addRequest(s, "login", "{{base}}/login")
	addRequest(s, "cart", "{{base}}/carts/{{cartId}}?token={{token}}")
	s.requests["cart"].CollectionID = "shop"

	login := step(1, "login", false)
	login.Extract = map[string]string{"token": "auth.token"}
	cart := step(2, "cart", false)
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{login, cart}}

	d := &scriptedDispatcher{body: map[string]string{"http://api/login": `{"auth":{"token":"abc"}}`}}

	res, err := newOrchestrator(s, d).Run(context.Background(), "f", "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.FlowCompleted {
		t.Fatalf("expected Completed, got %s (%s)", res.Status, res.Error)
	}
	if d.seen[1].URL != "http://api/carts/{{cartId}}?token=abc" {
		t.Errorf("expected extracted token in later step, got %q", d.seen[1].URL)
	}
	if _, ok := s.envs["dev"].Variables["token"]; ok {
		t.Error("stored environment must not be modified by a run")
	}
}

func TestRun_ExtractionWithoutEnvironment(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "login", "http://api/login")
	addRequest(s, "me", "http://api/me?token={{token}}")

	login := step(1, "login", false)
	login.Extract = map[string]string{"token": "auth.token"}
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{login, step(2, "me", false)}}

	d := &scriptedDispatcher{body: map[string]string{"http://api/login": `{"auth":{"token":"abc"}}`}}

	res, err := newOrchestrator(s, d).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.FlowCompleted {
		t.Fatalf("expected Completed, got %s (%s)", res.Status, res.Error)
	}
	if d.seen[1].URL != "http://api/me?token=abc" {
		t.Errorf("expected extracted token without an environment, got %q", d.seen[1].URL)
	}
}

func TestRun_ExtractionToCollection(t *testing.T) {
	s := newMemoryStore()
	s.envs["dev"] = &types.Environment{ID: "dev", Variables: map[string]string{"id": "env-value"}}
	s.cols["shop"] = &types.Collection{ID: "shop"}
	addRequest(s, "create", "http://api/create")
	addRequest(s, "read", "http://api/items/{{id}}")
	s.requests["create"].CollectionID = "shop"
	s.requests["read"].CollectionID = "shop"

	create := step(1, "create", false)
	create.Extract = map[string]string{"id": "id"}
	create.SaveToCollection = true
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{create, step(2, "read", false)}}

	d := &scriptedDispatcher{body: map[string]string{"http://api/create": `{"id":42}`}}
	if _, err := newOrchestrator(s, d).Run(context.Background(), "f", "dev"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.seen[1].URL != "http://api/items/42" {
		t.Errorf("collection value should win over environment, got %q", d.seen[1].URL)
	}
	if s.cols["shop"].Variables != nil {
		t.Error("stored collection must not be modified by a run")
	}
}

func TestRun_ExtractionFailureIsStepFailure(t *testing.T) {
	s := newMemoryStore()
	addRequest(s, "html", "http://api/html")
	st := step(1, "html", false)
	st.Extract = map[string]string{"id": "id"}
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{st}}

	d := &scriptedDispatcher{body: map[string]string{"http://api/html": "<html></html>"}}
	res, err := newOrchestrator(s, d).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.FlowFailed || !strings.Contains(res.StepResults[0].Error, "not valid JSON") {
		t.Errorf("expected extraction failure, got %s %q", res.Status, res.StepResults[0].Error)
	}
}

func TestRun_UnsupportedProtocolIsStepFailure(t *testing.T) {
	s := newMemoryStore()
	s.requests["odd"] = &types.Request{ID: "odd", Kind: "grpc", URL: "grpc://x"}
	s.flows["f"] = &types.Flow{ID: "f", Steps: []types.FlowStep{step(1, "odd", false)}}

	transport, err := executor.NewTransport(executor.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	res, err := newOrchestrator(s, executor.NewDefaultDispatcher(transport)).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != types.FlowFailed || !strings.Contains(res.StepResults[0].Error, "grpc") {
		t.Errorf("expected failure naming the request type, got %s %q", res.Status, res.StepResults[0].Error)
	}
}

// TestRun_NotFoundResponseFailsFlow runs a real Rest request against a server answering 404
func TestRun_NotFoundResponseFailsFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := newMemoryStore()
	s.envs["local"] = &types.Environment{ID: "local", Variables: map[string]string{"API_URL": server.URL}}
	addRequest(s, "missing", "{{ API_URL }}/users/999")
	s.flows["f"] = &types.Flow{ID: "f", EnvironmentID: "local", Steps: []types.FlowStep{step(1, "missing", false)}}

	opts := executor.DefaultOptions()
	opts.RequestTimeout = 5 * time.Second
	transport, err := executor.NewTransport(opts)
	if err != nil {
		t.Fatal(err)
	}

	res, err := newOrchestrator(s, executor.NewDefaultDispatcher(transport)).Run(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.StepResults) != 1 {
		t.Fatalf("expected one step result, got %d", len(res.StepResults))
	}
	sr := res.StepResults[0]
	if sr.Status != types.StepFailed || !strings.Contains(sr.Error, "404") {
		t.Errorf("expected failed step mentioning 404, got %s %q", sr.Status, sr.Error)
	}
	if res.Status != types.FlowFailed || res.Error == "" {
		t.Errorf("expected failed run with error, got %s %q", res.Status, res.Error)
	}
	if sr.Response == nil || sr.Response.SentRequest.URL != server.URL+"/users/999" {
		t.Errorf("expected resolved URL in snapshot, got %+v", sr.Response)
	}
}
