package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rfarias/atendebot/internal/domain"
	"github.com/rfarias/atendebot/internal/supervisor"
	"github.com/rfarias/atendebot/internal/transport"
)

type stubRepo struct {
	pingErr error
	trials  []*domain.TrialRecord
	refs    []*domain.ReferralRecord
}

func (s *stubRepo) GetSession(context.Context, string) (*domain.SessionRecord, error) {
	return nil, nil
}
func (s *stubRepo) UpsertSession(context.Context, *domain.SessionRecord) error    { return nil }
func (s *stubRepo) ListSessions(context.Context) ([]*domain.SessionRecord, error) { return nil, nil }
func (s *stubRepo) ClearSessions(context.Context) (int64, error)                  { return 0, nil }
func (s *stubRepo) GetTrial(context.Context, string) (*domain.TrialRecord, error) { return nil, nil }
func (s *stubRepo) UpsertTrial(context.Context, *domain.TrialRecord) error        { return nil }
func (s *stubRepo) ListTrials(context.Context) ([]*domain.TrialRecord, error)     { return s.trials, nil }
func (s *stubRepo) GetReferral(context.Context, string) (*domain.ReferralRecord, error) {
	return nil, nil
}
func (s *stubRepo) UpsertReferral(context.Context, *domain.ReferralRecord) error { return nil }
func (s *stubRepo) ListReferrals(context.Context) ([]*domain.ReferralRecord, error) {
	return s.refs, nil
}
func (s *stubRepo) AppendLog(context.Context, *domain.LogEntry) error { return nil }
func (s *stubRepo) Ping(context.Context) error                        { return s.pingErr }
func (s *stubRepo) Close() error                                      { return nil }

type stubTransport struct{ state transport.State }

func (s *stubTransport) Start(context.Context) error      { return nil }
func (s *stubTransport) Shutdown(context.Context) error   { return nil }
func (s *stubTransport) ConnectionState() transport.State { return s.state }
func (s *stubTransport) OnMessage(transport.Handler)      {}
func (s *stubTransport) Send(context.Context, string, string) error {
	return nil
}
func (s *stubTransport) SendMedia(context.Context, string, []byte, string, string) error {
	return nil
}

type stubPool struct{ n int }

func (s stubPool) Size() int { return s.n }

func TestHealthEndpoint(t *testing.T) {
	state := supervisor.NewProcessState()
	state.NoteReceived()
	state.NoteResponded()

	srv := NewServer(&stubRepo{}, &stubTransport{state: transport.StateConnected}, state, stubPool{n: 2})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Connection != "connected" {
		t.Errorf("body = %+v", body)
	}
	if body.Received != 1 || body.Responded != 1 || body.Workers != 2 {
		t.Errorf("counters = %+v", body)
	}
}

func TestHealthDegradedWhenStoreDown(t *testing.T) {
	srv := NewServer(&stubRepo{pingErr: errors.New("gone")}, &stubTransport{}, supervisor.NewProcessState(), stubPool{})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestStatsEndpointAggregates(t *testing.T) {
	repo := &stubRepo{
		trials: []*domain.TrialRecord{{TimesIssued: 2}, {TimesIssued: 1}},
		refs:   []*domain.ReferralRecord{{Count: 3}},
	}
	srv := NewServer(repo, &stubTransport{}, supervisor.NewProcessState(), stubPool{})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TrialUsers != 2 || body.TrialsIssued != 3 {
		t.Errorf("trials = %+v", body)
	}
	if body.Referrers != 1 || body.Referrals != 3 {
		t.Errorf("referrals = %+v", body)
	}
}
