package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/fixture"
	"github.com/robmorgan/halofx/fx"
	"github.com/robmorgan/halofx/rhythm"
	"github.com/robmorgan/halofx/transaction"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func dimmerFixture(key string, u dmx.Universe, channel int) *fixture.Fixture {
	f := fixture.New(key, key, "generic")
	f.Sliders[fixture.PropertyDimmer] = fixture.NewSlider(fixture.NewBinding(u, channel))
	return f
}

func newTestServer(t *testing.T) (*Server, *fixture.Registry, map[dmx.Universe]*dmx.ChannelFadeEngine) {
	t.Helper()
	u, err := dmx.NewUniverse(0, 1)
	require.NoError(t, err)

	engines := map[dmx.Universe]*dmx.ChannelFadeEngine{u: dmx.NewChannelFadeEngine(time.Unix(0, 0))}
	registry := fixture.NewRegistry()
	registry.AddFixture(dimmerFixture("par1", u, 1))

	g := fixture.NewGroup[*fixture.Fixture]("pars")
	f, _ := registry.Fixture("par1")
	g.AddMember(f, fixture.MemberOptions{})
	registry.AddGroup(g)

	resolve := transaction.NewMapResolver(engines)
	engine := fx.New(registry, resolve)

	fakeClock := clocktesting.NewFakeClock(time.Unix(0, 0))
	clk := rhythm.New(120, fakeClock)

	s := NewServer(engine, registry, clk, engines)
	return s, registry, engines
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleClockStatus(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/fx/clock/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClockStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 120.0, resp.BPM)
}

func TestHandleSetBPM_RejectsOutOfRange(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/fx/clock/bpm", SetBPMRequest{BPM: -5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFxAdd_UnknownEffectTypeIs400(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/fx/add", EffectRequest{
		EffectType:   "NOT_A_REAL_EFFECT",
		FixtureKey:   "par1",
		PropertyName: fixture.PropertyDimmer,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFxAdd_UnknownFixtureIs404(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/fx/add", EffectRequest{
		EffectType:   "SINE_WAVE",
		FixtureKey:   "does-not-exist",
		PropertyName: fixture.PropertyDimmer,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFxAdd_ThenActiveListsIt(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/fx/add", EffectRequest{
		EffectType:   "SINE_WAVE",
		FixtureKey:   "par1",
		PropertyName: fixture.PropertyDimmer,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var added AddEffectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.NotZero(t, added.EffectID)

	rec = doRequest(t, s, http.MethodGet, "/fx/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var active []EffectDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
	require.Equal(t, "SINE_WAVE", active[0].EffectType)
	require.Equal(t, "FIXTURE", active[0].TargetKind)
}

func TestHandleFxLibrary_ListsKnownEffectTypes(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/fx/library", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []EffectTypeInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)
}

func TestHandleGroupsList(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var groups []GroupSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	require.Equal(t, "pars", groups[0].Name)
	require.Equal(t, 1, groups[0].MemberCount)
}

func TestHandleGroupFxAdd_UnknownGroupIs404(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/groups/does-not-exist/fx", EffectRequest{
		EffectType:   "SINE_WAVE",
		PropertyName: fixture.PropertyDimmer,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGroupFxAdd_ThenGroupActiveListsIt(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/groups/pars/fx", EffectRequest{
		EffectType:   "SINE_WAVE",
		PropertyName: fixture.PropertyDimmer,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/groups/pars/fx/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var active []GroupEffectDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
	require.Equal(t, "GROUP", active[0].TargetKind)
}

func TestHandleDistributionStrategies(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/groups/distribution-strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DistributionStrategiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Strategies, "LINEAR")
	require.Contains(t, resp.Strategies, "RANDOM")
}

func TestSampleMetrics_TransmitterErrorReflectsWiredTransmitters(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	s.SampleMetrics()
	require.Equal(t, 0.0, testutil.ToFloat64(s.metrics.TransmitterError), "no transmitters wired yet")

	u, err := dmx.NewUniverse(0, 1)
	require.NoError(t, err)
	transmitter, err := dmx.NewUniverseTransmitter(u, "127.0.0.1:6454", false, nil)
	require.NoError(t, err)

	s.SetTransmitters(map[dmx.Universe]*dmx.UniverseTransmitter{u: transmitter})
	s.SampleMetrics()
	require.Equal(t, 0.0, testutil.ToFloat64(s.metrics.TransmitterError), "freshly wired transmitter has no send errors yet")
}

func TestHandleFxClear_RemovesEverything(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/fx/add", EffectRequest{
		EffectType:   "SINE_WAVE",
		FixtureKey:   "par1",
		PropertyName: fixture.PropertyDimmer,
	})

	rec := doRequest(t, s, http.MethodPost, "/fx/clear", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/fx/active", nil)
	var active []EffectDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Empty(t, active)
}
