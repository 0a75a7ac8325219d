package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/fixture"
	"github.com/robmorgan/halofx/fx"
	"github.com/robmorgan/halofx/logging"
	"github.com/robmorgan/halofx/rhythm"
	"github.com/sirupsen/logrus"
)

// validateBPM rejects malformed BPM values before they reach MasterClock.
// MasterClock.SetBPM itself clamps out-of-range values to [20,300], so this only
// needs to catch values a clamp can't fix: non-positive, NaN, or infinite.
func validateBPM(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("api: invalid bpm %v", bpm)
	}
	return nil
}

// Server wires an FxEngine, its backing Registry, and a MasterClock to an
// HTTP surface implementing the REST endpoints and a WebSocket hub for push
// updates. It additionally remembers, per effect id, the wire effectType and
// distribution strategy name used to build that instance: FxInstance itself
// only carries the constructed effect.Effect/distribution.Strategy values,
// not the name they were built from, so the display-only reverse mapping
// lives here at the REST boundary instead of in the fx package.
type Server struct {
	engine       *fx.FxEngine
	registry     *fixture.Registry
	clock        *rhythm.MasterClock
	engines      map[dmx.Universe]*dmx.ChannelFadeEngine
	transmitters map[dmx.Universe]*dmx.UniverseTransmitter
	hub          *Hub
	log          *logrus.Entry
	metrics      *Metrics

	mu    sync.Mutex
	names map[uint64]effectMeta
}

type effectMeta struct {
	effectType   string
	distribution string
}

// NewServer returns a Server ready to be mounted via Routes.
func NewServer(engine *fx.FxEngine, registry *fixture.Registry, clk *rhythm.MasterClock, engines map[dmx.Universe]*dmx.ChannelFadeEngine) *Server {
	s := &Server{
		engine:   engine,
		registry: registry,
		clock:    clk,
		engines:  engines,
		log:      logging.GetProjectLogger().WithField("component", "api"),
		metrics:  NewMetrics(),
		names:    make(map[uint64]effectMeta),
	}
	s.hub = NewHub(s)
	return s
}

// SetTransmitters wires the UniverseTransmitters backing engines so direct
// channel writes made outside a ControllerTransaction (the WebSocket
// updateChannel path) can wake the affected universe's send loop immediately,
// and so SampleMetrics can report transmit error counts. Optional: without
// it, those writes still commit, but reach the wire only when the
// transmitter next sends for another reason (another wake-up, or its
// periodic refresh when that is enabled).
func (s *Server) SetTransmitters(transmitters map[dmx.Universe]*dmx.UniverseTransmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transmitters = transmitters
}

func (s *Server) requestTransmit(u dmx.Universe) {
	s.mu.Lock()
	t, ok := s.transmitters[u]
	s.mu.Unlock()
	if ok {
		t.RequestTransmit()
	}
}

func (s *Server) effectMeta(id uint64) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.names[id]
	if !ok {
		return "", ""
	}
	return m.effectType, m.distribution
}

func (s *Server) rememberEffect(id uint64, effectType, distributionName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[id] = effectMeta{effectType: effectType, distribution: distributionName}
}

func (s *Server) forgetEffect(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, id)
}

// Hub returns the WebSocket hub so callers can subscribe it to the
// MasterClock with AddClockListener.
func (s *Server) Hub() *Hub { return s.hub }

// Routes builds the chi router mounting every REST endpoint plus /metrics;
// /ws is served separately by WSRoutes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/fx", func(r chi.Router) {
		r.Get("/clock/status", s.handleClockStatus)
		r.Post("/clock/bpm", s.handleSetBPM)
		r.Post("/clock/tap", s.handleTapTempo)

		r.Get("/active", s.handleFxActive)
		r.Post("/add", s.handleFxAdd)
		r.Put("/{id}", s.handleFxUpdate)
		r.Delete("/{id}", s.handleFxDelete)
		r.Post("/{id}/pause", s.handleFxPause)
		r.Post("/{id}/resume", s.handleFxResume)
		r.Get("/fixture/{key}", s.handleFxByFixture)
		r.Delete("/fixture/{key}", s.handleFxDeleteByFixture)
		r.Post("/clear", s.handleFxClear)
		r.Get("/library", s.handleFxLibrary)
	})

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", s.handleGroupsList)
		r.Get("/distribution-strategies", s.handleDistributionStrategies)
		r.Get("/{name}", s.handleGroupDetail)
		r.Get("/{name}/properties", s.handleGroupProperties)
		r.Post("/{name}/fx", s.handleGroupFxAdd)
		r.Delete("/{name}/fx", s.handleGroupFxRemove)
		r.Get("/{name}/fx/active", s.handleGroupFxActive)
	})

	return r
}

// WSRoutes builds the chi router for the WebSocket listener, mounted
// separately on Config.WebSocketAddr so the REST and push surfaces can be
// bound to different addresses/ports.
func (s *Server) WSRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.hub.ServeHTTP)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Clock ---

func (s *Server) handleClockStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ClockStatusResponse{BPM: s.clock.BPM(), IsRunning: s.clock.IsRunning()})
}

func (s *Server) handleSetBPM(w http.ResponseWriter, r *http.Request) {
	var req SetBPMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateBPM(req.BPM); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.clock.SetBPM(req.BPM)
	s.hub.broadcastFxState()
	s.hub.broadcastBeatSync(-1)
	writeJSON(w, http.StatusOK, ClockStatusResponse{BPM: s.clock.BPM(), IsRunning: s.clock.IsRunning()})
}

func (s *Server) handleTapTempo(w http.ResponseWriter, r *http.Request) {
	s.clock.Tap(time.Now())
	writeJSON(w, http.StatusOK, ClockStatusResponse{BPM: s.clock.BPM(), IsRunning: s.clock.IsRunning()})
}

// --- Effects ---

func (s *Server) handleFxActive(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	out := make([]EffectDto, 0, len(snap))
	for _, inst := range snap {
		out = append(out, s.toEffectDto(inst))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) buildAddEffectRequest(body EffectRequest, target fx.TargetRef) (fx.AddEffectRequest, error) {
	eff, err := BuildEffect(body.EffectType, body.Parameters)
	if err != nil {
		return fx.AddEffectRequest{}, err
	}
	blend, err := fx.ParseBlendMode(normalizedEnum(body.BlendMode))
	if err != nil {
		return fx.AddEffectRequest{}, err
	}
	elementMode, err := fx.ParseElementMode(normalizedEnum(body.ElementMode))
	if err != nil {
		return fx.AddEffectRequest{}, err
	}
	dist, err := BuildDistribution(body.DistributionStrategy, body.Parameters)
	if err != nil {
		return fx.AddEffectRequest{}, err
	}
	return fx.AddEffectRequest{
		Effect:       eff,
		Target:       target,
		Property:     body.PropertyName,
		BeatDivision: body.beatDivision(),
		BlendMode:    blend,
		Timing:       fx.Timing{StartOnBeat: body.startOnBeat()},
		PhaseOffset:  body.PhaseOffset,
		Distribution: dist,
		StepTiming:   body.StepTiming,
		ElementMode:  elementMode,
	}, nil
}

func normalizedEnum(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func (s *Server) handleFxAdd(w http.ResponseWriter, r *http.Request) {
	var body EffectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.FixtureKey == "" {
		writeError(w, http.StatusBadRequest, errors.New("api: fixtureKey is required"))
		return
	}
	req, err := s.buildAddEffectRequest(body, fx.FixtureRef(body.FixtureKey))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.engine.AddEffect(req)
	if err != nil {
		s.log.WithError(err).WithField("fixtureKey", body.FixtureKey).Debug("fx/add rejected")
		writeError(w, statusForTargetError(err), err)
		return
	}
	s.rememberEffect(id, strings.ToUpper(body.EffectType), strings.ToUpper(body.DistributionStrategy))
	s.hub.broadcastFxChanged("added", id)
	writeJSON(w, http.StatusOK, AddEffectResponse{EffectID: id})
}

func (s *Server) handleFxUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body EffectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target := fx.FixtureRef(body.FixtureKey)
	if body.FixtureKey == "" {
		writeError(w, http.StatusBadRequest, errors.New("api: fixtureKey is required"))
		return
	}
	req, err := s.buildAddEffectRequest(body, target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.UpdateEffect(id, req); err != nil {
		writeError(w, statusForUpdateError(err), err)
		return
	}
	s.rememberEffect(id, strings.ToUpper(body.EffectType), strings.ToUpper(body.DistributionStrategy))
	s.hub.broadcastFxChanged("updated", id)

	inst := findInstance(s.engine.Snapshot(), id)
	writeJSON(w, http.StatusOK, s.toEffectDto(inst))
}

func (s *Server) handleFxDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.RemoveEffect(id)
	s.forgetEffect(id)
	s.hub.broadcastFxChanged("removed", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFxPause(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Pause(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.hub.broadcastFxChanged("paused", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFxResume(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Resume(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.hub.broadcastFxChanged("resumed", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFxByFixture(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	all := s.engine.GetEffectsForFixture(key)
	var direct, indirect []EffectDto
	for _, inst := range all {
		dto := s.toEffectDto(inst)
		if inst.Target.Kind == fx.FixtureTarget {
			direct = append(direct, dto)
		} else {
			indirect = append(indirect, dto)
		}
	}
	writeJSON(w, http.StatusOK, FixtureEffectsResponse{Direct: direct, Indirect: indirect})
}

func (s *Server) handleFxDeleteByFixture(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	removed := s.engine.RemoveEffectsForFixture(key)
	s.hub.broadcastFxChanged("removed", 0)
	writeJSON(w, http.StatusOK, RemovedCountResponse{RemovedCount: removed})
}

func (s *Server) handleFxClear(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearAll()
	s.mu.Lock()
	s.names = make(map[uint64]effectMeta)
	s.mu.Unlock()
	s.hub.broadcastFxChanged("cleared", 0)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFxLibrary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Library())
}

// --- Groups ---

func (s *Server) handleGroupsList(w http.ResponseWriter, r *http.Request) {
	names := s.registry.GroupNames()
	out := make([]GroupSummary, 0, len(names))
	for _, name := range names {
		g, ok := s.registry.Group(name)
		if !ok {
			continue
		}
		out = append(out, groupSummary(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGroupDetail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	g, ok := s.registry.Group(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("api: unknown group"))
		return
	}
	writeJSON(w, http.StatusOK, groupDetail(g))
}

func (s *Server) handleGroupProperties(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	g, ok := s.registry.Group(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("api: unknown group"))
		return
	}
	writeJSON(w, http.StatusOK, sharedProperties(g))
}

func (s *Server) handleGroupFxAdd(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.registry.Group(name); !ok {
		writeError(w, http.StatusNotFound, errors.New("api: unknown group"))
		return
	}
	var body AddGroupFxRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := s.buildAddEffectRequest(body, fx.GroupRef(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.engine.AddEffect(req)
	if err != nil {
		writeError(w, statusForTargetError(err), err)
		return
	}
	s.rememberEffect(id, strings.ToUpper(body.EffectType), strings.ToUpper(body.DistributionStrategy))
	s.hub.broadcastFxChanged("added", id)
	writeJSON(w, http.StatusOK, AddEffectResponse{EffectID: id})
}

func (s *Server) handleGroupFxRemove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	removed := s.engine.RemoveEffectsForGroup(name)
	s.hub.broadcastFxChanged("removed", 0)
	writeJSON(w, http.StatusOK, RemovedCountResponse{RemovedCount: removed})
}

func (s *Server) handleGroupFxActive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	all := s.engine.GetEffectsForGroup(name)
	out := make([]GroupEffectDto, 0, len(all))
	for _, inst := range all {
		out = append(out, s.toEffectDto(inst))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDistributionStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DistributionStrategiesResponse{Strategies: DistributionStrategyNames()})
}

// --- helpers ---

func pathID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}

func findInstance(snap []fx.FxInstance, id uint64) fx.FxInstance {
	for _, inst := range snap {
		if inst.ID == id {
			return inst
		}
	}
	return fx.FxInstance{ID: id}
}

// statusForTargetError maps AddEffect's validation errors to the REST status
// codes documented for /fx/add: unknown effect type or property is a 400,
// unknown fixture/group is a 404. The fx package reports both as plain
// errors, so the mapping is done here on message shape rather than on a
// typed error, mirroring the "kinds, not type names" error design.
func statusForTargetError(err error) int {
	msg := err.Error()
	if strings.Contains(msg, "unknown fixture") || strings.Contains(msg, "unknown group") {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func statusForUpdateError(err error) int {
	if strings.Contains(err.Error(), "unknown effect id") {
		return http.StatusNotFound
	}
	return statusForTargetError(err)
}

func sharedProperties(g *fixture.Group[*fixture.Fixture]) []GroupPropertyDescriptor {
	members := g.AllMembers()
	if len(members) == 0 {
		return nil
	}
	candidates := propertyCandidates(members[0].Fixture)
	var out []GroupPropertyDescriptor
	for _, c := range candidates {
		allHave := true
		for _, m := range members {
			if !fixtureHasProperty(m.Fixture, c.name) {
				allHave = false
				break
			}
		}
		if allHave {
			out = append(out, GroupPropertyDescriptor{PropertyName: c.name, OutputType: c.outputType})
		}
	}
	return out
}

type propertyCandidate struct {
	name       string
	outputType string
}

func propertyCandidates(f *fixture.Fixture) []propertyCandidate {
	var out []propertyCandidate
	if f.HasColour() {
		out = append(out, propertyCandidate{"colour", "COLOUR"})
	}
	if f.HasPosition() {
		out = append(out, propertyCandidate{"position", "POSITION"})
	}
	if f.HasDimmer() {
		out = append(out, propertyCandidate{fixture.PropertyDimmer, "SLIDER"})
	}
	if f.HasUv() {
		out = append(out, propertyCandidate{fixture.PropertyUv, "SLIDER"})
	}
	return out
}

func fixtureHasProperty(f *fixture.Fixture, name string) bool {
	switch name {
	case "colour":
		return f.HasColour()
	case "position":
		return f.HasPosition()
	default:
		return f.HasSlider(name)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
