package api

import (
	"github.com/robmorgan/halofx/fixture"
	"github.com/robmorgan/halofx/fx"
)

// ClockStatusResponse answers GET /fx/clock/status.
type ClockStatusResponse struct {
	BPM       float64 `json:"bpm"`
	IsRunning bool    `json:"isRunning"`
}

// SetBPMRequest is the body of POST /fx/clock/bpm.
type SetBPMRequest struct {
	BPM float64 `json:"bpm"`
}

// EffectRequest is the wire shape shared by POST /fx/add, PUT /fx/{id}, and
// POST /groups/{name}/fx (the latter via AddGroupFxRequest, which omits
// FixtureKey since the target comes from the path). Fields left unset take
// the documented defaults: BeatDivision=1.0, BlendMode="OVERRIDE",
// StartOnBeat=true, PhaseOffset=0.0.
type EffectRequest struct {
	EffectType           string            `json:"effectType"`
	FixtureKey           string            `json:"fixtureKey,omitempty"`
	PropertyName         string            `json:"propertyName"`
	BeatDivision         *float64          `json:"beatDivision,omitempty"`
	BlendMode            string            `json:"blendMode,omitempty"`
	StartOnBeat          *bool             `json:"startOnBeat,omitempty"`
	PhaseOffset          float64           `json:"phaseOffset,omitempty"`
	Parameters           map[string]string `json:"parameters,omitempty"`
	DistributionStrategy string            `json:"distributionStrategy,omitempty"`
	StepTiming           *bool             `json:"stepTiming,omitempty"`
	ElementMode          string            `json:"elementMode,omitempty"`
}

func (r EffectRequest) beatDivision() float64 {
	if r.BeatDivision != nil {
		return *r.BeatDivision
	}
	return 1.0
}

func (r EffectRequest) startOnBeat() bool {
	if r.StartOnBeat != nil {
		return *r.StartOnBeat
	}
	return true
}

// AddGroupFxRequest is the body of POST /groups/{name}/fx: identical wire
// shape to EffectRequest, FixtureKey simply unused since the target is the
// path's group name.
type AddGroupFxRequest = EffectRequest

// AddEffectResponse answers POST /fx/add and POST /groups/{name}/fx.
type AddEffectResponse struct {
	EffectID uint64 `json:"effectId"`
}

// EffectDto is the wire projection of one running FxInstance.
type EffectDto struct {
	EffectID              uint64  `json:"effectId"`
	EffectType            string  `json:"effectType"`
	TargetKind            string  `json:"targetKind"`
	TargetKey             string  `json:"targetKey"`
	PropertyName          string  `json:"propertyName"`
	BeatDivision          float64 `json:"beatDivision"`
	BlendMode             string  `json:"blendMode"`
	IsRunning             bool    `json:"isRunning"`
	PhaseOffset           float64 `json:"phaseOffset"`
	DistributionStrategy string  `json:"distributionStrategy"`
	ElementMode           string  `json:"elementMode"`
	LastPhase             float64 `json:"lastPhase"`
}

func elementModeName(m fx.ElementMode) string {
	if m == fx.Flat {
		return "FLAT"
	}
	return "PER_FIXTURE"
}

func targetKindName(k fx.TargetKind) string {
	if k == fx.GroupTarget {
		return "GROUP"
	}
	return "FIXTURE"
}

func (s *Server) toEffectDto(inst fx.FxInstance) EffectDto {
	name, dist := s.effectMeta(inst.ID)
	return EffectDto{
		EffectID:             inst.ID,
		EffectType:           name,
		TargetKind:           targetKindName(inst.Target.Kind),
		TargetKey:            inst.Target.Key,
		PropertyName:         inst.Property,
		BeatDivision:         inst.BeatDivision,
		BlendMode:            inst.BlendMode.String(),
		IsRunning:            inst.IsRunning,
		PhaseOffset:          inst.PhaseOffset,
		DistributionStrategy: dist,
		ElementMode:          elementModeName(inst.ElementMode),
		LastPhase:            inst.LastPhase,
	}
}

// FixtureEffectsResponse answers GET /fx/fixture/{key}: instances that
// directly target the fixture, and instances reaching it indirectly through
// a group.
type FixtureEffectsResponse struct {
	Direct   []EffectDto `json:"direct"`
	Indirect []EffectDto `json:"indirect"`
}

// RemovedCountResponse answers DELETE /groups/{name}/fx.
type RemovedCountResponse struct {
	RemovedCount int `json:"removedCount"`
}

// DistributionStrategiesResponse answers GET /groups/distribution-strategies.
type DistributionStrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// GroupSummary is one entry of GET /groups.
type GroupSummary struct {
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
}

// GroupDetail answers GET /groups/{name}.
type GroupDetail struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// GroupPropertyDescriptor is one entry of GET /groups/{name}/properties: a
// property name that every member fixture of the group exposes directly.
// Properties that multi-element fixtures expose only on their elements are
// not listed.
type GroupPropertyDescriptor struct {
	PropertyName string `json:"propertyName"`
	OutputType   string `json:"outputType"`
}

// GroupEffectDto is one entry of GET /groups/{name}/fx/active: an EffectDto
// whose target is exactly this group (not a fixture reached indirectly).
type GroupEffectDto = EffectDto

func groupSummary(g *fixture.Group[*fixture.Fixture]) GroupSummary {
	return GroupSummary{Name: g.Name, MemberCount: g.Count()}
}

func groupDetail(g *fixture.Group[*fixture.Fixture]) GroupDetail {
	members := make([]string, 0, g.Count())
	for _, m := range g.AllMembers() {
		members = append(members, m.Fixture.Key)
	}
	return GroupDetail{Name: g.Name, Members: members}
}
