package fixture

// Bindable is implemented by anything a Group can hold as a member: a type
// whose WithTransaction produces a new instance of itself pointed at a
// transaction. *Fixture satisfies this.
type Bindable[T any] interface {
	WithTransaction(tx Transaction) T
}

// Member is one fixture's slot within a group: its position among its
// siblings, expressed both as a raw index and as a position normalized to
// [0,1], plus per-member staging metadata used by effects and offsets.
type Member[T Bindable[T]] struct {
	Fixture            T
	Index              int
	NormalizedPosition float64
	PanOffset          float64
	TiltOffset         float64
	SymmetricInvert    bool
	Tags               []string
}

func normalizedPosition(i, n int) float64 {
	if n <= 1 {
		return 0.5
	}
	return float64(i) / float64(n-1)
}

// MemberOptions carries the optional per-member metadata accepted by
// AddMember; zero value is a plain member with no offsets or tags.
type MemberOptions struct {
	PanOffset       float64
	TiltOffset      float64
	SymmetricInvert bool
	Tags            []string
}

// Group is a named collection of fixtures, composed of direct members plus
// nested sub-groups. Groups never nest other groups as direct members
// (no Group<Group<T>>); composition is exclusively through sub-groups.
type Group[T Bindable[T]] struct {
	Name    string
	direct  []rawMember[T]
	subs    []*Group[T]
}

type rawMember[T Bindable[T]] struct {
	fixture T
	opts    MemberOptions
}

// NewGroup returns an empty, named Group.
func NewGroup[T Bindable[T]](name string) *Group[T] {
	return &Group[T]{Name: name}
}

// AddMember appends a direct member.
func (g *Group[T]) AddMember(fixture T, opts MemberOptions) {
	g.direct = append(g.direct, rawMember[T]{fixture: fixture, opts: opts})
}

// AddSubGroup nests another group beneath this one.
func (g *Group[T]) AddSubGroup(sub *Group[T]) {
	g.subs = append(g.subs, sub)
}

// Count returns the total number of members, direct and nested.
func (g *Group[T]) Count() int {
	return len(g.AllMembers())
}

// AllMembers returns direct members followed by each sub-group's members,
// recursively, reindexed 0..N-1 with normalized positions recomputed
// against the combined total N.
func (g *Group[T]) AllMembers() []Member[T] {
	raw := g.collectRaw()
	return reindex(raw)
}

func (g *Group[T]) collectRaw() []rawMember[T] {
	out := append([]rawMember[T](nil), g.direct...)
	for _, sub := range g.subs {
		out = append(out, sub.collectRaw()...)
	}
	return out
}

func reindex[T Bindable[T]](raw []rawMember[T]) []Member[T] {
	n := len(raw)
	members := make([]Member[T], n)
	for i, r := range raw {
		members[i] = Member[T]{
			Fixture:            r.fixture,
			Index:              i,
			NormalizedPosition: normalizedPosition(i, n),
			PanOffset:          r.opts.PanOffset,
			TiltOffset:         r.opts.TiltOffset,
			SymmetricInvert:    r.opts.SymmetricInvert,
			Tags:               r.opts.Tags,
		}
	}
	return members
}

// Flatten returns all leaf fixtures in stable order: direct members, then
// each sub-group's Flatten, recursively.
func (g *Group[T]) Flatten() []T {
	members := g.AllMembers()
	out := make([]T, len(members))
	for i, m := range members {
		out[i] = m.Fixture
	}
	return out
}

// WithTransaction returns a new Group with every member's fixture (direct
// and in every sub-group) pointed at tx. The receiver is unchanged.
func (g *Group[T]) WithTransaction(tx Transaction) *Group[T] {
	out := &Group[T]{Name: g.Name}
	out.direct = make([]rawMember[T], len(g.direct))
	for i, r := range g.direct {
		out.direct[i] = rawMember[T]{fixture: r.fixture.WithTransaction(tx), opts: r.opts}
	}
	out.subs = make([]*Group[T], len(g.subs))
	for i, sub := range g.subs {
		out.subs[i] = sub.WithTransaction(tx)
	}
	return out
}

func flatGroupFrom[T Bindable[T]](name string, members []Member[T]) *Group[T] {
	g := &Group[T]{Name: name}
	for _, m := range members {
		g.direct = append(g.direct, rawMember[T]{
			fixture: m.Fixture,
			opts: MemberOptions{
				PanOffset:       m.PanOffset,
				TiltOffset:      m.TiltOffset,
				SymmetricInvert: m.SymmetricInvert,
				Tags:            m.Tags,
			},
		})
	}
	return g
}

// EveryNth returns a new flat group of every n-th member (0, n, 2n, ...).
func (g *Group[T]) EveryNth(n int) *Group[T] {
	all := g.AllMembers()
	var selected []Member[T]
	if n > 0 {
		for i := 0; i < len(all); i += n {
			selected = append(selected, all[i])
		}
	}
	return flatGroupFrom(g.Name+":everyNth", selected)
}

// LeftHalf returns a new flat group of the first ceil(N/2) members.
func (g *Group[T]) LeftHalf() *Group[T] {
	all := g.AllMembers()
	half := (len(all) + 1) / 2
	return flatGroupFrom(g.Name+":leftHalf", all[:half])
}

// RightHalf returns a new flat group of the remaining floor(N/2) members
// after LeftHalf.
func (g *Group[T]) RightHalf() *Group[T] {
	all := g.AllMembers()
	half := (len(all) + 1) / 2
	return flatGroupFrom(g.Name+":rightHalf", all[half:])
}

// Reversed returns a new flat group with member order reversed.
func (g *Group[T]) Reversed() *Group[T] {
	all := g.AllMembers()
	rev := make([]Member[T], len(all))
	for i, m := range all {
		rev[len(all)-1-i] = m
	}
	return flatGroupFrom(g.Name+":reversed", rev)
}

// WithTags returns a new flat group of members carrying at least one of the
// given tags.
func (g *Group[T]) WithTags(tags ...string) *Group[T] {
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	all := g.AllMembers()
	var selected []Member[T]
	for _, m := range all {
		for _, t := range m.Tags {
			if _, ok := want[t]; ok {
				selected = append(selected, m)
				break
			}
		}
	}
	return flatGroupFrom(g.Name+":withTags", selected)
}

// SplitAt returns two new flat groups: members [0,index) and [index,N).
func (g *Group[T]) SplitAt(index int) (*Group[T], *Group[T]) {
	all := g.AllMembers()
	if index < 0 {
		index = 0
	}
	if index > len(all) {
		index = len(all)
	}
	return flatGroupFrom(g.Name+":splitAt.left", all[:index]), flatGroupFrom(g.Name+":splitAt.right", all[index:])
}

// Center returns a new flat group of the count members nearest the middle
// of the member list. If count >= N, the whole group is returned.
func (g *Group[T]) Center(count int) *Group[T] {
	all := g.AllMembers()
	n := len(all)
	if count >= n {
		return flatGroupFrom(g.Name+":center", all)
	}
	if count <= 0 {
		return flatGroupFrom(g.Name+":center", nil)
	}
	start := (n - count) / 2
	return flatGroupFrom(g.Name+":center", all[start:start+count])
}

// Edges returns a new flat group of the count outermost members, split as
// evenly as possible between the start and end of the member list.
func (g *Group[T]) Edges(count int) *Group[T] {
	all := g.AllMembers()
	n := len(all)
	if count >= n {
		return flatGroupFrom(g.Name+":edges", all)
	}
	if count <= 0 {
		return flatGroupFrom(g.Name+":edges", nil)
	}
	leftCount := (count + 1) / 2
	rightCount := count - leftCount
	selected := append([]Member[T]{}, all[:leftCount]...)
	if rightCount > 0 {
		selected = append(selected, all[n-rightCount:]...)
	}
	return flatGroupFrom(g.Name+":edges", selected)
}

// Filter returns a new flat group of members satisfying pred.
func (g *Group[T]) Filter(pred func(Member[T]) bool) *Group[T] {
	all := g.AllMembers()
	var selected []Member[T]
	for _, m := range all {
		if pred(m) {
			selected = append(selected, m)
		}
	}
	return flatGroupFrom(g.Name+":filter", selected)
}
