package resolve

import (
	"strings"
	"sync"
)

// MemberID addresses a MemberInfo in an Arena.
type MemberID int32

// NoMember is the parent of a chain's first step.
const NoMember MemberID = -1

// MemberInfo is one step of a member chain.
//
// Records are interned: the same (parent, declaring type, name) triple
// always yields the same MemberID, so two chains are equal exactly when
// their leaf IDs are equal.
type MemberInfo struct {
	ID     MemberID
	Parent MemberID

	// Name is the member name as written in expressions.
	Name string

	// Type is the declared type of the member. Empty when the declaring
	// type is not registered.
	Type string

	// Declaring is the type the member was looked up on.
	Declaring string

	// ComplexName is the dot-joined source path from the chain root.
	ComplexName string

	// Depth is the number of steps from the root, starting at 1.
	Depth int
}

type memberKey struct {
	parent    MemberID
	declaring string
	name      string
}

// Arena stores member chains. It is append-only and safe for concurrent
// use. Chains carry no naming policy, so resolvers with different policies
// may share one arena.
type Arena struct {
	mu      sync.RWMutex
	members []MemberInfo
	index   map[memberKey]MemberID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{index: make(map[memberKey]MemberID)}
}

// Intern returns the ID of the step (parent, declaring, name), adding it
// when it does not exist yet. typ is only recorded on first insertion.
func (a *Arena) Intern(parent MemberID, declaring, name, typ string) MemberID {
	key := memberKey{parent: parent, declaring: declaring, name: name}

	a.mu.RLock()
	id, ok := a.index[key]
	a.mu.RUnlock()
	if ok {
		return id
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.index[key]; ok {
		return id
	}

	info := MemberInfo{
		ID:          MemberID(len(a.members)),
		Parent:      parent,
		Name:        name,
		Type:        typ,
		Declaring:   declaring,
		ComplexName: name,
		Depth:       1,
	}
	if parent != NoMember {
		p := a.members[parent]
		info.ComplexName = p.ComplexName + "." + name
		info.Depth = p.Depth + 1
	}
	a.members = append(a.members, info)
	a.index[key] = info.ID
	return info.ID
}

// Get returns the record for id.
func (a *Arena) Get(id MemberID) (MemberInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id < 0 || int(id) >= len(a.members) {
		return MemberInfo{}, false
	}
	return a.members[id], true
}

// Chain returns the records from the root step to id.
func (a *Arena) Chain(id MemberID) []MemberInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id < 0 || int(id) >= len(a.members) {
		return nil
	}
	out := make([]MemberInfo, a.members[id].Depth)
	for i := len(out) - 1; id != NoMember; i-- {
		out[i] = a.members[id]
		id = a.members[id].Parent
	}
	return out
}

// Len returns the number of interned steps.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.members)
}

// sourcePath joins the source names of a chain.
func sourcePath(chain []MemberInfo, sep string) string {
	names := make([]string, len(chain))
	for i, m := range chain {
		names[i] = m.Name
	}
	return strings.Join(names, sep)
}
