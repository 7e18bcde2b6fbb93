package session

import (
	"github.com/zeusync/multinet/internal/core/lagcomp"
	"github.com/zeusync/multinet/internal/core/protocol"
)

// Replicated is the type-erased view of a *lagcomp.Variable the session
// needs to route wire updates and resets.
type Replicated interface {
	Kind() lagcomp.Kind
	Len() int
	ApplyComponents(timestamp float64, kind lagcomp.Kind, components []float64) error
	TakePending() (timestamp float64, kind lagcomp.Kind, components []float64, ok bool)
	ClearBuffer()
}

type binding struct {
	name     string
	variable Replicated
}

// registry maps entity -> variable id -> variable. Not safe for concurrent use.
type registry struct {
	entities map[protocol.EntityID]map[uint64]binding
}

func newRegistry() *registry {
	return &registry{entities: make(map[protocol.EntityID]map[uint64]binding)}
}

func (r *registry) add(entity protocol.EntityID, name string, v Replicated) error {
	vars := r.entities[entity]
	if vars == nil {
		vars = make(map[uint64]binding)
		r.entities[entity] = vars
	}

	id := protocol.VariableID(name)
	if existing, ok := vars[id]; ok {
		if existing.name != name {
			return ErrVariableIDCollision
		}
		return ErrDuplicateVariable
	}
	vars[id] = binding{name: name, variable: v}
	return nil
}

func (r *registry) lookup(entity protocol.EntityID, id uint64) (Replicated, bool) {
	b, ok := r.entities[entity][id]
	return b.variable, ok
}

func (r *registry) clear(entity protocol.EntityID) int {
	vars := r.entities[entity]
	for _, b := range vars {
		b.variable.ClearBuffer()
	}
	return len(vars)
}

func (r *registry) clearAll() int {
	n := 0
	for entity := range r.entities {
		n += r.clear(entity)
	}
	return n
}

func (r *registry) remove(entity protocol.EntityID) {
	delete(r.entities, entity)
}

// each visits every variable.
func (r *registry) each(fn func(entity protocol.EntityID, id uint64, b binding)) {
	for entity, vars := range r.entities {
		for id, b := range vars {
			fn(entity, id, b)
		}
	}
}
