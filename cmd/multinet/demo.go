package main

import (
	"math"

	"github.com/zeusync/multinet/internal/core/lagcomp"
	"github.com/zeusync/multinet/internal/core/protocol"
	"github.com/zeusync/multinet/internal/core/session"
)

const (
	demoEntity   protocol.EntityID = "demo"
	positionName                   = "position"
	healthName                     = "health"

	orbitRadius = 5.0
	orbitPeriod = 4000.0 // ms
)

// entityView holds the replicated variables of one entity.
type entityView struct {
	position *lagcomp.Variable[lagcomp.Vec2]
	health   *lagcomp.Variable[lagcomp.Scalar]
}

func registerEntity(s *session.Session, entity protocol.EntityID) (*entityView, error) {
	position, err := session.NewVariable(s, entity, positionName, lagcomp.Vec2{})
	if err != nil {
		return nil, err
	}
	health, err := session.NewVariable(s, entity, healthName, lagcomp.Scalar(100))
	if err != nil {
		return nil, err
	}
	return &entityView{position: position, health: health}, nil
}

// orbit moves the demo entity around a circle while its health pulses.
type orbit struct {
	view    *entityView
	elapsed float64
}

func (o *orbit) step(_ *session.Session, deltaMs float64) {
	o.elapsed += deltaMs
	angle := 2 * math.Pi * o.elapsed / orbitPeriod
	o.view.position.Set(lagcomp.Vec2{X: orbitRadius * math.Cos(angle), Y: orbitRadius * math.Sin(angle)})
	o.view.health.Set(lagcomp.Scalar(50 + 50*math.Sin(angle/2)))
}
