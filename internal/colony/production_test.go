package colony

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colony.ai/internal/env"
	"colony.ai/internal/protocol"
)

var testBody = []env.Part{env.PartMove, env.PartMove, env.PartCarry, env.PartWork}

func TestProducer_Cost(t *testing.T) {
	p := NewProducer(testBody, 3, zerolog.Nop())
	assert.Equal(t, 250, p.Cost())
}

func TestProducer_NeverOversubscribes(t *testing.T) {
	e := newFakeEnv()
	f := e.addFacility("Spawn1", at(25, 25), 249)
	p := NewProducer(testBody, 3, zerolog.Nop())

	recs := p.Run(e)
	assert.Empty(t, recs)
	assert.Empty(t, f.calls)
}

func TestProducer_OnlyAffordableFacility(t *testing.T) {
	e := newFakeEnv()
	poor := e.addFacility("Spawn1", at(25, 25), 100)
	rich := e.addFacility("Spawn2", at(30, 25), 300)
	p := NewProducer(testBody, 3, zerolog.Nop())

	recs := p.Run(e)
	require.Len(t, recs, 1)
	assert.Equal(t, "Spawn2", recs[0].Facility)
	assert.Empty(t, poor.calls)
	assert.Equal(t, []string{"1-0"}, rich.calls)
	assert.Equal(t, 50, rich.energy)
}

func TestProducer_SequenceSharedAcrossFacilities(t *testing.T) {
	e := newFakeEnv()
	e.tick = 9
	a := e.addFacility("Spawn1", at(25, 25), 300)
	b := e.addFacility("Spawn2", at(30, 25), 300)
	p := NewProducer(testBody, 3, zerolog.Nop())

	p.Run(e)
	assert.Equal(t, []string{"9-0"}, a.spawned)
	assert.Equal(t, []string{"9-1"}, b.spawned)
}

func TestProducer_NameCollisionRetries(t *testing.T) {
	e := newFakeEnv()
	e.tick = 5
	e.names["5-0"] = true
	f := e.addFacility("Spawn1", at(25, 25), 300)
	p := NewProducer(testBody, 3, zerolog.Nop())

	recs := p.Run(e)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"5-0", "5-1"}, f.calls)
	assert.Equal(t, "5-1", recs[0].Name)
	assert.Equal(t, 2, recs[0].Attempts)
	assert.Empty(t, recs[0].Code)
}

func TestProducer_CollisionRetriesAreBounded(t *testing.T) {
	e := newFakeEnv()
	e.tick = 5
	for _, n := range []string{"5-0", "5-1", "5-2"} {
		e.names[n] = true
	}
	f := e.addFacility("Spawn1", at(25, 25), 300)
	p := NewProducer(testBody, 3, zerolog.Nop())

	recs := p.Run(e)
	require.Len(t, recs, 1)
	assert.Len(t, f.calls, 3)
	assert.Empty(t, recs[0].Name)
	assert.Equal(t, protocol.ErrNameExists, recs[0].Code)
}

func TestProducer_OtherFailureIsReported(t *testing.T) {
	e := newFakeEnv()
	f := e.addFacility("Spawn1", at(25, 25), 300)
	f.err = protocol.Reject("spawn", protocol.ErrBusy, "already spawning")
	p := NewProducer(testBody, 3, zerolog.Nop())

	recs := p.Run(e)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Attempts)
	assert.Equal(t, protocol.ErrBusy, recs[0].Code)
}
