package broker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskrooms/taskrooms/internal/broker"
	"github.com/taskrooms/taskrooms/internal/model"
)

func TestGateAuthorize(t *testing.T) {
	f := newFixture(t)
	gate := broker.NewGate(f.store.Rooms())
	ctx := context.Background()

	room, err := gate.Authorize(ctx, f.alice, "team")
	require.NoError(t, err)
	require.Equal(t, f.room.ID, room.ID)

	_, err = gate.Authorize(ctx, f.carol, "team")
	require.ErrorIs(t, err, model.ErrForbidden)

	_, err = gate.Authorize(ctx, f.alice, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestGateChecksMembershipFresh(t *testing.T) {
	// No caching: the gate must observe a membership granted after its first
	// answer.
	f := newFixture(t)
	gate := broker.NewGate(f.store.Rooms())
	ctx := context.Background()

	_, err := gate.Authorize(ctx, f.carol, "team")
	require.ErrorIs(t, err, model.ErrForbidden)

	require.NoError(t, f.store.Rooms().AddMember(ctx, f.room.ID, f.carol.ID))
	_, err = gate.Authorize(ctx, f.carol, "team")
	require.NoError(t, err)
}
