package status

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vitality/internal/app/session"
)

func TestClient(t *testing.T) {
	srv, reg, _ := setup(t, Config{Token: "secret"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	client := NewClient(ts.Client(), ts.URL+"/", "secret")

	players, err := client.Players(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "g1", players[0].GuildID)

	player, err := client.Player(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, player.Queue, 1)

	_, err = client.Player(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active player")

	res, err := client.Action(ctx, "g1", "pause")
	require.NoError(t, err)
	assert.True(t, res.Success)
	s, _ := reg.Get("g1")
	assert.Equal(t, session.StatePaused, s.Snapshot().State)
}

func TestClient_Unauthorized(t *testing.T) {
	srv, _, _ := setup(t, Config{Token: "secret"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, err := NewClient(ts.Client(), ts.URL, "wrong").Action(context.Background(), "g1", "skip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
