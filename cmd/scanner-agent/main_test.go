package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hst-srl/matafuegos-sync/internal/agent/store"
	agentsync "github.com/hst-srl/matafuegos-sync/internal/agent/sync"
)

type offlineGate struct{}

func (offlineGate) Online() bool { return false }

func TestOrdenCommandOpensAndClosesSession(t *testing.T) {
	ctx := context.Background()
	var orden string

	quit := runCommand(ctx, nil, "/orden OT-12", &orden)
	assert.False(t, quit)
	assert.Equal(t, "OT-12", orden)

	quit = runCommand(ctx, nil, "/orden", &orden)
	assert.False(t, quit)
	assert.Empty(t, orden)
}

func TestQuitCommand(t *testing.T) {
	var orden string
	assert.True(t, runCommand(context.Background(), nil, "/quit", &orden))
}

func TestHandleScanCarriesOrdenTag(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	engine := agentsync.New(st, nil, offlineGate{}, zap.NewNop(), 0)

	handleScan(ctx, engine, "http://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=5", "OT-12")

	rec, err := st.FindByURL(ctx, "https://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=5")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "OT-12", rec.NroOrden)
	assert.Equal(t, store.StatePending, rec.State)
}

func TestHandleScanNoSessionLeavesTagEmpty(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	engine := agentsync.New(st, nil, offlineGate{}, zap.NewNop(), 0)

	handleScan(ctx, engine, "https://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=6", "")

	rec, err := st.FindByURL(ctx, "https://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=6")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.NroOrden)
}
