package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/logging"
	"github.com/dharsanguruparan/expiredrop/internal/queue"
	"github.com/dharsanguruparan/expiredrop/internal/sweeper"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

func diskConfig(t *testing.T) *config.Config {
	return &config.Config{
		Storage:        config.StorageDisk,
		DataDir:        filepath.Join(t.TempDir(), "data"),
		Tokens:         []string{"t"},
		SweepInterval:  time.Hour,
		ReclaimWorkers: 2,
	}
}

func TestOpen_Disk(t *testing.T) {
	cfg := diskConfig(t)
	a, err := Open(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Ledger)
	r, ok := a.Reclaimer().(*sweeper.StoreReclaimer)
	require.True(t, ok)
	assert.Nil(t, r.Recorder)
}

func TestOpenStore_Unknown(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{Storage: "tape"})
	assert.Error(t, err)
}

func TestReclaimer_Redis(t *testing.T) {
	cfg := diskConfig(t)
	cfg.RedisAddr = "127.0.0.1:6379"
	a, err := Open(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Reclaimer().(*queue.Reclaimer)
	assert.True(t, ok)
}

func TestServer_RestoresQueue(t *testing.T) {
	cfg := diskConfig(t)
	a, err := Open(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	id := uploadid.New(uploadid.Unix(time.Now().Add(time.Hour)))
	_, err = a.Store.Create(ctx, id, "kept", strings.NewReader("x"))
	require.NoError(t, err)

	srv, err := a.Server(ctx)
	require.NoError(t, err)
	require.NotNil(t, srv)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tracked": 1`)
}
