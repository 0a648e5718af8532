package devserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/devserver/config"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	app := NewApp(cfg, logging.Discard())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s%s/health", ln.Addr(), APIPrefix)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestApp_RunFailsOnBadAddr(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Addr = "256.0.0.1:-1"

	err := NewApp(cfg, logging.Discard()).Run(context.Background())
	assert.Error(t, err)
}
