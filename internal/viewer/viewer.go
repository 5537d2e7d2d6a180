package viewer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/cipherstudio/internal/editor"
	"github.com/petervdpas/cipherstudio/internal/preview"
	"github.com/petervdpas/cipherstudio/internal/sdk"
	"github.com/petervdpas/cipherstudio/internal/storage"
	"github.com/petervdpas/cipherstudio/internal/util"
	"github.com/petervdpas/cipherstudio/internal/viewer/routes"
)

var log = logging.Logger("viewer")

type Viewer struct {
	DB       *storage.DB
	Sessions *editor.Manager
	Hub      *preview.Hub
	Renderer *preview.Renderer
	Logs     *LogBuffer

	// Owner is recorded on projects created over the API.
	Owner string
	Label string
}

// Handler builds the full HTTP surface.
func Handler(v Viewer) http.Handler {
	mux := http.NewServeMux()

	d := routes.Deps{
		DB:       v.DB,
		Sessions: v.Sessions,
		Hub:      v.Hub,
		Renderer: v.Renderer,
		Owner:    v.Owner,
		Label:    v.Label,
	}
	if v.Logs != nil {
		d.Logs = v.Logs
	}
	routes.Register(mux, d)
	mux.Handle("/sdk/", http.StripPrefix("/sdk", sdk.Handler()))

	return noCache(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, v Viewer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, v)
}

// Serve is Start on an existing listener.
func Serve(ctx context.Context, ln net.Listener, v Viewer) error {
	srv := &http.Server{
		Handler:           Handler(v),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	log.Infof("viewer listening on http://%s", ln.Addr())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), util.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("viewer shutdown: %v", err)
		return srv.Close()
	}
	log.Infof("viewer stopped")
	return nil
}
