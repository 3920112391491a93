package actions

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/config"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/quality"
	"github.com/relloyd/starpipe/store"
	"github.com/relloyd/starpipe/transform"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 15 * time.Second

type WebServerConfig struct {
	Pipeline         *config.Pipeline
	Scheme           string `errorTxt:"scheme" mandatory:"no"`
	Addr             net.IP `errorTxt:"address" mandatory:"no"`
	Port             int    `errorTxt:"port" mandatory:"yes"`
	MaxConns         int
	StackDumpOnPanic bool
	Log              logger.Logger
	OpenStore        StoreOpener
}

// webServer is the state shared by the handlers.
type webServer struct {
	log      logger.Logger
	store    store.Store
	pipeline *config.Pipeline
	registry *quality.Registry
	runs     *transform.SafeMapRunInfo
	chanStop chan string
}

func RunWebServer(web *WebServerConfig) error {
	if web == nil || web.Pipeline == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	if web.Port == 0 {
		return errors.New("please supply values for port")
	}
	if err := web.Pipeline.Validate(); err != nil {
		return err
	}
	log := getLogger(web.Log, web.Pipeline, web.StackDumpOnPanic)
	st, err := openStore(log, web.OpenStore, web.Pipeline.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("error closing store: ", err)
		}
	}()
	ws, err := newWebServer(log, st, web.Pipeline)
	if err != nil {
		return err
	}
	l, err := net.Listen("tcp", fmt.Sprintf("%v:%v", addrOrBlank(web.Addr), web.Port))
	if err != nil {
		return err
	}
	srv := ws.serve(l, web.MaxConns)
	log.Info(fmt.Sprintf("Listening on %v://%v", strings.ToLower(schemeOrDefault(web.Scheme)), l.Addr()))
	return ws.wait(srv)
}

func newWebServer(log logger.Logger, st store.Store, p *config.Pipeline) (*webServer, error) {
	ws := &webServer{
		log:      log,
		store:    st,
		pipeline: p,
		runs:     transform.NewSafeMapRunInfo(),
		chanStop: make(chan string, 1),
	}
	d, err := ws.newDriver()
	if err != nil {
		return nil, err
	}
	ws.registry = d.Registry()
	return ws, nil
}

func (ws *webServer) newDriver() (*transform.Driver, error) {
	return newDriver(ws.log, ws.store, ws.pipeline)
}

// router returns the routes served by ws.
func (ws *webServer) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(jsonContentType)
	r.HandleFunc("/stop", GetHandlerStopServer(ws.log, ws.chanStop)).Methods(http.MethodPost)
	r.Path("/health").HandlerFunc(GetHandlerHealth(ws.log))
	r.Path("/runs").Methods(http.MethodPost).HandlerFunc(GetHandlerRunLaunch(ws.log, ws.runs, ws.newDriver))
	r.Path("/runs").Methods(http.MethodGet).HandlerFunc(GetHandlerRunList(ws.log, ws.runs))
	r.Path("/runs/{runId}/stats").Methods(http.MethodGet).HandlerFunc(GetHandlerRunStats(ws.log, ws.runs))
	r.Path("/runs/{runId}/status").Methods(http.MethodGet).HandlerFunc(GetHandlerRunStatus(ws.log, ws.runs))
	r.Path("/runs/{runId}/stop").Methods(http.MethodPost).HandlerFunc(GetHandlerRunStop(ws.log, ws.runs))
	r.Path("/checks").Methods(http.MethodGet).HandlerFunc(GetHandlerCheckList(ws.log, ws.registry))
	r.Path("/checks/{checkName}").Methods(http.MethodGet).HandlerFunc(GetHandlerCheckRun(ws.log, ws.registry, ws.store))
	return r
}

// serve runs an HTTP server on l without blocking.
// At most maxConns connections are accepted at once.
func (ws *webServer) serve(l net.Listener, maxConns int) *http.Server {
	if maxConns <= 0 {
		maxConns = c.DefaultServerMaxConns
	}
	srv := &http.Server{
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      ws.router(),
	}
	go func() {
		if err := srv.Serve(netutil.LimitListener(l, maxConns)); err != nil {
			if err == http.ErrServerClosed {
				ws.log.Info(err)
			} else {
				ws.log.Error(err)
				ws.stop()
			}
		}
	}()
	return srv
}

func (ws *webServer) stop() {
	select {
	case ws.chanStop <- "stop":
	default:
	}
}

// wait blocks until the server is asked to stop or SIGINT arrives.
// Runs in flight are cancelled before the server shuts down.
func (ws *webServer) wait(srv *http.Server) error {
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt)
	defer signal.Stop(chanOS)
	select {
	case <-ws.chanStop:
	case <-chanOS:
	}
	ws.log.Info("Shutting down web server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	ws.cancelRuns(ctx)
	return srv.Shutdown(ctx)
}

// cancelRuns cancels every unfinished run and waits for them to end or ctx to expire.
func (ws *webServer) cancelRuns(ctx context.Context) {
	ws.runs.RLock()
	for _, ri := range ws.runs.Internal {
		if !ri.Report.IsFinished() {
			ri.Cancel()
		}
	}
	ws.runs.RUnlock()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		pending := 0
		for _, report := range ws.runs.Reports() {
			if !report.IsFinished() {
				pending++
			}
		}
		if pending == 0 {
			return
		}
		select {
		case <-ctx.Done():
			ws.log.Warn(pending, " runs did not stop before the shutdown deadline")
			return
		case <-ticker.C:
		}
	}
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func addrOrBlank(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func schemeOrDefault(s string) string {
	if s == "" {
		return "http"
	}
	return s
}
