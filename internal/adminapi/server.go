// Package adminapi is the HTTP operator surface standing next to the
// OPC UA binary protocol listener: health/readiness, Prometheus metric
// exposition, a read-only node-browsing debug endpoint and Swagger
// documentation of the debug endpoints themselves.
package adminapi

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	cclog "github.com/uastack/uacore/pkg/log"
	"github.com/uastack/uacore/pkg/nodestore"
)

// Server is the admin HTTP surface. It does not share a process with
// the OPC UA TCP listener's EventLoop; it runs its own goroutine via
// net/http, the same split the teacher uses between its EventLoop-free
// HTTP server and the rest of the application.
type Server struct {
	Addr    string
	Nodes   *nodestore.Store
	Metrics *Metrics

	httpServer *http.Server
}

// NewServer builds the admin router. addr is the TCP address to
// listen on (for example "localhost:8088"); nodes and metrics may be
// nil. With nil nodes, /debug/nodes reports 503; with nil metrics,
// /metrics is not routed at all and answers 404.
func NewServer(addr string, nodes *nodestore.Store, metrics *Metrics) *Server {
	return &Server{Addr: addr, Nodes: nodes, Metrics: metrics}
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	if s.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/debug/nodes/{namespace}", s.handleDebugNodes).Methods(http.MethodGet)

	r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"))).Methods(http.MethodGet)
	r.HandleFunc("/swagger/doc.json", s.handleSwaggerDoc).Methods(http.MethodGet)

	r.Use(handlers.CompressHandler)
	r.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
		handlers.AllowedOrigins([]string{"*"})))
	return r
}

// Start begins listening and serving in the background; Shutdown
// stops it. Mirrors the teacher's own listen-then-serve split (a
// listener is established first so bind failures surface immediately,
// the actual serve loop runs in its own goroutine).
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}

	router := s.router()
	logged := handlers.CustomLoggingHandler(cclog.InfoWriter, router, func(w io.Writer, params handlers.LogFormatterParams) {
		cclog.Finfof(w, "%s %s (Response: %d, Size: %d)", params.Request.Method, params.URL.RequestURI(), params.StatusCode, params.Size)
	})

	s.httpServer = &http.Server{
		Handler:      logged,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			cclog.Errorf("adminapi: serve: %s", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

// healthzResponse is the /healthz body.
//
// @Description reports whether the process is accepting requests
type healthzResponse struct {
	Status string `json:"status"`
}

// handleHealthz godoc
//
//	@Summary		Liveness probe
//	@Description	Always returns 200 once the admin server is serving requests.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	healthzResponse
//	@Router			/healthz [get]
func (s *Server) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(healthzResponse{Status: "ok"})
}

// debugNode is one Node rendered for the debug browsing endpoint.
type debugNode struct {
	NodeId      string `json:"nodeId"`
	NodeClass   int    `json:"nodeClass"`
	BrowseName  string `json:"browseName"`
	DisplayName string `json:"displayName"`
}

// handleDebugNodes godoc
//
//	@Summary		List nodes in a namespace
//	@Description	Returns every node currently in the address space whose NamespaceIndex matches the path parameter, for operator inspection. Not a substitute for Browse: it ignores reference-filtering rules entirely.
//	@Tags			debug
//	@Produce		json
//	@Param			namespace	path		int	true	"NamespaceIndex"
//	@Success		200			{array}		debugNode
//	@Failure		400			{string}	string
//	@Failure		503			{string}	string
//	@Router			/debug/nodes/{namespace} [get]
func (s *Server) handleDebugNodes(rw http.ResponseWriter, r *http.Request) {
	if s.Nodes == nil {
		http.Error(rw, "nodestore not wired", http.StatusServiceUnavailable)
		return
	}

	ns, err := strconv.ParseUint(mux.Vars(r)["namespace"], 10, 16)
	if err != nil {
		http.Error(rw, "invalid namespace", http.StatusBadRequest)
		return
	}

	out := make([]debugNode, 0)
	s.Nodes.Range(func(n *nodestore.Node) bool {
		if n.NodeId.NamespaceIndex == uint16(ns) {
			out = append(out, debugNode{
				NodeId:      n.NodeId.String(),
				NodeClass:   int(n.Class),
				BrowseName:  n.BrowseName.String(),
				DisplayName: n.DisplayName.Text,
			})
		}
		return true
	})

	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(out)
}

func (s *Server) handleSwaggerDoc(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	io.WriteString(rw, swaggerDoc)
}
