package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chris-pikul/wormhole-rendezvous/internal/config"
	"github.com/chris-pikul/wormhole-rendezvous/internal/log"
	"github.com/chris-pikul/wormhole-rendezvous/internal/proto"
	"github.com/chris-pikul/wormhole-rendezvous/internal/rendezvous"
	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

//Server owns the HTTP listener, the connected-client registry, and a
//reference to the rendezvous engine root. It is the process's only
//collaborator that touches net/http; internal/rendezvous knows nothing
//about websockets.
type Server struct {
	opts  config.Options
	rend  *rendezvous.Rendezvous
	store *store.Store
	clock rendezvous.Clock

	welcome proto.WelcomeInfo

	router   *http.ServeMux
	upgrader websocket.Upgrader
	http     *http.Server

	mu      sync.Mutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
}

//New constructs a Server bound to rend and st, ready to Start.
func New(opts config.Options, rend *rendezvous.Rendezvous, st *store.Store, clock rendezvous.Clock) *Server {
	if clock == nil {
		clock = rendezvous.SystemClock
	}

	welcome := proto.WelcomeInfo{}
	if opts.WelcomeMOTD != "" {
		welcome.MOTD = &opts.WelcomeMOTD
	}
	if opts.WelcomeError != "" {
		welcome.Error = &opts.WelcomeError
	}
	if opts.AdvertisedVersion != "" {
		welcome.Version = &opts.AdvertisedVersion
	}

	s := &Server{
		opts:       opts,
		rend:       rend,
		store:      st,
		clock:      clock,
		welcome:    welcome,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	s.upgrader = newUpgrader()

	s.router = http.NewServeMux()
	s.router.HandleFunc("/", s.handleIndex)
	s.router.HandleFunc("/v1", s.handleWebsocket)

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: s.router,
	}

	return s
}

func (s *Server) now() time.Time { return s.clock.Now() }

//Start runs the connection registry in its own goroutine. Call Serve
//to run the HTTP listener itself, and Shutdown for graceful teardown.
func (s *Server) Start() {
	go s.runRegistry()
}

//Serve blocks running the HTTP listener until Shutdown closes it, at
//which point it returns nil. Intended to be run inside the caller's
//supervising errgroup so the listener's exit is observable alongside
//the rest of the process's goroutines, rather than a bare go func()
//whose failure would otherwise go unnoticed.
func (s *Server) Serve() error {
	log.Infof("ws: listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//Shutdown gracefully closes the HTTP listener and stops the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.http.SetKeepAlivesEnabled(false)
	err := s.http.Shutdown(ctx)
	s.rend.Shutdown()
	return err
}

func (s *Server) runRegistry() {
	for {
		select {
		case c := <-s.register:
			s.mu.Lock()
			s.clients[c] = struct{}{}
			s.mu.Unlock()
			c.OnConnect()

		case c := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[c]; ok {
				c.Close()
				delete(s.clients, c)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "wormhole rendezvous server\nconnect over websocket at ws://%s/v1\n", r.Host)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("ws: upgrade failed: %s", err.Error())
		return
	}

	client := &Client{
		conn:       conn,
		sendBuffer: make(chan proto.IMessage, 64),
		server:     s,
	}
	s.register <- client

	go client.watchWrites()
	go client.watchReads()
}
