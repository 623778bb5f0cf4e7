// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// IRCListener is an abstract wrapper for a listener, either for plain
// IRC lines over TCP or for IRC-over-websockets.
type IRCListener interface {
	Stop() error
	Config() listenerConfig
}

// createListener opens a listening socket on the given address and
// starts serving connections from it.
func (server *Server) createListener(addr string, conf listenerConfig) (IRCListener, error) {
	network := "tcp"
	if strings.HasPrefix(addr, "/") {
		network = "unix"
	}
	listener, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}

	if conf.WebSocket {
		wl := &WSListener{
			server:   server,
			listener: listener,
			config:   conf,
		}
		wl.httpServer = &http.Server{
			Handler:      wl,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			defer server.HandlePanic()
			wl.httpServer.Serve(listener)
		}()
		return wl, nil
	}

	nl := &NetListener{
		server:   server,
		listener: listener,
		config:   conf,
	}
	go nl.serve()
	return nl, nil
}

// NetListener accepts plain TCP (or unix socket) IRC connections.
type NetListener struct {
	server   *Server
	listener net.Listener
	config   listenerConfig
	closed   atomic.Bool
}

func (nl *NetListener) Stop() error {
	nl.closed.Store(true)
	return nl.listener.Close()
}

func (nl *NetListener) Config() listenerConfig {
	return nl.config
}

func (nl *NetListener) serve() {
	defer nl.server.HandlePanic()

	for {
		conn, err := nl.listener.Accept()
		if err != nil {
			if nl.closed.Load() {
				return
			}
			nl.server.logger.Error("listeners", fmt.Sprintf("error accepting connection: %v", err))
			continue
		}

		go func() {
			defer nl.server.HandlePanic()
			nl.server.RunClient(NewIRCStreamConn(conn))
		}()
	}
}

// WSListener accepts IRC-over-websocket connections; each websocket
// text message carries one IRC line.
type WSListener struct {
	server     *Server
	listener   net.Listener
	httpServer *http.Server
	config     listenerConfig
	closed     atomic.Bool
}

func (wl *WSListener) Stop() error {
	wl.closed.Store(true)
	return wl.httpServer.Close()
}

func (wl *WSListener) Config() listenerConfig {
	return wl.config
}

func (wl *WSListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	config := wl.server.Config()

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  MaxLineLen,
		WriteBufferSize: MaxLineLen,
		// if an origin list is configured, enforce it; otherwise accept
		// any origin, including none at all (non-browser clients)
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(config.Server.WebSockets.AllowedOrigins) == 0 || origin == "" {
				return true
			}
			for _, allowed := range config.Server.WebSockets.AllowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
		Subprotocols: []string{"text.ircv3.net"},
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		wl.server.logger.Info("listeners", fmt.Sprintf("websocket upgrade error: %v", err))
		return
	}

	go func() {
		defer wl.server.HandlePanic()
		wl.server.RunClient(NewIRCWSConn(conn))
	}()
}
