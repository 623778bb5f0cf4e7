// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/okzk/sdnotify"

	"github.com/ergochat/peregrine/irc/isupport"
	"github.com/ergochat/peregrine/irc/logger"
)

var (
	// ServerExitSignals are the signals the server will exit on.
	ServerExitSignals = []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}
)

// Server is the IRC server: it owns the client and channel registries
// and the listeners, and coordinates rehashes and shutdown.
type Server struct {
	name  string
	ctime time.Time

	clients  ClientManager
	channels ChannelManager

	configFilename         string
	configurableStateMutex sync.RWMutex // tier 1; guards config and isupport
	config                 *Config
	isupport               *isupport.List

	listeners map[string]IRCListener

	logger *logger.Manager

	rehashMutex  sync.Mutex // tier 4
	rehashSignal chan os.Signal
	exitSignals  chan os.Signal
}

// NewServer returns a new server.
func NewServer(config *Config, logger *logger.Manager) (*Server, error) {
	server := &Server{
		ctime:        time.Now().UTC(),
		listeners:    make(map[string]IRCListener),
		logger:       logger,
		rehashSignal: make(chan os.Signal, 1),
		exitSignals:  make(chan os.Signal, len(ServerExitSignals)),
	}
	server.clients.Initialize()
	server.channels.Initialize(server)

	if err := server.applyConfig(config, true); err != nil {
		return nil, err
	}

	signal.Notify(server.exitSignals, ServerExitSignals...)
	signal.Notify(server.rehashSignal, syscall.SIGHUP)

	return server, nil
}

// HandlePanic is a general purpose panic handler. Deferring it at the
// top of a goroutine keeps one misbehaving client from taking the
// whole server down.
func (server *Server) HandlePanic() {
	if r := recover(); r != nil {
		server.logger.Error("internal", fmt.Sprintf("Panic encountered: %v\n%s", r, debug.Stack()))
	}
}

// Run starts the server, listening for incoming connections and
// reacting to signals, and returns when the server shuts down.
func (server *Server) Run() {
	defer server.Shutdown()

	sdnotify.Ready()

	for {
		select {
		case <-server.exitSignals:
			server.logger.Info("server", "Shutting down due to operating system signal")
			return
		case <-server.rehashSignal:
			server.logger.Info("server", "Rehashing due to SIGHUP")
			go func() {
				defer server.HandlePanic()
				server.rehash()
			}()
		}
	}
}

// Shutdown shuts down the server.
func (server *Server) Shutdown() {
	sdnotify.Stopping()
	server.logger.Info("server", "Stopping server")

	for _, listener := range server.listeners {
		listener.Stop()
	}

	for _, client := range server.clients.AllClients() {
		client.Quit("Server shutting down")
		client.destroy()
	}

	server.logger.Info("server", "Server stopped")
}

// rehash reloads the config file and applies any changes.
func (server *Server) rehash() error {
	// only let one REHASH go on at a time
	server.rehashMutex.Lock()
	defer server.rehashMutex.Unlock()

	config, err := LoadConfig(server.configFilename)
	if err != nil {
		server.logger.Error("server", "failed to load config file", err.Error())
		return err
	}

	err = server.applyConfig(config, false)
	if err != nil {
		server.logger.Error("server", "Failed to rehash", err.Error())
		return err
	}

	server.logger.Info("server", "Rehash completed successfully")
	return nil
}

func (server *Server) applyConfig(config *Config, initial bool) error {
	if initial {
		server.name = config.Server.Name
		server.configFilename = config.Filename
	} else if server.name != config.Server.Name {
		// XXX this would require updating the cached reply prefixes of
		// every connected client; not worth supporting
		return fmt.Errorf("server name cannot be changed after launching the server, rehash aborted")
	}

	if err := server.logger.ApplyConfig(config.Logging); err != nil {
		return err
	}

	isupport, err := config.generateISupport()
	if err != nil {
		return err
	}

	server.configurableStateMutex.Lock()
	server.config = config
	server.isupport = isupport
	server.configurableStateMutex.Unlock()

	return server.setupListeners(config)
}

func (config *Config) generateISupport() (*isupport.List, error) {
	il := isupport.NewList()
	il.Add("AWAYLEN", strconv.Itoa(config.Limits.AwayLen))
	il.Add("CASEMAPPING", casemappingName)
	il.Add("CHANNELLEN", strconv.Itoa(config.Limits.ChannelLen))
	il.Add("CHANTYPES", "#")
	il.Add("NETWORK", config.Network.Name)
	il.Add("NICKLEN", strconv.Itoa(config.Limits.NickLen))
	il.AddNoValue("SAFELIST")
	il.Add("TARGMAX", fmt.Sprintf("PRIVMSG:%d,NOTICE:%d", maxTargets, maxTargets))
	il.Add("TOPICLEN", strconv.Itoa(config.Limits.TopicLen))

	if err := il.RegenerateCachedReply(); err != nil {
		return nil, err
	}
	return il, nil
}

// setupListeners reconciles the running listeners with the configured
// ones: new addresses are opened, removed addresses are closed.
func (server *Server) setupListeners(config *Config) error {
	// stop removed or changed listeners
	for addr, listener := range server.listeners {
		lconf, stillConfigured := config.Server.trueListeners[addr]
		if !stillConfigured || lconf != listener.Config() {
			listener.Stop()
			delete(server.listeners, addr)
			server.logger.Info("listeners", "stopped listening on", addr)
		}
	}

	var lastErr error
	for addr, lconf := range config.Server.trueListeners {
		if _, alreadyRunning := server.listeners[addr]; alreadyRunning {
			continue
		}
		listener, err := server.createListener(addr, lconf)
		if err != nil {
			server.logger.Error("listeners", "couldn't listen on", addr, err.Error())
			lastErr = err
			continue
		}
		server.listeners[addr] = listener
		server.logger.Info("listeners", fmt.Sprintf("now listening on %s", addr))
	}
	return lastErr
}

// tryRegister completes the registration handshake once both NICK and
// USER have been received, in either order. It returns true if the
// client is to be disconnected (bad connection password).
func (server *Server) tryRegister(c *Client) (exiting bool) {
	c.stateMutex.Lock()
	nick := c.nick
	username := c.username
	authorized := c.authorized
	complete := nick != "" && username != "" && !c.registered
	if complete && authorized {
		c.registered = true
	}
	c.stateMutex.Unlock()

	if !complete {
		return false
	}

	if !authorized {
		c.Send(nil, server.name, ERR_PASSWDMISMATCH, nick, "Password incorrect")
		c.Quit("Password incorrect")
		return true
	}

	config := server.Config()

	// send welcome text
	c.Send(nil, server.name, RPL_WELCOME, nick, fmt.Sprintf("Welcome to the %s IRC Network %s", config.Network.Name, c.NickMaskString()))
	c.Send(nil, server.name, RPL_YOURHOST, nick, fmt.Sprintf("Your host is %s, running version %s", server.name, Ver))
	c.Send(nil, server.name, RPL_CREATED, nick, fmt.Sprintf("This server was created %s", server.ctime.Format(time.RFC1123)))
	// no user or channel modes are implemented, hence the placeholders
	c.Send(nil, server.name, RPL_MYINFO, nick, server.name, Ver, "o", "o")
	server.RplISupport(c)
	server.MOTD(c)

	server.logger.Info("connect", fmt.Sprintf("Client registered [%s]", c.NickMaskString()))
	return false
}

// RplISupport outputs our ISUPPORT lines to the client.
func (server *Server) RplISupport(client *Client) {
	nick := client.Nick()
	for _, cachedTokenLine := range server.ISupport().CachedReply {
		length := len(cachedTokenLine) + 2
		tokenline := make([]string, 0, length)
		tokenline = append(tokenline, nick)
		tokenline = append(tokenline, cachedTokenLine...)
		tokenline = append(tokenline, "are supported by this server")
		client.Send(nil, server.name, RPL_ISUPPORT, tokenline...)
	}
}

// MOTD serves the Message of the Day.
func (server *Server) MOTD(client *Client) {
	motdLines := server.MotdLines()
	nick := client.Nick()

	if len(motdLines) < 1 {
		client.Send(nil, server.name, ERR_NOMOTD, nick, "MOTD File is missing")
		return
	}

	client.Send(nil, server.name, RPL_MOTDSTART, nick, fmt.Sprintf("- %s Message of the day - ", server.name))
	for _, line := range motdLines {
		client.Send(nil, server.name, RPL_MOTD, nick, line)
	}
	client.Send(nil, server.name, RPL_ENDOFMOTD, nick, "End of MOTD command")
}
