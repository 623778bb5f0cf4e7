// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

// CommandHandler ties a parsed command to the function that executes
// it. Handlers return true to signal that the client is exiting.
type CommandHandler struct {
	handler      func(server *Server, client *Client, cmd Command) bool
	usablePreReg bool
}

// Run runs the command handler, enforcing the registration gate and
// completing registration afterwards if the command unblocked it.
func (handler *CommandHandler) Run(server *Server, client *Client, cmd Command) (exiting bool) {
	if handler.handler == nil {
		// unknown verbs never reach dispatch; a nil handler is a
		// programming error in the parser table
		server.logger.Error("internal", "parsed command has no handler")
		return false
	}

	if !client.Registered() && !handler.usablePreReg {
		client.Send(nil, server.name, ERR_NOTREGISTERED, client.nickParam(), "You need to register before you can use that command")
		return false
	}

	exiting = handler.handler(server, client, cmd)
	if exiting {
		return
	}

	if !client.Registered() {
		exiting = server.tryRegister(client)
	}
	return
}

// Commands holds all commands executable by a client connected to us.
var Commands = map[string]CommandHandler{
	"PASS": {
		handler:      passHandler,
		usablePreReg: true,
	},
	"NICK": {
		handler:      nickHandler,
		usablePreReg: true,
	},
	"USER": {
		handler:      userHandler,
		usablePreReg: true,
	},
	// PING and PONG are allowed before registration, so clients can
	// keep the connection alive during a slow handshake
	"PING": {
		handler:      pingHandler,
		usablePreReg: true,
	},
	"PONG": {
		handler:      pongHandler,
		usablePreReg: true,
	},
	"QUIT": {
		handler:      quitHandler,
		usablePreReg: true,
	},
	"JOIN": {
		handler: joinHandler,
	},
	"PART": {
		handler: partHandler,
	},
	"PRIVMSG": {
		handler: privmsgHandler,
	},
	"NOTICE": {
		handler: noticeHandler,
	},
	"AWAY": {
		handler: awayHandler,
	},
	"TOPIC": {
		handler: topicHandler,
	},
	"NAMES": {
		handler: namesHandler,
	},
	"LIST": {
		handler: listHandler,
	},
	"MOTD": {
		handler: motdHandler,
	},
	"VERSION": {
		handler: versionHandler,
	},
	"TIME": {
		handler: timeHandler,
	},
}
