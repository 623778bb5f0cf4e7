// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/go-ident"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/ergochat/peregrine/irc/utils"
)

const (
	// IdentTimeout is how long before our ident (username) check times out.
	IdentTimeout = time.Second + 500*time.Millisecond
)

// Client is an IRC client.
type Client struct {
	server *Server
	socket *Socket

	realIP net.IP
	ctime  time.Time

	stateMutex     sync.RWMutex // tier 1
	atime          time.Time
	nick           string
	nickCasefolded string
	skeleton       string
	nickMaskString string // cache for nick!user@host
	username       string
	hostname       string
	realname       string
	authorized     bool // correct PASS was received, or none is required
	registered     bool
	isDestroyed    bool
	awayMessage    string
	quitMessage    string
	channels       ChannelSet

	registrationMessages int
}

// NewClient sets up a new client and starts its goroutine.
func (server *Server) RunClient(conn IRCConn) {
	config := server.Config()
	wConn := conn.UnderlyingConn()
	ip := utils.AddrToIP(wConn.RemoteAddr())

	now := time.Now().UTC()
	client := &Client{
		server:     server,
		socket:     NewSocket(conn, config.Server.MaxSendQBytes),
		realIP:     ip,
		ctime:      now,
		atime:      now,
		authorized: len(config.Server.passwordBytes) == 0,
		channels:   make(ChannelSet),
	}
	client.hostname = utils.IPString(wConn.RemoteAddr())

	remoteAddr := wConn.RemoteAddr().String()
	server.logger.Info("connect-ip", fmt.Sprintf("Client connecting: real IP %v", ip))

	if config.Server.CheckIdent {
		client.doIdentLookup(wConn)
	}

	server.logger.Debug("connect", fmt.Sprintf("Client connected [%s]", remoteAddr))
	client.run()
	server.logger.Debug("connect", fmt.Sprintf("Client disconnected [%s]", remoteAddr))
}

func (client *Client) doIdentLookup(conn net.Conn) {
	localTCPAddr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return
	}
	serverPort := localTCPAddr.Port
	remoteTCPAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return
	}
	clientPort := remoteTCPAddr.Port

	client.Notice("*** Looking up your username")
	resp, err := ident.Query(remoteTCPAddr.IP.String(), serverPort, clientPort, IdentTimeout)
	if err == nil {
		err := client.SetNames(resp.Identifier, "", true)
		if err == nil {
			client.Notice("*** Found your username")
		} else {
			client.Notice("*** Got a malformed username, ignoring")
		}
	} else {
		client.Notice("*** Could not find your username")
	}
}

// SetNames sets the client's ident and realname. The ident is prefixed
// with '~' unless it was confirmed by an ident server response.
func (client *Client) SetNames(username, realname string, fromIdent bool) error {
	folded, err := CasefoldName(username)
	if err != nil {
		return errNicknameInvalid
	}
	if !fromIdent {
		folded = "~" + folded
	}

	client.stateMutex.Lock()
	defer client.stateMutex.Unlock()

	if client.username == "" {
		client.username = folded
		client.updateNickMaskNoMutex()
	}
	if client.realname == "" {
		client.realname = realname
	}

	return nil
}

// run is the main goroutine of a client: read lines, parse them,
// dispatch the resulting commands.
func (client *Client) run() {
	defer client.server.HandlePanic()

	defer client.destroy()

	for {
		line, err := client.socket.Read()
		if err != nil {
			if err == errLineTooLong {
				client.Send(nil, client.server.name, ERR_INPUTTOOLONG, client.nickParam(), "Input line too long")
				client.Quit("readQ exceeded")
			} else {
				client.Quit("connection closed")
			}
			return
		}

		client.touch()

		if client.server.logger.IsLoggingRawIO() {
			client.server.logger.Debug("userinput", client.Nick(), "<- ", line)
		}

		msg, err := ircmsg.ParseLineStrict(line, true, MaxLineLen)
		if err == ircmsg.ErrorLineIsEmpty {
			continue
		} else if err != nil {
			client.Quit("received malformed line")
			return
		}

		if !client.Registered() {
			// DoS hardening: clients that never register don't get to
			// send an unbounded number of commands
			client.registrationMessages++
			if maxRegistrationMessages < client.registrationMessages {
				client.Quit("You have sent too many registration messages")
				return
			}
		}

		name := strings.ToUpper(msg.Command)
		cmd, err := parseCommand(msg)
		switch err {
		case nil:
			// good
		case errUnknownCommand:
			client.Send(nil, client.server.name, ERR_UNKNOWNCOMMAND, client.nickParam(), name, "Unknown command")
			continue
		case errMissingParameters:
			client.Send(nil, client.server.name, ERR_NEEDMOREPARAMS, client.nickParam(), name, "Not enough parameters")
			continue
		default:
			client.Quit("received malformed line")
			return
		}

		handler := Commands[name]
		if handler.Run(client.server, client, cmd) {
			return
		}
	}
}

// touch marks the client as having been active at the present time.
func (client *Client) touch() {
	client.stateMutex.Lock()
	client.atime = time.Now().UTC()
	client.stateMutex.Unlock()
}

// nickParam returns the nickname to address numerics to: the
// registered nick, or * before registration settles on one.
func (client *Client) nickParam() string {
	nick := client.Nick()
	if nick == "" {
		return "*"
	}
	return nick
}

// Friends returns the set of clients that share a channel with this
// client, including the client itself.
func (client *Client) Friends() ClientSet {
	result := make(ClientSet)
	result.Add(client)
	for _, channel := range client.Channels() {
		for _, member := range channel.Members() {
			result.Add(member)
		}
	}
	return result
}

// addChannel records that the client is now a member of the channel.
func (client *Client) addChannel(channel *Channel) {
	client.stateMutex.Lock()
	client.channels.Add(channel)
	client.stateMutex.Unlock()
}

// removeChannel records that the client has left the channel.
func (client *Client) removeChannel(channel *Channel) {
	client.stateMutex.Lock()
	client.channels.Remove(channel)
	client.stateMutex.Unlock()
}

// updateNickMaskNoMutex updates the casefolded nickname and nickmask,
// not acquiring any mutexes.
func (client *Client) updateNickMaskNoMutex() {
	username := client.username
	if username == "" {
		username = "*"
	}
	nick := client.nick
	if nick == "" {
		nick = "*"
	}
	client.nickMaskString = fmt.Sprintf("%s!%s@%s", nick, username, client.hostname)
}

// Send sends an IRC line to the client.
func (client *Client) Send(tags map[string]string, prefix string, command string, params ...string) (err error) {
	msg := ircmsg.MakeMessage(tags, prefix, command, params...)
	line, err := msg.LineBytesStrict(false, MaxLineLen)
	if err != nil {
		client.server.logger.Error("internal", "Error assembling message for sending", err.Error())
		return err
	}

	if client.server.logger.IsLoggingRawIO() {
		client.server.logger.Debug("useroutput", client.Nick(), " ->", strings.TrimRight(string(line), "\r\n"))
	}

	return client.socket.Write(line)
}

// Notice sends the client a notice from the server.
func (client *Client) Notice(text string) {
	client.Send(nil, client.server.name, "NOTICE", client.nickParam(), text)
}

// Quit records the reason the client is leaving, to be broadcast in
// the QUIT fanout and echoed in the final ERROR line.
func (client *Client) Quit(message string) {
	client.stateMutex.Lock()
	alreadyQuit := client.quitMessage != ""
	if !alreadyQuit {
		client.quitMessage = message
	}
	nickMaskString := client.nickMaskString
	client.stateMutex.Unlock()

	if alreadyQuit {
		return
	}

	quitMsg := ircmsg.MakeMessage(nil, nickMaskString, "QUIT", message)
	quitLine, _ := quitMsg.LineBytesStrict(false, MaxLineLen)

	errorMsg := ircmsg.MakeMessage(nil, "", "ERROR", message)
	errorLine, _ := errorMsg.LineBytesStrict(false, MaxLineLen)

	finalData := append(quitLine, errorLine...)
	client.socket.SetFinalData(finalData)
}

// destroy gets rid of a client, removes them from server lists etc.
// It is idempotent: only the first call performs the teardown.
func (client *Client) destroy() {
	client.stateMutex.Lock()
	if client.isDestroyed {
		client.stateMutex.Unlock()
		return
	}
	client.isDestroyed = true
	registered := client.registered
	quitMessage := client.quitMessage
	if quitMessage == "" {
		quitMessage = "Exited normally"
	}
	nickMaskString := client.nickMaskString
	client.stateMutex.Unlock()

	// snapshot the QUIT audience before memberships are torn down
	var friends ClientSet
	if registered {
		friends = client.Friends()
		friends.Remove(client)
	}

	// remove from the channels (no PART fanout; the QUIT below covers it)
	for _, channel := range client.Channels() {
		client.server.channels.Quit(client, channel)
	}

	// remove from the nickname registry: after this point the nick is
	// free for reuse and no new messages can be routed to us
	client.server.clients.Remove(client)

	client.socket.Close()

	if registered {
		for friend := range friends {
			friend.Send(nil, nickMaskString, "QUIT", quitMessage)
		}
	}

	client.server.logger.Debug("quit", fmt.Sprintf("%s is no longer on the server", client.Nick()))
}
