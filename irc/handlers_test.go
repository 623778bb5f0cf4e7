// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/ergochat/peregrine/irc/logger"
	"github.com/ergochat/peregrine/irc/passwd"
)

// recordingConn is a fake IRCConn that records everything written to it.
type recordingConn struct {
	mu     sync.Mutex
	lines  []string
	closed bool
}

func (c *recordingConn) UnderlyingConn() net.Conn { return nil }

func (c *recordingConn) Write(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(buf), "\r\n"), "\r\n") {
		c.lines = append(c.lines, line)
	}
	return nil
}

func (c *recordingConn) WriteBuffers(buffers [][]byte) error {
	for _, buf := range buffers {
		c.Write(buf)
	}
	return nil
}

func (c *recordingConn) ReadLine() ([]byte, error) {
	select {} // tests drive handlers directly; nothing ever reads
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *recordingConn) hasLineContaining(substr string) bool {
	for _, line := range c.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// socket writes are flushed by a separate goroutine, so tests poll
func waitForLine(t *testing.T, conn *recordingConn, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn.hasLineContaining(substr) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for a line containing [%s]; got %#v", substr, conn.Lines())
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logman, err := logger.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	config := &Config{
		Server: ServerConfig{
			Name:          "irc.test",
			MaxSendQBytes: 1 << 20,
		},
		Network: NetworkConfig{Name: "TestNet"},
		Limits: LimitsConfig{
			AwayLen:    200,
			ChannelLen: 64,
			NickLen:    32,
			TopicLen:   390,
		},
	}
	server, err := NewServer(config, logman)
	if err != nil {
		t.Fatal(err)
	}
	return server
}

func newClientPair(server *Server) (*Client, *recordingConn) {
	conn := &recordingConn{}
	client := &Client{
		server:     server,
		socket:     NewSocket(conn, server.Config().Server.MaxSendQBytes),
		hostname:   "127.0.0.1",
		authorized: true,
		channels:   make(ChannelSet),
	}
	return client, conn
}

// runLine pushes a raw line through parsing and dispatch, as the read
// loop would.
func runLine(t *testing.T, server *Server, client *Client, line string) (exiting bool) {
	t.Helper()
	msg, err := ircmsg.ParseLineStrict(line, true, MaxLineLen)
	if err != nil {
		t.Fatalf("could not tokenize [%s]: %v", line, err)
	}
	name := strings.ToUpper(msg.Command)
	cmd, err := parseCommand(msg)
	switch err {
	case nil:
		// good
	case errUnknownCommand:
		client.Send(nil, server.name, ERR_UNKNOWNCOMMAND, client.nickParam(), name, "Unknown command")
		return false
	case errMissingParameters:
		client.Send(nil, server.name, ERR_NEEDMOREPARAMS, client.nickParam(), name, "Not enough parameters")
		return false
	default:
		t.Fatalf("unexpected parse error for [%s]: %v", line, err)
	}
	handler := Commands[name]
	return handler.Run(server, client, cmd)
}

func registerClient(t *testing.T, server *Server, nick string) (*Client, *recordingConn) {
	t.Helper()
	client, conn := newClientPair(server)
	runLine(t, server, client, "NICK "+nick)
	runLine(t, server, client, "USER "+strings.ToLower(nick)+" 0 * :Test User")
	if !client.Registered() {
		t.Fatalf("client %s failed to register", nick)
	}
	waitForLine(t, conn, RPL_WELCOME)
	return client, conn
}

func TestRegistrationOrderIndependence(t *testing.T) {
	server := newTestServer(t)

	// NICK then USER
	alice, aliceConn := newClientPair(server)
	runLine(t, server, alice, "NICK alice")
	if alice.Registered() {
		t.Errorf("client should not be registered after NICK alone")
	}
	runLine(t, server, alice, "USER alice 0 * :Alice")
	if !alice.Registered() {
		t.Errorf("client should be registered after NICK+USER")
	}
	waitForLine(t, aliceConn, RPL_WELCOME)
	waitForLine(t, aliceConn, "Welcome to the TestNet IRC Network")
	if alice.Username() != "~alice" {
		t.Errorf("expected username ~alice, got %s", alice.Username())
	}
	if alice.Realname() != "Alice" {
		t.Errorf("expected realname Alice, got %s", alice.Realname())
	}

	// USER then NICK must work equally well
	bob, bobConn := newClientPair(server)
	runLine(t, server, bob, "USER bob 0 * :Bob")
	if bob.Registered() {
		t.Errorf("client should not be registered after USER alone")
	}
	runLine(t, server, bob, "NICK bob")
	if !bob.Registered() {
		t.Errorf("client should be registered after USER+NICK")
	}
	waitForLine(t, bobConn, RPL_WELCOME)
}

func TestRegistrationGating(t *testing.T) {
	server := newTestServer(t)
	client, conn := newClientPair(server)

	runLine(t, server, client, "JOIN #test")
	waitForLine(t, conn, ERR_NOTREGISTERED)

	if server.channels.Get("#test") != nil {
		t.Errorf("unregistered client should not be able to create channels")
	}

	// PING is exempt from the gate, so clients can keep the connection
	// alive during a slow handshake
	runLine(t, server, client, "PING 12345")
	waitForLine(t, conn, "PONG")
	var gated int
	for _, line := range conn.Lines() {
		if strings.Contains(line, " "+ERR_NOTREGISTERED+" ") {
			gated++
		}
	}
	if gated != 1 {
		t.Errorf("expected exactly one gated command, got %d", gated)
	}
}

func TestConnectionPassword(t *testing.T) {
	server := newTestServer(t)
	hash, err := passwd.GenerateFromPassword([]byte("letmein"), passwd.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	server.config.Server.passwordBytes = hash

	// the correct password authorizes the connection
	alice, aliceConn := newClientPair(server)
	alice.authorized = false
	runLine(t, server, alice, "PASS letmein")
	if !alice.Authorized() {
		t.Errorf("correct PASS should authorize the connection")
	}
	runLine(t, server, alice, "NICK alice")
	runLine(t, server, alice, "USER alice 0 * :Alice")
	waitForLine(t, aliceConn, RPL_WELCOME)

	// a wrong password is rejected as soon as it arrives
	intruder, intruderConn := newClientPair(server)
	intruder.authorized = false
	if exiting := runLine(t, server, intruder, "PASS opensesame"); !exiting {
		t.Errorf("wrong PASS should terminate the connection")
	}
	waitForLine(t, intruderConn, ERR_PASSWDMISMATCH)

	// skipping PASS entirely is caught at registration time
	ghost, ghostConn := newClientPair(server)
	ghost.authorized = false
	runLine(t, server, ghost, "NICK ghost")
	if exiting := runLine(t, server, ghost, "USER ghost 0 * :Ghost"); !exiting {
		t.Errorf("registering without PASS should terminate the connection")
	}
	waitForLine(t, ghostConn, ERR_PASSWDMISMATCH)
	if ghost.Registered() {
		t.Errorf("unauthorized client should not complete registration")
	}
}

func TestNickCollision(t *testing.T) {
	server := newTestServer(t)
	registerClient(t, server, "alice")

	intruder, intruderConn := newClientPair(server)
	runLine(t, server, intruder, "NICK ALICE")
	waitForLine(t, intruderConn, ERR_NICKNAMEINUSE)
	if intruder.Nick() != "" {
		t.Errorf("collision should leave the claimant nickless, got %s", intruder.Nick())
	}
}

func TestNickChangeFanout(t *testing.T) {
	server := newTestServer(t)
	alice, aliceConn := registerClient(t, server, "alice")
	_, bobConn := registerClient(t, server, "bob")

	runLine(t, server, alice, "JOIN #test")
	bob := server.clients.Get("bob")
	runLine(t, server, bob, "JOIN #test")
	waitForLine(t, aliceConn, "bob") // bob's JOIN

	runLine(t, server, alice, "NICK alyx")

	// both the renaming client and its channel peers see the old mask
	waitForLine(t, aliceConn, "alice!~alice@127.0.0.1 NICK alyx")
	waitForLine(t, bobConn, "alice!~alice@127.0.0.1 NICK alyx")

	if server.clients.Get("alice") != nil {
		t.Errorf("old nickname should be released after rename")
	}
	if server.clients.Get("alyx") != alice {
		t.Errorf("new nickname should resolve to the renamed client")
	}
	if alice.NickCasefolded() != "alyx" {
		t.Errorf("expected casefolded nick alyx, got %s", alice.NickCasefolded())
	}
	// membership is keyed on the client, not the nickname
	if !server.channels.Get("#test").hasClient(alice) {
		t.Errorf("rename should not disturb channel membership")
	}
}

func TestChannelFanout(t *testing.T) {
	server := newTestServer(t)
	alice, aliceConn := registerClient(t, server, "alice")
	bob, bobConn := registerClient(t, server, "bob")

	runLine(t, server, alice, "JOIN #test")
	// the joiner sees their own JOIN
	waitForLine(t, aliceConn, "alice!~alice@127.0.0.1 JOIN #test")

	runLine(t, server, bob, "JOIN #test")
	waitForLine(t, bobConn, "bob!~bob@127.0.0.1 JOIN #test")
	waitForLine(t, aliceConn, "bob!~bob@127.0.0.1 JOIN #test")

	runLine(t, server, alice, "PRIVMSG #test :hello world")
	waitForLine(t, bobConn, "alice!~alice@127.0.0.1 PRIVMSG #test :hello world")
	// the message fanout excludes the sender
	if aliceConn.hasLineContaining("PRIVMSG #test :hello world") {
		t.Errorf("sender should not receive their own channel message")
	}

	runLine(t, server, bob, "PART #test :goodbye for now")
	// the departing member is included in the PART fanout
	waitForLine(t, bobConn, "bob!~bob@127.0.0.1 PART #test :goodbye for now")
	waitForLine(t, aliceConn, "bob!~bob@127.0.0.1 PART #test :goodbye for now")

	runLine(t, server, alice, "PRIVMSG #test :anyone home")
	if bobConn.hasLineContaining("anyone home") {
		t.Errorf("parted member should not receive channel messages")
	}
}

func TestChannelMembershipRequired(t *testing.T) {
	server := newTestServer(t)
	alice, _ := registerClient(t, server, "alice")
	bob, bobConn := registerClient(t, server, "bob")

	runLine(t, server, alice, "JOIN #test")
	runLine(t, server, bob, "PRIVMSG #test :sneaky")
	waitForLine(t, bobConn, ERR_CANNOTSENDTOCHAN)

	// NOTICE errors are always silent
	runLine(t, server, bob, "NOTICE #nowhere :sneaky")
	if bobConn.hasLineContaining(ERR_NOSUCHCHANNEL) {
		t.Errorf("NOTICE must not produce error replies")
	}
}

func TestDirectMessage(t *testing.T) {
	server := newTestServer(t)
	alice, aliceConn := registerClient(t, server, "alice")
	_, bobConn := registerClient(t, server, "bob")

	runLine(t, server, alice, "PRIVMSG bob :hi bob")
	waitForLine(t, bobConn, "alice!~alice@127.0.0.1 PRIVMSG bob :hi bob")

	runLine(t, server, alice, "PRIVMSG ghost :anyone")
	waitForLine(t, aliceConn, ERR_NOSUCHNICK)

	// away status is reported back to the sender
	bob := server.clients.Get("bob")
	runLine(t, server, bob, "AWAY :gone fishing")
	waitForLine(t, bobConn, RPL_NOWAWAY)
	runLine(t, server, alice, "PRIVMSG bob :you there?")
	waitForLine(t, aliceConn, "gone fishing")
}

func TestQuitCleanup(t *testing.T) {
	server := newTestServer(t)
	alice, _ := registerClient(t, server, "alice")
	bob, bobConn := registerClient(t, server, "bob")

	runLine(t, server, alice, "JOIN #test")
	runLine(t, server, bob, "JOIN #test")
	waitForLine(t, bobConn, "bob!~bob@127.0.0.1 JOIN #test")

	if exiting := runLine(t, server, alice, "QUIT :out"); !exiting {
		t.Fatalf("QUIT should terminate the connection")
	}
	alice.destroy()

	waitForLine(t, bobConn, "alice!~alice@127.0.0.1 QUIT :Quit: out")

	if server.clients.Get("alice") != nil {
		t.Errorf("quit client should be removed from the nick registry")
	}
	channel := server.channels.Get("#test")
	if channel == nil {
		t.Fatalf("channel with remaining members should survive")
	}
	if channel.hasClient(alice) {
		t.Errorf("quit client should be removed from channel members")
	}

	if !alice.Destroyed() {
		t.Errorf("quit client should be marked destroyed")
	}
	// destroying again must be a no-op
	alice.destroy()
}

func TestAwayMessageTruncation(t *testing.T) {
	server := newTestServer(t)
	alice, aliceConn := registerClient(t, server, "alice")

	// 300 bytes of 3-byte runes against a 200-byte limit; the cut must
	// not fall inside a rune
	snowmen := strings.Repeat("☃", 100)
	runLine(t, server, alice, "AWAY :"+snowmen)
	waitForLine(t, aliceConn, RPL_NOWAWAY)

	away, message := alice.AwayMessage()
	if !away {
		t.Fatalf("client should be marked away")
	}
	awayLen := server.Config().Limits.AwayLen
	if len(message) > awayLen {
		t.Errorf("away message is %d bytes, limit is %d", len(message), awayLen)
	}
	if !utf8.ValidString(message) {
		t.Errorf("truncation produced an invalid UTF8 away message")
	}
	if !strings.HasPrefix(snowmen, message) || len(message) < awayLen-2 {
		t.Errorf("expected a maximal whole-rune prefix, got %d bytes", len(message))
	}
}

func TestEmptyChannelReaped(t *testing.T) {
	server := newTestServer(t)
	alice, _ := registerClient(t, server, "alice")

	runLine(t, server, alice, "JOIN #fleeting")
	if server.channels.Get("#fleeting") == nil {
		t.Fatalf("channel should exist after join")
	}
	runLine(t, server, alice, "PART #fleeting")
	if server.channels.Get("#fleeting") != nil {
		t.Errorf("empty channel should be reaped after last part")
	}
	if server.channels.Len() != 0 {
		t.Errorf("expected no channels, got %d", server.channels.Len())
	}
}

func TestTopic(t *testing.T) {
	server := newTestServer(t)
	alice, aliceConn := registerClient(t, server, "alice")
	bob, bobConn := registerClient(t, server, "bob")

	runLine(t, server, alice, "JOIN #test")
	runLine(t, server, alice, "TOPIC #test :stand back")
	waitForLine(t, aliceConn, "TOPIC #test :stand back")

	// a later joiner is sent the topic on join
	runLine(t, server, bob, "JOIN #test")
	waitForLine(t, bobConn, RPL_TOPIC)
	waitForLine(t, bobConn, "stand back")

	// setting requires membership
	charlie, charlieConn := registerClient(t, server, "charlie")
	runLine(t, server, charlie, "TOPIC #test :vandalism")
	waitForLine(t, charlieConn, ERR_NOTONCHANNEL)
}
