// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Channel represents a channel that clients can join.
type Channel struct {
	server *Server

	stateMutex     sync.RWMutex // tier 1
	name           string
	nameCasefolded string
	members        MemberSet
	membersCache   []*Client // allow O(1) lookup of channel members outside the lock
	topic          string
	topicSetBy     string
	topicSetTime   time.Time
	createdTime    time.Time
}

// NewChannel creates a new channel from a `name` string.
func NewChannel(s *Server, name, casefoldedName string) *Channel {
	return &Channel{
		server:         s,
		name:           name,
		nameCasefolded: casefoldedName,
		members:        make(MemberSet),
		createdTime:    time.Now().UTC(),
	}
}

// regenerateMembersCache regenerates the members cache. The lock must
// be held.
func (channel *Channel) regenerateMembersCache() {
	result := make([]*Client, 0, len(channel.members))
	for member := range channel.members {
		result = append(result, member)
	}
	channel.membersCache = result
}

func (channel *Channel) hasClient(client *Client) bool {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	return channel.members.Has(client)
}

// Join joins the given client to this channel and runs the JOIN
// fanout. The fanout includes the joining client: seeing your own JOIN
// echoed back is the confirmation that the join happened.
func (channel *Channel) Join(client *Client) {
	channel.stateMutex.Lock()
	alreadyJoined := channel.members.Has(client)
	if !alreadyJoined {
		channel.members.Add(client)
		channel.regenerateMembersCache()
	}
	members := channel.membersCache
	channelName := channel.name
	channel.stateMutex.Unlock()

	if alreadyJoined {
		return
	}

	client.addChannel(channel)

	nickMask := client.NickMaskString()
	for _, member := range members {
		member.Send(nil, nickMask, "JOIN", channelName)
	}

	if hasTopic, _, _, _ := channel.Topic(); hasTopic {
		channel.SendTopic(client)
	}
	channel.Names(client)
}

// Part parts the given client from this channel. The fanout happens
// before the membership is removed, so the departing client sees their
// own PART confirmed.
func (channel *Channel) Part(client *Client, message string) error {
	channel.stateMutex.Lock()
	if !channel.members.Has(client) {
		channel.stateMutex.Unlock()
		return errNotOnChannel
	}
	members := channel.membersCache
	channelName := channel.name
	channel.members.Remove(client)
	channel.regenerateMembersCache()
	channel.stateMutex.Unlock()

	client.removeChannel(channel)

	nickMask := client.NickMaskString()
	params := make([]string, 1, 2)
	params[0] = channelName
	if message != "" {
		params = append(params, message)
	}
	// `members` still includes the departing client
	for _, member := range members {
		member.Send(nil, nickMask, "PART", params...)
	}

	return nil
}

// Quit removes the given client from the channel without any fanout
// of its own; the caller is responsible for the QUIT broadcast.
func (channel *Channel) Quit(client *Client) {
	channel.stateMutex.Lock()
	channel.members.Remove(client)
	channel.regenerateMembersCache()
	channel.stateMutex.Unlock()

	client.removeChannel(channel)
}

// PrivMsg delivers a PRIVMSG or NOTICE to every channel member except
// the sender. Membership is required to send.
func (channel *Channel) PrivMsg(command string, client *Client, message string) error {
	channel.stateMutex.RLock()
	isMember := channel.members.Has(client)
	members := channel.membersCache
	channelName := channel.name
	channel.stateMutex.RUnlock()

	if !isMember {
		return errNotOnChannel
	}

	nickMask := client.NickMaskString()
	for _, member := range members {
		if member == client {
			continue
		}
		member.Send(nil, nickMask, command, channelName, message)
	}
	return nil
}

// Topic returns the channel topic and its provenance.
func (channel *Channel) Topic() (hasTopic bool, topic string, setBy string, setTime time.Time) {
	channel.stateMutex.RLock()
	defer channel.stateMutex.RUnlock()
	return channel.topic != "", channel.topic, channel.topicSetBy, channel.topicSetTime
}

// SendTopic sends the channel topic to the given client.
func (channel *Channel) SendTopic(client *Client) {
	hasTopic, topic, setBy, setTime := channel.Topic()
	name := channel.Name()
	nick := client.Nick()
	if !hasTopic {
		client.Send(nil, client.server.name, RPL_NOTOPIC, nick, name, "No topic is set")
		return
	}
	client.Send(nil, client.server.name, RPL_TOPIC, nick, name, topic)
	client.Send(nil, client.server.name, RPL_TOPICTIME, nick, name, setBy, strconv.FormatInt(setTime.Unix(), 10))
}

// SetTopic sets the channel topic and fans the change out to all
// members, the setter included. An empty topic clears it.
func (channel *Channel) SetTopic(client *Client, topic string) error {
	nickMask := client.NickMaskString()

	channel.stateMutex.Lock()
	if !channel.members.Has(client) {
		channel.stateMutex.Unlock()
		return errNotOnChannel
	}
	channel.topic = topic
	channel.topicSetBy = nickMask
	channel.topicSetTime = time.Now().UTC()
	members := channel.membersCache
	channel.stateMutex.Unlock()

	channelName := channel.Name()
	for _, member := range members {
		member.Send(nil, nickMask, "TOPIC", channelName, topic)
	}
	return nil
}

// Names sends the list of members to the given client.
func (channel *Channel) Names(client *Client) {
	channel.stateMutex.RLock()
	members := channel.membersCache
	channelName := channel.name
	channel.stateMutex.RUnlock()

	nicks := make([]string, len(members))
	for i, member := range members {
		nicks[i] = member.Nick()
	}

	nick := client.Nick()
	// "=" means a public channel; we have no secret or private ones
	client.Send(nil, client.server.name, RPL_NAMREPLY, nick, "=", channelName, strings.Join(nicks, " "))
	client.Send(nil, client.server.name, RPL_ENDOFNAMES, nick, channelName, "End of NAMES list")
}

// listItem sends the RPL_LIST line describing this channel.
func (channel *Channel) listItem(client *Client) {
	channel.stateMutex.RLock()
	name := channel.name
	memberCount := len(channel.members)
	topic := channel.topic
	channel.stateMutex.RUnlock()

	client.Send(nil, client.server.name, RPL_LIST, client.Nick(), name, strconv.Itoa(memberCount), topic)
}

func (channel *Channel) String() string {
	return fmt.Sprintf("channel %s", channel.Name())
}
