// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"strings"
	"time"

	"github.com/ergochat/peregrine/irc/passwd"
	"github.com/ergochat/peregrine/irc/utils"
)

// PASS <password>
func passHandler(server *Server, client *Client, cmd Command) bool {
	passCmd := cmd.(PassCommand)

	if client.Registered() {
		client.Send(nil, server.name, ERR_ALREADYREGISTERED, client.nickParam(), "You may not reregister")
		return false
	}

	serverPassword := server.Password()
	if serverPassword == nil {
		// no password is required; accept anything silently
		return false
	}

	if passwd.CompareHashAndPassword(serverPassword, []byte(passCmd.Password)) == nil {
		client.SetAuthorized(true)
		return false
	}

	client.Send(nil, server.name, ERR_PASSWDMISMATCH, client.nickParam(), "Password incorrect")
	client.Quit("Password incorrect")
	return true
}

// NICK <nickname>
func nickHandler(server *Server, client *Client, cmd Command) bool {
	nickCmd := cmd.(NickCommand)
	performNickChange(server, client, nickCmd.Nickname)
	return false
}

func performNickChange(server *Server, client *Client, newNick string) {
	if len(newNick) > server.Config().Limits.NickLen {
		client.Send(nil, server.name, ERR_ERRONEUSNICKNAME, client.nickParam(), newNick, "Erroneous nickname")
		return
	}

	oldNickMask := client.NickMaskString()
	wasRegistered := client.Registered()

	// snapshot the rename audience before the claim; memberships are
	// keyed on the *Client so the rename itself doesn't touch them
	var friends ClientSet
	if wasRegistered {
		friends = client.Friends()
	}

	setNick, err := server.clients.SetNick(client, newNick)
	switch err {
	case nil:
		// success
	case errNicknameInUse:
		client.Send(nil, server.name, ERR_NICKNAMEINUSE, client.nickParam(), newNick, "Nickname is already in use")
		return
	default:
		client.Send(nil, server.name, ERR_ERRONEUSNICKNAME, client.nickParam(), newNick, "Erroneous nickname")
		return
	}

	if wasRegistered {
		server.logger.Debug("nick", oldNickMask, "changed nickname to", setNick)
		for friend := range friends {
			friend.Send(nil, oldNickMask, "NICK", setNick)
		}
	}
}

// USER <username> <hostname> <servername> <realname>
func userHandler(server *Server, client *Client, cmd Command) bool {
	userCmd := cmd.(UserCommand)

	if client.Registered() {
		client.Send(nil, server.name, ERR_ALREADYREGISTERED, client.nickParam(), "You may not reregister")
		return false
	}

	err := client.SetNames(userCmd.Username, userCmd.Realname, false)
	if err != nil {
		client.Send(nil, server.name, ERR_INVALIDUSERNAME, client.nickParam(), "Malformed username")
	}
	return false
}

// PING <token> [<target>]
func pingHandler(server *Server, client *Client, cmd Command) bool {
	pingCmd := cmd.(PingCommand)
	client.Send(nil, server.name, "PONG", server.name, pingCmd.Token)
	return false
}

// PONG <token>
func pongHandler(server *Server, client *Client, cmd Command) bool {
	// client is already marked as active upon receipt of any command
	return false
}

// QUIT [<reason>]
func quitHandler(server *Server, client *Client, cmd Command) bool {
	quitCmd := cmd.(QuitCommand)
	reason := "Client Quit"
	if quitCmd.Reason != "" {
		reason = "Quit: " + quitCmd.Reason
	}
	client.Quit(reason)
	return true
}

// JOIN <channel>{,<channel>} [<key>{,<key>}]
func joinHandler(server *Server, client *Client, cmd Command) bool {
	joinCmd := cmd.(JoinCommand)

	// "JOIN 0" is historically "part all channels": too dangerous to
	// honor, since it's often the result of a typo
	if len(joinCmd.Channels) == 1 && joinCmd.Channels[0] == "0" {
		client.Notice("JOIN 0 is not allowed")
		return false
	}

	for _, name := range joinCmd.Channels {
		err := server.channels.Join(client, name)
		if err != nil {
			sendJoinError(server, client, name, err)
		}
	}
	return false
}

func sendJoinError(server *Server, client *Client, name string, err error) {
	var description string
	switch err {
	case errConfusableIdentifier:
		description = "Channel name is confusable with an existing one"
	default:
		description = "No such channel"
	}
	client.Send(nil, server.name, ERR_NOSUCHCHANNEL, client.nickParam(), name, description)
}

// PART <channel>{,<channel>} [<reason>]
func partHandler(server *Server, client *Client, cmd Command) bool {
	partCmd := cmd.(PartCommand)
	for _, name := range partCmd.Channels {
		err := server.channels.Part(client, name, partCmd.Reason)
		switch err {
		case nil:
			// success
		case errNotOnChannel:
			client.Send(nil, server.name, ERR_NOTONCHANNEL, client.nickParam(), name, "You're not on that channel")
		default:
			client.Send(nil, server.name, ERR_NOSUCHCHANNEL, client.nickParam(), name, "No such channel")
		}
	}
	return false
}

// PRIVMSG <target>{,<target>} <message>
func privmsgHandler(server *Server, client *Client, cmd Command) bool {
	msgCmd := cmd.(PrivmsgCommand)
	messageHandler(server, client, "PRIVMSG", msgCmd.Targets, msgCmd.Message)
	return false
}

// NOTICE <target>{,<target>} <message>
func noticeHandler(server *Server, client *Client, cmd Command) bool {
	msgCmd := cmd.(NoticeCommand)
	messageHandler(server, client, "NOTICE", msgCmd.Targets, msgCmd.Message)
	return false
}

func messageHandler(server *Server, client *Client, command string, targets []string, message string) {
	// NOTICE may never produce an automatic reply of any kind
	notice := command == "NOTICE"

	if maxTargets < len(targets) {
		targets = targets[:maxTargets]
	}

	for _, target := range targets {
		if strings.HasPrefix(target, "#") {
			channel := server.channels.Get(target)
			if channel == nil {
				if !notice {
					client.Send(nil, server.name, ERR_NOSUCHCHANNEL, client.nickParam(), target, "No such channel")
				}
				continue
			}
			err := channel.PrivMsg(command, client, message)
			if err != nil && !notice {
				client.Send(nil, server.name, ERR_CANNOTSENDTOCHAN, client.nickParam(), channel.Name(), "Cannot send to channel")
			}
		} else {
			user := server.clients.Get(target)
			if user == nil {
				if !notice {
					client.Send(nil, server.name, ERR_NOSUCHNICK, client.nickParam(), target, "No such nick")
				}
				continue
			}
			user.Send(nil, client.NickMaskString(), command, user.Nick(), message)
			if !notice {
				if away, awayMessage := user.AwayMessage(); away {
					client.Send(nil, server.name, RPL_AWAY, client.Nick(), user.Nick(), awayMessage)
				}
			}
		}
	}
}

// AWAY [<message>]
func awayHandler(server *Server, client *Client, cmd Command) bool {
	awayCmd := cmd.(AwayCommand)

	message := utils.TruncateUTF8Safe(awayCmd.Message, server.Config().Limits.AwayLen)
	client.SetAwayMessage(message)

	if message != "" {
		client.Send(nil, server.name, RPL_NOWAWAY, client.Nick(), "You have been marked as being away")
	} else {
		client.Send(nil, server.name, RPL_UNAWAY, client.Nick(), "You are no longer marked as being away")
	}
	return false
}

// TOPIC <channel> [<topic>]
func topicHandler(server *Server, client *Client, cmd Command) bool {
	topicCmd := cmd.(TopicCommand)

	channel := server.channels.Get(topicCmd.Channel)
	if channel == nil {
		client.Send(nil, server.name, ERR_NOSUCHCHANNEL, client.nickParam(), topicCmd.Channel, "No such channel")
		return false
	}

	if !topicCmd.SetTopic {
		channel.SendTopic(client)
		return false
	}

	topic := utils.TruncateUTF8Safe(topicCmd.Topic, server.Config().Limits.TopicLen)
	if err := channel.SetTopic(client, topic); err != nil {
		client.Send(nil, server.name, ERR_NOTONCHANNEL, client.nickParam(), channel.Name(), "You're not on that channel")
	}
	return false
}

// NAMES [<channel>{,<channel>}]
func namesHandler(server *Server, client *Client, cmd Command) bool {
	namesCmd := cmd.(NamesCommand)

	if len(namesCmd.Channels) == 0 {
		client.Send(nil, server.name, RPL_ENDOFNAMES, client.Nick(), "*", "End of NAMES list")
		return false
	}

	for _, name := range namesCmd.Channels {
		channel := server.channels.Get(name)
		if channel != nil {
			channel.Names(client)
		} else {
			client.Send(nil, server.name, RPL_ENDOFNAMES, client.Nick(), name, "End of NAMES list")
		}
	}
	return false
}

// LIST [<channel>{,<channel>}]
func listHandler(server *Server, client *Client, cmd Command) bool {
	listCmd := cmd.(ListCommand)

	if len(listCmd.Channels) == 0 {
		for _, channel := range server.channels.Channels() {
			channel.listItem(client)
		}
	} else {
		for _, name := range listCmd.Channels {
			channel := server.channels.Get(name)
			if channel == nil {
				client.Send(nil, server.name, ERR_NOSUCHCHANNEL, client.nickParam(), name, "No such channel")
				continue
			}
			channel.listItem(client)
		}
	}

	client.Send(nil, server.name, RPL_LISTEND, client.Nick(), "End of LIST")
	return false
}

// MOTD
func motdHandler(server *Server, client *Client, cmd Command) bool {
	server.MOTD(client)
	return false
}

// VERSION
func versionHandler(server *Server, client *Client, cmd Command) bool {
	client.Send(nil, server.name, RPL_VERSION, client.Nick(), Ver, server.name)
	server.RplISupport(client)
	return false
}

// TIME
func timeHandler(server *Server, client *Client, cmd Command) bool {
	client.Send(nil, server.name, RPL_TIME, client.Nick(), server.name, time.Now().UTC().Format(time.RFC1123))
	return false
}
