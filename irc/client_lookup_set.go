// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"sync"
)

// ClientManager keeps track of clients by nickname. All accesses to
// the maps are guarded by the embedded mutex; the casefolded nickname
// is the canonical key, with a parallel index of nickname skeletons
// for confusable-nickname protection.
type ClientManager struct {
	sync.RWMutex // tier 2
	byNick       map[string]*Client
	bySkeleton   map[string]*Client
}

// Initialize initializes a ClientManager.
func (clients *ClientManager) Initialize() {
	clients.byNick = make(map[string]*Client)
	clients.bySkeleton = make(map[string]*Client)
}

// Count returns how many clients are currently registered.
func (clients *ClientManager) Count() int {
	clients.RLock()
	defer clients.RUnlock()
	return len(clients.byNick)
}

// Get retrieves a client from the manager, if they exist.
func (clients *ClientManager) Get(nick string) *Client {
	casefoldedName, err := CasefoldName(nick)
	if err != nil {
		return nil
	}
	clients.RLock()
	defer clients.RUnlock()
	return clients.byNick[casefoldedName]
}

// AllClients returns a snapshot of all clients in the manager.
func (clients *ClientManager) AllClients() (result []*Client) {
	clients.RLock()
	defer clients.RUnlock()
	result = make([]*Client, 0, len(clients.byNick))
	for _, client := range clients.byNick {
		result = append(result, client)
	}
	return
}

// SetNick claims the given nickname for the client, atomically
// releasing their old nickname (if any). Two clients can never hold
// the same casefolded nickname, or nicknames whose skeletons collide.
// Only the client itself can change its own entry.
func (clients *ClientManager) SetNick(client *Client, newNick string) (setNick string, err error) {
	newCfNick, err := CasefoldName(newNick)
	if err != nil {
		return "", errNicknameInvalid
	}
	newSkeleton, err := Skeleton(newNick)
	if err != nil {
		return "", errNicknameInvalid
	}

	clients.Lock()
	defer clients.Unlock()

	currentClient, present := clients.byNick[newCfNick]
	if present && currentClient != client {
		return "", errNicknameInUse
	}
	skeletonHolder, present := clients.bySkeleton[newSkeleton]
	if present && skeletonHolder != client {
		return "", errNicknameInUse
	}

	// remove the old entries, claim the new ones, and update the
	// client's own view of itself, all in one critical section; a
	// concurrent claim of either nickname observes the registry
	// before or after, never in between
	client.stateMutex.Lock()
	oldCfNick := client.nickCasefolded
	oldSkeleton := client.skeleton
	client.nick = newNick
	client.nickCasefolded = newCfNick
	client.skeleton = newSkeleton
	client.updateNickMaskNoMutex()
	client.stateMutex.Unlock()

	if oldCfNick != "" {
		delete(clients.byNick, oldCfNick)
	}
	if oldSkeleton != "" {
		delete(clients.bySkeleton, oldSkeleton)
	}
	clients.byNick[newCfNick] = client
	clients.bySkeleton[newSkeleton] = client

	return newNick, nil
}

// Remove removes a client from the lookup set.
func (clients *ClientManager) Remove(client *Client) error {
	clients.Lock()
	defer clients.Unlock()

	client.stateMutex.RLock()
	cfNick := client.nickCasefolded
	skeleton := client.skeleton
	client.stateMutex.RUnlock()

	if cfNick == "" {
		return errNoSuchClient
	}
	if clients.byNick[cfNick] == client {
		delete(clients.byNick, cfNick)
	}
	if clients.bySkeleton[skeleton] == client {
		delete(clients.bySkeleton, skeleton)
	}
	return nil
}
