package server

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/presbrey/ircd/irc"
)

// EventKind enumerates controller lifecycle events
type EventKind int

const (
	SessionCreated EventKind = iota
	SessionDestroyed
	NicknameChanged
	ChannelCreated
	ChannelJoined
	ChannelParted
	TopicChanged
)

var eventKindNames = map[EventKind]string{
	SessionCreated:   "SessionCreated",
	SessionDestroyed: "SessionDestroyed",
	NicknameChanged:  "NicknameChanged",
	ChannelCreated:   "ChannelCreated",
	ChannelJoined:    "ChannelJoined",
	ChannelParted:    "ChannelParted",
	TopicChanged:     "TopicChanged",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is published by the controller after the state change it describes
// has been applied and the lock released. Fields that do not apply to the
// kind are left zero.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Session *Session
	ID      irc.ConnectionID
	Nick    irc.Nickname
	OldNick irc.Nickname
	Channel irc.ChannelName
	Topic   irc.Topic
}

// Subscriber receives events
type Subscriber func(ev Event) error

type subscriberInfo struct {
	Name       string
	Subscriber Subscriber
	Priority   int64 // lower values run first, like Unix nice
}

// Events dispatches controller events to subscribers in priority order
type Events struct {
	mu   sync.RWMutex
	subs []subscriberInfo
}

// NewEvents creates an empty dispatcher
func NewEvents() *Events {
	return &Events{
		subs: make([]subscriberInfo, 0),
	}
}

// Subscribe adds a named subscriber with default priority (0)
func (e *Events) Subscribe(name string, fn Subscriber) {
	e.SubscribeWithPriority(name, fn, 0)
}

// SubscribeWithPriority adds a named subscriber. Subscribers with lower
// priority values run first.
func (e *Events) SubscribeWithPriority(name string, fn Subscriber, priority int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subs = append(e.subs, subscriberInfo{
		Name:       name,
		Subscriber: fn,
		Priority:   priority,
	})
	sort.SliceStable(e.subs, func(i, j int) bool {
		return e.subs[i].Priority < e.subs[j].Priority
	})
}

// Publish runs every subscriber with ev. A subscriber that fails or panics
// does not stop the others; the failures are returned keyed by name.
func (e *Events) Publish(ev Event) map[string]error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.RLock()
	subs := make([]subscriberInfo, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	errs := make(map[string]error)
	for _, info := range subs {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("PANIC in event subscriber %s: %v", info.Name, r)
					err = fmt.Errorf("panic in event subscriber %s: %v", info.Name, r)
				}
			}()
			return info.Subscriber(ev)
		}()

		if err != nil {
			errs[info.Name] = err
			log.Printf("ERROR in event subscriber %s for %s: %v", info.Name, ev.Kind, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Count returns the number of subscribers
func (e *Events) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.subs)
}
