package handoff

import (
	"sync"

	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/omlog"
	"github.com/openmana/accountserver/engine/token"
)

// Session is what a redeemed handoff token resolves to
type Session struct {
	AccountID   common.AccountID
	CharacterID common.CharacterID
}

// Broker issues one-shot handoff tokens and resolves them when a game
// server presents a reconnecting client's token
type Broker struct {
	sync.Mutex
	dispenser token.Dispenser
	pending   map[string]Session
	byChar    map[common.CharacterID]string
}

// NewBroker creates a Broker backed by dispenser
func NewBroker(dispenser token.Dispenser) *Broker {
	return &Broker{
		dispenser: dispenser,
		pending:   map[string]Session{},
		byChar:    map[common.CharacterID]string{},
	}
}

// Issue mints a fresh token for the character. A previously issued token
// of the same character that was never redeemed is evicted, so at most
// one token per character is outstanding.
func (b *Broker) Issue(accountID common.AccountID, charID common.CharacterID) string {
	tok := b.dispenser.Next()

	b.Lock()
	if old, ok := b.byChar[charID]; ok {
		delete(b.pending, old)
		omlog.Debugf("handoff: evicting stale token of character %d", charID)
	}
	b.pending[tok] = Session{AccountID: accountID, CharacterID: charID}
	b.byChar[charID] = tok
	b.Unlock()

	return tok
}

// Prepare records an externally minted token, e.g. one generated while
// answering a reconnect request
func (b *Broker) Prepare(tok string, accountID common.AccountID, charID common.CharacterID) {
	b.Lock()
	if old, ok := b.byChar[charID]; ok {
		delete(b.pending, old)
	}
	b.pending[tok] = Session{AccountID: accountID, CharacterID: charID}
	b.byChar[charID] = tok
	b.Unlock()
}

// Redeem consumes tok and returns the session it was issued for. A token
// can be redeemed exactly once; the second redeem fails.
func (b *Broker) Redeem(tok string) (Session, bool) {
	b.Lock()
	defer b.Unlock()

	session, ok := b.pending[tok]
	if !ok {
		return Session{}, false
	}
	delete(b.pending, tok)
	if b.byChar[session.CharacterID] == tok {
		delete(b.byChar, session.CharacterID)
	}
	return session, true
}

// PendingCount returns the number of outstanding unredeemed tokens
func (b *Broker) PendingCount() int {
	b.Lock()
	n := len(b.pending)
	b.Unlock()
	return n
}
