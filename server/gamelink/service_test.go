package gamelink

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/netutil"
	"github.com/openmana/accountserver/engine/proto"
	"github.com/openmana/accountserver/engine/storage"
	"github.com/openmana/accountserver/engine/token"
	"github.com/openmana/accountserver/server/handoff"
	"github.com/openmana/accountserver/server/registry"
)

type memStorage struct {
	sync.Mutex
	chars     map[common.CharacterID]*storage.Character
	questVars map[common.CharacterID]map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{
		chars:     map[common.CharacterID]*storage.Character{},
		questVars: map[common.CharacterID]map[string]string{},
	}
}

func (m *memStorage) Fetch(id common.CharacterID) (*storage.Character, error) {
	m.Lock()
	defer m.Unlock()
	ch, ok := m.chars[id]
	if !ok {
		return nil, storage.ErrCharacterNotFound
	}
	cp := *ch
	cp.GameData = append([]byte(nil), ch.GameData...)
	return &cp, nil
}

func (m *memStorage) Persist(ch *storage.Character) error {
	m.Lock()
	defer m.Unlock()
	cp := *ch
	cp.GameData = append([]byte(nil), ch.GameData...)
	m.chars[ch.ID] = &cp
	return nil
}

func (m *memStorage) QuestVar(id common.CharacterID, name string) (string, error) {
	m.Lock()
	defer m.Unlock()
	return m.questVars[id][name], nil
}

func (m *memStorage) SetQuestVar(id common.CharacterID, name string, value string) error {
	m.Lock()
	defer m.Unlock()
	vars, ok := m.questVars[id]
	if !ok {
		vars = map[string]string{}
		m.questVars[id] = vars
	}
	vars[name] = value
	return nil
}

func (m *memStorage) Ban(id common.CharacterID, until int64) error {
	m.Lock()
	defer m.Unlock()
	ch, ok := m.chars[id]
	if !ok {
		return storage.ErrCharacterNotFound
	}
	ch.BanUntil = until
	return nil
}

func (m *memStorage) Close() {}

type reconnectCall struct {
	tok       string
	accountID common.AccountID
	charID    common.CharacterID
}

type reconnectRecorder struct {
	calls chan reconnectCall
}

func newReconnectRecorder() *reconnectRecorder {
	return &reconnectRecorder{calls: make(chan reconnectCall, 16)}
}

func (r *reconnectRecorder) Prepare(tok string, accountID common.AccountID, charID common.CharacterID) {
	r.calls <- reconnectCall{tok, accountID, charID}
}

type testEnv struct {
	service   *Service
	reg       *registry.MapRegistry
	broker    *handoff.Broker
	store     *memStorage
	reconnect *reconnectRecorder
}

func newTestEnv() *testEnv {
	reg := registry.NewMapRegistry()
	broker := handoff.NewBroker(token.NewDispenser())
	store := newMemStorage()
	reconnect := newReconnectRecorder()
	return &testEnv{
		service:   NewService(reg, broker, store, reconnect),
		reg:       reg,
		broker:    broker,
		store:     store,
		reconnect: reconnect,
	}
}

func (env *testEnv) putCharacter(id common.CharacterID, accountID common.AccountID, name string, mapID common.MapID) {
	env.store.Persist(&storage.Character{
		ID: id, AccountID: accountID, Name: name, MapID: mapID,
		GameData: []byte{byte(mapID), 0},
	})
}

// testClient drives one game server connection from the peer side
type testClient struct {
	rawConn    net.Conn
	packetConn netutil.PacketConnection
}

func (env *testEnv) dial() *testClient {
	serverSide, clientSide := net.Pipe()
	go env.service.ServeTCPConnection(serverSide)
	return &testClient{
		rawConn:    clientSide,
		packetConn: netutil.NewPacketConnection(netutil.NetConn{Conn: clientSide}),
	}
}

func (c *testClient) send(t *testing.T, msgtype proto.MsgType, build func(*netutil.Packet)) {
	pkt := c.packetConn.NewPacket()
	pkt.AppendUint16(uint16(msgtype))
	if build != nil {
		build(pkt)
	}
	if err := c.packetConn.SendPacketRelease(pkt); err != nil {
		t.Fatalf("send failed: %v", err)
	}
}

func (c *testClient) recv(t *testing.T) (proto.MsgType, *netutil.Packet) {
	c.rawConn.SetReadDeadline(time.Now().Add(time.Second))
	pkt, err := c.packetConn.RecvPacket()
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	return proto.MsgType(pkt.ReadUint16()), pkt
}

func (c *testClient) register(t *testing.T, address string, port uint16, mapIDs ...common.MapID) {
	c.send(t, proto.MT_REGISTER, func(pkt *netutil.Packet) {
		pkt.AppendVarStr(address)
		pkt.AppendUint16(port)
		for _, mapID := range mapIDs {
			pkt.AppendUint16(uint16(mapID))
		}
	})
}

func (c *testClient) close() {
	c.rawConn.Close()
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRegisterClaimsFirstWins(t *testing.T) {
	env := newTestEnv()

	a := env.dial()
	defer a.close()
	a.register(t, "gs1.example.net", 9602, 1, 2)

	for _, want := range []common.MapID{1, 2} {
		msgtype, pkt := a.recv(t)
		assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
		assert.Equal(t, want, common.MapID(pkt.ReadUint16()))
		pkt.Release()
	}

	b := env.dial()
	defer b.close()
	b.register(t, "gs2.example.net", 9603, 2, 3)

	// map 2 is already served, only map 3 becomes active for b
	msgtype, pkt := b.recv(t)
	assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
	assert.Equal(t, common.MapID(3), common.MapID(pkt.ReadUint16()))
	pkt.Release()

	waitUntil(t, "both servers registered", func() bool {
		return len(env.reg.Snapshot()) == 2
	})
	address, _ := env.reg.AddressPort(env.service.GameServerOfMap(2))
	if address != "gs1.example.net" {
		t.Fatalf("map 2 should still be served by gs1")
	}
}

func TestReRegisterAcksNewMapsOnly(t *testing.T) {
	env := newTestEnv()

	a := env.dial()
	defer a.close()
	a.register(t, "gs1.example.net", 9602, 1)
	msgtype, pkt := a.recv(t)
	assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
	pkt.Release()

	// registering again with an already owned map plus a new one only
	// activates the new map
	a.register(t, "gs1.example.net", 9602, 1, 4)
	msgtype, pkt = a.recv(t)
	assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
	assert.Equal(t, common.MapID(4), common.MapID(pkt.ReadUint16()))
	pkt.Release()

	waitUntil(t, "both maps owned by gs1", func() bool {
		snapshot := env.reg.Snapshot()
		return len(snapshot) == 1 && len(snapshot[0].Maps) == 2
	})
}

func TestPushCharacterData(t *testing.T) {
	env := newTestEnv()
	env.putCharacter(7, 3, "Mira", 1)

	c := env.dial()
	defer c.close()
	payload := []byte{5, 0, 0xaa, 0xbb}
	c.send(t, proto.MT_PLAYER_DATA, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
		pkt.AppendBytes(payload)
	})

	waitUntil(t, "pushed data persisted", func() bool {
		ch, err := env.store.Fetch(7)
		return err == nil && ch.MapID == 5 && len(ch.GameData) == len(payload)
	})

	// a push for an unknown character is logged and dropped
	c.send(t, proto.MT_PLAYER_DATA, func(pkt *netutil.Packet) {
		pkt.AppendInt32(999)
		pkt.AppendBytes(payload)
	})
}

func TestRedirect(t *testing.T) {
	env := newTestEnv()
	env.putCharacter(7, 3, "Mira", 1)

	owner := env.dial()
	defer owner.close()
	owner.register(t, "gs1.example.net", 9602, 1)
	msgtype, pkt := owner.recv(t)
	assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
	pkt.Release()

	requester := env.dial()
	defer requester.close()
	requester.send(t, proto.MT_REDIRECT, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
	})

	// the destination server is told to expect the token-bearing client
	msgtype, pkt = owner.recv(t)
	assert.Equal(t, proto.MT_PLAYER_ENTER, msgtype)
	enterToken := pkt.ReadFixedStr(token.TOKEN_LENGTH)
	assert.Equal(t, int32(7), pkt.ReadInt32())
	assert.Equal(t, "Mira", pkt.ReadVarStr())
	pkt.Release()

	// the requesting server gets the token and the destination address
	msgtype, pkt = requester.recv(t)
	assert.Equal(t, proto.MT_REDIRECT_RESPONSE, msgtype)
	assert.Equal(t, int32(7), pkt.ReadInt32())
	assert.Equal(t, enterToken, pkt.ReadFixedStr(token.TOKEN_LENGTH))
	assert.Equal(t, "gs1.example.net", pkt.ReadVarStr())
	assert.Equal(t, uint16(9602), pkt.ReadUint16())
	pkt.Release()

	session, ok := env.broker.Redeem(enterToken)
	assert.T(t, ok, "issued token should redeem")
	assert.Equal(t, 3, int(session.AccountID))
	assert.Equal(t, 7, int(session.CharacterID))
}

func TestRedirectWithoutMapOwner(t *testing.T) {
	env := newTestEnv()
	env.putCharacter(7, 3, "Mira", 9)

	c := env.dial()
	defer c.close()
	c.send(t, proto.MT_REDIRECT, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
	})

	// no token is issued and no reply is sent; the next request still works
	c.send(t, proto.MT_GET_QUEST, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
		pkt.AppendVarStr("chest_opened")
	})
	msgtype, pkt := c.recv(t)
	assert.Equal(t, proto.MT_GET_QUEST_RESPONSE, msgtype)
	pkt.Release()
	assert.Equal(t, 0, env.broker.PendingCount())
}

func TestPlayerReconnect(t *testing.T) {
	env := newTestEnv()
	env.putCharacter(7, 3, "Mira", 1)

	tok := token.NewDispenser().Next()
	c := env.dial()
	defer c.close()
	c.send(t, proto.MT_PLAYER_RECONNECT, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
		pkt.AppendFixedStr(tok, token.TOKEN_LENGTH)
	})

	select {
	case call := <-env.reconnect.calls:
		assert.Equal(t, tok, call.tok)
		assert.Equal(t, 3, int(call.accountID))
		assert.Equal(t, 7, int(call.charID))
	case <-time.After(time.Second):
		t.Fatalf("reconnect was not prepared")
	}
}

func TestQuestVars(t *testing.T) {
	env := newTestEnv()
	env.putCharacter(7, 3, "Mira", 1)

	c := env.dial()
	defer c.close()
	c.send(t, proto.MT_SET_QUEST, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
		pkt.AppendVarStr("chest_opened")
		pkt.AppendVarStr("1")
	})
	c.send(t, proto.MT_GET_QUEST, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
		pkt.AppendVarStr("chest_opened")
	})

	msgtype, pkt := c.recv(t)
	assert.Equal(t, proto.MT_GET_QUEST_RESPONSE, msgtype)
	assert.Equal(t, int32(7), pkt.ReadInt32())
	assert.Equal(t, "chest_opened", pkt.ReadVarStr())
	assert.Equal(t, "1", pkt.ReadVarStr())
	pkt.Release()
}

func TestBanPlayer(t *testing.T) {
	env := newTestEnv()
	env.putCharacter(7, 3, "Mira", 1)

	c := env.dial()
	defer c.close()
	c.send(t, proto.MT_BAN_PLAYER, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
		pkt.AppendUint16(60)
	})

	waitUntil(t, "character banned", func() bool {
		ch, err := env.store.Fetch(7)
		return err == nil && ch.IsBanned(time.Now())
	})
}

func TestStatisticsStopAtUnownedMap(t *testing.T) {
	env := newTestEnv()

	c := env.dial()
	defer c.close()
	c.register(t, "gs1.example.net", 9602, 1)
	msgtype, pkt := c.recv(t)
	assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
	pkt.Release()

	// a valid entry, then one for an unowned map, then another valid one
	// that must not be processed
	c.send(t, proto.MT_STATISTICS, func(pkt *netutil.Packet) {
		pkt.AppendUint16(1)
		pkt.AppendUint16(4)
		pkt.AppendUint16(2)
		pkt.AppendUint16(1)
		pkt.AppendInt32(7)

		pkt.AppendUint16(9)
		pkt.AppendUint16(1)
		pkt.AppendUint16(1)
		pkt.AppendUint16(0)

		pkt.AppendUint16(1)
		pkt.AppendUint16(99)
		pkt.AppendUint16(99)
		pkt.AppendUint16(0)
	})

	waitUntil(t, "first entry applied", func() bool {
		snapshot := env.reg.Snapshot()
		if len(snapshot) != 1 || len(snapshot[0].Maps) != 1 {
			return false
		}
		stats := snapshot[0].Maps[0].Stats
		return stats.Things == 4 && stats.Monsters == 2
	})

	// give the serve loop a chance to misbehave, then confirm the entry
	// after the invalid one was never applied
	time.Sleep(10 * time.Millisecond)
	snapshot := env.reg.Snapshot()
	assert.Equal(t, uint16(4), snapshot[0].Maps[0].Stats.Things)
	assert.Equal(t, common.CharacterIDList{7}, snapshot[0].Maps[0].Stats.Players)
}

func TestUnknownMessageType(t *testing.T) {
	env := newTestEnv()
	env.putCharacter(7, 3, "Mira", 1)

	c := env.dial()
	defer c.close()
	c.send(t, proto.MsgType(999), nil)

	msgtype, pkt := c.recv(t)
	assert.Equal(t, proto.MT_INVALID_REQUEST, msgtype)
	pkt.Release()

	// the connection survives an unknown message
	c.send(t, proto.MT_GET_QUEST, func(pkt *netutil.Packet) {
		pkt.AppendInt32(7)
		pkt.AppendVarStr("chest_opened")
	})
	msgtype, pkt = c.recv(t)
	assert.Equal(t, proto.MT_GET_QUEST_RESPONSE, msgtype)
	pkt.Release()
}

func TestDisconnectReleasesClaims(t *testing.T) {
	env := newTestEnv()

	a := env.dial()
	a.register(t, "gs1.example.net", 9602, 1)
	msgtype, pkt := a.recv(t)
	assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
	pkt.Release()

	a.close()
	waitUntil(t, "claims released", func() bool {
		return env.service.GameServerOfMap(1) == nil && len(env.reg.Snapshot()) == 0
	})

	// the map is claimable again
	b := env.dial()
	defer b.close()
	b.register(t, "gs2.example.net", 9603, 1)
	msgtype, pkt = b.recv(t)
	assert.Equal(t, proto.MT_ACTIVE_MAP, msgtype)
	assert.Equal(t, uint16(1), pkt.ReadUint16())
	pkt.Release()
}
