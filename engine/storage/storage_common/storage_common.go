package storagecommon

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/openmana/accountserver/engine/common"
)

// ErrCharacterNotFound is returned by Fetch for unknown character IDs
var ErrCharacterNotFound = errors.New("non-existing character")

// Character is the authoritative persisted state of one player character
type Character struct {
	ID        common.CharacterID `json:"id" bson:"_id" msgpack:"id"`
	AccountID common.AccountID   `json:"account_id" bson:"account_id" msgpack:"account_id"`
	Name      string             `json:"name" bson:"name" msgpack:"name"`
	MapID     common.MapID       `json:"map_id" bson:"map_id" msgpack:"map_id"`
	GameData  []byte             `json:"game_data" bson:"game_data" msgpack:"game_data"`
	BanUntil  int64              `json:"ban_until" bson:"ban_until" msgpack:"ban_until"`
}

// ApplyGameData applies a serialized character payload received from a game
// server onto the record. The payload leads with the character's current map
// ID; the remainder is gameplay state opaque to the account server and is
// stored verbatim for the next server to resume from.
func (ch *Character) ApplyGameData(data []byte) error {
	if len(data) < 2 {
		return errors.Errorf("character payload too short: %d bytes", len(data))
	}
	ch.MapID = common.MapID(binary.LittleEndian.Uint16(data))
	ch.GameData = append(ch.GameData[:0], data...)
	return nil
}

// IsBanned returns if the character is banned at time now
func (ch *Character) IsBanned(now time.Time) bool {
	return ch.BanUntil > now.Unix()
}

// CharacterStorage is the interface of character storage backends
type CharacterStorage interface {
	Fetch(id common.CharacterID) (*Character, error)
	Persist(ch *Character) error
	QuestVar(id common.CharacterID, name string) (string, error)
	SetQuestVar(id common.CharacterID, name string, value string) error
	Ban(id common.CharacterID, until int64) error
	Close()
}
