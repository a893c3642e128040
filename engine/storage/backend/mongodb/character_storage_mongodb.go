package mongodb

import (
	"fmt"

	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/omlog"
	. "github.com/openmana/accountserver/engine/storage/storage_common"
)

const (
	_DEFAULT_DB_NAME = "openmana"

	_CHARACTERS_COLLECTION = "characters"
	_QUESTVARS_COLLECTION  = "questvars"
)

type mongoDBCharacterStorage struct {
	session *mgo.Session
	db      *mgo.Database
}

// OpenMongoDB opens mongodb as character storage
func OpenMongoDB(url string, dbname string) (CharacterStorage, error) {
	omlog.Debugf("Connecting MongoDB ...")
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, err
	}

	session.SetMode(mgo.Monotonic, true)
	if dbname == "" {
		// if db is not specified, use default
		dbname = _DEFAULT_DB_NAME
	}
	return &mongoDBCharacterStorage{
		session: session,
		db:      session.DB(dbname),
	}, nil
}

func (cs *mongoDBCharacterStorage) characters() *mgo.Collection {
	return cs.db.C(_CHARACTERS_COLLECTION)
}

func (cs *mongoDBCharacterStorage) questVars() *mgo.Collection {
	return cs.db.C(_QUESTVARS_COLLECTION)
}

func questVarKey(id common.CharacterID, name string) string {
	return fmt.Sprintf("%d:%s", id, name)
}

func (cs *mongoDBCharacterStorage) Fetch(id common.CharacterID) (*Character, error) {
	ch := &Character{}
	err := cs.characters().FindId(id).One(ch)
	if err == mgo.ErrNotFound {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (cs *mongoDBCharacterStorage) Persist(ch *Character) error {
	_, err := cs.characters().UpsertId(ch.ID, ch)
	return err
}

func (cs *mongoDBCharacterStorage) QuestVar(id common.CharacterID, name string) (string, error) {
	var doc bson.M
	err := cs.questVars().FindId(questVarKey(id, name)).One(&doc)
	if err == mgo.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	value, _ := doc["value"].(string)
	return value, nil
}

func (cs *mongoDBCharacterStorage) SetQuestVar(id common.CharacterID, name string, value string) error {
	_, err := cs.questVars().UpsertId(questVarKey(id, name), bson.M{
		"value": value,
	})
	return err
}

func (cs *mongoDBCharacterStorage) Ban(id common.CharacterID, until int64) error {
	err := cs.characters().UpdateId(id, bson.M{
		"$set": bson.M{"ban_until": until},
	})
	if err == mgo.ErrNotFound {
		return ErrCharacterNotFound
	}
	return err
}

func (cs *mongoDBCharacterStorage) Close() {
	cs.session.Close()
}
