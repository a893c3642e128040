package filesystem

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/openmana/accountserver/engine/common"
	. "github.com/openmana/accountserver/engine/storage/storage_common"
)

// FileSystemCharacterStorage keeps each character record as one JSON file.
// Meant for development and tests; production setups use mongodb or redis.
type FileSystemCharacterStorage struct {
	directory string
}

// OpenDirectory opens a directory as character storage
func OpenDirectory(directory string) (CharacterStorage, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, err
	}

	return &FileSystemCharacterStorage{
		directory: directory,
	}, nil
}

func (cs *FileSystemCharacterStorage) characterPath(id common.CharacterID) string {
	return filepath.Join(cs.directory, fmt.Sprintf("Character$%d.json", id))
}

func (cs *FileSystemCharacterStorage) questVarPath(id common.CharacterID) string {
	return filepath.Join(cs.directory, fmt.Sprintf("QuestVars$%d.json", id))
}

// Fetch loads the character record of the specified ID
func (cs *FileSystemCharacterStorage) Fetch(id common.CharacterID) (*Character, error) {
	dataBytes, err := ioutil.ReadFile(cs.characterPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}

	ch := &Character{}
	if err := json.Unmarshal(dataBytes, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Persist writes the character record back
func (cs *FileSystemCharacterStorage) Persist(ch *Character) error {
	dataBytes, err := json.MarshalIndent(ch, "", "\t")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(cs.characterPath(ch.ID), dataBytes, 0644)
}

func (cs *FileSystemCharacterStorage) readQuestVars(id common.CharacterID) (map[string]string, error) {
	dataBytes, err := ioutil.ReadFile(cs.questVarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	vars := map[string]string{}
	if err := json.Unmarshal(dataBytes, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// QuestVar reads a named quest variable, "" if unset
func (cs *FileSystemCharacterStorage) QuestVar(id common.CharacterID, name string) (string, error) {
	vars, err := cs.readQuestVars(id)
	if err != nil {
		return "", err
	}
	return vars[name], nil
}

// SetQuestVar writes a named quest variable
func (cs *FileSystemCharacterStorage) SetQuestVar(id common.CharacterID, name string, value string) error {
	vars, err := cs.readQuestVars(id)
	if err != nil {
		return err
	}
	vars[name] = value

	dataBytes, err := json.MarshalIndent(vars, "", "\t")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(cs.questVarPath(id), dataBytes, 0644)
}

// Ban records the ban expiry on the character record
func (cs *FileSystemCharacterStorage) Ban(id common.CharacterID, until int64) error {
	ch, err := cs.Fetch(id)
	if err != nil {
		return err
	}
	ch.BanUntil = until
	return cs.Persist(ch)
}

// Close closes the storage
func (cs *FileSystemCharacterStorage) Close() {
	// nothing to do
}
