package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/forgelab/locai/internal/conv"
)

var (
	conversationsBucket = []byte("conversations")
	inputHistoryBucket  = []byte("input_history")
)

const (
	maxConversationMessages = 50
	maxInputHistory         = 500
)

type Store interface {
	SaveConversation(session string, msgs []conv.Message) error
	GetConversation(session string) ([]conv.Message, error)
	ClearConversation(session string) error
	AppendInput(session, line string) error
	GetInputs(session string) ([]string, error)
	Close() error
}

type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(conversationsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(inputHistoryBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveConversation persists a session's messages, keeping the system message
// and the most recent maxConversationMessages-1 others when over the cap.
func (s *BoltStore) SaveConversation(session string, msgs []conv.Message) error {
	if len(msgs) > maxConversationMessages {
		trimmed := make([]conv.Message, 0, maxConversationMessages)
		trimmed = append(trimmed, msgs[0])
		trimmed = append(trimmed, msgs[len(msgs)-(maxConversationMessages-1):]...)
		msgs = trimmed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(msgs)
		if err != nil {
			return err
		}
		return tx.Bucket(conversationsBucket).Put([]byte(session), data)
	})
}

func (s *BoltStore) GetConversation(session string) ([]conv.Message, error) {
	var msgs []conv.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(session))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &msgs)
	})
	return msgs, err
}

func (s *BoltStore) ClearConversation(session string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Delete([]byte(session))
	})
}

// AppendInput records one REPL input line, keeping the most recent
// maxInputHistory lines.
func (s *BoltStore) AppendInput(session, line string) error {
	lines, err := s.GetInputs(session)
	if err != nil {
		return err
	}
	lines = append(lines, line)
	if len(lines) > maxInputHistory {
		lines = lines[len(lines)-maxInputHistory:]
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(lines)
		if err != nil {
			return err
		}
		return tx.Bucket(inputHistoryBucket).Put([]byte(session), data)
	})
}

func (s *BoltStore) GetInputs(session string) ([]string, error) {
	var lines []string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(inputHistoryBucket).Get([]byte(session))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &lines)
	})
	return lines, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
