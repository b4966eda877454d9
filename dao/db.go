package dao

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/index"
	"github.com/asdine/storm/v3/q"
	"github.com/dilshat/birthday-sender/model"
	bolt "go.etcd.io/bbolt"
)

type Db interface {
	Init(data interface{}) error
	One(fieldName string, value interface{}, to interface{}) error
	Update(data interface{}) error
	Save(data interface{}) error
	DeleteStruct(data interface{}) error
	Select(matchers ...q.Matcher) storm.Query
	Find(fieldName string, value interface{}, to interface{}, options ...func(q *index.Options)) error
	All(to interface{}, options ...func(*index.Options)) error
	Get(bucketName string, key interface{}, to interface{}) error
	Set(bucketName string, key interface{}, value interface{}) error
	Close() error
}

// Open opens (creating if needed) the database file and initializes its buckets and indexes
func Open(dbFilePath string) (Db, error) {
	db, err := storm.Open(dbFilePath, storm.BoltOptions(0600, &bolt.Options{Timeout: 10 * time.Second, ReadOnly: false}))
	if err != nil {
		return nil, err
	}

	//init db structs
	for _, data := range []interface{}{
		&model.BirthdayRecord{},
		&model.OutboundMessage{},
		&model.SentMark{},
		&model.ProcessedDate{},
		&model.DirectMark{},
		&model.PeerPick{},
	} {
		err = db.Init(data)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

func isNotFound(err error) bool {
	return err == storm.ErrNotFound
}
