package dao

// KvDao is a small persistent key-value store over storm buckets
type KvDao interface {
	//Get decodes the value stored under key into to; returns false if absent
	Get(bucket, key string, to interface{}) (bool, error)
	//Set stores value under key
	Set(bucket, key string, value interface{}) error
}

func NewKvDao(db Db) KvDao {
	return &kvDao{db: db}
}

type kvDao struct {
	db Db
}

func (d kvDao) Get(bucket, key string, to interface{}) (bool, error) {
	err := d.db.Get(bucket, key, to)
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (d kvDao) Set(bucket, key string, value interface{}) error {
	return d.db.Set(bucket, key, value)
}
