package kvdoc

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	dataBucketName    = "data"
	historyBucketName = "history"
)

type DB struct {
	stor    storage
	bdb     *bbolt.DB
	logger  *slog.Logger
	verbose bool
	now     func() time.Time
	newTxID func() string

	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64
}

type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// Now stamps history records; defaults to time.Now.
	Now func() time.Time

	// NewTxID names writable transactions; defaults to random UUIDs.
	NewTxID func() string
}

// Open opens (creating if necessary) a Bolt-backed database at path.
func Open(path string, opt Options) (*DB, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("kvdoc: %w", err)
	}

	db := newDB(newBoltStorage(bdb), opt)
	db.bdb = bdb
	if err := db.prepare(); err != nil {
		bdb.Close()
		return nil, err
	}
	return db, nil
}

// OpenMem returns a database that lives entirely in memory.
func OpenMem(opt Options) *DB {
	db := newDB(newMemStorage(), opt)
	ensure(db.prepare())
	return db
}

func newDB(stor storage, opt Options) *DB {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.NewTxID == nil {
		opt.NewTxID = uuid.NewString
	}
	return &DB{
		stor:    stor,
		logger:  opt.Logger,
		verbose: opt.Verbose,
		now:     opt.Now,
		newTxID: opt.NewTxID,
	}
}

func (db *DB) prepare() error {
	return db.Tx(true, func(tx *Tx) error {
		for _, name := range []string{dataBucketName, historyBucketName} {
			if _, err := tx.stx.CreateBucket(name); err != nil {
				return fmt.Errorf("kvdoc: creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Bolt returns the underlying Bolt database, or nil for in-memory databases.
func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

func (db *DB) Logger() *slog.Logger {
	return db.logger
}

func (db *DB) Close() {
	err := db.stor.Close()
	if err != nil {
		panic(fmt.Errorf("kvdoc: closing: %w", err))
	}
}

func (db *DB) logf(format string, args ...any) {
	db.logger.Debug(fmt.Sprintf(format, args...))
}
