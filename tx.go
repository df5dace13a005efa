package kvdoc

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

var errManagedCommit = errors.New("kvdoc: transaction is committed by DB.Tx")

type Tx struct {
	db      *DB
	stx     storageTx
	managed bool
	closed  bool

	txID    string
	time    time.Time
	written bool

	dataBuck    storageBucket
	historyBuck storageBucket

	changeHandler func(chg Change)
}

func (db *DB) newTx(stx storageTx, managed bool) *Tx {
	tx := &Tx{
		db:      db,
		stx:     stx,
		managed: managed,
	}
	if stx.Writable() {
		tx.txID = db.newTxID()
		tx.time = db.now()
		db.WriterCount.Add(1)
		db.WriteCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
		db.ReadCount.Add(1)
	}
	return tx
}

func (tx *Tx) DB() *DB {
	return tx.db
}

// ID returns the identifier recorded in history for mutations made by this
// transaction. Read-only transactions have no ID.
func (tx *Tx) ID() string {
	return tx.txID
}

// Time returns the timestamp recorded in history for mutations made by this
// transaction.
func (tx *Tx) Time() time.Time {
	return tx.time
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

func (tx *Tx) OnChange(f func(chg Change)) {
	tx.changeHandler = f
}

// Tx runs f inside a transaction. A writable transaction is committed if f
// returns nil and rolled back otherwise. A panic inside f is returned as
// an error.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	stx, err := db.stor.BeginTx(writable)
	if err != nil {
		return fmt.Errorf("kvdoc: begin: %w", err)
	}
	tx := db.newTx(stx, true)
	defer tx.Close()

	err = safelyCall(f, tx)
	if err != nil || !writable {
		return err
	}
	if err := stx.Commit(); err != nil {
		return fmt.Errorf("kvdoc: commit: %w", err)
	}
	if db.verbose {
		db.logf("db: COMMIT tx=%s written=%v", tx.txID, tx.written)
	}
	return nil
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = fmt.Errorf("%w\n\n%s", e, debug.Stack())
			} else {
				err = panicked{p, string(debug.Stack())}
			}
		}
	}()
	return fn(tx)
}

func (db *DB) BeginRead() *Tx {
	stx, err := db.stor.BeginTx(false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	return db.newTx(stx, false)
}

func (db *DB) BeginUpdate() *Tx {
	stx, err := db.stor.BeginTx(true)
	if err != nil {
		panic(fmt.Errorf("failed to start writing: %w", err))
	}
	return db.newTx(stx, false)
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) ReadErr(f func(tx *Tx) error) error {
	tx := db.BeginRead()
	defer tx.Close()
	return f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

// Commit commits a transaction started with BeginUpdate. Transactions run by
// DB.Tx are committed by it and cannot be committed manually.
func (tx *Tx) Commit() error {
	if tx.managed {
		return errManagedCommit
	}
	return tx.stx.Commit()
}

// Close rolls back the transaction unless it has been committed. Safe to
// call more than once.
func (tx *Tx) Close() {
	if tx.closed {
		return
	}
	tx.closed = true
	// Rollback after Commit is a no-op in both backends.
	err := tx.stx.Rollback()
	if err != nil {
		panic(err)
	}
	if tx.stx.Writable() {
		tx.db.WriterCount.Add(-1)
	} else {
		tx.db.ReaderCount.Add(-1)
	}
}

func (tx *Tx) markWritten() {
	tx.written = true
}

func (tx *Tx) data() storageBucket {
	if tx.dataBuck == nil {
		tx.dataBuck = tx.stx.Bucket(dataBucketName)
		if tx.dataBuck == nil {
			panic(fmt.Errorf("kvdoc: missing %s bucket", dataBucketName))
		}
	}
	return tx.dataBuck
}

// history returns nil if the history bucket does not exist.
func (tx *Tx) history() storageBucket {
	if tx.historyBuck == nil {
		tx.historyBuck = tx.stx.Bucket(historyBucketName)
	}
	return tx.historyBuck
}
