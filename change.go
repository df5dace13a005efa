package kvdoc

import (
	"fmt"
	"time"
)

type (
	// Change describes a single mutation made by a transaction.
	Change struct {
		Key   string
		Op    Op
		TxID  string
		Time  time.Time
		Value []byte
	}

	Op int
)

const (
	OpNone   Op = 0
	OpPut    Op = 1
	OpDelete Op = 2
)

func (chg Change) String() string {
	return fmt.Sprintf("%s %s tx=%s", chg.Op, chg.Key, chg.TxID)
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

func (tx *Tx) notify(chg Change) {
	if tx.changeHandler != nil {
		tx.changeHandler(chg)
	}
}
