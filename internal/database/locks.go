package database

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserLocks serializes mutations of a single user's state. Different users
// never contend. Entries are dropped once no goroutine holds or waits on them.
type UserLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[common.Address]*userLock)}
}

// Lock blocks until user's lock is held and returns the release func.
func (l *UserLocks) Lock(user common.Address) func() {
	l.mu.Lock()
	ul, ok := l.locks[user]
	if !ok {
		ul = &userLock{}
		l.locks[user] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, user)
		}
		l.mu.Unlock()
	}
}

// Len reports the number of users with a held or awaited lock.
func (l *UserLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// ForUpdate row-locks the rows q reads until the surrounding transaction
// ends. UserLocks only covers one process; replicas sharing a postgres
// database serialize here. sqlite already serializes writers.
func ForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}
