package lockset

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SetSuite struct {
	suite.Suite
	set *Set
}

func TestSetSuite(t *testing.T) {
	suite.Run(t, new(SetSuite))
}

func (s *SetSuite) SetupTest() {
	s.set = New()
}

func (s *SetSuite) TestLockReleasesEntries() {
	unlock := s.set.Lock("alice", "bob")
	s.Equal(2, s.set.Len())

	unlock()
	s.Equal(0, s.set.Len())
}

func (s *SetSuite) TestUnlockIsIdempotent() {
	unlock := s.set.Lock("alice")
	unlock()
	unlock()
	s.Equal(0, s.set.Len())
}

func (s *SetSuite) TestDuplicateAndEmptyKeysAreIgnored() {
	unlock := s.set.Lock("alice", "", "alice")
	s.Equal(1, s.set.Len())
	unlock()
}

func (s *SetSuite) TestLockExcludesOverlappingHolders() {
	unlock := s.set.Lock("alice", "bob")

	acquired := make(chan struct{})
	go func() {
		release := s.set.Lock("bob", "carol")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		s.Fail("overlapping lock acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		s.Fail("waiter never acquired the lock")
	}
}

func (s *SetSuite) TestDisjointKeysDoNotBlock() {
	unlock := s.set.Lock("alice")
	defer unlock()

	done := make(chan struct{})
	go func() {
		release := s.set.Lock("bob")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("disjoint lock blocked")
	}
}

func (s *SetSuite) TestOppositeOrderDoesNotDeadlock() {
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := s.set.Lock("alice", "bob")
			counter++
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := s.set.Lock("bob", "alice")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	s.Equal(100, counter)
	s.Equal(0, s.set.Len())
}
