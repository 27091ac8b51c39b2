package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/storage/storagetest"
)

// These tests need a disposable database; they truncate every table.
const testDatabaseURLEnv = "TEST_DATABASE_URL"

type StorageSuite struct {
	storagetest.Suite
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	if os.Getenv(testDatabaseURLEnv) == "" {
		t.Skipf("%s not set", testDatabaseURLEnv)
	}
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupSuite() {
	cfg := DefaultConfig()
	cfg.URL = os.Getenv(testDatabaseURLEnv)

	store, err := New(context.Background(), cfg)
	s.Require().NoError(err)
	s.storage = store
}

func (s *StorageSuite) TearDownSuite() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) SetupTest() {
	s.Store = s.storage
	s.Ctx = context.Background()
	s.Require().NoError(s.storage.Truncate(s.Ctx))
}

func (s *StorageSuite) TestCreateEventRequiresRegisteredUsers() {
	_, err := s.storage.CreateEvent(s.Ctx, &model.Event{
		Sender:   "ghost",
		Opponent: "phantom",
		Status:   model.EventStatusPending,
		Move:     model.NoMove,
	})
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestTruncateRestartsEventIDs() {
	s.Require().NoError(s.storage.CreateUser(s.Ctx, &model.User{Username: "a", Password: "x"}))
	s.Require().NoError(s.storage.CreateUser(s.Ctx, &model.User{Username: "b", Password: "x"}))
	_, err := s.storage.CreateEvent(s.Ctx, &model.Event{Sender: "a", Opponent: "b", Status: model.EventStatusPending, Move: model.NoMove})
	s.Require().NoError(err)

	s.Require().NoError(s.storage.Truncate(s.Ctx))
	s.Require().NoError(s.storage.CreateUser(s.Ctx, &model.User{Username: "a", Password: "x"}))
	s.Require().NoError(s.storage.CreateUser(s.Ctx, &model.User{Username: "b", Password: "x"}))

	id, err := s.storage.CreateEvent(s.Ctx, &model.Event{Sender: "a", Opponent: "b", Status: model.EventStatusPending, Move: model.NoMove})
	s.Require().NoError(err)
	s.Equal(model.EventID(1), id)
}
