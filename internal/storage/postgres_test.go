package storage_test

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/toko-cart/internal/storage"
)

type postgresSuite struct {
	suite.Suite

	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	store     *storage.Postgres
}

func TestPostgresStore(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(postgresSuite))
}

func (s *postgresSuite) SetupSuite() {
	ctx := s.T().Context()

	container, err := postgres.Run(ctx, "postgres:17.6-alpine3.22", postgres.BasicWaitStrategies())
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.Require().NoError(storage.Migrate(connStr))
	// applying twice is a no-op
	s.Require().NoError(storage.Migrate(connStr))

	s.pool, err = pgxpool.New(ctx, connStr)
	s.Require().NoError(err)
	s.store = storage.NewPostgres(s.pool, time.Hour)
}

func (s *postgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *postgresSuite) TestRoundTrip() {
	ctx := s.T().Context()

	_, err := s.store.Get(ctx, "cart:pg")
	s.ErrorIs(err, storage.ErrNotFound)

	s.Require().NoError(s.store.Set(ctx, "cart:pg", []byte(`{"version":1}`)))
	s.Require().NoError(s.store.Set(ctx, "cart:pg", []byte(`{"version":1,"items":[]}`)))

	got, err := s.store.Get(ctx, "cart:pg")
	s.Require().NoError(err)
	s.Equal(`{"version":1,"items":[]}`, string(got))

	s.Require().NoError(s.store.Delete(ctx, "cart:pg"))
	_, err = s.store.Get(ctx, "cart:pg")
	s.ErrorIs(err, storage.ErrNotFound)
	s.NoError(s.store.Ping(ctx))
}

func (s *postgresSuite) TestExpiredRowsAreHidden() {
	ctx := s.T().Context()
	expired := storage.NewPostgres(s.pool, time.Nanosecond)

	s.Require().NoError(expired.Set(ctx, "cart:old", []byte("x")))
	time.Sleep(5 * time.Millisecond)
	_, err := s.store.Get(ctx, "cart:old")
	s.ErrorIs(err, storage.ErrNotFound)
}
