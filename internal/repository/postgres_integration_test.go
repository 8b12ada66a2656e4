//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
	"github.com/prefeitura-canaa/demanda-service/internal/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.pg.Truncate(s.T())
}

func (s *PostgresStoreSuite) TestContract() {
	runStoreContract(s.T(), func(t *testing.T) stores {
		s.pg.Truncate(t)
		return stores{
			demandas:   NewDemandaRepository(s.pg.Pool),
			sequence:   NewPostgresSequence(s.pg.Pool),
			requesters: NewRequesterRepository(s.pg.Pool),
		}
	})
}

func (s *PostgresStoreSuite) TestEmptyAttachmentsStoredAsNull() {
	ctx := context.Background()
	repo := NewDemandaRepository(s.pg.Pool)
	d := newDemanda("Ana", "Arte", "10/2025", time.Now().UTC())
	d.References = []domain.Attachment{}
	s.Require().NoError(repo.Create(ctx, d))

	var refsNull, deliveriesNull bool
	err := s.pg.Pool.QueryRow(ctx,
		`SELECT references_data IS NULL, deliveries_data IS NULL FROM demandas WHERE id=$1`, d.ID,
	).Scan(&refsNull, &deliveriesNull)
	s.Require().NoError(err)
	s.True(refsNull)
	s.True(deliveriesNull)
}

func (s *PostgresStoreSuite) TestDuplicateNumberIsRejected() {
	ctx := context.Background()
	repo := NewDemandaRepository(s.pg.Pool)
	first := newDemanda("Ana", "Arte", "10/2025", time.Now().UTC())
	s.Require().NoError(repo.Create(ctx, first))

	dup := newDemanda("Ana", "Outra", "10/2025", time.Now().UTC())
	dup.Number = first.Number
	err := repo.Create(ctx, dup)
	s.ErrorIs(err, domain.ErrStorageUnavailable)

	_, err = repo.GetByID(ctx, dup.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSearchEscapesWildcards() {
	ctx := context.Background()
	repo := NewDemandaRepository(s.pg.Pool)
	s.Require().NoError(repo.Create(ctx, newDemanda("Ana", "Desconto 100% off", "10/2025", time.Now().UTC())))
	s.Require().NoError(repo.Create(ctx, newDemanda("Ana", "Desconto 100 reais", "10/2025", time.Now().UTC())))

	got, err := repo.List(ctx, DemandaFilter{SearchTerm: "100%"})
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *PostgresStoreSuite) TestStatusConstraint() {
	ctx := context.Background()
	repo := NewDemandaRepository(s.pg.Pool)
	d := newDemanda("Ana", "Arte", "10/2025", time.Now().UTC())
	d.Status = domain.Status("Arquivado")

	s.Error(repo.Create(ctx, d))
	_, err := repo.GetByID(ctx, uuid.NewString())
	s.ErrorIs(err, domain.ErrNotFound)
}
