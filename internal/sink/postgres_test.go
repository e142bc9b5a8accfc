package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/internal/waterfall"
)

var leadColumns = []string{
	"lead_id", "run_id", "business_name", "location", "keyword", "email", "source", "confidence", "status",
	"domain", "website", "phone", "address", "place_id", "rating", "reviews", "socials", "discovered_at",
}

func newMockPostgres(t *testing.T) (*PostgresSink, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgresSink_Migrate(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads(?s:.*)CREATE TABLE IF NOT EXISTS lead_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_PersistUpserts(t *testing.T) {
	s, mock := newMockPostgres(t)
	a := testLead("run-1", "Desert Smiles", "dr.lee@desertsmiles.com", waterfall.SourceHunter)
	b := testLead("run-1", "Camelback Dental", "info@camelbackdental.com", waterfall.SourceFallbackGuess)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(rowArgs(RowFromLead(a))...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO lead_runs`).
		WithArgs("run-1", a.LeadID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(rowArgs(RowFromLead(b))...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO lead_runs`).
		WithArgs("run-1", b.LeadID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// The duplicate of a collapses into one statement.
	require.NoError(t, s.Persist(context.Background(), []*discovery.VerifiedLead{a, b, a}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_PersistEmpty(t *testing.T) {
	s, mock := newMockPostgres(t)
	require.NoError(t, s.Persist(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_PersistRollsBackOnError(t *testing.T) {
	s, mock := newMockPostgres(t)
	a := testLead("run-1", "Desert Smiles", "info@desertsmiles.com", waterfall.SourceFallbackGuess)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(rowArgs(RowFromLead(a))...).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	err := s.Persist(context.Background(), []*discovery.VerifiedLead{a})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert lead")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_PersistRollsBackOnMembershipError(t *testing.T) {
	s, mock := newMockPostgres(t)
	a := testLead("run-2", "Desert Smiles", "info@desertsmiles.com", waterfall.SourceFallbackGuess)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(rowArgs(RowFromLead(a))...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(`INSERT INTO lead_runs`).
		WithArgs("run-2", a.LeadID).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	err := s.Persist(context.Background(), []*discovery.VerifiedLead{a})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to run run-2")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_PersistBeginError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := s.Persist(context.Background(), []*discovery.VerifiedLead{
		testLead("run-1", "Desert Smiles", "info@desertsmiles.com", waterfall.SourceFallbackGuess),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_ListByRunID(t *testing.T) {
	s, mock := newMockPostgres(t)
	a := testLead("run-1", "Desert Smiles", "dr.lee@desertsmiles.com", waterfall.SourceHunter)
	r := RowFromLead(a)

	mock.ExpectQuery(`SELECT l\.lead_id, m\.run_id, l\.business_name(?s:.*)FROM lead_runs m JOIN leads l`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(leadColumns).AddRow(rowArgs(r)...))

	leads, err := s.ListByRunID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, a.LeadID, leads[0].LeadID)
	assert.Equal(t, "dr.lee@desertsmiles.com", leads[0].ContactEmail)
	assert.Equal(t, a.Socials, leads[0].Socials)
	assert.Equal(t, discovery.LeadVerified, leads[0].Status())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_ListQueryError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT l\.lead_id`).
		WithArgs("run-1").
		WillReturnError(errors.New("relation does not exist"))

	_, err := s.ListByRunID(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list leads")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Ping(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("refused"))

	require.NoError(t, s.Ping(context.Background()))
	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: ping")
	require.NoError(t, mock.ExpectationsWereMet())
}
