package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func signupRows(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "activity_id", "user_id", "status", "reason", "reject_reason", "signed_in", "signed_out",
		"sign_in_time", "sign_out_time", "student_rating", "student_evaluation", "teacher_rating",
		"teacher_evaluation", "teacher_rating_confirmed_at", "created_at", "updated_at",
	}).AddRow(id, "act-1", "stu-1", "APPROVED", nil, nil, false, false,
		nil, nil, nil, nil, nil, nil, nil, now, now)
}

func TestSignupRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signups")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	signup := &models.Signup{ActivityID: "act-1", UserID: "stu-1"}
	require.NoError(t, repo.Create(context.Background(), signup))
	require.NotEmpty(t, signup.ID)
	require.Equal(t, models.SignupStatusPending, signup.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, activity_id, user_id")).
		WithArgs(signup.ID).
		WillReturnRows(signupRows(signup.ID))

	found, err := repo.FindByID(context.Background(), signup.ID)
	require.NoError(t, err)
	require.Equal(t, signup.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM signups")).
		WithArgs("act-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "act-1", "stu-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM signups")).
		WithArgs("act-1", "stu-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.Exists(context.Background(), "act-1", "stu-2")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryUpdateStatusGuardsPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.UpdateStatus(context.Background(), "sub-1", models.SignupStatusApproved, nil)
	require.NoError(t, err)
	require.True(t, updated)

	// Second approval finds no pending row.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err = repo.UpdateStatus(context.Background(), "sub-1", models.SignupStatusApproved, nil)
	require.NoError(t, err)
	require.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryMarkSignedInSingleWinner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET signed_in = TRUE")).
		WithArgs("sub-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.MarkSignedIn(context.Background(), "sub-1", at)
	require.NoError(t, err)
	require.True(t, won)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET signed_in = TRUE")).
		WithArgs("sub-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err = repo.MarkSignedIn(context.Background(), "sub-1", at)
	require.NoError(t, err)
	require.False(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryMarkSignedOut(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)
	at := time.Now().UTC()
	rating := 4
	evaluation := "great event"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET signed_out = TRUE")).
		WithArgs("sub-1", at, &rating, &evaluation).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.MarkSignedOut(context.Background(), "sub-1", at, &rating, &evaluation)
	require.NoError(t, err)
	require.True(t, won)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET signed_out = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err = repo.MarkSignedOut(context.Background(), "sub-1", at, nil, nil)
	require.NoError(t, err)
	require.False(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryFinalizeReviewFullSettlement(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)
	confirmed := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET teacher_rating")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO service_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO points_ledger")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.ServiceRecord{
		SignupID:        "sub-1",
		ActivityID:      "act-1",
		UserID:          "stu-1",
		DurationMinutes: 120,
		TeacherRating:   5,
		PointsEarned:    10,
	}
	entry := &models.PointsEntry{
		UserID: "stu-1",
		Points: 10,
		Source: models.PointsSourceActivityAward,
	}
	err := repo.FinalizeReview(context.Background(), FinalizeReviewParams{
		SignupID:      "sub-1",
		TeacherRating: 5,
		ConfirmedAt:   confirmed,
		Record:        record,
		LedgerEntry:   entry,
	})
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	require.NotEmpty(t, entry.ID)
	require.Equal(t, confirmed, record.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryFinalizeReviewWithoutRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET teacher_rating")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO points_ledger")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.FinalizeReview(context.Background(), FinalizeReviewParams{
		SignupID:      "sub-1",
		TeacherRating: 5,
		ConfirmedAt:   time.Now().UTC(),
		LedgerEntry:   &models.PointsEntry{UserID: "stu-1", Points: 4, Source: models.PointsSourceActivityAdjust},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryFinalizeReviewRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE signups SET teacher_rating")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO service_records")).
		WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectRollback()

	err := repo.FinalizeReview(context.Background(), FinalizeReviewParams{
		SignupID:      "sub-1",
		TeacherRating: 5,
		ConfirmedAt:   time.Now().UTC(),
		Record:        &models.ServiceRecord{SignupID: "sub-1", ActivityID: "act-1", UserID: "stu-1"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepositoryListPendingCheckIn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSignupRepository(db)
	rows := sqlmock.NewRows([]string{"signup_id", "student_id", "student_name", "student_no", "signed_in", "sign_in_time"}).
		AddRow("sub-1", "stu-1", "Dana Martin", "2026001", false, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id AS signup_id")).
		WithArgs("act-1", models.SignupStatusApproved).
		WillReturnRows(rows)

	pending, err := repo.ListPendingCheckIn(context.Background(), "act-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "Dana Martin", pending[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
