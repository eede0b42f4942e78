package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"roomlink/internal/app/store"
)

func TestTranslate(t *testing.T) {
	require.NoError(t, translate(nil))
	require.ErrorIs(t, translate(pgx.ErrNoRows), store.ErrNotFound)
	require.ErrorIs(t, translate(&pgconn.PgError{Code: "23505"}), store.ErrDuplicate)

	other := errors.New("connection reset")
	require.Equal(t, other, translate(other))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
