package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/camballey/tucan/internal/migrations"
	"github.com/camballey/tucan/internal/models"
)

// setupTestStorage поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))
	return storage
}

func TestStorage_Integration(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	t.Run("учётные записи", func(t *testing.T) {
		u, err := s.CreateAuthUser(ctx, "ana@example.com", "hash", "Ana")
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())

		_, err = s.CreateAuthUser(ctx, "ana@example.com", "hash2", "Ana 2")
		assert.ErrorIs(t, err, ErrAlreadyExists)

		got, hash, err := s.GetAuthUserByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "hash", hash)

		_, _, err = s.GetAuthUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		byID, err := s.GetAuthUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", byID.FullName)
	})

	t.Run("refresh-токены одноразовые", func(t *testing.T) {
		u, err := s.CreateAuthUser(ctx, "luis@example.com", "hash", "Luis")
		require.NoError(t, err)

		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, s.CreateRefreshToken(ctx, "rt-1", u.ID, expires))

		userID, gotExpires, err := s.ConsumeRefreshToken(ctx, "rt-1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, userID)
		assert.True(t, expires.Equal(gotExpires))

		_, _, err = s.ConsumeRefreshToken(ctx, "rt-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.RevokeRefreshToken(ctx, "rt-1"))
	})

	t.Run("профиль", func(t *testing.T) {
		id := uuid.NewString()
		created := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
		inserted, err := s.InsertUsuario(ctx, models.UserProfile{ID: id, Email: "eva@example.com", FullName: "Eva", CreatedAt: created})
		require.NoError(t, err)
		assert.Nil(t, inserted.Tipo)
		assert.Nil(t, inserted.Telefono)
		assert.True(t, created.Equal(inserted.CreatedAt))

		_, err = s.InsertUsuario(ctx, models.UserProfile{ID: id, Email: "eva@example.com", CreatedAt: created})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		err = s.UpdateUsuario(ctx, id, models.ProfilePatch{Telefono: models.Ptr("+59170000000"), Tipo: models.Ptr(models.RoleDriver)})
		require.NoError(t, err)

		got, err := s.GetUsuario(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.Tipo)
		assert.Equal(t, models.RoleDriver, *got.Tipo)
		assert.Equal(t, "+59170000000", *got.Telefono)
		assert.Nil(t, got.NumeroCuenta)

		_, err = s.GetUsuario(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdateUsuario(ctx, uuid.NewString(), models.ProfilePatch{FullName: models.Ptr("x")}), ErrNotFound)
	})

	t.Run("карты", func(t *testing.T) {
		owner := uuid.NewString()
		a, b := models.DefaultColors(models.CardPhysical)
		first, err := s.InsertTarjeta(ctx, models.NewCard{
			UserID: owner, Alias: "Trabajo", Codigo: "T-1234", Saldo: decimal.Zero, Activa: true,
			Tipo: models.CardPhysical, ColorA: &a, ColorB: &b, ViajesMes: models.Ptr(0),
		})
		require.NoError(t, err)
		assert.Equal(t, "#42af56", *first.ColorA)
		assert.Equal(t, 0, *first.ViajesMes)
		assert.True(t, first.Saldo.IsZero())

		second, err := s.InsertTarjeta(ctx, models.NewCard{
			UserID: owner, Alias: "Casa", Codigo: "T-5678", Saldo: decimal.Zero, Activa: true, Tipo: models.CardVirtual,
		})
		require.NoError(t, err)
		assert.Nil(t, second.ColorA)

		list, err := s.ListTarjetas(ctx, owner)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)

		updated, err := s.UpdateTarjeta(ctx, first.ID, owner, models.CardPatch{
			Activa: models.Ptr(false), Saldo: models.Ptr(decimal.RequireFromString("12.50")),
		})
		require.NoError(t, err)
		assert.False(t, updated.Activa)
		assert.Equal(t, "12.50", updated.SaldoText())

		_, err = s.UpdateTarjeta(ctx, first.ID, uuid.NewString(), models.CardPatch{Activa: models.Ptr(true)})
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.DeleteTarjeta(ctx, first.ID, owner))
		assert.ErrorIs(t, s.DeleteTarjeta(ctx, first.ID, owner), ErrNotFound)

		list, err = s.ListTarjetas(ctx, owner)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("колонки таблицы", func(t *testing.T) {
		cols, err := s.TableColumns(ctx, "Tarjetas")
		require.NoError(t, err)
		assert.True(t, cols["colorA"])
		assert.True(t, cols["viajesMes"])

		_, err = s.TableColumns(ctx, "NoExiste")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
