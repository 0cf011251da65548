//go:build integration

package postgres_test

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sharelist/sharelist-sync/internal/model"
	repo "github.com/sharelist/sharelist-sync/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "sharelist_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/sharelist_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func createUser(t *testing.T, ctx context.Context, conn *repo.Connection, email string) model.User {
	t.Helper()
	ur := repo.NewUserRepository(conn)
	u, err := ur.Create(ctx, model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: []byte("$2a$10$fakehashfakehashfakehash"),
	})
	require.NoError(t, err)
	return u
}

func hashOf(value string) []byte {
	h := sha256.Sum256([]byte(value))
	return h[:]
}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	t.Run("user_repository", func(t *testing.T) {
		u := createUser(t, ctx, conn, "user@example.com")
		ur := repo.NewUserRepository(conn)

		byEmail, err := ur.GetByEmail(ctx, u.Email)
		require.NoError(t, err)
		require.Equal(t, u.ID, byEmail.ID)

		byID, err := ur.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, byID.Email)

		_, err = ur.GetByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("refresh_rotation", func(t *testing.T) {
		u := createUser(t, ctx, conn, "rotate@example.com")
		rr := repo.NewRefreshTokenRepository(conn)

		now := time.Now()
		require.NoError(t, rr.Create(ctx, model.RefreshToken{
			ID:        uuid.New(),
			UserID:    u.ID,
			TokenHash: hashOf("t1"),
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		}))

		next := model.RefreshToken{
			ID:        uuid.New(),
			TokenHash: hashOf("t2"),
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		}
		userID, err := rr.Rotate(ctx, hashOf("t1"), next)
		require.NoError(t, err)
		require.Equal(t, u.ID, userID)

		// The superseded value is dead.
		_, err = rr.Rotate(ctx, hashOf("t1"), model.RefreshToken{
			ID: uuid.New(), TokenHash: hashOf("t3"), IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		})
		require.ErrorIs(t, err, model.ErrTokenInvalid)

		// The replacement value is live.
		_, err = rr.Rotate(ctx, hashOf("t2"), model.RefreshToken{
			ID: uuid.New(), TokenHash: hashOf("t4"), IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		})
		require.NoError(t, err)
	})

	t.Run("concurrent_rotation_single_winner", func(t *testing.T) {
		u := createUser(t, ctx, conn, "race@example.com")
		rr := repo.NewRefreshTokenRepository(conn)

		now := time.Now()
		require.NoError(t, rr.Create(ctx, model.RefreshToken{
			ID:        uuid.New(),
			UserID:    u.ID,
			TokenHash: hashOf("contested"),
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		}))

		const redeemers = 8
		var wg sync.WaitGroup
		errs := make([]error, redeemers)
		for i := 0; i < redeemers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = rr.Rotate(ctx, hashOf("contested"), model.RefreshToken{
					ID:        uuid.New(),
					TokenHash: hashOf(fmt.Sprintf("next-%d", i)),
					IssuedAt:  now,
					ExpiresAt: now.Add(time.Hour),
				})
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				require.ErrorIs(t, err, model.ErrTokenInvalid)
			}
		}
		require.Equal(t, 1, winners, "exactly one concurrent redeemer must win")
	})

	t.Run("refresh_revoke_and_sweep", func(t *testing.T) {
		u := createUser(t, ctx, conn, "revoke@example.com")
		rr := repo.NewRefreshTokenRepository(conn)

		now := time.Now()
		require.NoError(t, rr.Create(ctx, model.RefreshToken{
			ID: uuid.New(), UserID: u.ID, TokenHash: hashOf("revocable"),
			IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		}))
		require.NoError(t, rr.RevokeByHash(ctx, hashOf("revocable")))

		_, err := rr.Rotate(ctx, hashOf("revocable"), model.RefreshToken{
			ID: uuid.New(), TokenHash: hashOf("never"), IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		})
		require.ErrorIs(t, err, model.ErrTokenInvalid)

		require.NoError(t, rr.Create(ctx, model.RefreshToken{
			ID: uuid.New(), UserID: u.ID, TokenHash: hashOf("stale"),
			IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		}))
		n, err := rr.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
	})

	t.Run("notification_repository", func(t *testing.T) {
		u := createUser(t, ctx, conn, "notify@example.com")
		nr := repo.NewNotificationRepository(conn)
		listID := uuid.New()

		records := []model.NotificationRecord{
			{
				ID: uuid.New(), Type: model.NotificationProductAdded, ListID: listID,
				ListName: "Groceries", ActorID: uuid.New(), ActorName: "Alice",
				TargetUserID: u.ID, CreatedAt: time.Now().Add(-time.Minute),
			},
			{
				ID: uuid.New(), Type: model.NotificationListDeleted, ListID: listID,
				ListName: "Groceries", ActorID: uuid.New(), ActorName: "Alice",
				TargetUserID: u.ID, CreatedAt: time.Now(),
			},
		}
		require.NoError(t, nr.CreateBatch(ctx, records))

		page, err := nr.GetByUser(ctx, u.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		// newest first
		assert.Equal(t, records[1].ID, page[0].ID)

		count, err := nr.CountUnread(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		require.NoError(t, nr.MarkRead(ctx, records[0].ID, u.ID))
		count, err = nr.CountUnread(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		// marking for the wrong owner is not found
		require.ErrorIs(t, nr.MarkRead(ctx, records[1].ID, uuid.New()), model.ErrNotFound)

		require.NoError(t, nr.MarkAllRead(ctx, u.ID))
		count, err = nr.CountUnread(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		deleted, err := nr.DeleteByList(ctx, listID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})

	t.Run("subscription_repository", func(t *testing.T) {
		u := createUser(t, ctx, conn, "subs@example.com")
		sr := repo.NewSubscriptionRepository(conn)

		sub := model.PushSubscription{
			ID: uuid.New(), UserID: u.ID,
			Endpoint: "https://push.example/abc", P256dhKey: "p", AuthKey: "a",
		}
		require.NoError(t, sr.Save(ctx, sub))

		// saving the same endpoint again replaces, not duplicates
		sub.ID = uuid.New()
		sub.AuthKey = "b"
		require.NoError(t, sr.Save(ctx, sub))

		got, err := sr.GetByUser(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].AuthKey)

		require.NoError(t, sr.DeleteByEndpoint(ctx, sub.Endpoint))
		got, err = sr.GetByUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, got)

		// deleting an absent endpoint is not an error
		require.NoError(t, sr.DeleteByEndpoint(ctx, "https://push.example/none"))
	})

	t.Run("list_directory", func(t *testing.T) {
		owner := createUser(t, ctx, conn, "owner@example.com")
		member := createUser(t, ctx, conn, "member@example.com")
		muted := createUser(t, ctx, conn, "muted@example.com")
		listID := uuid.New()

		_, err := conn.Exec(ctx,
			`INSERT INTO lists (id, name, owner_id, is_group) VALUES ($1, 'Groceries', $2, TRUE)`,
			listID, owner.ID)
		require.NoError(t, err)
		_, err = conn.Exec(ctx,
			`INSERT INTO list_members (list_id, user_id) VALUES ($1, $2), ($1, $3)`,
			listID, member.ID, muted.ID)
		require.NoError(t, err)
		_, err = conn.Exec(ctx,
			`INSERT INTO list_mutes (list_id, user_id) VALUES ($1, $2)`,
			listID, muted.ID)
		require.NoError(t, err)

		ld := repo.NewListDirectoryRepository(conn)

		info, err := ld.GetList(ctx, listID)
		require.NoError(t, err)
		assert.Equal(t, "Groceries", info.Name)
		assert.Equal(t, owner.ID, info.OwnerID)
		assert.True(t, info.IsGroup)

		members, err := ld.MemberIDs(ctx, listID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{member.ID, muted.ID}, members)

		mutes, err := ld.MutedUserIDs(ctx, listID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{muted.ID}, mutes)

		_, err = ld.GetList(ctx, uuid.New())
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}
