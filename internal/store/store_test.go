package store_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"promptbot/internal/db"
	"promptbot/internal/models"
	"promptbot/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stores struct {
	tokens  store.TokenStore
	prompts store.PromptStore
}

func backends(t *testing.T) map[string]func(t *testing.T) stores {
	t.Helper()
	return map[string]func(t *testing.T) stores{
		"memory": func(t *testing.T) stores {
			m := store.NewMemory()
			return stores{tokens: m.Tokens(), prompts: m.Prompts()}
		},
		"postgres": func(t *testing.T) stores {
			dsn := os.Getenv("TEST_DATABASE_DSN")
			if dsn == "" {
				t.Skip("skip: TEST_DATABASE_DSN not set")
			}
			gdb, err := db.Connect(context.Background(), dsn, db.Options{Attempts: 1})
			if err != nil {
				t.Skipf("skip: db not available: %v", err)
			}
			if err := db.Migrate(gdb); err != nil {
				t.Skipf("skip: migrate failed: %v", err)
			}
			require.NoError(t, gdb.Exec("DELETE FROM prompts").Error)
			require.NoError(t, gdb.Exec("DELETE FROM tokens").Error)
			return stores{tokens: store.NewGormTokens(gdb), prompts: store.NewGormPrompts(gdb)}
		},
	}
}

func TestTokenStore_UpsertReplaces(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			require.NoError(t, s.tokens.Upsert(ctx, &models.Token{UserID: "u1", UserName: "a#1", Token: "first", Admin: true}))
			require.NoError(t, s.tokens.Upsert(ctx, &models.Token{UserID: "u1", UserName: "b#1", Token: "second"}))

			_, err := s.tokens.FindByToken(ctx, "first")
			assert.ErrorIs(t, err, store.ErrNotFound)

			got, err := s.tokens.FindByToken(ctx, "second")
			require.NoError(t, err)
			assert.Equal(t, "u1", got.UserID)
			assert.Equal(t, "b#1", got.UserName)
			assert.False(t, got.Admin)
			assert.Nil(t, got.Date)
		})
	}
}

func TestTokenStore_ConcurrentReissueLeavesOneToken(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			const n = 10
			toks := make([]string, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				toks[i] = uuid.NewString()
				wg.Add(1)
				go func(tok string) {
					defer wg.Done()
					assert.NoError(t, s.tokens.Upsert(ctx, &models.Token{UserID: "same", UserName: "x", Token: tok}))
				}(toks[i])
			}
			wg.Wait()

			valid := 0
			for _, tok := range toks {
				if _, err := s.tokens.FindByToken(ctx, tok); err == nil {
					valid++
				}
			}
			assert.Equal(t, 1, valid)
		})
	}
}

func TestPromptStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			var ids []string
			for _, body := range []string{"one", "two", "three"} {
				p := &models.Prompt{UserID: "u1", UserName: "a#1", Prompt: body, Duration: "1d"}
				require.NoError(t, s.prompts.Create(ctx, p))
				require.NotEmpty(t, p.ID)
				ids = append(ids, p.ID)
			}

			all, err := s.prompts.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "one", all[0].Prompt)
			assert.Equal(t, "three", all[2].Prompt)

			found, err := s.prompts.FindByIDs(ctx, []string{ids[2], "missing", ids[0]})
			require.NoError(t, err)
			require.Len(t, found, 2)
			assert.Equal(t, ids[2], found[0].ID)
			assert.Equal(t, ids[0], found[1].ID)

			require.NoError(t, s.prompts.SetPosted(ctx, ids[1], true))
			require.NoError(t, s.prompts.SetPosted(ctx, uuid.NewString(), true))

			all, err = s.prompts.List(ctx)
			require.NoError(t, err)
			assert.False(t, all[0].Posted)
			assert.True(t, all[1].Posted)
			assert.False(t, all[2].Posted)
		})
	}
}
