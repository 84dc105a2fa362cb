package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
	testingutil "github.com/amirphl/Kappa/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withDB skips when no PostgreSQL is reachable
func withDB(t *testing.T, fn func(t *testing.T, testDB *testingutil.TestDB)) {
	t.Helper()
	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("database not available: %v", err)
	}
	t.Cleanup(func() { _ = testDB.TeardownTestDB() })
	fn(t, testDB)
}

func TestAccountRepository(t *testing.T) {
	withDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewAccountRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveAndByEmail", func(t *testing.T) {
			a := testingutil.NewAccount(false)
			require.NoError(t, repo.Save(ctx, a))
			require.NotZero(t, a.ID)

			found, err := repo.ByEmail(ctx, a.Email)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, a.ID, found.ID)
			assert.Equal(t, int64(1), found.InvoiceCounter)
			assert.False(t, found.IsAdmin)
		})

		t.Run("ByEmailNotFound", func(t *testing.T) {
			found, err := repo.ByEmail(ctx, "nobody@example.com")
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("DuplicateEmail", func(t *testing.T) {
			a := testingutil.NewAccount(false)
			require.NoError(t, repo.Save(ctx, a))

			dup := testingutil.NewAccount(false)
			dup.Email = a.Email
			err := repo.Save(ctx, dup)
			require.Error(t, err)
			assert.True(t, repository.IsDuplicateKey(err))
		})

		t.Run("UpdateProfileOnlyTouchesPresentFields", func(t *testing.T) {
			a := testingutil.NewAccount(true)
			require.NoError(t, repo.Save(ctx, a))

			website := "https://aquafix.example.com"
			require.NoError(t, repo.UpdateProfile(ctx, a.ID, models.ProfileUpdate{CompanyWebsite: &website}))

			found, err := repo.ByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, website, found.CompanyWebsite)
			assert.Equal(t, a.CompanyName, found.CompanyName)
		})

		t.Run("FlagsAndAdmin", func(t *testing.T) {
			a := testingutil.NewAccount(false)
			require.NoError(t, repo.Save(ctx, a))

			require.NoError(t, repo.MarkPasswordChanged(ctx, a.ID))
			require.NoError(t, repo.MarkTermsAccepted(ctx, a.ID))
			require.NoError(t, repo.SetAdmin(ctx, a.ID))

			found, err := repo.ByID(ctx, a.ID)
			require.NoError(t, err)
			assert.True(t, found.HasChangedPassword)
			assert.True(t, found.HasAcceptedTerms)
			assert.True(t, found.IsAdmin)

			err = repo.SetAdmin(ctx, 999999)
			assert.True(t, repository.IsNotFound(err))
		})

		t.Run("IncrementInvoiceCounterConcurrently", func(t *testing.T) {
			a := testingutil.NewAccount(true)
			require.NoError(t, repo.Save(ctx, a))

			const workers = 8
			var wg sync.WaitGroup
			seen := make(chan int64, workers)
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					n, err := repo.IncrementInvoiceCounter(context.Background(), a.ID)
					if err == nil {
						seen <- n
					}
				}()
			}
			wg.Wait()
			close(seen)

			values := make(map[int64]bool)
			for n := range seen {
				values[n] = true
			}
			assert.Len(t, values, workers, "every increment returns a distinct value")

			found, err := repo.ByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1+workers), found.InvoiceCounter)
		})

		t.Run("DeleteByID", func(t *testing.T) {
			a := testingutil.NewAccount(false)
			require.NoError(t, repo.Save(ctx, a))

			deleted, err := repo.DeleteByID(ctx, a.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = repo.DeleteByID(ctx, a.ID)
			require.NoError(t, err)
			assert.False(t, deleted)
		})

		t.Run("CountByAdmin", func(t *testing.T) {
			admin := true
			before, err := repo.Count(ctx, models.AccountFilter{IsAdmin: &admin})
			require.NoError(t, err)

			a := testingutil.NewAccount(false)
			a.IsAdmin = true
			require.NoError(t, repo.Save(ctx, a))

			after, err := repo.Count(ctx, models.AccountFilter{IsAdmin: &admin})
			require.NoError(t, err)
			assert.Equal(t, before+1, after)
		})
	})
}

func TestReportLogRepository(t *testing.T) {
	withDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewReportLogRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestAccount(true)
		require.NoError(t, err)

		first, err := fixtures.CreateTestReport(owner.ID)
		require.NoError(t, err)
		second, err := fixtures.CreateTestReport(owner.ID)
		require.NoError(t, err)

		t.Run("ListWithAccountNewestFirst", func(t *testing.T) {
			logs, err := repo.ListWithAccount(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, logs, 2)
			assert.Equal(t, second.ID, logs[0].ID)
			assert.Equal(t, first.ID, logs[1].ID)
			require.NotNil(t, logs[0].Account)
			assert.Equal(t, owner.Email, logs[0].Account.Email)
			require.Len(t, logs[0].Images, 1)
			assert.Equal(t, "kitchen", logs[0].Images[0].Description)
		})

		t.Run("ListWithAccountLimit", func(t *testing.T) {
			logs, err := repo.ListWithAccount(ctx, 1, 1)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, first.ID, logs[0].ID)
		})

		t.Run("EntriesOutliveAccount", func(t *testing.T) {
			accounts := repository.NewAccountRepository(testDB.DB)
			deleted, err := accounts.DeleteByID(ctx, owner.ID)
			require.NoError(t, err)
			require.True(t, deleted)

			count, err := repo.Count(ctx, models.ReportLogFilter{AccountID: &owner.ID})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			logs, err := repo.ListWithAccount(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, logs, 2)
			assert.Nil(t, logs[0].Account)
		})
	})
}

func TestGormTransactor(t *testing.T) {
	withDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		tx := repository.NewGormTransactor(testDB.DB)
		repo := repository.NewAccountRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		a := testingutil.NewAccount(false)
		boom := errors.New("boom")
		err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := repo.Save(txCtx, a); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		found, err := repo.ByEmail(ctx, a.Email)
		require.NoError(t, err)
		assert.Nil(t, found, "rolled back insert is not visible")

		b := testingutil.NewAccount(false)
		require.NoError(t, tx.WithTransaction(ctx, func(txCtx context.Context) error {
			return repo.Save(txCtx, b)
		}))
		found, err = repo.ByEmail(ctx, b.Email)
		require.NoError(t, err)
		assert.NotNil(t, found)
	})
}
