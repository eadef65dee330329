package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"

	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// newDuplicateKeyDB opens a connectionless gorm instance whose create path
// reports a translated unique violation, the shape TranslateError yields
// for SQLSTATE 23505 against postgres.
func newDuplicateKeyDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{})
	require.NoError(t, err)
	err = db.Callback().Create().Replace("gorm:create", func(tx *gorm.DB) {
		tx.AddError(gorm.ErrDuplicatedKey)
	})
	require.NoError(t, err)
	return db
}

func TestUserRepoCreate_DuplicateEmailIsConflict(t *testing.T) {
	repo := NewUserRepo(newDuplicateKeyDB(t))

	err := repo.Create(&entity.User{UID: "uid-1", Email: "jane@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "losing device of a creation race sees a conflict, not a raw driver error")
}

func TestUserIdentityRepoCreate_DuplicateSubIsConflict(t *testing.T) {
	repo := NewUserIdentityRepo(newDuplicateKeyDB(t))

	err := repo.Create(&entity.UserIdentity{UserID: 1, Provider: entity.ProviderApple, ProviderSub: "apple-sub"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
