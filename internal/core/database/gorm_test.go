package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	tests := []struct {
		name, in, user, pass, want string
	}{
		{
			name: "native dsn untouched",
			in:   "root:pw@tcp(127.0.0.1:3306)/story?parseTime=true",
			want: "root:pw@tcp(127.0.0.1:3306)/story?parseTime=true",
		},
		{
			name: "url form",
			in:   "mysql://root:pw@db:3306/story",
			want: "root:pw@tcp(db:3306)/story?charset=utf8mb4&parseTime=true",
		},
		{
			name: "jdbc params translated",
			in:   "jdbc:mysql://db:3306/story?useUnicode=true&characterEncoding=utf8&useSSL=false&serverTimezone=UTC",
			user: "app", pass: "secret",
			want: "app:secret@tcp(db:3306)/story?charset=utf8&loc=UTC&parseTime=true&tls=false",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMySQLDSN(tt.in, tt.user, tt.pass))
		})
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(db)/x", maskDSN("root:pw@tcp(db)/x"))
	assert.Equal(t, "file:x.db", maskDSN("file:x.db"))
}

func TestNewGorm_SQLiteMigrate(t *testing.T) {
	db, err := NewGorm(Opts{Driver: "sqlite", DSN: "file::memory:?_foreign_keys=on", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "stories", "contributions", "comments", "story_likes", "contribution_likes"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestNewGorm_UnsupportedDriver(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
