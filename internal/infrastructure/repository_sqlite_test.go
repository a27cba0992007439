package infrastructure

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/ytfetch-go/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteDownloadRepository {
	t.Helper()
	repo, err := NewSQLiteDownloadRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := newTestRepo(t)

	dl := domain.NewDownload("https://www.youtube.com/watch?v=abc", &domain.DefaultConfig().Download)
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, dl.URL, found.URL)
	assert.Equal(t, domain.StatusQueued, found.Status)
	assert.Equal(t, 1080, found.QualityCap)
}

func TestRepository_Update(t *testing.T) {
	repo := newTestRepo(t)

	dl := domain.NewDownload("https://www.youtube.com/watch?v=abc", &domain.DefaultConfig().Download)
	require.NoError(t, repo.Create(dl))

	dl.MarkProcessing()
	dl.MarkCompleted("/downloads/video/video.mp4")
	require.NoError(t, repo.Update(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, found.Status)
	assert.Equal(t, "/downloads/video/video.mp4", found.FilePath)
	assert.NotNil(t, found.CompletedAt)
}

func TestRepository_FindPending_OldestFirst(t *testing.T) {
	repo := newTestRepo(t)
	cfg := &domain.DefaultConfig().Download

	first := domain.NewDownload("https://www.youtube.com/watch?v=first", cfg)
	require.NoError(t, repo.Create(first))

	second := domain.NewDownload("https://www.youtube.com/watch?v=second", cfg)
	second.CreatedAt = second.CreatedAt.Add(1e9)
	require.NoError(t, repo.Create(second))

	done := domain.NewDownload("https://www.youtube.com/watch?v=done", cfg)
	done.MarkCompleted("/x.mp4")
	require.NoError(t, repo.Create(done))

	pending, err := repo.FindPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestRepository_FindAll_StatusFilter(t *testing.T) {
	repo := newTestRepo(t)
	cfg := &domain.DefaultConfig().Download

	ok := domain.NewDownload("https://www.youtube.com/watch?v=ok", cfg)
	ok.MarkCompleted("/x.mp4")
	require.NoError(t, repo.Create(ok))

	bad := domain.NewDownload("https://www.youtube.com/watch?v=bad", cfg)
	bad.MarkFailed(errors.New("geo blocked"))
	require.NoError(t, repo.Create(bad))

	failed, err := repo.FindAll(map[string]interface{}{"status": "failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, bad.ID, failed[0].ID)
	assert.Equal(t, "geo blocked", failed[0].ErrorMessage)
}

func TestRepository_GetStats(t *testing.T) {
	repo := newTestRepo(t)
	cfg := &domain.DefaultConfig().Download

	for i := 0; i < 3; i++ {
		dl := domain.NewDownload("https://www.youtube.com/watch?v=ok", cfg)
		dl.MarkCompleted("/x.mp4")
		require.NoError(t, repo.Create(dl))
	}
	failed := domain.NewDownload("https://www.youtube.com/watch?v=bad", cfg)
	failed.MarkFailed(errors.New("boom"))
	require.NoError(t, repo.Create(failed))
	require.NoError(t, repo.Create(domain.NewDownload("https://www.youtube.com/watch?v=new", cfg)))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Queued)
}
