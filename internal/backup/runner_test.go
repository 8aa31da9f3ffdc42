package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hdf-dwh/internal/domain"
)

type fakeStorage struct {
	objects   []Object
	deleted   []string
	uploadErr error
}

func (f *fakeStorage) Upload(_ context.Context, _, key string) (int64, error) {
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	f.objects = append(f.objects, Object{Key: key, Size: 1024})
	return 1024, nil
}

func (f *fakeStorage) List(_ context.Context, prefix string) ([]Object, error) {
	return f.objects, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	for i, obj := range f.objects {
		if obj.Key == key {
			f.objects = append(f.objects[:i], f.objects[i+1:]...)
			break
		}
	}
	return nil
}

type memLogsRepo struct {
	logs   []*domain.LogEntry
	errors []*domain.ErrorEntry
}

func (m *memLogsRepo) InsertLog(_ context.Context, entry *domain.LogEntry) error {
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memLogsRepo) InsertError(_ context.Context, entry *domain.ErrorEntry) (int64, error) {
	m.errors = append(m.errors, entry)
	return int64(len(m.errors)), nil
}

func (m *memLogsRepo) ResolveError(context.Context, int64) error { return nil }

func (m *memLogsRepo) OpenErrors(context.Context) ([]*domain.ErrorEntry, error) {
	return m.errors, nil
}

func (m *memLogsRepo) RecentLogs(context.Context, int) ([]*domain.LogEntry, error) {
	return m.logs, nil
}

func TestBackupKeyRoundTrip(t *testing.T) {
	taken := time.Date(2025, 6, 1, 2, 30, 0, 0, time.UTC)
	key := BackupKey("backups/", "hdf_dwh", taken)
	assert.Equal(t, "backups/hdf_dwh_20250601_023000.dump", key)

	parsed, err := ParseKeyTime(key, "hdf_dwh")
	require.NoError(t, err)
	assert.Equal(t, taken, parsed)
}

func TestParseKeyTimeRejectsForeignKeys(t *testing.T) {
	for _, key := range []string{
		"backups/readme.txt",
		"backups/autre_base_20250601_023000.dump",
		"backups/hdf_dwh_pas-une-date.dump",
	} {
		_, err := ParseKeyTime(key, "hdf_dwh")
		assert.Error(t, err, key)
	}
}

func TestRunUploadsAndPrunes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC))
	storage := &fakeStorage{objects: []Object{
		{Key: BackupKey("backups/", "hdf_dwh", clock.Now().AddDate(0, 0, -40))},
		{Key: BackupKey("backups/", "hdf_dwh", clock.Now().AddDate(0, 0, -10))},
		{Key: "backups/manual-export.csv"}, // foreign object, must survive
	}}
	logs := &memLogsRepo{}
	runner := NewRunner(storage, logs, clock, zap.NewNop(), "backups/", "hdf_dwh", 30)

	require.NoError(t, runner.Run(context.Background(), "/tmp/dump.dump"))

	require.Len(t, storage.deleted, 1)
	assert.Contains(t, storage.deleted[0], "20250501")

	require.Len(t, logs.logs, 2)
	assert.Equal(t, domain.StatutDebut, logs.logs[0].Statut)
	assert.Equal(t, domain.StatutSucces, logs.logs[1].Statut)
	assert.Equal(t, "BACKUP_DATALAKE", logs.logs[1].Etape)
	assert.Equal(t, "DATABASE", logs.logs[1].TableCible)
}

func TestRunRetentionDisabled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC))
	storage := &fakeStorage{objects: []Object{
		{Key: BackupKey("backups/", "hdf_dwh", clock.Now().AddDate(0, 0, -400))},
	}}
	runner := NewRunner(storage, &memLogsRepo{}, clock, zap.NewNop(), "backups/", "hdf_dwh", 0)

	require.NoError(t, runner.Run(context.Background(), "/tmp/dump.dump"))
	assert.Empty(t, storage.deleted)
}

func TestRunUploadFailureAudited(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC))
	storage := &fakeStorage{uploadErr: errors.New("bucket unreachable")}
	logs := &memLogsRepo{}
	runner := NewRunner(storage, logs, clock, zap.NewNop(), "backups/", "hdf_dwh", 30)

	err := runner.Run(context.Background(), "/tmp/dump.dump")
	require.Error(t, err)

	require.Len(t, logs.logs, 2)
	assert.Equal(t, domain.StatutErreur, logs.logs[1].Statut)
	require.Len(t, logs.errors, 1)
	assert.Equal(t, "BACKUP_DATALAKE", logs.errors[0].Source)
}
