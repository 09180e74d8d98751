package csvfile

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := New("")
	assert.Error(t, err)
}

func TestAppendSendersWritesRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exported.csv")
	sink, err := New(path)
	require.NoError(t, err)

	stamp := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return stamp }

	ctx := context.Background()
	require.NoError(t, sink.AppendSenders(ctx, []string{"a@b.io", "c@d.io"}))
	require.NoError(t, sink.AppendSenders(ctx, []string{"e@f.io"}))

	file, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a@b.io", "2026-03-01T09:00:00Z"}, rows[0])
	assert.Equal(t, []string{"e@f.io", "2026-03-01T09:00:00Z"}, rows[2])
}

func TestAppendSendersEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exported.csv")
	sink, err := New(path)
	require.NoError(t, err)

	require.NoError(t, sink.AppendSenders(context.Background(), nil))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
