package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayEmitsBlocksInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.txt")
	body := "Sell Gold @3640.5-3645.5\nSl :3647.5\nTp1 :3638.5\n---\n\n---\nMove SL to 3644\r\n---\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	out, err := New(path, 0, nil).Messages(context.Background())
	require.NoError(t, err)

	var texts []string
	var ids []string
	for msg := range out {
		texts = append(texts, msg.Text)
		ids = append(ids, msg.ID)
	}

	assert.Equal(t, []string{
		"Sell Gold @3640.5-3645.5\nSl :3647.5\nTp1 :3638.5",
		"Move SL to 3644",
	}, texts)
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestReplayMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.txt"), 0, nil).Messages(context.Background())
	assert.Error(t, err)
}

func TestReplayStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\n---\nb\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	out, err := New(path, 0, nil).Messages(ctx)
	require.NoError(t, err)

	<-out
	cancel()
	for range out {
	}
}
