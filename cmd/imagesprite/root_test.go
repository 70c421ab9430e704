package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/imagesprite/internal/domain"
)

// resetFlags restores every flag to its default between executions
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// executeCommand is a helper to run a cobra command and capture its output
func executeCommand(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	resetFlags(rootCmd)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// writeRawBatch writes n channel-first images whose every byte is seed+i.
func writeRawBatch(t *testing.T, path string, seed byte, n int) {
	t.Helper()
	buf := make([]byte, 0, n*domain.ImageSize)
	for i := 0; i < n; i++ {
		buf = append(buf, bytes.Repeat([]byte{seed + byte(i)}, domain.ImageSize)...)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestIngestAndInspect(t *testing.T) {
	dir := t.TempDir()
	writeRawBatch(t, filepath.Join(dir, "a.bin"), 1, 2)
	writeRawBatch(t, filepath.Join(dir, "b.bin"), 10, 3)
	storePath := filepath.Join(dir, "store.db")

	out, errOut, err := executeCommand("ingest", "--store", storePath, "--dir", dir, "--format", "raw", "a.bin", "b.bin")
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "ingested 5 images from 2 batches")
	assert.Contains(t, errOut, "ingest: done")

	out, errOut, err = executeCommand("ingest", "--store", storePath, "--dir", dir, "--format", "raw", "a.bin", "b.bin")
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "already populated")

	out, errOut, err = executeCommand("inspect", "--keys", storePath)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "store\t"+storePath)
	assert.Contains(t, out, "images\t5")
	assert.Contains(t, out, "a.bin\t0\t2")
	assert.Contains(t, out, "b.bin\t2\t3")
	assert.Contains(t, out, "00000004\t4")
	assert.NotContains(t, out, "00000005")
}

func TestIngest_Failure(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store.db")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.bin"), []byte{1, 2, 3}, 0o644))

	_, _, err := executeCommand("ingest", "--store", storePath, "--dir", dir, "--format", "raw", "short.bin")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTruncatedBatch)
	_, statErr := os.Stat(storePath)
	assert.True(t, os.IsNotExist(statErr))

	_, _, err = executeCommand("ingest", "--store", storePath, "--dir", dir, "missing.bin")
	assert.Error(t, err)

	_, _, err = executeCommand("ingest", "--store", storePath, "--format", "jpeg")
	assert.Error(t, err)
}

func TestIngest_FromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "batches"), 0o755))
	writeRawBatch(t, filepath.Join(dir, "batches", "only.bin"), 7, 1)
	configPath := filepath.Join(dir, "imagesprite.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
store:
  path: train.db
ingest:
  dir: batches
  batches: [only.bin]
  format: raw
`), 0o644))

	out, errOut, err := executeCommand("ingest", "--config", configPath)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "ingested 1 images")
	_, err = os.Stat(filepath.Join(dir, "train.db"))
	assert.NoError(t, err)
}

func TestQuery(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "logs.db")
	csvPath := filepath.Join(dir, "logs.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(strings.Join([]string{
		"run_id,epoch_id,img_id,ground_truth,predicted",
		"1,0,12,3,5",
		"1,0,40,3,5",
		"2,0,41,3,5",
		"1,0,7,3,3",
	}, "\n")), 0o644))

	out, errOut, err := executeCommand("query", "--load", csvPath, "--run", "1", "--truth", "3", "--predicted", "5", dbPath)
	require.NoError(t, err, errOut)
	assert.Equal(t, "12\n40\n", out)

	out, _, err = executeCommand("query", "--truth", "3", "--predicted", "5", "--limit", "5", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "12\n40\n41\n", out)

	_, _, err = executeCommand("query", "--truth", "3", "--predicted", "5", "--limit", "0", dbPath)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)

	out, _, err = executeCommand("query", "--ratio", "--run", "1", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1\t3\t0.3333")
}

func TestReadLogCSV(t *testing.T) {
	entries, err := readLogCSV(strings.NewReader("1, 2, 3, 4, 5\n6,7,8,9,0\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.LogEntry{
		{RunID: 1, EpochID: 2, ImageID: 3, GroundTruth: 4, Predicted: 5},
		{RunID: 6, EpochID: 7, ImageID: 8, GroundTruth: 9, Predicted: 0},
	}, entries)

	_, err = readLogCSV(strings.NewReader("1,2,3,4,5\n1,x,3,4,5\n"))
	assert.Error(t, err)

	_, err = readLogCSV(strings.NewReader("1,2,3\n"))
	assert.Error(t, err)
}

func TestListenUntilDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() {
		done <- listenUntilDone(ctx, srv)
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	out, errOut, err := executeCommand("init", dir)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "Creating sample configuration file")
	_, err = os.Stat(filepath.Join(dir, "imagesprite.yaml"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "logs.db"))
	require.NoError(t, err)

	out, _, err = executeCommand("init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file already exists")
}
