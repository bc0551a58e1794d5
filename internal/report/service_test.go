package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierval/internal"
	"courierval/internal/util"
)

type stubFetcher struct {
	files map[string]string
	calls []string
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, term string) (string, error) {
	s.calls = append(s.calls, term)
	if s.err != nil {
		return "", s.err
	}
	path, ok := s.files[term]
	if !ok {
		return "", errors.New("no export")
	}
	return path, nil
}

func (s *stubFetcher) Close() error { return nil }

func TestServiceTotals(t *testing.T) {
	dir := t.TempDir()
	family := filepath.Join(dir, "family.xlsx")
	writeExport(t, family, exportRows())
	client := filepath.Join(dir, "client.xlsx")
	writeExport(t, client, [][]string{
		exportHeader,
		{"15/10", "CLIENTE_X", "CARTAO", "200001", "150", "SP", "ENTREGUE"},
	})
	narrow := filepath.Join(dir, "narrow.xlsx")
	writeExport(t, narrow, [][]string{{"a", "b"}, {"1", "2"}})

	fetcher := &stubFetcher{files: map[string]string{"ELO-RE": family, "CLIENTE_X": client, "CLIENTE_N": narrow}}
	svc := NewService(fetcher, util.NewRateLimiter(60000), "ELO-RE", zerolog.Nop())

	got, err := svc.Totals(context.Background(), []string{"ALELO", "CLIENTE_X", "ALELO-KIT", "CLIENTE_N"})
	require.NoError(t, err)

	assert.Equal(t, internal.ExternalReport{"ALELO": 10, "CLIENTE_X": 150, "ALELO-KIT": 1004, "CLIENTE_N": 0}, got)
	assert.Equal(t, []string{"ELO-RE", "CLIENTE_X", "CLIENTE_N"}, fetcher.calls)
}

func TestServiceTotalsFetchFailure(t *testing.T) {
	boom := errors.New("portal down")
	svc := NewService(&stubFetcher{err: boom}, nil, "ELO-RE", zerolog.Nop())
	_, err := svc.Totals(context.Background(), []string{"CLIENTE_X"})
	assert.ErrorIs(t, err, boom)
}

func TestSearchTerm(t *testing.T) {
	svc := NewService(nil, nil, "ELO-RE", zerolog.Nop())
	assert.Equal(t, "ELO-RE", svc.SearchTerm("ALELO-KIT"))
	assert.Equal(t, "ELO-RE", svc.SearchTerm("ALELO"))
	assert.Equal(t, "CLIENTE_X", svc.SearchTerm("CLIENTE_X"))
}

func TestDirectoryFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ELO-RE.xlsx"), []byte("x"), 0o644))

	f := NewDirectoryFetcher(dir)
	path, err := f.Fetch(context.Background(), "ELO-RE")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ELO-RE.xlsx"), path)

	_, err = f.Fetch(context.Background(), "CLIENTE_X")
	assert.Error(t, err)
}

func TestWaitForDownload(t *testing.T) {
	dir := t.TempDir()
	since := time.Now().Add(-time.Second)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~lock.xlsx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.xlsx.crdownload"), []byte("x"), 0o644))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "relatorio.xlsx"), []byte("done"), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	path, err := WaitForDownload(ctx, dir, since, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "relatorio.xlsx"), path)
}

func TestWaitForDownloadTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := WaitForDownload(ctx, t.TempDir(), time.Now(), 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
