package dispatch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairroute/internal/integrations"
	"fairroute/internal/integrations/csvdir"
	"fairroute/internal/model"
)

func TestPoller_ImportsAndAcks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch1.csv"), []byte("Address,Weight\nErode,2\nBhavani,1\n"), 0o644))

	svc, st, _ := newService(t)
	addWorker(t, st, "w", true)

	p := NewPoller(csvdir.New(dir), svc, tenant, 0)
	assert.Equal(t, 1, p.ProcessOnce(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "batch1.csv.done"))

	routes, err := st.ListRoutes(context.Background(), tenant, model.RouteAssigned)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 3.0, routes[0].TotalWeight)
	assert.Equal(t, EntryPoller, svc.Runs(tenant)[0].Entry)

	assert.Zero(t, p.ProcessOnce(context.Background()), "drained source")
}

func TestPoller_DefersWithoutWorkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch1.csv")
	require.NoError(t, os.WriteFile(path, []byte("Address\nErode\n"), 0o644))

	svc, _, _ := newService(t)
	p := NewPoller(csvdir.New(dir), svc, tenant, 0)
	assert.Zero(t, p.ProcessOnce(context.Background()))
	assert.FileExists(t, path, "batch stays for the next tick")
}

type fakeSource struct {
	bodies   []io.Reader
	acked    []string
	rejected []string
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchBatch(ctx context.Context) (integrations.Batch, bool, error) {
	if len(f.bodies) == 0 {
		return integrations.Batch{}, false, nil
	}
	b := f.bodies[0]
	f.bodies = f.bodies[1:]
	return integrations.Batch{Ref: "b", Body: io.NopCloser(b)}, true, nil
}

func (f *fakeSource) Ack(ctx context.Context, ref string) error {
	f.acked = append(f.acked, ref)
	return nil
}

func (f *fakeSource) Reject(ctx context.Context, ref, reason string) error {
	f.rejected = append(f.rejected, reason)
	return nil
}

func TestPoller_RejectsUnreadableBatch(t *testing.T) {
	svc, st, _ := newService(t)
	addWorker(t, st, "w", true)
	src := &fakeSource{bodies: []io.Reader{
		io.MultiReader(strings.NewReader("address\nErode\n"), iotest.ErrReader(errors.New("disk gone"))),
		strings.NewReader("address\nBhavani\n"),
	}}

	p := NewPoller(src, svc, tenant, 0)
	assert.Equal(t, 1, p.ProcessOnce(context.Background()))
	require.Len(t, src.rejected, 1)
	assert.Contains(t, src.rejected[0], "disk gone")
	assert.Len(t, src.acked, 1)
}

func TestPoller_StartStop(t *testing.T) {
	svc, _, _ := newService(t)
	p := NewPoller(&fakeSource{}, svc, tenant, 0)
	p.Start()
	p.Stop()
	p.Stop()
}
