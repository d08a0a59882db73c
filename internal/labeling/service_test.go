package labeling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/lease"
	"github.com/starford/skylabel/internal/models"
	"github.com/starford/skylabel/internal/store"
	"github.com/starford/skylabel/internal/testutil"
)

type env struct {
	svc       *Service
	db        *store.DB
	leases    *lease.Memory
	clock     *testutil.Clock
	unlabeled string
	labeled   string
	events    *recorder
}

type recorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recorder) Notify(kind string, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.kinds...)
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	db := testutil.TestStore(t)
	unlabeled, labeled, p := testutil.TestPool(t)
	clock := testutil.NewClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	leases := lease.NewMemory()
	events := &recorder{}

	_, err := db.InsertReference(context.Background(), models.KindAircraftType, []models.ReferenceEntry{
		{Code: "B737", Name: "Boeing 737"},
		{Code: "A320", Name: "Airbus A320"},
	})
	require.NoError(t, err)
	_, err = db.InsertReference(context.Background(), models.KindAirline, []models.ReferenceEntry{
		{Code: "CCA", Name: "Air China"},
	})
	require.NoError(t, err)

	opts = append([]Option{WithClock(clock.Now), WithNotifier(events)}, opts...)
	return &env{
		svc:       NewService(db, p, leases, opts...),
		db:        db,
		leases:    leases,
		clock:     clock,
		unlabeled: unlabeled,
		labeled:   labeled,
		events:    events,
	}
}

func submission(typeCode string) Submission {
	return Submission{
		AircraftTypeCode: typeCode,
		AirlineCode:      "CCA",
		Clarity:          0.8,
		Occlusion:        0.1,
		RegistrationText: "B-1234",
		RegistrationBox:  &models.Box{CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.1},
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestTwoAnnotatorsOneImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg", "img2.jpg")

	_, err := e.svc.AcquireLease(ctx, "img1.jpg", "A")
	require.NoError(t, err)

	_, err = e.svc.AcquireLease(ctx, "img1.jpg", "B")
	var conflict *lease.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "A", conflict.Holder)

	a, err := e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.NoError(t, err)
	assert.Equal(t, "B737-0001.jpg", a.AssignedFilename)
	assert.Equal(t, "Boeing 737", a.AircraftTypeName)
	assert.Equal(t, "Air China", a.AirlineName)

	assert.False(t, e.leases.IsLive("img1.jpg", e.clock.Now()), "lease released after commit")
	assert.False(t, exists(filepath.Join(e.unlabeled, "img1.jpg")))
	assert.True(t, exists(filepath.Join(e.labeled, "B737-0001.jpg")))

	inv, err := e.svc.ListInventory(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"img2.jpg"}, inv.Available)
	assert.Equal(t, 1, inv.LabeledCount)

	assert.Contains(t, e.events.Kinds(), EventAnnotationCommitted)
}

func TestLeaseExpiryDuringWork(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")

	_, err := e.svc.AcquireLease(ctx, "img1.jpg", "A")
	require.NoError(t, err)

	e.clock.Advance(lease.DefaultTTL + time.Second)

	_, err = e.svc.AcquireLease(ctx, "img1.jpg", "B")
	require.NoError(t, err)

	_, err = e.svc.Heartbeat(ctx, "img1.jpg", "A")
	assert.ErrorIs(t, err, apperr.ErrNotHeld)

	_, err = e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.ErrorIs(t, err, apperr.ErrLeaseLost)

	n, _ := e.db.CountAnnotations(ctx)
	assert.Zero(t, n)
	assert.True(t, exists(filepath.Join(e.unlabeled, "img1.jpg")))
	seq, _ := e.db.SequenceValue(ctx, "B737")
	assert.Zero(t, seq, "no number drawn when the lease is already lost")

	l, err := e.svc.LeaseInfo(ctx, "img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "B", l.HolderID)
}

func TestConcurrentCommitsSameType(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const workers = 10
	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("img%02d.jpg", i)
		testutil.WriteImages(t, e.unlabeled, name)
		_, err := e.svc.AcquireLease(ctx, name, fmt.Sprintf("holder%d", i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.svc.SubmitAnnotation(ctx, fmt.Sprintf("img%02d.jpg", i), fmt.Sprintf("holder%d", i), submission("A320"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	labeled, err := os.ReadDir(e.labeled)
	require.NoError(t, err)
	require.Len(t, labeled, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, exists(filepath.Join(e.labeled, fmt.Sprintf("A320-%04d.jpg", i))))
	}
}

func TestSubmit_ValidationRejectedWithoutSideEffects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")
	_, err := e.svc.AcquireLease(ctx, "img1.jpg", "A")
	require.NoError(t, err)

	sub := submission("B737")
	sub.RegistrationBox = nil
	sub.Clarity = 1.5

	_, err = e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", sub)
	require.ErrorIs(t, err, apperr.ErrInvalid)

	var fields validation.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "registration_box")
	assert.Contains(t, fields, "clarity")

	seq, _ := e.db.SequenceValue(ctx, "B737")
	assert.Zero(t, seq)
	assert.True(t, e.leases.IsLive("img1.jpg", e.clock.Now()))
}

func TestSubmit_BoxOutOfRange(t *testing.T) {
	e := newEnv(t)
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")

	sub := submission("B737")
	sub.RegistrationBox = &models.Box{CenterX: 0.5, CenterY: 0.5, Width: 0, Height: 1.2}

	_, err := e.svc.SubmitAnnotation(context.Background(), "img1.jpg", "A", sub)
	require.ErrorIs(t, err, apperr.ErrInvalid)

	var fields validation.Errors
	require.ErrorAs(t, err, &fields)
	nested, ok := fields["registration_box"].(validation.Errors)
	require.True(t, ok, "nested box errors")
	assert.Contains(t, nested, "width")
	assert.Contains(t, nested, "height")
}

func TestSubmit_UnknownCodes(t *testing.T) {
	e := newEnv(t)
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")

	sub := submission("C919")
	sub.AirlineCode = "XYZ"
	_, err := e.svc.SubmitAnnotation(context.Background(), "img1.jpg", "A", sub)
	require.ErrorIs(t, err, apperr.ErrInvalid)

	sub.AircraftTypeName = "COMAC C919"
	sub.AirlineName = "New Air"
	a, err := e.svc.SubmitAnnotation(context.Background(), "img1.jpg", "A", sub)
	require.NoError(t, err)
	assert.Equal(t, "C919-0001.jpg", a.AssignedFilename)
	assert.Equal(t, "New Air", a.AirlineName)
}

func TestSubmit_SourceMissing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")
	_, err := e.svc.AcquireLease(ctx, "img1.jpg", "A")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(e.unlabeled, "img1.jpg")))

	_, err = e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.ErrorIs(t, err, apperr.ErrSourceMissing)

	n, _ := e.db.CountAnnotations(ctx)
	assert.Zero(t, n)
	assert.True(t, e.leases.IsLive("img1.jpg", e.clock.Now()), "lease untouched on failure")
}

type failingInsert struct {
	store.Repository
}

func (failingInsert) InsertAnnotation(context.Context, *models.Annotation) error {
	return errors.New("disk I/O error")
}

func TestSubmit_PersistFailureRestoresFile(t *testing.T) {
	db := testutil.TestStore(t)
	unlabeled, labeled, p := testutil.TestPool(t)
	leases := lease.NewMemory()
	ctx := context.Background()
	_, err := db.InsertReference(ctx, models.KindAircraftType, []models.ReferenceEntry{{Code: "B737", Name: "Boeing 737"}})
	require.NoError(t, err)
	_, err = db.InsertReference(ctx, models.KindAirline, []models.ReferenceEntry{{Code: "CCA", Name: "Air China"}})
	require.NoError(t, err)

	svc := NewService(failingInsert{db}, p, leases)
	testutil.WriteImages(t, unlabeled, "img1.jpg")
	_, err = svc.AcquireLease(ctx, "img1.jpg", "A")
	require.NoError(t, err)

	_, err = svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.Error(t, err)

	assert.True(t, exists(filepath.Join(unlabeled, "img1.jpg")), "file moved back")
	assert.False(t, exists(filepath.Join(labeled, "B737-0001.jpg")))
	assert.True(t, leases.IsLive("img1.jpg", time.Now()))

	seq, _ := db.SequenceValue(ctx, "B737")
	assert.Equal(t, int64(1), seq, "the drawn number is sacrificed")
}

func TestSequenceNotReusedAfterDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg", "img2.jpg")

	a, err := e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.NoError(t, err)
	require.NoError(t, e.svc.DeleteAnnotation(ctx, a.ID))

	b, err := e.svc.SubmitAnnotation(ctx, "img2.jpg", "A", submission("B737"))
	require.NoError(t, err)
	assert.Equal(t, "B737-0002.jpg", b.AssignedFilename)
}

func TestMarkSkip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "blurry.jpg", "ok.jpg")
	_, err := e.svc.AcquireLease(ctx, "blurry.jpg", "A")
	require.NoError(t, err)

	require.NoError(t, e.svc.MarkSkip(ctx, "blurry.jpg", "A"))
	assert.False(t, e.leases.IsLive("blurry.jpg", e.clock.Now()))

	err = e.svc.MarkSkip(ctx, "blurry.jpg", "B")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	inv, err := e.svc.ListInventory(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.jpg"}, inv.Available)
	assert.Equal(t, 1, inv.SkippedCount)

	require.NoError(t, e.svc.Unskip(ctx, "blurry.jpg"))
	inv, _ = e.svc.ListInventory(ctx, "A")
	assert.Equal(t, []string{"blurry.jpg", "ok.jpg"}, inv.Available)
}

func TestInventory_LeasePartition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "a.jpg", "b.jpg", "c.jpg")

	_, err := e.svc.AcquireLease(ctx, "a.jpg", "A")
	require.NoError(t, err)
	_, err = e.svc.AcquireLease(ctx, "b.jpg", "B")
	require.NoError(t, err)

	inv, err := e.svc.ListInventory(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "c.jpg"}, inv.Available)
	assert.Equal(t, []string{"a.jpg"}, inv.Held)
	assert.Equal(t, []string{"b.jpg"}, inv.LeasedElsewhere)

	e.clock.Advance(lease.DefaultTTL)
	inv, _ = e.svc.ListInventory(ctx, "A")
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, inv.Available, "expired leases free their images")
}

func TestAcquireLease_UnknownImage(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.AcquireLease(context.Background(), "ghost.jpg", "A")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.svc.AcquireLease(context.Background(), "ghost.jpg", "")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestReleaseAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "a.jpg", "b.jpg")
	_, _ = e.svc.AcquireLease(ctx, "a.jpg", "A")
	_, _ = e.svc.AcquireLease(ctx, "b.jpg", "A")

	n, err := e.svc.ReleaseAll(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, e.svc.ReleaseLease(ctx, "a.jpg", "A"), "releasing twice is fine")
}

func TestStatsIdentity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "r1.jpg", "r2.jpg", "r3.jpg", "r4.jpg", "r5.jpg")

	_, err := e.svc.SubmitAnnotation(ctx, "r1.jpg", "A", submission("B737"))
	require.NoError(t, err)
	_, err = e.svc.SubmitAnnotation(ctx, "r2.jpg", "A", submission("A320"))
	require.NoError(t, err)
	require.NoError(t, e.svc.MarkSkip(ctx, "r3.jpg", "A"))

	s, err := e.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalLabeled)
	assert.Equal(t, 2, s.Unlabeled)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 5, s.TotalLabeled+s.Unlabeled+s.Skipped)
	assert.Len(t, s.ByType, 2)
	require.Len(t, s.ByAirline, 1)
	assert.Equal(t, 2, s.ByAirline[0].Count)
}

// assertStatsIdentity checks that every image in the pool or the labeled
// set is counted exactly once.
func assertStatsIdentity(t *testing.T, e *env, total int) {
	t.Helper()
	s, err := e.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, total, s.TotalLabeled+s.Unlabeled+s.Skipped,
		"labeled=%d unlabeled=%d skipped=%d", s.TotalLabeled, s.Unlabeled, s.Skipped)
}

func TestMarkSkip_AlreadyLabeled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg", "img2.jpg")

	_, err := e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.NoError(t, err)

	err = e.svc.MarkSkip(ctx, "img1.jpg", "A")
	require.ErrorIs(t, err, apperr.ErrLabeled)

	skipped, err := e.db.SkippedFilenames(ctx)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assertStatsIdentity(t, e, 2)
}

func TestAcquireLease_Skipped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg", "img2.jpg")

	require.NoError(t, e.svc.MarkSkip(ctx, "img1.jpg", "A"))

	_, err := e.svc.AcquireLease(ctx, "img1.jpg", "B")
	require.ErrorIs(t, err, apperr.ErrSkipped)
	assert.False(t, e.leases.IsLive("img1.jpg", e.clock.Now()))
	assertStatsIdentity(t, e, 2)
}

func TestSubmit_SkippedWhileLeased(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg", "img2.jpg")

	_, err := e.svc.AcquireLease(ctx, "img1.jpg", "A")
	require.NoError(t, err)
	require.NoError(t, e.svc.MarkSkip(ctx, "img1.jpg", "B"))

	_, err = e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.ErrorIs(t, err, apperr.ErrSkipped)

	seq, err := e.db.SequenceValue(ctx, "B737")
	require.NoError(t, err)
	assert.Zero(t, seq, "no sequence number drawn for a skipped image")
	assert.True(t, exists(filepath.Join(e.unlabeled, "img1.jpg")))
	n, err := e.db.CountAnnotations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assertStatsIdentity(t, e, 2)
}

func TestSubmit_SkippedWithoutLease(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")

	require.NoError(t, e.svc.MarkSkip(ctx, "img1.jpg", "B"))

	_, err := e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.ErrorIs(t, err, apperr.ErrSkipped)
	assertStatsIdentity(t, e, 1)
}

func TestSkipAndCommitRace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	const n = 20
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("img%02d.jpg", i)
	}
	testutil.WriteImages(t, e.unlabeled, names...)

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.svc.SubmitAnnotation(ctx, name, "A", submission("B737"))
		}()
		go func() {
			defer wg.Done()
			_ = e.svc.MarkSkip(ctx, name, "B")
		}()
	}
	wg.Wait()

	labeled, err := e.db.LabeledSources(ctx)
	require.NoError(t, err)
	skipped, err := e.db.SkippedFilenames(ctx)
	require.NoError(t, err)
	for _, name := range names {
		_, l := labeled[name]
		_, s := skipped[name]
		assert.True(t, l != s, "%s must be exactly one of labeled or skipped", name)
	}
	assertStatsIdentity(t, e, n)
}

func TestUpdateAnnotation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")

	a, err := e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.NoError(t, err)

	sub := submission("B737")
	sub.RegistrationText = "B-9999"
	sub.Clarity = 0.5
	updated, err := e.svc.UpdateAnnotation(ctx, a.ID, sub)
	require.NoError(t, err)
	assert.Equal(t, "B737-0001.jpg", updated.AssignedFilename, "assigned filename is immutable")
	assert.Equal(t, "Boeing 737", updated.AircraftTypeName)
	assert.Equal(t, "B-9999", updated.RegistrationText)
	assert.Equal(t, 0.5, updated.Clarity)

	_, err = e.svc.UpdateAnnotation(ctx, a.ID, submission("A320"))
	require.ErrorIs(t, err, apperr.ErrInvalid)
	var fields validation.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "aircraft_type_code")
	stored, err := e.svc.GetAnnotation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "B737", stored.AircraftTypeCode)
	assert.Equal(t, "B-9999", stored.RegistrationText)

	sub.RegistrationText = ""
	_, err = e.svc.UpdateAnnotation(ctx, a.ID, sub)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = e.svc.UpdateAnnotation(ctx, 999, submission("B737"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListAnnotations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "a.jpg", "b.jpg", "c.jpg")
	for _, f := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		_, err := e.svc.SubmitAnnotation(ctx, f, "A", submission("B737"))
		require.NoError(t, err)
	}

	page, err := e.svc.ListAnnotations(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Annotations, 1)
	assert.Equal(t, "B737-0001.jpg", page.Annotations[0].AssignedFilename)

	page, err = e.svc.ListAnnotations(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPerPage, page.PerPage)
}

func TestExportRange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "a.jpg", "b.jpg", "c.jpg")
	for _, f := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		_, err := e.svc.SubmitAnnotation(ctx, f, "A", submission("B737"))
		require.NoError(t, err)
	}

	start, end := int64(2), int64(3)
	var buf bytes.Buffer
	require.NoError(t, e.svc.ExportCSV(ctx, &buf, models.IDRange{Start: &start, End: &end}))

	out := buf.String()
	assert.NotContains(t, out, "B737-0001.jpg")
	assert.Contains(t, out, "B737-0002.jpg,B737,Boeing 737,CCA,Air China,0.8,0.1,B-1234,0.5 0.5 0.2 0.1\n")
	assert.Contains(t, out, "B737-0003.jpg")

	var zipBuf bytes.Buffer
	require.NoError(t, e.svc.ExportYOLO(ctx, &zipBuf, models.IDRange{}))
	assert.NotZero(t, zipBuf.Len())
}

func TestAuditOrphans(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteImages(t, e.unlabeled, "img1.jpg")
	_, err := e.svc.SubmitAnnotation(ctx, "img1.jpg", "A", submission("B737"))
	require.NoError(t, err)

	testutil.WriteImages(t, e.labeled, "B737-0002.jpg")

	orphans, err := e.svc.AuditOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B737-0002.jpg"}, orphans)
}
