package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"docstream/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, time.Hour), mr
}

func pendingJob(id string) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:             id,
		Status:         models.StatusPending,
		Parser:         "simple",
		Filename:       "report.pdf",
		SourceLocation: "/tmp/" + id + ".pdf",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
	if got.Parser != "simple" || got.Filename != "report.pdf" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps not persisted")
	}
}

func TestGetMissingJob(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
	_, err = s.Status(context.Background(), "nope")
	if !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("Status err = %v, want ErrJobNotFound", err)
	}
}

func TestMarkProcessing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := s.MarkProcessing(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("MarkProcessing = %v, %v; want true, nil", ok, err)
	}
	status, err := s.Status(ctx, "job-1")
	if err != nil || status != models.StatusProcessing {
		t.Fatalf("status = %q, %v; want processing", status, err)
	}

	// Marking again while processing is allowed; the job is still live.
	ok, err = s.MarkProcessing(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("second MarkProcessing = %v, %v; want true, nil", ok, err)
	}
}

func TestMarkProcessingRefusesTerminal(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if won, err := s.FinalizeError(ctx, "job-1", "boom"); err != nil || !won {
		t.Fatalf("FinalizeError = %v, %v", won, err)
	}

	ok, err := s.MarkProcessing(ctx, "job-1")
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if ok {
		t.Fatal("MarkProcessing claimed a terminal job")
	}
}

func TestMarkProcessingMissingJob(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.MarkProcessing(context.Background(), "nope")
	if !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestFinalizeResult(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res := models.JobResult{
		Parser: "simple",
		Pages: []models.Page{
			{Page: 1, ContentMD: "# Page 1\n\nfirst"},
			{Page: 2, ContentMD: "# Page 2\n\nsecond"},
		},
		SummaryMD: "two pages",
		PageCount: 2,
	}
	won, err := s.FinalizeResult(ctx, "job-1", res)
	if err != nil || !won {
		t.Fatalf("FinalizeResult = %v, %v; want true, nil", won, err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusDone {
		t.Fatalf("status = %q, want done", got.Status)
	}
	if got.PageCount != 2 || len(got.Pages) != 2 {
		t.Fatalf("pages not persisted: %+v", got)
	}
	if got.Pages[0].Page != 1 || got.Pages[1].Page != 2 {
		t.Fatalf("page order lost: %+v", got.Pages)
	}
	if got.SummaryMD != "two pages" {
		t.Fatalf("summary = %q", got.SummaryMD)
	}
	if got.TTLExpiresAt.IsZero() {
		t.Fatal("ttl_expires_at not set on terminal write")
	}
	if mr.TTL("job:job-1") <= 0 {
		t.Fatal("no TTL applied to terminal record")
	}
}

func TestFinalizeIsWriteOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	won, err := s.FinalizeResult(ctx, "job-1", models.JobResult{
		Parser: "simple", Pages: []models.Page{{Page: 1, ContentMD: "x"}}, SummaryMD: "s", PageCount: 1,
	})
	if err != nil || !won {
		t.Fatalf("first finalize = %v, %v", won, err)
	}

	// A racing error write loses and leaves the record untouched.
	won, err = s.FinalizeError(ctx, "job-1", "late failure")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if won {
		t.Fatal("second terminal write claimed the CAS")
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusDone {
		t.Fatalf("status flipped to %q after losing write", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("losing write leaked error_message = %q", got.ErrorMessage)
	}
}

func TestFinalizeError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	won, err := s.FinalizeError(ctx, "job-1", "parse failed: bad xref")
	if err != nil || !won {
		t.Fatalf("FinalizeError = %v, %v", won, err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusError {
		t.Fatalf("status = %q, want error", got.Status)
	}
	if got.ErrorMessage != "parse failed: bad xref" {
		t.Fatalf("error_message = %q", got.ErrorMessage)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pendingJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "job-1"); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("err after delete = %v, want ErrJobNotFound", err)
	}
}

func TestCountByStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Create(ctx, pendingJob(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if _, err := s.FinalizeResult(ctx, "a", models.JobResult{Parser: "simple", PageCount: 1, Pages: []models.Page{{Page: 1}}}); err != nil {
		t.Fatalf("FinalizeResult: %v", err)
	}
	if _, err := s.FinalizeError(ctx, "b", "boom"); err != nil {
		t.Fatalf("FinalizeError: %v", err)
	}

	total, byStatus, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if byStatus["done"] != 1 || byStatus["error"] != 1 || byStatus["pending"] != 1 {
		t.Fatalf("byStatus = %v", byStatus)
	}
}
