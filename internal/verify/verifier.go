// Package verify checks each parsed record against the page its URL points to.
//
// A record gets a Yes finding only when the page mentions the entity and the
// category's keyword pattern together. Every other outcome, failures included,
// degrades to a No finding with a note saying why.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ppiankov/negcheck/internal/cache"
	"github.com/ppiankov/negcheck/internal/metrics"
	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/rules"
	"github.com/ppiankov/negcheck/internal/worker"
)

// PageFetcher returns the visible text of a page, or "" when it could not be fetched
type PageFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// NoteError is a verification outcome that maps to a No finding with a fixed note
type NoteError struct {
	Note   string
	Reason string // metrics label
}

func (e *NoteError) Error() string {
	return e.Note
}

var (
	ErrMissingPattern = &NoteError{Note: "Missing keyword pattern for category", Reason: "missing_pattern"}
	ErrMissingURL     = &NoteError{Note: "Missing URL", Reason: "missing_url"}
	ErrFetchFailed    = &NoteError{Note: "Fetch failed or non-HTML", Reason: "fetch_failed"}
	ErrUnknownEntity  = &NoteError{Note: "Entity unknown; co-mention not checked", Reason: "unknown_entity"}
	ErrNoCoMention    = &NoteError{Note: "No direct co-mention of entity & keyword.", Reason: "no_comention"}
)

// AnalyzerErrorNote is the note for unexpected failures while checking a record
const AnalyzerErrorNote = "Analyzer error"

const (
	reasonEvidence      = "evidence"
	reasonAnalyzerError = "analyzer_error"
)

// Degrade runs one verification step and turns any failure into a No verdict.
// NoteErrors keep their note; other errors and panics become "Analyzer error".
func Degrade(step func() (model.Verdict, error)) (v model.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("verification step panicked", "panic", r)
			v = model.Verdict{Finding: model.FindingNo, Note: AnalyzerErrorNote}
		}
	}()

	v, err := step()
	if err != nil {
		return verdictFor(err)
	}
	return v
}

func verdictFor(err error) model.Verdict {
	var ne *NoteError
	if errors.As(err, &ne) {
		return model.Verdict{Finding: model.FindingNo, Note: ne.Note}
	}
	return model.Verdict{Finding: model.FindingNo, Note: AnalyzerErrorNote}
}

func reasonFor(err error) string {
	var ne *NoteError
	if errors.As(err, &ne) {
		return ne.Reason
	}
	return reasonAnalyzerError
}

// Options tune a Verifier
type Options struct {
	Workers int
	Matcher model.MatcherConfig
	Cache   model.CacheConfig
}

// OptionsFromConfig picks the verifier settings out of the full config
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Workers: cfg.Concurrency.Workers,
		Matcher: cfg.Matcher,
		Cache:   cfg.Cache,
	}
}

// Verifier checks records concurrently
type Verifier struct {
	fetcher  PageFetcher
	rules    rules.Set
	matcher  *Matcher
	workers  int
	useCache bool
	cacheTTL time.Duration
}

// New creates a Verifier. A nil rule set means rules.Default().
func New(fetcher PageFetcher, set rules.Set, opts Options) *Verifier {
	if set == nil {
		set = rules.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = model.DefaultConfig().Concurrency.Workers
	}
	ttl := opts.Cache.TTL
	if ttl <= 0 {
		ttl = model.DefaultConfig().Cache.TTL
	}
	return &Verifier{
		fetcher:  fetcher,
		rules:    set,
		matcher:  NewMatcher(opts.Matcher),
		workers:  workers,
		useCache: opts.Cache.Enabled,
		cacheTTL: ttl,
	}
}

// Workers returns the number of records checked at once
func (v *Verifier) Workers() int {
	return v.workers
}

// batch holds per-call state shared by the jobs of one Verify call
type batch struct {
	v     *Verifier
	pages *cache.Pages // nil when caching is off
}

// recordJob checks a single record
type recordJob struct {
	b     *batch
	index int
	rec   model.RawRecord
}

type recordResult struct {
	rec    model.VerifiedRecord
	reason string
}

func (r *recordResult) GetError() error { return nil }

func (j *recordJob) Execute(ctx context.Context) worker.Result {
	reason := reasonEvidence
	verdict := Degrade(func() (model.Verdict, error) {
		v, err := j.b.check(ctx, j.rec)
		if err != nil {
			reason = reasonFor(err)
		}
		return v, err
	})
	if verdict.Note == AnalyzerErrorNote {
		reason = reasonAnalyzerError
	}

	slog.Debug("verified record",
		"index", j.index,
		"category", j.rec.Category.String(),
		"entity", j.rec.Entity,
		"url", j.rec.URL,
		"finding", verdict.Finding.String(),
	)
	return &recordResult{rec: verdict.Apply(j.rec), reason: reason}
}

// Verify checks every record and returns one VerifiedRecord per input, in input
// order. Failures never abort the batch.
func (v *Verifier) Verify(ctx context.Context, records []model.RawRecord) []model.VerifiedRecord {
	if len(records) == 0 {
		return []model.VerifiedRecord{}
	}

	b := &batch{v: v}
	if v.useCache {
		b.pages = cache.NewPages(v.cacheTTL)
	}

	jobs := make([]worker.Job, len(records))
	for i, rec := range records {
		jobs[i] = &recordJob{b: b, index: i, rec: rec}
	}

	results := worker.RunBatch(ctx, v.workers, jobs)

	out := make([]model.VerifiedRecord, len(records))
	for i, res := range results {
		rr, ok := res.(*recordResult)
		if !ok {
			err := res.GetError()
			slog.Warn("record not verified", "index", i, "error", err)
			rr = &recordResult{
				rec:    model.Verdict{Finding: model.FindingNo, Note: AnalyzerErrorNote}.Apply(records[i]),
				reason: reasonAnalyzerError,
			}
		}
		metrics.VerifyTotal.WithLabelValues(rr.rec.Finding.String(), rr.reason).Inc()
		out[i] = rr.rec
	}

	if b.pages != nil {
		hits, fetches := b.pages.Stats()
		slog.Debug("page cache", "hits", hits, "fetches", fetches)
	}
	return out
}

// VerifyOne checks a single record without going through the pool
func (v *Verifier) VerifyOne(ctx context.Context, rec model.RawRecord) model.VerifiedRecord {
	b := &batch{v: v}
	verdict := Degrade(func() (model.Verdict, error) {
		return b.check(ctx, rec)
	})
	return verdict.Apply(rec)
}

// check runs the decision chain for one record
func (b *batch) check(ctx context.Context, rec model.RawRecord) (model.Verdict, error) {
	if !rec.Category.Valid() {
		return model.Verdict{}, ErrMissingPattern
	}
	pattern, ok := b.v.rules.Pattern(rec.Category)
	if !ok || pattern == nil {
		return model.Verdict{}, ErrMissingPattern
	}
	if rec.URL == "" {
		return model.Verdict{}, ErrMissingURL
	}

	text := b.fetch(ctx, rec.URL)
	if text == "" {
		return model.Verdict{}, ErrFetchFailed
	}
	if !rec.HasEntity() {
		return model.Verdict{}, ErrUnknownEntity
	}

	evidence := b.v.matcher.Match(text, rec.Entity, pattern)
	if evidence == "" {
		return model.Verdict{}, ErrNoCoMention
	}
	return model.Verdict{Finding: model.FindingYes, Note: evidence}, nil
}

// fetch loads a page once per batch, however many records point at it
func (b *batch) fetch(ctx context.Context, url string) string {
	if b.pages == nil {
		return b.v.fetcher.Fetch(ctx, url)
	}
	return b.pages.Load(url, func() string {
		return b.v.fetcher.Fetch(ctx, url)
	})
}

// Stats tallies verified records by outcome
func Stats(records []model.VerifiedRecord) model.VerifyStats {
	s := model.VerifyStats{Records: len(records)}
	for _, r := range records {
		if r.Finding == model.FindingYes {
			s.Yes++
			continue
		}
		s.No++
		switch r.Note {
		case ErrMissingPattern.Note, ErrMissingURL.Note:
			s.Skipped++
		case ErrFetchFailed.Note:
			s.FetchFailed++
		case AnalyzerErrorNote:
			s.AnalyzerErrs++
		}
	}
	return s
}
