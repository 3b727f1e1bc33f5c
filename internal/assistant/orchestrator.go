package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/internal/retrieval"
	"github.com/mohammad-safakhou/intelliweb/internal/runtime"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
	"github.com/mohammad-safakhou/intelliweb/repository"
	"github.com/mohammad-safakhou/intelliweb/tools/web_fetch"
	"github.com/mohammad-safakhou/intelliweb/tools/web_ingest"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/intelliweb/tools/web_search/models"
)

var (
	// ErrSynthesis wraps the failure of the answer model. It is the only
	// error that fails a turn once the session has been loaded.
	ErrSynthesis = errors.New("answer synthesis failed")
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("empty query")
)

const DefaultReframeWindow = 5

var orchestratorTracer trace.Tracer = otel.Tracer("intelliweb/internal/assistant")

// Deps are the collaborators of an Orchestrator. Every field is required.
type Deps struct {
	Transcripts repository.TranscriptRepository
	Reframer    *Reframer
	Selector    *Selector
	Search      web_search.Searcher
	Extractor   web_fetch.Extractor
	Chunker     web_ingest.Chunker
	Synthesizer *retrieval.Synthesizer
	FollowUps   *FollowUps
}

// Options tune an Orchestrator. Zero values take the defaults.
type Options struct {
	ReframeWindow int
	Workers       int
	Debug         bool
}

// Orchestrator runs one turn through reframing, routing, retrieval and
// synthesis, then records it in the session transcript.
type Orchestrator struct {
	Deps
	window  int
	workers int
	debug   bool
	logger  *log.Logger
	locks   *sessionLocks
}

func NewOrchestrator(deps Deps, opts Options, logger *log.Logger) *Orchestrator {
	if opts.ReframeWindow <= 0 {
		opts.ReframeWindow = DefaultReframeWindow
	}
	if opts.Workers <= 0 {
		opts.Workers = web_fetch.DefaultWorkers
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &Orchestrator{
		Deps:    deps,
		window:  opts.ReframeWindow,
		workers: opts.Workers,
		debug:   opts.Debug,
		logger:  logger,
		locks:   newSessionLocks(),
	}
}

// NewSession creates an empty transcript and returns its ID.
func (o *Orchestrator) NewSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := o.Transcripts.Create(ctx, id); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// EndSession deletes the transcript. It waits for a turn in flight.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	release, err := o.locks.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()
	return o.Transcripts.Delete(ctx, sessionID)
}

func (o *Orchestrator) Transcript(ctx context.Context, sessionID string) (models.Transcript, error) {
	return o.Transcripts.Get(ctx, sessionID)
}

// TurnResult is the outcome of one turn. In streaming mode Stream must be
// drained or closed; the session stays locked until then. The transcript
// is written only when Stream reaches EOF.
type TurnResult struct {
	Source      models.Source
	Query       string
	SearchQuery string
	References  []string
	Stream      *provider.TokenStream
	// Answer is the full answer text once it is known.
	Answer string

	mu        sync.Mutex
	followUps []string
	appendErr error
}

// FollowUps returns the suggested questions. It is empty until the answer
// has been recorded, and stays empty when none could be generated.
func (r *TurnResult) FollowUps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.followUps...)
}

// AppendErr reports whether recording the finished turn failed.
func (r *TurnResult) AppendErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendErr
}

// Ask runs a turn and waits for the whole answer.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, query string) (*TurnResult, error) {
	return o.ProcessTurn(ctx, sessionID, query, false)
}

// ProcessTurn runs one turn. Turns of the same session are serialised.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, query string, stream bool) (*TurnResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	release, err := o.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ctx, span := orchestratorTracer.Start(ctx, "assistant.process_turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Bool("stream", stream),
		))

	var once sync.Once
	finish := func(ok bool, src models.Source) {
		once.Do(func() {
			runtime.Metrics().Turn(ctx, src.String(), ok)
			runtime.Metrics().Stage(ctx, "turn", start)
			span.End()
			release()
		})
	}
	fail := func(src models.Source, err error) (*TurnResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		finish(false, src)
		return nil, err
	}

	stored, err := o.Transcripts.Get(ctx, sessionID)
	if err != nil {
		return fail(models.SourceWebSearch, err)
	}
	userTurn := models.Turn{Role: models.RoleUser, Content: query}
	working, err := append(models.Transcript(nil), stored...).Append(userTurn)
	if err != nil {
		return fail(models.SourceWebSearch, fmt.Errorf("session %s: %w", sessionID, err))
	}

	reframed := o.Reframer.Reframe(ctx, working.Last(o.window))
	decision := o.Selector.SelectSource(ctx, reframed)
	span.SetAttributes(
		attribute.String("turn.source", decision.Source.String()),
		attribute.String("turn.search_query", decision.SearchQuery),
	)
	if o.debug {
		o.logger.Printf("session %s: reframed %q, routed to %s (%q)", sessionID, reframed, decision.Source, decision.SearchQuery)
	}

	result := &TurnResult{Source: decision.Source, Query: reframed, SearchQuery: decision.SearchQuery}
	var (
		chunks  []models.Chunk
		history []models.Turn
		prompt  = reframed
	)
	switch decision.Source {
	case models.SourceLLM:
		history = stored
		prompt = query
	case models.SourceWebSearch:
		chunks, result.References = o.gather(ctx, decision.SearchQuery, searchmodels.IntentWeb)
	case models.SourceNewsSearch:
		chunks, result.References = o.gather(ctx, decision.SearchQuery, searchmodels.IntentNews)
	default:
		return fail(decision.Source, fmt.Errorf("%w: %s", models.ErrUnknownSource, decision.Source))
	}

	synthCtx, synthSpan := orchestratorTracer.Start(ctx, "assistant.synthesize",
		trace.WithAttributes(attribute.Int("chunks", len(chunks))))
	synthStart := time.Now()
	inner, grounded, err := o.Synthesizer.ForSource(decision.Source).AnswerGrounded(synthCtx, prompt, chunks, history)
	synthSpan.End()
	runtime.Metrics().Stage(ctx, "synthesize", synthStart)
	if err != nil {
		o.logger.Printf("session %s: synthesis failed: %v", sessionID, err)
		return fail(decision.Source, fmt.Errorf("%w: %w", ErrSynthesis, err))
	}
	// pages that matched nothing did not ground the answer
	if !grounded {
		result.References = nil
	}

	var (
		answer    strings.Builder
		completed bool
	)
	result.Stream = provider.NewTokenStream(func() (string, error) {
		tok, err := inner.Recv()
		if err == nil {
			answer.WriteString(tok)
		} else if !errors.Is(err, io.EOF) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return tok, err
	}, func() error {
		err := inner.Close()
		finish(completed, decision.Source)
		return err
	})
	result.Stream.OnEOF(func() {
		completed = true
		o.record(ctx, sessionID, userTurn, strings.TrimSpace(answer.String()), result)
	})

	if stream {
		return result, nil
	}
	st := result.Stream
	result.Stream = nil
	if _, err := provider.Drain(st); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return result, nil
}

// gather searches, extracts and chunks. Search errors count as no results
// and failed pages are left out of both the chunks and the references.
func (o *Orchestrator) gather(ctx context.Context, q string, intent searchmodels.Intent) ([]models.Chunk, []string) {
	searchCtx, span := orchestratorTracer.Start(ctx, "assistant.search",
		trace.WithAttributes(attribute.String("search.intent", string(intent))))
	searchStart := time.Now()
	urls, err := o.Search.FindURLs(searchCtx, q, intent)
	runtime.Metrics().Stage(ctx, "search", searchStart)
	if err != nil {
		span.RecordError(err)
		o.logger.Printf("%s search %q failed, answering without results: %v", intent, q, err)
		runtime.Metrics().SearchError(ctx, string(intent))
		urls = nil
	}
	span.SetAttributes(attribute.Int("search.urls", len(urls)))
	span.End()
	if len(urls) == 0 {
		return nil, nil
	}

	extractCtx, span := orchestratorTracer.Start(ctx, "assistant.extract",
		trace.WithAttributes(attribute.Int("urls", len(urls))))
	extractStart := time.Now()
	batch := web_fetch.ExtractAll(extractCtx, o.Extractor, urls, o.workers)
	runtime.Metrics().Stage(ctx, "extract", extractStart)
	runtime.Metrics().FetchFailures(ctx, len(batch.Failed))
	span.SetAttributes(attribute.Int("pages", len(batch.Pages)), attribute.Int("failed", len(batch.Failed)))
	span.End()

	chunks := o.Chunker.ChunkPages(batch.Pages)
	if len(chunks) == 0 {
		return nil, nil
	}
	if o.debug {
		o.logger.Printf("%d of %d pages extracted, %d chunks", len(batch.Pages), len(urls), len(chunks))
	}
	return chunks, helpers.UniqueURLs(batch.URLs(), 0)
}

// record appends the finished pair and collects follow-ups. It runs once the
// answer stream hit EOF, before the session is released.
func (o *Orchestrator) record(ctx context.Context, sessionID string, user models.Turn, answer string, result *TurnResult) {
	result.Answer = answer
	assistantTurn := models.Turn{
		Role:    models.RoleAssistant,
		Content: helpers.RenderReferences(answer, result.References),
	}
	if err := o.Transcripts.Append(context.WithoutCancel(ctx), sessionID, user, assistantTurn); err != nil {
		o.logger.Printf("session %s: append turn: %v", sessionID, err)
		result.mu.Lock()
		result.appendErr = err
		result.mu.Unlock()
	}
	followUps := o.FollowUps.Suggest(ctx, user, assistantTurn)
	result.mu.Lock()
	result.followUps = followUps
	result.mu.Unlock()
}
