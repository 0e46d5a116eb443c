// Package workflow sequences ingestion, routing, and answering for one
// request: build (or reuse) the document's index, decide between the
// retrieval path and the reasoning agent, then answer every question with
// per-question failure isolation.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/queryd/internal/agent"
	"github.com/fyrsmithlabs/queryd/internal/document"
	"github.com/fyrsmithlabs/queryd/internal/embeddings"
	"github.com/fyrsmithlabs/queryd/internal/fingerprint"
	"github.com/fyrsmithlabs/queryd/internal/index"
	"github.com/fyrsmithlabs/queryd/internal/rag"
	"github.com/fyrsmithlabs/queryd/internal/router"
)

var tracer = otel.Tracer("queryd.workflow")

// ErrNoQuestions rejects requests with an empty question list.
var ErrNoQuestions = errors.New("no questions provided")

// agentRunner is the reasoning dependency, satisfied by *agent.Agent.
type agentRunner interface {
	Run(ctx context.Context, instructions, question string) (string, agent.Trace, error)
}

// Orchestrator owns the per-request pipeline. All fields are read-only after
// construction; per-request state lives on the stack of Run.
type Orchestrator struct {
	fetcher    *document.Fetcher
	registry   *document.Registry
	chunker    *document.Chunker
	embeddings *embeddings.Service
	indexCache *index.Cache
	answerer   *rag.Answerer
	agent      agentRunner

	topK          int
	qaConcurrency int
	logger        *zap.Logger
}

// Options carries the orchestrator's collaborators and tuning knobs.
type Options struct {
	Fetcher       *document.Fetcher
	Registry      *document.Registry
	Chunker       *document.Chunker
	Embeddings    *embeddings.Service
	IndexCache    *index.Cache
	Answerer      *rag.Answerer
	Agent         agentRunner
	TopK          int
	QAConcurrency int
	Logger        *zap.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	qa := opts.QAConcurrency
	if qa < 1 {
		qa = 1
	}
	return &Orchestrator{
		fetcher:       opts.Fetcher,
		registry:      opts.Registry,
		chunker:       opts.Chunker,
		embeddings:    opts.Embeddings,
		indexCache:    opts.IndexCache,
		answerer:      opts.Answerer,
		agent:         opts.Agent,
		topK:          opts.TopK,
		qaConcurrency: qa,
		logger:        logger,
	}
}

// Run answers every question against the document at docURL. The returned
// slice always has one entry per question, in order; a failed question gets
// an error placeholder while its siblings still get real answers. A non-nil
// error means ingestion failed and no answers were possible at all.
func (o *Orchestrator) Run(ctx context.Context, docURL string, questions []string) ([]string, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	ctx, span := tracer.Start(ctx, "workflow.run")
	defer span.End()

	key, err := fingerprint.Document(docURL)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.fingerprint", key),
		attribute.Int("questions", len(questions)),
	)

	idx, err := o.indexCache.GetOrBuild(ctx, key, func(buildCtx context.Context) ([]document.Chunk, [][]float32, error) {
		return o.buildIndex(buildCtx, docURL)
	})
	if err != nil {
		return nil, err
	}
	retriever := index.NewRetriever(idx, o.embeddings, o.topK)

	// Probe the index for API-shaped content, then route the whole document
	// once. The probe context doubles as the first question's grounding.
	probeHits, err := retriever.Retrieve(ctx, router.ProbeQuery)
	if err != nil {
		return nil, err
	}
	probeContext := rag.ContextFromResults(probeHits)
	decision := router.Route(probeContext)
	requestsTotal.WithLabelValues(decision.String()).Inc()

	o.logger.Info("routed request",
		zap.String("fingerprint", key),
		zap.Stringer("decision", decision),
		zap.Int("questions", len(questions)))

	if decision == router.Agent {
		return o.runAgent(ctx, docURL, questions)
	}
	return o.runRAG(ctx, questions, retriever, probeContext)
}

// runRAG answers all questions concurrently over the shared read-only index.
func (o *Orchestrator) runRAG(ctx context.Context, questions []string, retriever *index.Retriever, probeContext string) ([]string, error) {
	answers := make([]string, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.qaConcurrency)
	for i, q := range questions {
		g.Go(func() error {
			var answer string
			var err error
			if i == 0 && probeContext != "" {
				answer, err = o.answerer.AnswerWithContext(gctx, q, probeContext)
			} else {
				answer, err = o.answerer.Answer(gctx, q, retriever)
			}
			answers[i] = o.settle(q, answer, err)
			return nil
		})
	}
	_ = g.Wait()
	return answers, nil
}

// runAgent loads the instruction document once, then runs the reasoning loop
// per question. A failed instruction load fails every question, since the
// loop cannot start without its mission.
func (o *Orchestrator) runAgent(ctx context.Context, docURL string, questions []string) ([]string, error) {
	instructions, err := o.extractDocument(ctx, docURL)
	if err != nil {
		err = fmt.Errorf("%w: %w", agent.ErrInstructionFetch, err)
		answers := make([]string, len(questions))
		for i, q := range questions {
			answers[i] = o.settle(q, "", err)
		}
		return answers, nil
	}

	answers := make([]string, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.qaConcurrency)
	for i, q := range questions {
		g.Go(func() error {
			answer, trace, err := o.agent.Run(gctx, instructions, q)
			if err != nil {
				o.logger.Warn("agent run failed",
					zap.String("question", q),
					zap.Int("steps", len(trace)),
					zap.Error(err))
			}
			answers[i] = o.settle(q, answer, err)
			return nil
		})
	}
	_ = g.Wait()
	return answers, nil
}

// buildIndex is the fetch→extract→chunk→embed pipeline behind a cache miss.
func (o *Orchestrator) buildIndex(ctx context.Context, docURL string) ([]document.Chunk, [][]float32, error) {
	data, _, err := o.fetcher.Fetch(ctx, docURL)
	if err != nil {
		return nil, nil, err
	}

	text, err := o.registry.Extract(data, document.FormatFromURL(docURL))
	if err != nil {
		return nil, nil, err
	}

	chunks, err := o.chunker.Split(text)
	if err != nil {
		return nil, nil, err
	}

	vectors, err := o.embeddings.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, nil, err
	}
	return chunks, vectors, nil
}

// extractDocument fetches and extracts the document text without indexing.
func (o *Orchestrator) extractDocument(ctx context.Context, docURL string) (string, error) {
	data, _, err := o.fetcher.Fetch(ctx, docURL)
	if err != nil {
		return "", err
	}
	return o.registry.Extract(data, document.FormatFromURL(docURL))
}

// settle converts one question's outcome into its slot in the answer list.
func (o *Orchestrator) settle(question, answer string, err error) string {
	if err != nil {
		questionsTotal.WithLabelValues("error").Inc()
		return errorPlaceholder(err)
	}
	questionsTotal.WithLabelValues("ok").Inc()
	return answer
}

// errorPlaceholder is what a failed question contributes to the answer list.
func errorPlaceholder(err error) string {
	return fmt.Sprintf("Could not generate an answer for this question: %v", err)
}
