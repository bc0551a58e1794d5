// Package runner sequences one validation run: collect the day's requests,
// fetch the delivered totals, reconcile, publish the artifacts and summary,
// then answer the requests that validated.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"courierval/internal"
	"courierval/internal/connectors"
	"courierval/internal/notify"
	"courierval/internal/pipeline"
	"courierval/internal/report"
)

const (
	StageReport    = "report"
	StageArtifacts = "artifacts"
	StageNotify    = "notify"
	StageJournal   = "journal"
)

// MetaLastCompletedDay is the journal metadata key holding the latest day a
// non dry-run finished without a stage failure.
const MetaLastCompletedDay = "last_completed_day"

const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// StageError is returned when a collaborator failure aborts a stage. No later
// stage has run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Journal records runs for audit. It is never consulted to decide what to
// answer.
type Journal interface {
	StartRun(id string, day time.Time, dryRun bool) error
	RecordEmails(runID string, records []internal.EmailRecord, rawRefs map[string]string) error
	RecordOutcomes(runID string, outcomes []internal.ValidationOutcome) error
	RecordReplies(runID string, actions []internal.ReplyAction) error
	FinishRun(id, status, errMsg string, counts map[string]int) error
	SetMetadata(key, value string) error
}

type Deps struct {
	Mailbox connectors.Mailbox
	Source  report.Source
	Sink    notify.Sink
	Journal Journal
	Archive pipeline.RawArchive
}

type Settings struct {
	OutputDir       string
	ProcessedFolder string
}

type Options struct {
	Day         time.Time
	DryRun      bool
	SkipReplies bool
}

type RunResult struct {
	RunID       string
	Day         time.Time
	Status      string
	Records     []internal.EmailRecord
	Report      internal.ExternalReport
	Outcomes    []internal.ValidationOutcome
	Reply       pipeline.ReplyReport
	Artifacts   pipeline.Artifacts
	Diagnostics []internal.Diagnostic
}

// Counts summarizes the run for the journal and the logs.
func (r RunResult) Counts() map[string]int {
	ok, divergent := 0, 0
	for _, o := range r.Outcomes {
		if o.Status == internal.StatusOK {
			ok++
		} else {
			divergent++
		}
	}
	replied := 0
	for _, a := range r.Reply.Actions {
		if !a.DryRun {
			replied++
		}
	}
	return map[string]int{
		"records":    len(r.Records),
		"clients":    len(r.Outcomes),
		"ok":         ok,
		"divergent":  divergent,
		"replied":    replied,
		"unresolved": len(r.Reply.Unresolved),
	}
}

type Runner struct {
	deps     Deps
	settings Settings
	newID    func() string
	now      func() time.Time
	log      zerolog.Logger
}

func New(deps Deps, settings Settings, log zerolog.Logger) *Runner {
	if deps.Sink == nil {
		deps.Sink = notify.NopSink{}
	}
	return &Runner{
		deps:     deps,
		settings: settings,
		newID:    uuid.NewString,
		now:      time.Now,
		log:      log.With().Str("component", "runner").Logger(),
	}
}

// Run executes one run for opts.Day (today when zero). Collaborator failures
// in collect, report or reply abort with a *StageError; artifact, notify and
// journal failures are downgraded to warnings.
func (r *Runner) Run(ctx context.Context, opts Options) (RunResult, error) {
	day := opts.Day
	if day.IsZero() {
		day = r.now()
	}
	day = connectors.StartOfDay(day)

	res := RunResult{RunID: r.newID(), Day: day}
	log := r.log.With().Str("run", res.RunID).Str("day", day.Format("2006-01-02")).Logger()
	r.journal(&res, func(j Journal) error { return j.StartRun(res.RunID, day, opts.DryRun) })

	collected, err := pipeline.NewCollector(r.deps.Mailbox, r.deps.Archive).Collect(ctx, day)
	res.Diagnostics = append(res.Diagnostics, collected.Diagnostics...)
	if err != nil {
		return r.fail(res, pipeline.StageCollect, err)
	}
	res.Records = collected.Records
	r.journal(&res, func(j Journal) error { return j.RecordEmails(res.RunID, res.Records, collected.Archived) })
	log.Info().Int("scanned", collected.Scanned).Int("qualifying", collected.Qualifying).Int("records", len(res.Records)).Msg("collect done")

	if len(res.Records) == 0 {
		res.Status = StatusEmpty
		r.finish(&res, "")
		r.markCompleted(&res, opts.DryRun)
		log.Info().Msg("no validation requests today")
		return res, nil
	}

	if r.settings.OutputDir != "" {
		res.Artifacts = pipeline.ArtifactPaths(r.settings.OutputDir, day)
		r.artifact(&res, func() error { return pipeline.WriteEmailRecords(res.Records, res.Artifacts.Emails) })
	}

	keys := pipeline.Keys(res.Records)
	observed, err := r.deps.Source.Totals(ctx, keys)
	if err != nil {
		return r.fail(res, StageReport, err)
	}
	res.Report = observed
	if r.settings.OutputDir != "" {
		r.artifact(&res, func() error { return pipeline.WriteReportTotals(res.Report, keys, res.Artifacts.Report) })
	}
	log.Info().Int("clients", len(keys)).Msg("report done")

	outcomes, diags := pipeline.Reconcile(res.Records, res.Report)
	res.Outcomes = outcomes
	res.Diagnostics = append(res.Diagnostics, diags...)
	if r.settings.OutputDir != "" {
		r.artifact(&res, func() error { return pipeline.WriteOutcomes(res.Outcomes, res.Artifacts.Validation) })
	}
	r.journal(&res, func(j Journal) error { return j.RecordOutcomes(res.RunID, res.Outcomes) })

	if opts.DryRun {
		log.Info().Msg("dry run, summary not sent")
	} else if err := r.deps.Sink.Notify(ctx, internal.NotificationEntries(res.Outcomes)); err != nil {
		res.Diagnostics = append(res.Diagnostics, warning(StageNotify, "send summary: "+err.Error()))
	}

	if !opts.SkipReplies {
		responder := pipeline.NewResponder(r.deps.Mailbox, r.settings.ProcessedFolder, pipeline.WithDryRun(opts.DryRun))
		replies, err := responder.Respond(ctx, res.Outcomes, day)
		res.Reply = replies
		res.Diagnostics = append(res.Diagnostics, replies.Diagnostics...)
		r.journal(&res, func(j Journal) error { return j.RecordReplies(res.RunID, replies.Actions) })
		if err != nil {
			return r.fail(res, pipeline.StageReply, err)
		}
	}

	res.Status = StatusOK
	r.finish(&res, "")
	r.markCompleted(&res, opts.DryRun)
	counts := res.Counts()
	log.Info().
		Int("ok", counts["ok"]).
		Int("divergent", counts["divergent"]).
		Int("replied", counts["replied"]).
		Int("unresolved", counts["unresolved"]).
		Bool("dry_run", opts.DryRun).
		Msg("run done")
	return res, nil
}

func (r *Runner) fail(res RunResult, stage string, err error) (RunResult, error) {
	stageErr := &StageError{Stage: stage, Err: err}
	res.Status = StatusFailed
	res.Diagnostics = append(res.Diagnostics, internal.Diagnostic{
		Stage:   stage,
		Level:   internal.LevelError,
		Kind:    internal.KindCollaborator,
		Message: err.Error(),
	})
	r.finish(&res, stageErr.Error())
	return res, stageErr
}

func (r *Runner) finish(res *RunResult, errMsg string) {
	r.journal(res, func(j Journal) error { return j.FinishRun(res.RunID, res.Status, errMsg, res.Counts()) })
}

func (r *Runner) markCompleted(res *RunResult, dryRun bool) {
	if dryRun {
		return
	}
	r.journal(res, func(j Journal) error { return j.SetMetadata(MetaLastCompletedDay, res.Day.Format("2006-01-02")) })
}

func (r *Runner) journal(res *RunResult, fn func(Journal) error) {
	if r.deps.Journal == nil {
		return
	}
	if err := fn(r.deps.Journal); err != nil {
		res.Diagnostics = append(res.Diagnostics, warning(StageJournal, err.Error()))
	}
}

func (r *Runner) artifact(res *RunResult, fn func() error) {
	if err := fn(); err != nil {
		res.Diagnostics = append(res.Diagnostics, warning(StageArtifacts, err.Error()))
	}
}

func warning(stage, msg string) internal.Diagnostic {
	return internal.Diagnostic{
		Stage:   stage,
		Level:   internal.LevelWarn,
		Kind:    internal.KindCollaborator,
		Message: msg,
	}
}
