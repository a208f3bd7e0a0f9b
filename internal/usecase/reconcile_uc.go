package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/adapter"
	"whatsapp-course-delivery/internal/domain/ports/repository"
	"whatsapp-course-delivery/internal/infra/metrics"
)

// Compile-time check
var _ ReconcilerUseCase = (*reconcilerUC)(nil)

// Enqueuer is the follow-up path back into the delivery pipeline. HasLive is
// the advisory pre-check used to skip text generation for a reply that would
// dedupe at insert time anyway.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload model.JobPayload) (accepted bool, jobID string, err error)
	HasLive(ctx context.Context, category model.Category, fingerprint string) (bool, error)
}

// ContentEvent is one inbound message from the provider webhook.
type ContentEvent struct {
	From              string
	ProviderMessageID string
	Type              string // "text" | "button"
	Body              string
	ButtonID          string
	ButtonTitle       string
}

// ReconcilerUseCase consumes provider webhook events: status updates mutate
// the message log (forward-only), replies drive follow-up sends.
type ReconcilerUseCase interface {
	ApplyStatus(ctx context.Context, providerMessageID string, status model.MessageStatus) error
	HandleContent(ctx context.Context, ev ContentEvent) error
}

type reconcilerUC struct {
	msgLog  repository.MessageLogRepository
	quizzes repository.QuizContextRepository
	textGen adapter.TextGenerator
	enq     Enqueuer
	log     *zerolog.Logger
}

func NewReconcilerUseCase(
	msgLog repository.MessageLogRepository,
	quizzes repository.QuizContextRepository,
	textGen adapter.TextGenerator,
	enq Enqueuer,
	logger *zerolog.Logger,
) *reconcilerUC {
	compLog := logger.With().Str("component", "Reconciler").Logger()
	return &reconcilerUC{
		msgLog:  msgLog,
		quizzes: quizzes,
		textGen: textGen,
		enq:     enq,
		log:     &compLog,
	}
}

// ApplyStatus applies a provider status event to the message log. Unknown
// ids are logged and dropped: the provider may report on messages outside
// this system's log. Stale (backward) transitions are ignored.
func (r *reconcilerUC) ApplyStatus(ctx context.Context, providerMessageID string, status model.MessageStatus) error {
	metrics.IncWebhookEvent("status")

	// The write is guarded by the status read here, so a concurrent event
	// for the same message cannot interleave into a backward move. On a
	// guard miss, re-read and re-check; the stored status only moves
	// forward, so the loop is bounded by the lifecycle length.
	for {
		rec, err := r.msgLog.FindByProviderID(ctx, nil, providerMessageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				metrics.IncReconcileMiss("status")
				r.log.Debug().
					Str("provider_message_id", providerMessageID).
					Str("status", string(status)).
					Msg("status for unknown message dropped")
				return nil
			}
			return err
		}

		if !model.CanTransition(rec.Status, status) {
			r.log.Debug().
				Str("provider_message_id", providerMessageID).
				Str("from", string(rec.Status)).
				Str("to", string(status)).
				Msg("stale status transition ignored")
			return nil
		}

		err = r.msgLog.UpdateStatus(ctx, nil, providerMessageID, rec.Status, status)
		if errors.Is(err, domain.ErrStaleTransition) {
			continue
		}
		if err != nil {
			return err
		}
		r.log.Info().
			Str("provider_message_id", providerMessageID).
			Str("status", string(status)).
			Msg("message status updated")
		return nil
	}
}

// HandleContent persists an inbound message and, for quiz button replies,
// resolves correctness and enqueues feedback; everything else gets a
// generic AI reply job. The text fingerprint makes repeated identical
// replies collapse into one follow-up send.
func (r *reconcilerUC) HandleContent(ctx context.Context, ev ContentEvent) error {
	metrics.IncWebhookEvent("content")

	body := ev.Body
	if ev.Type == "button" && body == "" {
		body = ev.ButtonTitle
	}
	rec := &model.MessageRecord{
		ProviderMessageID: ev.ProviderMessageID,
		Direction:         model.DirectionIncoming,
		Category:          model.CategoryText,
		Body:              body,
		Status:            model.StatusReceived,
		From:              ev.From,
	}

	if ev.Type == "button" {
		qc, err := r.quizzes.FindActive(ctx, ev.From, ev.ButtonID)
		switch {
		case err == nil:
			rec.QuizID = qc.QuizID
			rec.LessonID = qc.LessonID
			rec.CourseID = qc.CourseID
			if err := r.msgLog.Save(ctx, nil, rec); err != nil {
				return err
			}
			return r.enqueueQuizFeedback(ctx, ev, qc)
		case errors.Is(err, domain.ErrNotFound):
			metrics.IncReconcileMiss("content")
			r.log.Debug().
				Str("button_id", ev.ButtonID).
				Msg("button reply without active quiz, treating as free text")
		default:
			return err
		}
	}

	if err := r.msgLog.Save(ctx, nil, rec); err != nil {
		return err
	}
	return r.enqueueFreeTextReply(ctx, ev.From, body)
}

func (r *reconcilerUC) enqueueQuizFeedback(ctx context.Context, ev ContentEvent, qc *model.QuizContext) error {
	correct := ev.ButtonID == qc.CorrectOption

	// The dedup key is the answer's identity, not the generated text: the
	// generator is nondeterministic, so fingerprinting its output would let
	// repeated taps of the same button each produce a fresh job.
	dedupeKey := fmt.Sprintf("%s:%s", qc.QuizID, ev.ButtonID)
	if r.replyIsLive(ctx, dedupeKey, ev.From) {
		r.log.Debug().Str("quiz_id", qc.QuizID).Msg("feedback for this answer already pending")
		return nil
	}

	prompt := fmt.Sprintf(
		"A learner answered the quiz question %q with %q. The answer is %s. Write one short, encouraging feedback message.",
		qc.Question, ev.ButtonTitle, verdict(correct),
	)
	feedback, err := r.textGen.Generate(ctx, prompt)
	if err != nil {
		r.log.Warn().Err(err).Msg("feedback generation failed, using fallback text")
		if correct {
			feedback = "Correct, well done! On to the next lesson."
		} else {
			feedback = "Not quite. Have another look at the lesson and try again!"
		}
	}

	accepted, _, err := r.enq.Enqueue(ctx, model.TextPayload{
		To:        ev.From,
		Content:   feedback,
		DedupeKey: dedupeKey,
		QuizID:    qc.QuizID,
		LessonID:  qc.LessonID,
	})
	if err != nil {
		return err
	}
	r.log.Info().
		Str("quiz_id", qc.QuizID).
		Bool("correct", correct).
		Bool("accepted", accepted).
		Msg("quiz feedback enqueued")
	return nil
}

func (r *reconcilerUC) enqueueFreeTextReply(ctx context.Context, from, body string) error {
	if body == "" {
		return nil
	}

	// Keyed on the inbound text so identical messages collapse to one reply
	// regardless of what the generator produces for each.
	if r.replyIsLive(ctx, body, from) {
		r.log.Debug().Msg("reply for identical inbound text already pending")
		return nil
	}

	prompt := fmt.Sprintf("A learner wrote: %q. Reply helpfully in one or two sentences.", body)
	reply, err := r.textGen.Generate(ctx, prompt)
	if err != nil {
		r.log.Warn().Err(err).Msg("reply generation failed, using fallback text")
		reply = "Thanks for your message! A tutor will follow up shortly."
	}

	accepted, _, err := r.enq.Enqueue(ctx, model.TextPayload{To: from, Content: reply, DedupeKey: body})
	if err != nil {
		return err
	}
	r.log.Info().Bool("accepted", accepted).Msg("free-text reply enqueued")
	return nil
}

// replyIsLive probes the live-job index for the fingerprint this reply would
// get. Best effort: a probe failure or a race with a concurrent duplicate
// just falls through to the insert-time check.
func (r *reconcilerUC) replyIsLive(ctx context.Context, seed, to string) bool {
	live, err := r.enq.HasLive(ctx, model.CategoryText, model.TextFingerprint(seed, to))
	if err != nil {
		r.log.Warn().Err(err).Msg("duplicate probe failed, generating anyway")
		return false
	}
	if live {
		metrics.IncDeduped(string(model.CategoryText))
	}
	return live
}

func verdict(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}
