// Package dialer orchestrates one external phone call: identity
// normalization, call placement, polling to a terminal status with capped
// geometric backoff, and transcript retrieval. It is the only package that
// performs network I/O against the calling provider.
package dialer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ivrmap/internal/model"
	"github.com/sells-group/ivrmap/internal/resilience"
	"github.com/sells-group/ivrmap/internal/transcript"
	"github.com/sells-group/ivrmap/pkg/bland"
)

// Error kinds surfaced to the discovery loop. Checked with errors.Is.
var (
	ErrInvalidIdentity       = eris.New("invalid call target identity")
	ErrProviderCallFailed    = eris.New("provider call failed")
	ErrPollTimeout           = eris.New("no terminal call status before timeout")
	ErrTranscriptUnavailable = eris.New("no transcript available for call")
)

// Options tunes call placement and polling.
type Options struct {
	PollInterval       time.Duration // base wait between status polls
	PollCap            time.Duration // ceiling for backoff growth
	PollTimeout        time.Duration // overall bound on the wait
	MaxCallDuration    int           // minutes, passed to the provider
	WaitForGreeting    bool
	VoicemailDetection bool
	Record             bool
}

// DefaultOptions returns the polling defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval:       resilience.DefaultPollBase,
		PollCap:            resilience.DefaultPollCap,
		PollTimeout:        10 * time.Minute,
		MaxCallDuration:    8,
		WaitForGreeting:    true,
		VoicemailDetection: true,
		Record:             true,
	}
}

// CallHandle identifies one placed call.
type CallHandle struct {
	CallID string
}

// Dialer places and supervises calls through the provider client.
type Dialer struct {
	provider bland.Client
	opts     Options
}

// New creates a Dialer.
func New(provider bland.Client, opts Options) *Dialer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = resilience.DefaultPollBase
	}
	if opts.PollCap <= 0 {
		opts.PollCap = resilience.DefaultPollCap
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 10 * time.Minute
	}
	return &Dialer{provider: provider, opts: opts}
}

// NormalizeIdentity canonicalizes a loosely-formatted phone-like identifier
// to international +E.164 form. Accepted inputs: an already-canonical
// "+<digits>", bare 10 digits (prefixed +1), or 11 digits starting with 1.
// Anything else fails with ErrInvalidIdentity.
func NormalizeIdentity(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	plus := strings.HasPrefix(cleaned, "+")

	var digits strings.Builder
	for _, r := range cleaned {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case plus && len(d) >= 8 && len(d) <= 15:
		return "+" + d, nil
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	}
	return "", eris.Wrapf(ErrInvalidIdentity, "dialer: cannot normalize %q", raw)
}

// PlaceCall starts one call against the normalized identity with the given
// navigation instructions.
func (d *Dialer) PlaceCall(ctx context.Context, identity, instructions string) (CallHandle, error) {
	resp, err := d.provider.SendCall(ctx, bland.SendCallRequest{
		PhoneNumber:        identity,
		Task:               instructions,
		WaitForGreeting:    d.opts.WaitForGreeting,
		Record:             d.opts.Record,
		VoicemailDetection: d.opts.VoicemailDetection,
		MaxDuration:        d.opts.MaxCallDuration,
	})
	if err != nil {
		return CallHandle{}, eris.Wrap(ErrProviderCallFailed, err.Error())
	}
	if resp.CallID == "" {
		return CallHandle{}, eris.Wrapf(ErrProviderCallFailed, "dialer: provider returned status %q with no call id", resp.Status)
	}
	zap.L().Info("call placed",
		zap.String("call_id", resp.CallID),
		zap.String("identity", identity),
	)
	return CallHandle{CallID: resp.CallID}, nil
}

// AwaitCompletion polls call status until it reaches a terminal value.
// A transient query failure doubles the wait up to the cap and keeps
// polling; a successful query resets the wait to the base. A non-transient
// failure aborts; if no terminal status arrives within PollTimeout the
// wait fails with ErrPollTimeout.
func (d *Dialer) AwaitCompletion(ctx context.Context, handle CallHandle) (*bland.CallDetails, error) {
	deadline := time.Now().Add(d.opts.PollTimeout)
	backoff := resilience.NewBackoff(d.opts.PollInterval, d.opts.PollCap)
	log := zap.L().With(zap.String("call_id", handle.CallID))

	for {
		if err := backoff.Sleep(ctx); err != nil {
			return nil, eris.Wrap(err, "dialer: poll wait")
		}

		details, err := d.provider.GetCall(ctx, handle.CallID)
		switch {
		case err == nil:
			backoff.Succeed()
			if bland.Terminal(details.Status) {
				log.Info("call reached terminal status",
					zap.String("status", details.Status),
					zap.String("answered_by", details.AnsweredBy),
					zap.Float64("price", details.Price),
				)
				return details, nil
			}
		case resilience.IsTransient(err):
			log.Warn("transient poll failure, backing off",
				zap.Duration("next_wait", backoff.Interval()),
				zap.Error(err),
			)
			backoff.Fail()
		default:
			return nil, eris.Wrap(ErrProviderCallFailed, err.Error())
		}

		if time.Now().After(deadline) {
			return nil, eris.Wrapf(ErrPollTimeout, "dialer: call %s after %s", handle.CallID, d.opts.PollTimeout)
		}
	}
}

// FetchTranscript returns the best-available transcript as role-tagged
// utterances. Preference order: the corrected/aligned transcript, the
// structured per-utterance transcript, then the concatenated string
// fallback. If all are empty it fails with ErrTranscriptUnavailable.
func (d *Dialer) FetchTranscript(ctx context.Context, handle CallHandle, details *bland.CallDetails) ([]model.Utterance, error) {
	if corrected, err := d.provider.GetCorrectedTranscript(ctx, handle.CallID); err == nil && corrected != nil {
		var lines []transcript.Line
		for _, e := range corrected.Aligned {
			lines = append(lines, transcript.Line{Speaker: e.Speaker, Text: e.Text})
		}
		if utterances := transcript.Normalize(lines); len(utterances) > 0 {
			return utterances, nil
		}
	} else if err != nil {
		// Corrected transcripts are best-effort; fall through to raw.
		zap.L().Debug("corrected transcript unavailable",
			zap.String("call_id", handle.CallID),
			zap.Error(err),
		)
	}

	if len(details.Transcripts) > 0 {
		var lines []transcript.Line
		for _, e := range details.Transcripts {
			lines = append(lines, transcript.Line{Speaker: e.User, Text: e.Text})
		}
		if utterances := transcript.Normalize(lines); len(utterances) > 0 {
			return utterances, nil
		}
	}

	if utterances := transcript.ParseConcatenated(details.ConcatenatedTranscript); len(utterances) > 0 {
		return utterances, nil
	}

	return nil, eris.Wrapf(ErrTranscriptUnavailable, "dialer: call %s", handle.CallID)
}
