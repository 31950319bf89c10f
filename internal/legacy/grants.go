package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/notify"
	"github.com/mgriffe/keepsake/internal/store"
	"github.com/mgriffe/keepsake/internal/token"
)

// ErrAlreadyProcessed is the internal skip signal: the account's current
// inactivity episode has already been fully processed.
var ErrAlreadyProcessed = errors.New("legacy access already processed for this episode")

// GrantManager performs the active→inactive transition and issues one
// access grant per beneficiary, each with its own token and expiry.
type GrantManager struct {
	accounts      *store.AccountStore
	beneficiaries *store.BeneficiaryStore
	grants        *store.GrantStore
	notifier      notify.Notifier
	baseURL       string
	// sendPause throttles multi-beneficiary fan-out to respect the mail
	// transport's rate limits. Throughput control, not correctness.
	sendPause time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewGrantManager(
	accounts *store.AccountStore,
	beneficiaries *store.BeneficiaryStore,
	grants *store.GrantStore,
	notifier notify.Notifier,
	baseURL string,
	sendPause time.Duration,
	logger *slog.Logger,
) *GrantManager {
	return &GrantManager{
		accounts:      accounts,
		beneficiaries: beneficiaries,
		grants:        grants,
		notifier:      notifier,
		baseURL:       baseURL,
		sendPause:     sendPause,
		now:           time.Now,
		logger:        logger,
	}
}

// Deactivate transitions the account to inactive and issues grants, gated
// by the per-episode processed marker: the marker is checked before any
// effect and written only after all beneficiaries are handled, so a crashed
// run resumes on the next tick and a completed run makes every later tick
// a no-op.
func (g *GrantManager) Deactivate(ctx context.Context, acct *model.Account) (int, error) {
	issued := 0
	ran, err := g.grants.EnsureProcessed(acct.ID, func() (*model.GrantMarker, error) {
		now := g.now().UTC()
		n, err := g.issueGrants(ctx, acct, now)
		issued = n
		if err != nil {
			return nil, err
		}
		return &model.GrantMarker{
			AccountID:   acct.ID,
			ProcessedAt: now,
			GrantCount:  n,
		}, nil
	})
	if err != nil {
		return issued, err
	}
	if !ran {
		return 0, ErrAlreadyProcessed
	}
	return issued, nil
}

// issueGrants performs the transition itself: mark the account inactive,
// then mint and deliver one grant per beneficiary. An error mid-fan-out
// leaves already-issued grants in place for the resumed run to supersede.
func (g *GrantManager) issueGrants(ctx context.Context, acct *model.Account, now time.Time) (int, error) {
	acct.Status = model.AccountInactive
	acct.InactiveAt = &now
	if err := g.accounts.Put(acct); err != nil {
		return 0, fmt.Errorf("mark account inactive: %w", err)
	}
	g.logger.Info("account transitioned to inactive",
		"account", acct.ID, "days_inactive", acct.DaysSinceActivity(now))

	bens, err := g.beneficiaries.ListByAccount(acct.ID)
	if err != nil {
		return 0, err
	}
	if len(bens) == 0 {
		g.logger.Info("no beneficiaries designated, no grants issued", "account", acct.ID)
		return 0, nil
	}

	issued := 0
	for i, ben := range bens {
		if err := ctx.Err(); err != nil {
			return issued, err
		}
		if i > 0 && g.sendPause > 0 {
			g.pause(ctx)
		}

		tok, err := token.New()
		if err != nil {
			return issued, fmt.Errorf("mint access token: %w", err)
		}
		grant := &model.LegacyAccessGrant{
			ID:               uuid.NewString(),
			AccountID:        acct.ID,
			BeneficiaryEmail: ben.Email,
			Token:            tok,
			GrantedAt:        now,
			ExpiresAt:        now.AddDate(0, 0, model.GrantValidityDays),
		}
		// The grant exists regardless of delivery outcome; only the
		// delivery sub-flag differs.
		if err := g.grants.Put(grant); err != nil {
			return issued, fmt.Errorf("persist grant for %s: %w", ben.Email, err)
		}
		issued++

		msg := g.accessMessage(acct, ben, grant)
		if err := g.notifier.Send(ctx, msg); err != nil {
			g.logger.Warn("grant notification failed, queueing for retry",
				"account", acct.ID, "beneficiary", ben.Email, "error", err)
			if qErr := g.notifier.Queue(msg); qErr != nil {
				g.logger.Error("queue grant notification", "beneficiary", ben.Email, "error", qErr)
			}
			continue
		}
		sentAt := g.now().UTC()
		grant.EmailSent = true
		grant.EmailSentAt = &sentAt
		if err := g.grants.Put(grant); err != nil {
			g.logger.Error("record delivery confirmation", "beneficiary", ben.Email, "error", err)
		}
	}

	g.logger.Info("legacy access grants issued", "account", acct.ID, "grants", issued)
	return issued, nil
}

func (g *GrantManager) pause(ctx context.Context) {
	t := time.NewTimer(g.sendPause)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (g *GrantManager) accessMessage(acct *model.Account, ben *model.Beneficiary, grant *model.LegacyAccessGrant) notify.Message {
	link := g.baseURL + "/legacy/" + grant.Token
	name := ben.Name
	if name == "" {
		name = ben.Email
	}
	text := fmt.Sprintf(
		"Hello %s,\n\n%s designated you as a beneficiary of their Keepsake vault. "+
			"Because the account has been inactive, you now have access to its contents.\n\n"+
			"Open your access link:\n\n%s\n\n"+
			"This link expires on %s.",
		name, acct.Email, link, grant.ExpiresAt.Format("January 2, 2006"),
	)
	html := fmt.Sprintf(
		`<p>Hello %s,</p><p>%s designated you as a beneficiary of their Keepsake vault. `+
			`Because the account has been inactive, you now have access to its contents.</p>`+
			`<p><a href="%s">Open your access link</a></p><p>This link expires on %s.</p>`,
		name, acct.Email, link, grant.ExpiresAt.Format("January 2, 2006"),
	)
	return notify.Message{
		To:       ben.Email,
		Subject:  fmt.Sprintf("You have been granted access to %s's vault", acct.Email),
		TextBody: text,
		HTMLBody: html,
	}
}
