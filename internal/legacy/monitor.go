// Package legacy implements the dead-man-switch core: the inactivity
// monitor that warns owners before the threshold, the active→inactive
// transition, and the issuance of beneficiary access grants.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/notify"
	"github.com/mgriffe/keepsake/internal/store"
)

// ErrAccountNotFound is returned by RecordActivity for an unknown account.
var ErrAccountNotFound = errors.New("account not found")

// Monitor runs the periodic inactivity passes over all accounts. Both
// passes are idempotent: warnings are deduplicated per calendar day and
// grant issuance per inactivity episode, so overlapping or repeated runs
// produce no duplicate notifications.
type Monitor struct {
	accounts      *store.AccountStore
	beneficiaries *store.BeneficiaryStore
	warnings      *store.WarningStore
	grantManager  *GrantManager
	notifier      notify.Notifier

	// Web push is optional; nil push leaves email as the only warning channel.
	push     *notify.PushService
	pushSubs *store.PushStore

	pageSize int
	now      func() time.Time
	logger   *slog.Logger
}

func NewMonitor(
	accounts *store.AccountStore,
	beneficiaries *store.BeneficiaryStore,
	warnings *store.WarningStore,
	grantManager *GrantManager,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		accounts:      accounts,
		beneficiaries: beneficiaries,
		warnings:      warnings,
		grantManager:  grantManager,
		notifier:      notifier,
		pageSize:      100,
		now:           time.Now,
		logger:        logger,
	}
}

// EnablePush adds a web push warning channel alongside email.
func (m *Monitor) EnablePush(svc *notify.PushService, subs *store.PushStore) {
	m.push = svc
	m.pushSubs = subs
}

// warningDue reports whether today is the single day on which the
// pre-inactivity warning fires. The match is exact: if the monitor does
// not run that day, the warning for this episode is skipped entirely
// rather than sent late.
func warningDue(daysSince, thresholdDays, leadDays int) bool {
	return daysSince == thresholdDays-leadDays
}

// CheckInactivityWarnings is pass one: warn owners whose accounts sit
// exactly leadDays short of the inactivity threshold. Returns the number
// of warnings sent. Per-account failures are logged and skipped; they
// never abort the sweep.
func (m *Monitor) CheckInactivityWarnings(ctx context.Context) (int, error) {
	now := m.now().UTC()
	day := now.Format("2006-01-02")
	warned := 0

	err := m.eachAccount(ctx, func(acct *model.Account) {
		if !acct.LegacyAccessEnabled || acct.Status != model.AccountActive {
			return
		}
		daysSince := acct.DaysSinceActivity(now)
		if !warningDue(daysSince, acct.InactivityThresholdDays, acct.WarningLeadDays) {
			return
		}

		remaining := acct.InactivityThresholdDays - daysSince
		// The warning record doubles as the per-day dedup marker. On send
		// failure no record is written: its absence is the retry signal for
		// the next run, with the queued copy as a second delivery channel.
		ran, err := m.warnings.EnsureSent(acct.ID, day, func() (*model.WarningRecord, error) {
			msg := m.warningMessage(acct, remaining)
			if err := m.notifier.Send(ctx, msg); err != nil {
				if qErr := m.notifier.Queue(msg); qErr != nil {
					m.logger.Error("queue warning", "account", acct.ID, "error", qErr)
				}
				return nil, fmt.Errorf("send warning: %w", err)
			}
			return &model.WarningRecord{
				AccountID:     acct.ID,
				Day:           day,
				SentAt:        now,
				DaysRemaining: remaining,
			}, nil
		})
		if err != nil {
			m.logger.Warn("inactivity warning failed, will retry next run", "account", acct.ID, "error", err)
			return
		}
		if !ran {
			return
		}
		m.pushWarning(acct, remaining)
		warned++
	})
	if err != nil {
		return warned, err
	}

	m.logger.Info("inactivity warning pass complete", "warned", warned)
	return warned, nil
}

// CheckInactiveAccounts is pass two: transition accounts at or past the
// threshold and issue beneficiary grants. Returns the number of accounts
// transitioned this run.
func (m *Monitor) CheckInactiveAccounts(ctx context.Context) (int, error) {
	now := m.now().UTC()
	transitioned := 0

	err := m.eachAccount(ctx, func(acct *model.Account) {
		if !acct.LegacyAccessEnabled || acct.Status != model.AccountActive {
			return
		}
		if acct.DaysSinceActivity(now) < acct.InactivityThresholdDays {
			return
		}

		if _, err := m.grantManager.Deactivate(ctx, acct); err != nil {
			if errors.Is(err, ErrAlreadyProcessed) {
				return
			}
			m.logger.Error("deactivate account", "account", acct.ID, "error", err)
			return
		}
		transitioned++
	})
	if err != nil {
		return transitioned, err
	}

	m.logger.Info("inactivity transition pass complete", "transitioned", transitioned)
	return transitioned, nil
}

// RecordActivity resets the inactivity clock on a login or equivalent
// owner action. A dormant account reactivates; grants already issued for
// the ended episode stay valid, but the processed marker is cleared so a
// future episode can issue fresh ones.
func (m *Monitor) RecordActivity(accountID string) (*model.Account, error) {
	acct, err := m.accounts.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}

	now := m.now().UTC()
	acct.LastActivityAt = now
	if acct.Status == model.AccountInactive {
		acct.Status = model.AccountActive
		acct.ReactivatedAt = &now
		if err := m.grantManager.grants.ClearMarker(accountID); err != nil {
			return nil, fmt.Errorf("clear processed marker: %w", err)
		}
		m.logger.Info("account reactivated", "account", accountID)
	}
	if err := m.accounts.Put(acct); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	return acct, nil
}

// eachAccount pages through every account, applying fn. The context is
// checked between accounts so a shutdown lands on a clean boundary.
func (m *Monitor) eachAccount(ctx context.Context, fn func(*model.Account)) error {
	cursor := ""
	for {
		accounts, next, err := m.accounts.Page(cursor, m.pageSize)
		if err != nil {
			return err
		}
		for _, acct := range accounts {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(acct)
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (m *Monitor) warningMessage(acct *model.Account, remaining int) notify.Message {
	bens, err := m.beneficiaries.ListByAccount(acct.ID)
	if err != nil {
		m.logger.Error("list beneficiaries for warning", "account", acct.ID, "error", err)
	}
	names := make([]string, 0, len(bens))
	for _, b := range bens {
		if b.Name != "" {
			names = append(names, b.Name)
		} else {
			names = append(names, b.Email)
		}
	}

	text := fmt.Sprintf(
		"Your Keepsake account has been inactive for a while. In %d days it will be "+
			"marked dormant and your designated beneficiaries will receive access to "+
			"your vault.\n\nSign in to keep your account active.",
		remaining,
	)
	if len(names) > 0 {
		text += "\n\nDesignated beneficiaries: " + strings.Join(names, ", ")
	}
	return notify.Message{
		To:       acct.Email,
		Subject:  fmt.Sprintf("Your vault becomes accessible to beneficiaries in %d days", remaining),
		TextBody: text,
	}
}

// pushWarning mirrors the warning over web push, pruning subscriptions the
// push service reports gone. Best effort only.
func (m *Monitor) pushWarning(acct *model.Account, remaining int) {
	if m.push == nil || m.pushSubs == nil {
		return
	}
	subs, err := m.pushSubs.ListByAccount(acct.ID)
	if err != nil {
		m.logger.Error("list push subscriptions", "account", acct.ID, "error", err)
		return
	}
	payload := notify.PushPayload{
		Title: "Inactivity warning",
		Body:  fmt.Sprintf("Your vault becomes accessible to beneficiaries in %d days. Sign in to stay active.", remaining),
		Tag:   "inactivity-warning",
	}
	for _, sub := range subs {
		if err := m.push.Send(sub, payload); err != nil {
			if errors.Is(err, notify.ErrSubscriptionExpired) {
				if delErr := m.pushSubs.DeleteByEndpoint(acct.ID, sub.Endpoint); delErr != nil {
					m.logger.Error("prune expired push subscription", "account", acct.ID, "error", delErr)
				}
				continue
			}
			m.logger.Warn("push warning failed", "account", acct.ID, "error", err)
		}
	}
}
