package legacy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/notify"
	"github.com/mgriffe/keepsake/internal/store"
)

type fakeNotifier struct {
	sent   []notify.Message
	queued []notify.Message
	fail   bool
}

func (f *fakeNotifier) Send(_ context.Context, m notify.Message) error {
	if f.fail {
		return errors.New("mail transport down")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeNotifier) Queue(m notify.Message) error {
	f.queued = append(f.queued, m)
	return nil
}

type harness struct {
	accounts      *store.AccountStore
	beneficiaries *store.BeneficiaryStore
	grants        *store.GrantStore
	warnings      *store.WarningStore
	notifier      *fakeNotifier
	manager       *GrantManager
	monitor       *Monitor
}

func setupMonitor(t *testing.T) *harness {
	t.Helper()
	mem := kv.NewMemoryStore()
	logger := slog.New(slog.DiscardHandler)

	h := &harness{
		accounts:      store.NewAccountStore(mem),
		beneficiaries: store.NewBeneficiaryStore(mem),
		grants:        store.NewGrantStore(mem),
		warnings:      store.NewWarningStore(mem),
		notifier:      &fakeNotifier{},
	}
	h.manager = NewGrantManager(h.accounts, h.beneficiaries, h.grants, h.notifier,
		"https://keepsake.test", 0, logger)
	h.monitor = NewMonitor(h.accounts, h.beneficiaries, h.warnings, h.manager,
		h.notifier, logger)
	return h
}

func (h *harness) freeze(at time.Time) {
	h.monitor.now = func() time.Time { return at }
	h.manager.now = func() time.Time { return at }
}

// seedAccount creates an enabled account whose last activity was daysAgo
// before the frozen time.
func (h *harness) seedAccount(t *testing.T, id string, at time.Time, daysAgo int) *model.Account {
	t.Helper()
	acct, err := h.accounts.Create(id, id+"@example.com", at.AddDate(0, 0, -daysAgo))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	acct.LegacyAccessEnabled = true
	if err := h.accounts.Put(acct); err != nil {
		t.Fatalf("put account: %v", err)
	}
	return acct
}

func (h *harness) seedBeneficiary(t *testing.T, accountID, email string) {
	t.Helper()
	err := h.beneficiaries.Put(&model.Beneficiary{AccountID: accountID, Email: email, Name: email})
	if err != nil {
		t.Fatalf("put beneficiary: %v", err)
	}
}

func TestWarningFiresOnExactDayOnce(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	// 90-day threshold, 14-day lead: the warning day is day 76.
	h.seedAccount(t, "acct1", at, 76)
	h.seedBeneficiary(t, "acct1", "ben@example.com")

	warned, err := h.monitor.CheckInactivityWarnings(context.Background())
	if err != nil {
		t.Fatalf("warnings pass: %v", err)
	}
	if warned != 1 {
		t.Fatalf("warned = %d, want 1", warned)
	}
	if len(h.notifier.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(h.notifier.sent))
	}
	msg := h.notifier.sent[0]
	if msg.To != "acct1@example.com" {
		t.Errorf("warning to %q, want owner", msg.To)
	}
	if !strings.Contains(msg.TextBody, "14 days") && !strings.Contains(msg.Subject, "14 days") {
		t.Errorf("warning does not mention remaining days: %q / %q", msg.Subject, msg.TextBody)
	}

	// A second run the same day is a no-op.
	warned, err = h.monitor.CheckInactivityWarnings(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if warned != 0 || len(h.notifier.sent) != 1 {
		t.Errorf("second pass warned=%d sent=%d, want 0 and 1", warned, len(h.notifier.sent))
	}

	rec, err := h.warnings.Get("acct1", at.Format("2006-01-02"))
	if err != nil || rec == nil {
		t.Fatalf("warning record missing: rec=%v err=%v", rec, err)
	}
	if rec.DaysRemaining != 14 {
		t.Errorf("days remaining = %d, want 14", rec.DaysRemaining)
	}
}

func TestWarningSkippedOffTheExactDay(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "early", at, 75)
	h.seedAccount(t, "late", at, 77)

	warned, err := h.monitor.CheckInactivityWarnings(context.Background())
	if err != nil {
		t.Fatalf("warnings pass: %v", err)
	}
	if warned != 0 {
		t.Errorf("warned = %d, want 0 (match is exact-day)", warned)
	}
}

func TestWarningSkippedWhenDisabledOrInactive(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)

	disabled := h.seedAccount(t, "disabled", at, 76)
	disabled.LegacyAccessEnabled = false
	if err := h.accounts.Put(disabled); err != nil {
		t.Fatal(err)
	}
	dormant := h.seedAccount(t, "dormant", at, 76)
	dormant.Status = model.AccountInactive
	if err := h.accounts.Put(dormant); err != nil {
		t.Fatal(err)
	}

	warned, err := h.monitor.CheckInactivityWarnings(context.Background())
	if err != nil {
		t.Fatalf("warnings pass: %v", err)
	}
	if warned != 0 {
		t.Errorf("warned = %d, want 0", warned)
	}
}

func TestWarningFailureQueuesWithoutRecord(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 76)
	h.notifier.fail = true

	warned, err := h.monitor.CheckInactivityWarnings(context.Background())
	if err != nil {
		t.Fatalf("warnings pass: %v", err)
	}
	if warned != 0 {
		t.Errorf("warned = %d, want 0 on delivery failure", warned)
	}
	if len(h.notifier.queued) != 1 {
		t.Fatalf("queued = %d, want 1", len(h.notifier.queued))
	}
	if rec, _ := h.warnings.Get("acct1", at.Format("2006-01-02")); rec != nil {
		t.Error("warning record written despite delivery failure")
	}

	// The record's absence is the retry signal: the next run re-attempts.
	h.notifier.fail = false
	warned, err = h.monitor.CheckInactivityWarnings(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if warned != 1 || len(h.notifier.sent) != 1 {
		t.Errorf("second pass warned=%d sent=%d, want 1 and 1", warned, len(h.notifier.sent))
	}
}

func TestTransitionIssuesGrants(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 90)
	h.seedBeneficiary(t, "acct1", "alice@example.com")
	h.seedBeneficiary(t, "acct1", "bob@example.com")

	transitioned, err := h.monitor.CheckInactiveAccounts(context.Background())
	if err != nil {
		t.Fatalf("transition pass: %v", err)
	}
	if transitioned != 1 {
		t.Fatalf("transitioned = %d, want 1", transitioned)
	}

	acct, err := h.accounts.GetByID("acct1")
	if err != nil || acct == nil {
		t.Fatalf("get account: %v", err)
	}
	if acct.Status != model.AccountInactive || acct.InactiveAt == nil {
		t.Errorf("account not marked inactive: status=%s inactiveAt=%v", acct.Status, acct.InactiveAt)
	}

	grants, err := h.grants.ListByAccount("acct1")
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("grants = %d, want 2", len(grants))
	}
	if grants[0].Token == grants[1].Token {
		t.Error("beneficiaries share a token")
	}
	for _, g := range grants {
		if g.Token == "" {
			t.Error("empty grant token")
		}
		if !g.EmailSent || g.EmailSentAt == nil {
			t.Errorf("grant for %s not marked delivered", g.BeneficiaryEmail)
		}
		wantExpiry := at.AddDate(0, 0, model.GrantValidityDays)
		if !g.ExpiresAt.Equal(wantExpiry) {
			t.Errorf("expiry = %v, want %v", g.ExpiresAt, wantExpiry)
		}
	}

	if len(h.notifier.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(h.notifier.sent))
	}
	for i, g := range grants {
		if !strings.Contains(h.notifier.sent[i].TextBody, "/legacy/"+g.Token) {
			t.Errorf("message %d missing access link for %s", i, g.BeneficiaryEmail)
		}
	}

	marker, err := h.grants.Marker("acct1")
	if err != nil || marker == nil {
		t.Fatalf("marker missing: %v", err)
	}
	if marker.GrantCount != 2 {
		t.Errorf("marker grant count = %d, want 2", marker.GrantCount)
	}
}

func TestTransitionIdempotent(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 90)
	h.seedBeneficiary(t, "acct1", "alice@example.com")

	for i := 0; i < 2; i++ {
		if _, err := h.monitor.CheckInactiveAccounts(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	grants, err := h.grants.ListByAccount("acct1")
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 {
		t.Errorf("grants = %d, want 1 after repeated runs", len(grants))
	}
	if len(h.notifier.sent) != 1 {
		t.Errorf("sent = %d, want 1 after repeated runs", len(h.notifier.sent))
	}
}

func TestTransitionBelowThresholdNoOp(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 89)

	transitioned, err := h.monitor.CheckInactiveAccounts(context.Background())
	if err != nil {
		t.Fatalf("transition pass: %v", err)
	}
	if transitioned != 0 {
		t.Errorf("transitioned = %d, want 0 at day 89", transitioned)
	}
}

func TestTransitionWithoutBeneficiariesWritesMarkerOnly(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 95)

	transitioned, err := h.monitor.CheckInactiveAccounts(context.Background())
	if err != nil {
		t.Fatalf("transition pass: %v", err)
	}
	if transitioned != 1 {
		t.Fatalf("transitioned = %d, want 1", transitioned)
	}

	marker, err := h.grants.Marker("acct1")
	if err != nil || marker == nil {
		t.Fatalf("marker missing: %v", err)
	}
	if marker.GrantCount != 0 {
		t.Errorf("marker grant count = %d, want 0", marker.GrantCount)
	}
	grants, _ := h.grants.ListByAccount("acct1")
	if len(grants) != 0 {
		t.Errorf("grants = %d, want 0", len(grants))
	}
}

func TestGrantDeliveryFailurePersistsGrantAndQueues(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 90)
	h.seedBeneficiary(t, "acct1", "alice@example.com")
	h.notifier.fail = true

	if _, err := h.monitor.CheckInactiveAccounts(context.Background()); err != nil {
		t.Fatalf("transition pass: %v", err)
	}

	grants, err := h.grants.ListByAccount("acct1")
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("grants = %d, want 1 (grant exists despite delivery failure)", len(grants))
	}
	if grants[0].EmailSent {
		t.Error("grant marked delivered despite failure")
	}
	if len(h.notifier.queued) != 1 {
		t.Errorf("queued = %d, want 1", len(h.notifier.queued))
	}

	// The marker is written regardless, so the episode stays settled.
	if marker, _ := h.grants.Marker("acct1"); marker == nil {
		t.Fatal("marker missing after delivery failure")
	}
}

func TestRecordActivityReactivatesAndOpensNewEpisode(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 90)
	h.seedBeneficiary(t, "acct1", "alice@example.com")

	if _, err := h.monitor.CheckInactiveAccounts(context.Background()); err != nil {
		t.Fatalf("transition pass: %v", err)
	}
	firstGrants, _ := h.grants.ListByAccount("acct1")
	if len(firstGrants) != 1 {
		t.Fatalf("grants = %d, want 1", len(firstGrants))
	}

	// The owner returns.
	acct, err := h.monitor.RecordActivity("acct1")
	if err != nil {
		t.Fatalf("record activity: %v", err)
	}
	if acct.Status != model.AccountActive || acct.ReactivatedAt == nil {
		t.Errorf("account not reactivated: status=%s", acct.Status)
	}
	if marker, _ := h.grants.Marker("acct1"); marker != nil {
		t.Error("marker not cleared on reactivation")
	}
	// Already-issued grants survive reactivation.
	if grants, _ := h.grants.ListByAccount("acct1"); len(grants) != 1 {
		t.Errorf("grants after reactivation = %d, want 1", len(grants))
	}

	// A later full episode issues a fresh grant with a new token.
	later := at.AddDate(0, 0, 90)
	h.freeze(later)
	if _, err := h.monitor.CheckInactiveAccounts(context.Background()); err != nil {
		t.Fatalf("second episode: %v", err)
	}
	secondGrants, _ := h.grants.ListByAccount("acct1")
	if len(secondGrants) != 1 {
		t.Fatalf("grants after second episode = %d, want 1", len(secondGrants))
	}
	if secondGrants[0].Token == firstGrants[0].Token {
		t.Error("second episode reused the first episode's token")
	}
	if !secondGrants[0].GrantedAt.Equal(later) {
		t.Errorf("second grant time = %v, want %v", secondGrants[0].GrantedAt, later)
	}
}

func TestRecordActivityUnknownAccount(t *testing.T) {
	h := setupMonitor(t)
	if _, err := h.monitor.RecordActivity("ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestRecordActivityResetsClockWithoutReactivation(t *testing.T) {
	h := setupMonitor(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.freeze(at)
	h.seedAccount(t, "acct1", at, 76)

	acct, err := h.monitor.RecordActivity("acct1")
	if err != nil {
		t.Fatalf("record activity: %v", err)
	}
	if acct.ReactivatedAt != nil {
		t.Error("active account stamped as reactivated")
	}
	if acct.DaysSinceActivity(at) != 0 {
		t.Errorf("days since activity = %d, want 0", acct.DaysSinceActivity(at))
	}

	// With the clock reset, the warning day no longer matches.
	warned, err := h.monitor.CheckInactivityWarnings(context.Background())
	if err != nil {
		t.Fatalf("warnings pass: %v", err)
	}
	if warned != 0 {
		t.Errorf("warned = %d, want 0 after reset", warned)
	}
}
