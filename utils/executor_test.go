package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tahseel/models"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

// fakeStore keeps everything in maps, mutex-guarded so concurrent starts can
// fan out over it. ExecutionByID and SaveExecution copy so executor mutations
// only become visible through an explicit save, like a real database round
// trip.
type fakeStore struct {
	mu sync.Mutex

	sequences  map[uint]*models.ReminderSequence
	executions map[uint]*models.SequenceExecution
	invoices   map[uint]*models.Invoice
	customers  map[uint]*models.Customer
	companies  map[uint]*models.Company

	settled    map[uint]bool
	replied    map[uint]bool
	sentCounts map[uint]int

	nextID uint
	now    time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sequences:  make(map[uint]*models.ReminderSequence),
		executions: make(map[uint]*models.SequenceExecution),
		invoices:   make(map[uint]*models.Invoice),
		customers:  make(map[uint]*models.Customer),
		companies:  make(map[uint]*models.Company),
		settled:    make(map[uint]bool),
		replied:    make(map[uint]bool),
		sentCounts: make(map[uint]int),
	}
}

func (s *fakeStore) SequenceByID(_ context.Context, id uint) (*models.ReminderSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sequence, ok := s.sequences[id]
	if !ok {
		return nil, fmt.Errorf("sequence %d not found", id)
	}
	return sequence, nil
}

func (s *fakeStore) OpenExecution(_ context.Context, sequenceID, invoiceID uint) (*models.SequenceExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exec := range s.executions {
		if exec.SequenceID != sequenceID || exec.InvoiceID != invoiceID {
			continue
		}
		switch exec.Status {
		case models.ExecutionPending, models.ExecutionActive, models.ExecutionError:
			cp := *exec
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LatestExecution(_ context.Context, sequenceID, invoiceID uint) (*models.SequenceExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.SequenceExecution
	for _, exec := range s.executions {
		if exec.SequenceID != sequenceID || exec.InvoiceID != invoiceID {
			continue
		}
		if latest == nil || exec.ID > latest.ID {
			latest = exec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeStore) ExecutionByID(_ context.Context, id uint) (*models.SequenceExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %d not found", id)
	}
	cp := *exec
	return &cp, nil
}

func (s *fakeStore) CreateExecution(_ context.Context, exec *models.SequenceExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	exec.ID = s.nextID
	exec.CreatedAt = s.now
	cp := *exec
	s.executions[exec.ID] = &cp
	return nil
}

func (s *fakeStore) SaveExecution(_ context.Context, exec *models.SequenceExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *exec
	s.executions[exec.ID] = &cp
	return nil
}

func (s *fakeStore) ExecutionsForSequence(_ context.Context, sequenceID uint) ([]models.SequenceExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SequenceExecution
	for _, exec := range s.executions {
		if exec.SequenceID == sequenceID {
			out = append(out, *exec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) DispatchContext(_ context.Context, invoiceID uint) (*models.Invoice, *models.Customer, *models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return nil, nil, nil, fmt.Errorf("invoice %d not found", invoiceID)
	}
	return invoice, s.customers[invoice.CustomerID], s.companies[invoice.CompanyID], nil
}

func (s *fakeStore) InvoiceSettled(_ context.Context, invoiceID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled[invoiceID], nil
}

func (s *fakeStore) CustomerRepliedSince(_ context.Context, customerID uint, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replied[customerID], nil
}

func (s *fakeStore) IncrementStepSent(_ context.Context, stepID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentCounts[stepID]++
	return nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	sent     []Dispatch
	failWith error
}

func (d *fakeDispatcher) Send(_ context.Context, dispatch Dispatch) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return "", d.failWith
	}
	d.sent = append(d.sent, dispatch)
	return fmt.Sprintf("msg-%d", len(d.sent)), nil
}

const (
	seqID     = uint(1)
	invoiceID = uint(100)
	custID    = uint(200)
	compID    = uint(300)
	step1ID   = uint(11)
	step2ID   = uint(12)
)

// Monday 2026-01-12 11:00 GST: inside business hours, a preferred send hour,
// clear of the evening prayer window.
func executorFixture() (*SequenceExecutor, *fakeStore, *fakeDispatcher, *fixedClock) {
	store := newFakeStore()
	clock := &fixedClock{now: at(2026, time.January, 12, 11, 0)}
	store.now = clock.now

	store.sequences[seqID] = &models.ReminderSequence{
		Model:    gorm.Model{ID: seqID},
		Name:     "Overdue invoices",
		IsActive: true,
		Steps: []models.SequenceStep{
			{
				Model:           gorm.Model{ID: step1ID},
				SequenceID:      seqID,
				StepNumber:      1,
				DelayDays:       0,
				Tone:            models.ToneFriendly,
				SubjectTemplate: "Reminder: invoice {{invoice_number}}",
				ContentTemplate: "Dear {{customer_name}}, invoice {{invoice_number}} for {{currency}} {{invoice_amount}} is awaiting payment.",
			},
			{
				Model:           gorm.Model{ID: step2ID},
				SequenceID:      seqID,
				StepNumber:      2,
				DelayDays:       7,
				Tone:            models.ToneFormal,
				SubjectTemplate: "Second reminder: invoice {{invoice_number}}",
				ContentTemplate: "Dear {{customer_name}}, invoice {{invoice_number}} remains outstanding.",
			},
		},
	}
	store.invoices[invoiceID] = &models.Invoice{
		Model:      gorm.Model{ID: invoiceID},
		CompanyID:  compID,
		CustomerID: custID,
		Number:     "INV-1",
		Amount:     1000,
		Currency:   "AED",
		DueDate:    time.Date(2026, time.January, 1, 0, 0, 0, 0, gst),
	}
	store.customers[custID] = &models.Customer{
		Model:    gorm.Model{ID: custID},
		Name:     "Ahmed Al Mansouri",
		Email:    "ahmed@example.ae",
		Language: "en",
		Tier:     models.TierRegular,
	}
	store.companies[compID] = &models.Company{
		Model:         gorm.Model{ID: compID},
		Name:          "Al Noor Trading LLC",
		TRN:           "100234567890003",
		Emirate:       "Dubai",
		BusinessHours: "Sunday to Thursday, 9:00 AM - 6:00 PM",
	}

	dispatcher := &fakeDispatcher{}
	executor := NewSequenceExecutor(store, dispatcher, newTestOracle(nil), nil)
	executor.Clock = clock
	return executor, store, dispatcher, clock
}

func seedExecution(store *fakeStore, status string, stepIndex int) uint {
	store.nextID++
	store.executions[store.nextID] = &models.SequenceExecution{
		Model:            gorm.Model{ID: store.nextID, CreatedAt: store.now},
		SequenceID:       seqID,
		InvoiceID:        invoiceID,
		Status:           status,
		CurrentStepIndex: stepIndex,
	}
	return store.nextID
}

func TestStartRejectsDuplicateOpenExecution(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()
	seedExecution(store, models.ExecutionError, 1) // ERROR is resumable, still owns the pair

	result, err := executor.StartSequenceExecution(context.Background(), seqID, invoiceID, "manual", nil)

	var dup *DuplicateExecutionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, seqID, dup.SequenceID)
	assert.False(t, result.Success)
	assert.Empty(t, dispatcher.sent)
}

func TestStartRejectsDoNotContact(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()
	store.customers[custID].IsDoNotContact = true

	result, err := executor.StartSequenceExecution(context.Background(), seqID, invoiceID, "manual", nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "do-not-contact")
	assert.False(t, result.Success)
	assert.Empty(t, dispatcher.sent)
	assert.Empty(t, store.executions, "no execution record for a rejected start")
}

func TestStartImmediatelyDispatchesFirstStep(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()

	result, err := executor.StartSequenceExecution(context.Background(), seqID, invoiceID, "manual",
		&StartOptions{StartImmediately: true})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.StepsExecuted)
	assert.Equal(t, 1, result.StepsRemaining)
	assert.Equal(t, "msg-1", result.DispatchID)

	require.Len(t, dispatcher.sent, 1)
	assert.Equal(t, "ahmed@example.ae", dispatcher.sent[0].Recipient)
	assert.Equal(t, "Reminder: invoice INV-1", dispatcher.sent[0].Subject)
	assert.Contains(t, dispatcher.sent[0].Content, "AED 1000.00")
	assert.Equal(t, "1", dispatcher.sent[0].Metadata["step_number"])

	saved := store.executions[result.ExecutionID]
	assert.Equal(t, models.ExecutionActive, saved.Status)
	assert.Equal(t, 1, saved.CurrentStepIndex)
	require.Len(t, saved.History, 1)
	assert.Equal(t, "msg-1", saved.History[0].DispatchID)

	// Step 2 waits 7 days; 11:00 is already a preferred hour so the minutes stick
	require.NotNil(t, result.NextExecutionAt)
	assert.Equal(t, at(2026, time.January, 19, 11, 0), *result.NextExecutionAt)
	assert.Equal(t, 1, store.sentCounts[step1ID])
}

func TestStartBeforeHoursSchedulesFirstSlot(t *testing.T) {
	executor, store, dispatcher, clock := executorFixture()
	clock.now = at(2026, time.January, 12, 8, 0)

	result, err := executor.StartSequenceExecution(context.Background(), seqID, invoiceID, "invoice_overdue", nil)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.StepsExecuted)
	assert.Equal(t, "first reminder scheduled", result.Message)
	assert.Empty(t, dispatcher.sent)

	saved := store.executions[result.ExecutionID]
	assert.Equal(t, models.ExecutionPending, saved.Status)
	require.NotNil(t, saved.NextExecutionAt)
	assert.Equal(t, at(2026, time.January, 12, 10, 0), *saved.NextExecutionAt)
}

func TestContinueStopsOnPayment(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()
	id := seedExecution(store, models.ExecutionPending, 0)
	store.settled[invoiceID] = true

	result, err := executor.ContinueSequenceExecution(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "stopped: payment_received", result.Message)
	assert.Empty(t, dispatcher.sent, "stop conditions run before any dispatch")

	saved := store.executions[id]
	assert.Equal(t, models.ExecutionStopped, saved.Status)
	assert.Equal(t, models.StopOnPayment, saved.StoppedReason)
	assert.Nil(t, saved.NextExecutionAt)
}

func TestContinueStopsOnCustomerReply(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()
	id := seedExecution(store, models.ExecutionActive, 1)
	store.replied[custID] = true

	result, err := executor.ContinueSequenceExecution(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "stopped: customer_responded", result.Message)
	assert.Empty(t, dispatcher.sent)
	assert.Equal(t, models.StopOnResponse, store.executions[id].StoppedReason)
}

func TestContinueTerminalExecutionIsNoop(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()
	id := seedExecution(store, models.ExecutionCompleted, 2)

	result, err := executor.ContinueSequenceExecution(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "already COMPLETED")
	assert.Empty(t, dispatcher.sent)
}

func TestUnresolvedPlaceholderMarksErrorButStaysResumable(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()
	store.sequences[seqID].Steps[0].ContentTemplate = "Dear {{customer_name}}, pay via {{payment_link}}."
	id := seedExecution(store, models.ExecutionPending, 0)

	result, err := executor.ContinueSequenceExecution(context.Background(), id)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, result.Success)
	assert.Empty(t, dispatcher.sent)

	saved := store.executions[id]
	assert.Equal(t, models.ExecutionError, saved.Status)
	assert.Contains(t, saved.LastError, "unresolved placeholder")
	assert.Empty(t, saved.History)
	assert.False(t, saved.IsTerminal(), "ERROR executions can be retried")
}

func TestDispatchFailureIsResumable(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()
	id := seedExecution(store, models.ExecutionPending, 0)
	dispatcher.failWith = errors.New("451 temporary failure")

	result, err := executor.ContinueSequenceExecution(context.Background(), id)

	var derr *DispatchError
	require.ErrorAs(t, err, &derr)
	assert.False(t, result.Success)

	saved := store.executions[id]
	assert.Equal(t, models.ExecutionError, saved.Status)
	assert.Empty(t, saved.History, "a step is only recorded after the dispatcher confirms")
	assert.Contains(t, saved.LastError, "dispatch failed")

	// Transport recovers, the same continuation succeeds
	dispatcher.failWith = nil
	result, err = executor.ContinueSequenceExecution(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, result.Success)

	saved = store.executions[id]
	assert.Equal(t, models.ExecutionActive, saved.Status)
	assert.Empty(t, saved.LastError)
	require.Len(t, saved.History, 1)
}

func TestFullRunCompletes(t *testing.T) {
	executor, store, dispatcher, clock := executorFixture()

	start, err := executor.StartSequenceExecution(context.Background(), seqID, invoiceID, "manual",
		&StartOptions{StartImmediately: true})
	require.NoError(t, err)
	require.Equal(t, 1, start.StepsExecuted)

	// The scheduler wakes the execution after step 2's dwell time
	clock.now = *start.NextExecutionAt
	result, err := executor.ContinueSequenceExecution(context.Background(), start.ExecutionID)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.StepsRemaining)
	assert.Nil(t, result.NextExecutionAt)

	saved := store.executions[start.ExecutionID]
	assert.Equal(t, models.ExecutionCompleted, saved.Status)
	assert.Nil(t, saved.NextExecutionAt)
	require.Len(t, saved.History, 2)
	assert.Equal(t, []int{1, 2}, []int{saved.History[0].StepNumber, saved.History[1].StepNumber})

	require.Len(t, dispatcher.sent, 2)
	assert.Equal(t, 1, store.sentCounts[step1ID])
	assert.Equal(t, 1, store.sentCounts[step2ID])
}

func TestSchedulingFailureAfterDispatchRecordsTheSend(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()

	// Step 1 dispatches fine; computing step 2's slot fails because the
	// calendar admits no send window at all.
	cfg := testCalendarConfig()
	cfg.WorkingDays = nil
	executor.Calendar = NewCalendarOracle(cfg, nil, models.DubaiPrayerTimes)
	id := seedExecution(store, models.ExecutionPending, 0)

	result, err := executor.ContinueSequenceExecution(context.Background(), id)

	require.ErrorIs(t, err, ErrNoSendWindow)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.StepsExecuted)
	require.Len(t, dispatcher.sent, 1)

	saved := store.executions[id]
	assert.Equal(t, models.ExecutionError, saved.Status)
	assert.Equal(t, 1, saved.CurrentStepIndex)
	require.Len(t, saved.History, 1, "the confirmed dispatch must be on record")
	assert.Nil(t, saved.NextExecutionAt)
	assert.Contains(t, saved.LastError, "scheduling step 2")
	assert.Equal(t, 1, store.sentCounts[step1ID])

	// A retry advances to step 2; the customer never gets step 1 twice
	result, err = executor.ContinueSequenceExecution(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, dispatcher.sent, 2)
	assert.Equal(t, "Second reminder: invoice INV-1", dispatcher.sent[1].Subject)
	assert.Equal(t, models.ExecutionCompleted, store.executions[id].Status)
}

func TestConcurrentStartsAcrossPairs(t *testing.T) {
	executor, store, dispatcher, _ := executorFixture()

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	executor.Logger = quiet

	const pairs = 300
	type pairing struct{ sequenceID, invoiceID uint }
	all := make([]pairing, 0, pairs)
	for i := 0; i < pairs; i++ {
		sid := uint(1000 + i)
		iid := uint(5000 + i)
		store.sequences[sid] = &models.ReminderSequence{
			Model:    gorm.Model{ID: sid},
			Name:     fmt.Sprintf("Ladder %d", i),
			IsActive: true,
			Steps: []models.SequenceStep{{
				Model:           gorm.Model{ID: uint(9000 + i)},
				SequenceID:      sid,
				StepNumber:      1,
				Tone:            models.ToneFriendly,
				SubjectTemplate: "Reminder: invoice {{invoice_number}}",
				ContentTemplate: "Dear {{customer_name}}, invoice {{invoice_number}} is awaiting payment.",
			}},
		}
		store.invoices[iid] = &models.Invoice{
			Model:      gorm.Model{ID: iid},
			CompanyID:  compID,
			CustomerID: custID,
			Number:     fmt.Sprintf("INV-C%d", i),
			Amount:     100,
			Currency:   "AED",
			DueDate:    time.Date(2026, time.January, 1, 0, 0, 0, 0, gst),
		}
		all = append(all, pairing{sid, iid})
	}

	// Fan out like the scheduler does: a bounded pool, one goroutine per pair
	sem := make(chan struct{}, 16)
	var wg sync.WaitGroup
	errs := make(chan error, pairs)
	for _, p := range all {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			_, err := executor.StartSequenceExecution(context.Background(), p.sequenceID, p.invoiceID,
				"invoice_overdue", &StartOptions{StartImmediately: true})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, dispatcher.sent, pairs)

	completed := 0
	for _, exec := range store.executions {
		if exec.SequenceID < 1000 {
			continue
		}
		completed++
		assert.Equal(t, models.ExecutionCompleted, exec.Status)
		assert.Len(t, exec.History, 1)
	}
	assert.Equal(t, pairs, completed, "every pair owns exactly one execution")
}

func TestExecutionStatusNoneWithoutExecution(t *testing.T) {
	executor, _, _, _ := executorFixture()

	status, err := executor.GetSequenceExecutionStatus(context.Background(), seqID, invoiceID)

	require.NoError(t, err)
	assert.Equal(t, "NONE", status.Status)
	assert.Equal(t, 2, status.TotalSteps)
}

func TestSequenceAnalytics(t *testing.T) {
	executor, store, _, _ := executorFixture()

	sent := at(2026, time.January, 12, 11, 0)
	addExec := func(status, stoppedReason string, steps ...int) {
		store.nextID++
		exec := &models.SequenceExecution{
			Model:         gorm.Model{ID: store.nextID},
			SequenceID:    seqID,
			InvoiceID:     invoiceID,
			Status:        status,
			StoppedReason: stoppedReason,
		}
		for _, n := range steps {
			exec.History = append(exec.History, models.StepCompletion{StepNumber: n, SentAt: sent})
		}
		store.executions[store.nextID] = exec
	}
	addExec(models.ExecutionStopped, models.StopOnPayment, 1, 2)
	addExec(models.ExecutionStopped, models.StopOnResponse, 1)
	addExec(models.ExecutionCompleted, "", 1, 2)

	analytics, err := executor.GetSequenceAnalytics(context.Background(), seqID)

	require.NoError(t, err)
	assert.Equal(t, 3, analytics.TotalExecutions)
	assert.InDelta(t, 1.0/3.0, analytics.ConversionRate, 1e-9)

	require.Len(t, analytics.StepAnalytics, 2)
	assert.Equal(t, 1, analytics.StepAnalytics[0].StepNumber)
	assert.Equal(t, 3, analytics.StepAnalytics[0].SentCount)
	assert.Equal(t, 1, analytics.StepAnalytics[0].ResponseCount, "the reply lands on the last step sent")
	assert.Equal(t, 2, analytics.StepAnalytics[1].SentCount)
	assert.Equal(t, 0, analytics.StepAnalytics[1].ResponseCount)
}
