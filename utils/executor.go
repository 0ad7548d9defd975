package utils

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"tahseel/models"
)

// Clock supplies the current instant. Injectable so scheduling logic is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Dispatch is one rendered message handed to the transport.
type Dispatch struct {
	Subject   string
	Content   string
	Recipient string
	Metadata  map[string]string
}

// Dispatcher delivers a rendered reminder. Retrying failed transport calls is
// the dispatcher's contract, not the executor's.
type Dispatcher interface {
	Send(ctx context.Context, d Dispatch) (string, error)
}

// Store is the persistence collaborator. The store layer is also responsible
// for serializing concurrent continues of the same execution (lock or
// optimistic version check).
type Store interface {
	SequenceByID(ctx context.Context, id uint) (*models.ReminderSequence, error)
	OpenExecution(ctx context.Context, sequenceID, invoiceID uint) (*models.SequenceExecution, error)
	LatestExecution(ctx context.Context, sequenceID, invoiceID uint) (*models.SequenceExecution, error)
	ExecutionByID(ctx context.Context, id uint) (*models.SequenceExecution, error)
	CreateExecution(ctx context.Context, exec *models.SequenceExecution) error
	SaveExecution(ctx context.Context, exec *models.SequenceExecution) error
	ExecutionsForSequence(ctx context.Context, sequenceID uint) ([]models.SequenceExecution, error)

	DispatchContext(ctx context.Context, invoiceID uint) (*models.Invoice, *models.Customer, *models.Company, error)
	InvoiceSettled(ctx context.Context, invoiceID uint) (bool, error)
	CustomerRepliedSince(ctx context.Context, customerID uint, since time.Time) (bool, error)
	IncrementStepSent(ctx context.Context, stepID uint) error
}

// StartOptions tune the first step's timing.
type StartOptions struct {
	StartImmediately bool
	CustomStartTime  *time.Time
}

// ExecutionResult is returned by the start and continue operations.
type ExecutionResult struct {
	Success         bool       `json:"success"`
	ExecutionID     uint       `json:"execution_id,omitempty"`
	StepsExecuted   int        `json:"steps_executed"`
	StepsRemaining  int        `json:"steps_remaining"`
	DispatchID      string     `json:"dispatch_id,omitempty"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
	Message         string     `json:"message,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"` // compliance recommendations, advisory only
	Errors          []string   `json:"errors,omitempty"`
}

// ExecutionStatus is the read-only view of one (sequence, invoice) pair.
type ExecutionStatus struct {
	Status      string `json:"status"`
	CurrentStep int    `json:"current_step"`
	TotalSteps  int    `json:"total_steps"`
}

// StepAnalytics aggregates one step across completed executions.
type StepAnalytics struct {
	StepNumber    int `json:"step_number"`
	SentCount     int `json:"sent_count"`
	ResponseCount int `json:"response_count"`
}

// SequenceAnalytics aggregates a sequence's executions.
type SequenceAnalytics struct {
	TotalExecutions int             `json:"total_executions"`
	StepAnalytics   []StepAnalytics `json:"step_analytics"`
	ConversionRate  float64         `json:"conversion_rate"` // paid before completion / total
}

// SequenceExecutor drives stored reminder sequences against overdue invoices.
// It has no internal timer: an external scheduler invokes it and it runs each
// call to completion.
type SequenceExecutor struct {
	Store      Store
	Dispatcher Dispatcher
	Clock      Clock
	Calendar   *CalendarOracle
	Logger     logrus.FieldLogger
}

// NewSequenceExecutor wires an executor. A nil clock defaults to the system
// clock.
func NewSequenceExecutor(store Store, dispatcher Dispatcher, calendar *CalendarOracle, logger logrus.FieldLogger) *SequenceExecutor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SequenceExecutor{
		Store:      store,
		Dispatcher: dispatcher,
		Clock:      SystemClock{},
		Calendar:   calendar,
		Logger:     logger,
	}
}

// StartSequenceExecution creates the execution record for the pair and, when
// the computed send time has already arrived, dispatches step 1. When the
// optimal slot lies in the future the execution is persisted PENDING and the
// scheduler delivers step 1 via ContinueSequenceExecution.
func (se *SequenceExecutor) StartSequenceExecution(ctx context.Context, sequenceID, invoiceID uint, trigger string, opts *StartOptions) (*ExecutionResult, error) {
	if opts == nil {
		opts = &StartOptions{}
	}

	existing, err := se.Store.OpenExecution(ctx, sequenceID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("checking open executions: %w", err)
	}
	if existing != nil {
		dup := &DuplicateExecutionError{SequenceID: sequenceID, InvoiceID: invoiceID}
		return &ExecutionResult{Success: false, Errors: []string{dup.Error()}}, dup
	}

	sequence, steps, err := se.loadSequence(ctx, sequenceID)
	if err != nil {
		return &ExecutionResult{Success: false, Errors: []string{err.Error()}}, err
	}

	invoice, customer, _, err := se.Store.DispatchContext(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("loading dispatch context: %w", err)
	}
	if customer.IsDoNotContact {
		verr := &ValidationError{Reason: "customer is marked do-not-contact"}
		return &ExecutionResult{Success: false, Errors: []string{verr.Error()}}, verr
	}

	now := se.Clock.Now()
	sendAt, err := se.firstSendTime(now, opts)
	if err != nil {
		return &ExecutionResult{Success: false, Errors: []string{err.Error()}}, err
	}

	execution := &models.SequenceExecution{
		SequenceID:       sequenceID,
		InvoiceID:        invoiceID,
		Status:           models.ExecutionPending,
		TriggerCondition: trigger,
		NextExecutionAt:  &sendAt,
	}
	if err := se.Store.CreateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("creating execution: %w", err)
	}

	se.Logger.WithFields(logrus.Fields{
		"sequence_id": sequenceID,
		"invoice_id":  invoice.ID,
		"execution":   execution.ID,
		"send_at":     sendAt,
	}).Info("sequence execution started")

	if sendAt.After(now) {
		return &ExecutionResult{
			Success:         true,
			ExecutionID:     execution.ID,
			StepsRemaining:  len(steps),
			NextExecutionAt: &sendAt,
			Message:         "first reminder scheduled",
		}, nil
	}

	result, err := se.dispatchStep(ctx, sequence, steps, execution)
	if result != nil {
		result.ExecutionID = execution.ID
	}
	return result, err
}

// ContinueSequenceExecution re-checks stop conditions and, when none fired,
// dispatches the next step. Called by the external scheduler once the step's
// dwell time has elapsed.
func (se *SequenceExecutor) ContinueSequenceExecution(ctx context.Context, executionID uint) (*ExecutionResult, error) {
	execution, err := se.Store.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("loading execution: %w", err)
	}
	if execution.IsTerminal() {
		return &ExecutionResult{
			Success: false,
			Errors:  []string{fmt.Sprintf("execution %d is already %s", executionID, execution.Status)},
		}, nil
	}

	sequence, steps, err := se.loadSequence(ctx, execution.SequenceID)
	if err != nil {
		return &ExecutionResult{Success: false, Errors: []string{err.Error()}}, err
	}

	// Stop conditions come first, before any rendering or scheduling.
	if stopped, reason, err := se.checkStopConditions(ctx, execution, steps); err != nil {
		return nil, err
	} else if stopped {
		execution.Status = models.ExecutionStopped
		execution.StoppedReason = reason
		execution.NextExecutionAt = nil
		if err := se.Store.SaveExecution(ctx, execution); err != nil {
			return nil, fmt.Errorf("saving stopped execution: %w", err)
		}
		se.Logger.WithFields(logrus.Fields{
			"execution": execution.ID,
			"reason":    reason,
		}).Info("sequence execution stopped")
		return &ExecutionResult{
			Success:        true,
			ExecutionID:    execution.ID,
			StepsRemaining: len(steps) - execution.CurrentStepIndex,
			Message:        "stopped: " + reason,
		}, nil
	}

	result, err := se.dispatchStep(ctx, sequence, steps, execution)
	if result != nil {
		result.ExecutionID = execution.ID
	}
	return result, err
}

// GetSequenceExecutionStatus is a pure read.
func (se *SequenceExecutor) GetSequenceExecutionStatus(ctx context.Context, sequenceID, invoiceID uint) (*ExecutionStatus, error) {
	execution, err := se.Store.LatestExecution(ctx, sequenceID, invoiceID)
	if err != nil {
		return nil, err
	}
	sequence, err := se.Store.SequenceByID(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if execution == nil {
		return &ExecutionStatus{Status: "NONE", TotalSteps: len(sequence.Steps)}, nil
	}
	return &ExecutionStatus{
		Status:      execution.Status,
		CurrentStep: execution.CurrentStepIndex,
		TotalSteps:  len(sequence.Steps),
	}, nil
}

// GetSequenceAnalytics aggregates all executions of a sequence into per-step
// send/response counts and a conversion rate (paid before completion).
func (se *SequenceExecutor) GetSequenceAnalytics(ctx context.Context, sequenceID uint) (*SequenceAnalytics, error) {
	executions, err := se.Store.ExecutionsForSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	sequence, err := se.Store.SequenceByID(ctx, sequenceID)
	if err != nil {
		return nil, err
	}

	analytics := &SequenceAnalytics{TotalExecutions: len(executions)}
	paid := 0
	byStep := make(map[int]*StepAnalytics)
	for _, step := range sequence.Steps {
		byStep[step.StepNumber] = &StepAnalytics{StepNumber: step.StepNumber}
	}

	for _, exec := range executions {
		for _, completion := range exec.History {
			if s, ok := byStep[completion.StepNumber]; ok {
				s.SentCount++
			}
		}
		switch exec.StoppedReason {
		case models.StopOnPayment:
			paid++
		case models.StopOnResponse:
			if n := len(exec.History); n > 0 {
				if s, ok := byStep[exec.History[n-1].StepNumber]; ok {
					s.ResponseCount++
				}
			}
		}
	}

	numbers := make([]int, 0, len(byStep))
	for n := range byStep {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		analytics.StepAnalytics = append(analytics.StepAnalytics, *byStep[n])
	}
	if len(executions) > 0 {
		analytics.ConversionRate = float64(paid) / float64(len(executions))
	}
	return analytics, nil
}

// loadSequence fetches the definition and returns its well-formed steps in
// order. Zero well-formed steps is a validation failure.
func (se *SequenceExecutor) loadSequence(ctx context.Context, sequenceID uint) (*models.ReminderSequence, []models.SequenceStep, error) {
	sequence, err := se.Store.SequenceByID(ctx, sequenceID)
	if err != nil {
		return nil, nil, &ValidationError{Reason: fmt.Sprintf("sequence %d not found", sequenceID)}
	}
	if !sequence.IsActive {
		return nil, nil, &ValidationError{Reason: fmt.Sprintf("sequence %d is not active", sequenceID)}
	}

	steps := make([]models.SequenceStep, 0, len(sequence.Steps))
	for _, step := range sequence.Steps {
		if step.StepNumber <= 0 || step.SubjectTemplate == "" || step.ContentTemplate == "" {
			continue
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, nil, &ValidationError{Reason: fmt.Sprintf("sequence %d has no well-formed steps", sequenceID)}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	return sequence, steps, nil
}

func (se *SequenceExecutor) firstSendTime(now time.Time, opts *StartOptions) (time.Time, error) {
	switch {
	case opts.StartImmediately:
		return now, nil
	case opts.CustomStartTime != nil:
		return *opts.CustomStartTime, nil
	default:
		return se.Calendar.OptimalSendTime(now)
	}
}

// checkStopConditions evaluates the upcoming step's stop-condition set (both
// conditions when the step declares none) against external state.
func (se *SequenceExecutor) checkStopConditions(ctx context.Context, execution *models.SequenceExecution, steps []models.SequenceStep) (bool, string, error) {
	conditions := []string{models.StopOnPayment, models.StopOnResponse}
	if execution.CurrentStepIndex < len(steps) && len(steps[execution.CurrentStepIndex].StopConditions) > 0 {
		conditions = steps[execution.CurrentStepIndex].StopConditions
	}

	invoice, customer, _, err := se.Store.DispatchContext(ctx, execution.InvoiceID)
	if err != nil {
		return false, "", fmt.Errorf("loading dispatch context: %w", err)
	}

	for _, condition := range conditions {
		switch condition {
		case models.StopOnPayment:
			settled, err := se.Store.InvoiceSettled(ctx, invoice.ID)
			if err != nil {
				return false, "", err
			}
			if settled {
				return true, models.StopOnPayment, nil
			}
		case models.StopOnResponse:
			replied, err := se.Store.CustomerRepliedSince(ctx, customer.ID, execution.CreatedAt)
			if err != nil {
				return false, "", err
			}
			if replied {
				return true, models.StopOnResponse, nil
			}
		}
	}
	return false, "", nil
}

// dispatchStep renders, dispatches and persists the step at the execution's
// current index. A step is only recorded sent after the dispatcher confirms.
func (se *SequenceExecutor) dispatchStep(ctx context.Context, sequence *models.ReminderSequence, steps []models.SequenceStep, execution *models.SequenceExecution) (*ExecutionResult, error) {
	if execution.CurrentStepIndex >= len(steps) {
		execution.Status = models.ExecutionCompleted
		execution.NextExecutionAt = nil
		if err := se.Store.SaveExecution(ctx, execution); err != nil {
			return nil, fmt.Errorf("saving completed execution: %w", err)
		}
		return &ExecutionResult{Success: true, Message: "all steps already sent"}, nil
	}

	step := steps[execution.CurrentStepIndex]
	now := se.Clock.Now()

	invoice, customer, company, err := se.Store.DispatchContext(ctx, execution.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("loading dispatch context: %w", err)
	}

	vars := TemplateVars(invoice, customer, company, now)
	subject, err := RenderTemplate(step.SubjectTemplate, vars)
	if err == nil {
		var content string
		if content, err = RenderTemplate(step.ContentTemplate, vars); err == nil {
			return se.send(ctx, steps, execution, step, subject, content, customer, now)
		}
	}

	verr := &ValidationError{Reason: fmt.Sprintf("step %d: %v", step.StepNumber, err)}
	execution.Status = models.ExecutionError
	execution.LastError = verr.Error()
	if saveErr := se.Store.SaveExecution(ctx, execution); saveErr != nil {
		return nil, fmt.Errorf("saving failed execution: %w", saveErr)
	}
	return &ExecutionResult{Success: false, Errors: []string{verr.Error()}}, verr
}

func (se *SequenceExecutor) send(ctx context.Context, steps []models.SequenceStep, execution *models.SequenceExecution, step models.SequenceStep, subject, content string, customer *models.Customer, now time.Time) (*ExecutionResult, error) {
	// Advisory compliance pass; recommendations ride along as warnings and
	// never block the send.
	breakdown := CalculateScore(content, ComplianceContext{
		Language:         customer.Language,
		StepType:         step.Tone,
		RelationshipTier: customer.Tier,
		IsRamadan:        se.Calendar.IsRamadan(now),
	})

	dispatchID, err := se.Dispatcher.Send(ctx, Dispatch{
		Subject:   subject,
		Content:   content,
		Recipient: customer.Email,
		Metadata: map[string]string{
			"execution_id": fmt.Sprintf("%d", execution.ID),
			"step_number":  fmt.Sprintf("%d", step.StepNumber),
		},
	})
	if err != nil {
		derr := &DispatchError{Err: err}
		execution.Status = models.ExecutionError
		execution.LastError = derr.Error()
		if saveErr := se.Store.SaveExecution(ctx, execution); saveErr != nil {
			return nil, fmt.Errorf("saving failed execution: %w", saveErr)
		}
		se.Logger.WithFields(logrus.Fields{
			"execution": execution.ID,
			"step":      step.StepNumber,
		}).WithError(err).Error("dispatch failed")
		return &ExecutionResult{Success: false, Errors: []string{derr.Error()}}, derr
	}

	execution.History = append(execution.History, models.StepCompletion{
		StepNumber: step.StepNumber,
		SentAt:     now,
		DispatchID: dispatchID,
	})
	execution.CurrentStepIndex++
	execution.LastError = ""

	var nextAt *time.Time
	if execution.CurrentStepIndex < len(steps) {
		execution.Status = models.ExecutionActive
		next := steps[execution.CurrentStepIndex]
		base := now.AddDate(0, 0, next.DelayDays)
		optimal, err := se.Calendar.OptimalSendTime(base)
		if err != nil {
			// The dispatch is already confirmed. The record must advance
			// before the scheduling error surfaces, or a retry would send
			// this step to the customer a second time.
			execution.Status = models.ExecutionError
			execution.LastError = fmt.Sprintf("scheduling step %d: %v", next.StepNumber, err)
			execution.NextExecutionAt = nil
			if saveErr := se.Store.SaveExecution(ctx, execution); saveErr != nil {
				return nil, fmt.Errorf("saving execution after scheduling failure: %w", saveErr)
			}
			if incErr := se.Store.IncrementStepSent(ctx, step.ID); incErr != nil {
				se.Logger.WithError(incErr).Warn("failed to bump step sent counter")
			}
			return &ExecutionResult{
				Success:        false,
				StepsExecuted:  1,
				StepsRemaining: len(steps) - execution.CurrentStepIndex,
				DispatchID:     dispatchID,
				Errors:         []string{execution.LastError},
			}, err
		}
		nextAt = &optimal
	} else {
		execution.Status = models.ExecutionCompleted
	}
	execution.NextExecutionAt = nextAt

	if err := se.Store.SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("saving execution: %w", err)
	}
	if err := se.Store.IncrementStepSent(ctx, step.ID); err != nil {
		se.Logger.WithError(err).Warn("failed to bump step sent counter")
	}

	se.Logger.WithFields(logrus.Fields{
		"execution":   execution.ID,
		"step":        step.StepNumber,
		"dispatch_id": dispatchID,
		"status":      execution.Status,
	}).Info("reminder dispatched")

	return &ExecutionResult{
		Success:         true,
		StepsExecuted:   1,
		StepsRemaining:  len(steps) - execution.CurrentStepIndex,
		DispatchID:      dispatchID,
		NextExecutionAt: nextAt,
		Warnings:        breakdown.Recommendations,
	}, nil
}
