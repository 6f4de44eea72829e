// Package worker evaluates budgets against recorded spending and raises
// alerts for budgets in warning or over state. It is driven two ways: by
// budget check messages from the broker, and by a periodic sweep across
// every user that owns a budget.
package worker

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type AlertWorker struct {
	engine *analytics.Engine
	store  *storage.Repository
	logger *log.Logger
}

func NewAlertWorker(engine *analytics.Engine, store *storage.Repository, logger *log.Logger) *AlertWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AlertWorker{
		engine: engine,
		store:  store,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleBudgetCheck re-evaluates the user's budgets for the category named in
// the message. Other categories are skipped; the sweep covers them.
func (w *AlertWorker) HandleBudgetCheck(ctx context.Context, msg *amqp.BudgetCheckMessage) error {
	entries, err := w.engine.BudgetStatus(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("evaluate budgets for user %d: %w", msg.UserID, err)
	}

	for _, entry := range entries {
		if entry.CategoryID != msg.CategoryID {
			continue
		}
		w.report(ctx, msg.UserID, entry)
	}
	return nil
}

// SweepAllBudgets evaluates every budget of every owning user. Used as a
// scheduled backstop so alerts fire even when messages were lost.
func (w *AlertWorker) SweepAllBudgets(ctx context.Context) error {
	owners, err := w.store.ListBudgetOwners(ctx)
	if err != nil {
		return fmt.Errorf("list budget owners: %w", err)
	}

	var alerts int
	for _, userID := range owners {
		entries, err := w.engine.BudgetStatus(ctx, userID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to evaluate budgets",
				log.FieldOperation, log.OpSweep,
				log.FieldUserID, userID,
				log.FieldError, err)
			continue
		}
		for _, entry := range entries {
			if w.report(ctx, userID, entry) {
				alerts++
			}
		}
	}

	w.logger.InfoContext(ctx, "Budget sweep finished",
		log.FieldOperation, log.OpSweep,
		"users", len(owners),
		"alerts", alerts)
	return nil
}

// report logs an alert for budgets past the warning threshold and returns
// whether one was raised.
func (w *AlertWorker) report(ctx context.Context, userID int64, entry analytics.BudgetStatusEntry) bool {
	switch entry.Status {
	case analytics.StatusOver:
		w.logger.WarnContext(ctx, "Budget exceeded",
			log.FieldUserID, userID,
			log.FieldBudgetID, entry.BudgetID,
			log.FieldCategoryName, entry.CategoryName,
			log.FieldPeriod, entry.Period,
			log.FieldStatus, entry.Status,
			"spent", entry.SpentAmount,
			"budget", entry.BudgetAmount,
			"used_pct", entry.PercentageUsed.Round(2))
	case analytics.StatusWarning:
		w.logger.WarnContext(ctx, "Budget nearing limit",
			log.FieldUserID, userID,
			log.FieldBudgetID, entry.BudgetID,
			log.FieldCategoryName, entry.CategoryName,
			log.FieldPeriod, entry.Period,
			log.FieldStatus, entry.Status,
			"spent", entry.SpentAmount,
			"budget", entry.BudgetAmount,
			"used_pct", entry.PercentageUsed.Round(2))
	default:
		return false
	}
	return true
}
