package db

import (
	"context"
	"fmt"

	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// CreateRun inserts a new task run record.
func (d *Database) CreateRun(ctx context.Context, run *models.TaskRun) error {
	return d.DB.WithContext(ctx).Create(run).Error
}

// SaveRun writes the current state of a run back to the store.
func (d *Database) SaveRun(ctx context.Context, run *models.TaskRun) error {
	return d.DB.WithContext(ctx).Save(run).Error
}

// RunsForTask returns every recorded run for a task, oldest round first.
func (d *Database) RunsForTask(ctx context.Context, task string) ([]models.TaskRun, error) {
	var runs []models.TaskRun
	err := d.DB.WithContext(ctx).
		Where("task = ?", task).
		Order("round ASC, created_at ASC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", task, err)
	}
	return runs, nil
}
