package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// MonitorStore is satisfied by repository.MonitorRepository.
type MonitorStore interface {
	ListOngoingSessions(ctx context.Context) ([]model.MonitoredSession, error)
	GetAnsweredCounts(ctx context.Context) (map[uuid.UUID]int64, error)
	GetAlertCounts(ctx context.Context) (map[uuid.UUID]int64, error)
}

// MonitorService builds the reviewer monitor snapshot.
type MonitorService struct {
	monitorRepo MonitorStore
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo MonitorStore) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo}
}

// MonitorSnapshot lists ongoing sessions with their progress and alert counts.
type MonitorSnapshot struct {
	Sessions    []model.MonitoredSession `json:"sessions"`
	TotalAlerts int64                    `json:"total_alerts"`
}

// GetSnapshot runs the three monitor queries concurrently. Any failing query
// fails the snapshot so reviewers never see zeroed alert counts.
func (s *MonitorService) GetSnapshot(ctx context.Context) (*MonitorSnapshot, error) {
	var (
		sessions       []model.MonitoredSession
		answeredCounts map[uuid.UUID]int64
		alertCounts    map[uuid.UUID]int64
		sessionsErr    error
		answeredErr    error
		alertsErr      error
		wg             sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		sessions, sessionsErr = s.monitorRepo.ListOngoingSessions(ctx)
	}()
	go func() {
		defer wg.Done()
		answeredCounts, answeredErr = s.monitorRepo.GetAnsweredCounts(ctx)
	}()
	go func() {
		defer wg.Done()
		alertCounts, alertsErr = s.monitorRepo.GetAlertCounts(ctx)
	}()
	wg.Wait()

	if err := errors.Join(sessionsErr, answeredErr, alertsErr); err != nil {
		return nil, fmt.Errorf("monitor snapshot: %w", err)
	}

	snapshot := &MonitorSnapshot{Sessions: make([]model.MonitoredSession, 0, len(sessions))}
	for _, m := range sessions {
		m.AnsweredCount = answeredCounts[m.SessionID]
		m.AlertCount = alertCounts[m.SessionID]
		snapshot.TotalAlerts += m.AlertCount
		snapshot.Sessions = append(snapshot.Sessions, m)
	}
	return snapshot, nil
}
