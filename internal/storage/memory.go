package storage

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"mini-shuffle/internal/common"
)

// JobStore guarda el historial de jobs del driver: estado, etapas y reportes de tareas.
type JobStore struct {
	mu           sync.RWMutex
	Jobs         map[string]*common.JobStatus
	TaskReports  map[string]common.TaskReport   // TaskID -> Report
	StageReports map[string][]common.TaskReport // StageID -> Lista de reportes exitosos
	stageTasks   map[string][]string            // StageID -> TaskIDs, para podar TaskReports
	order        []string                       // JobIDs en orden de creación
	// historyLimit es cuántos jobs terminados se conservan. 0 = todos.
	historyLimit int
}

func NewJobStore() *JobStore {
	return &JobStore{
		Jobs:         make(map[string]*common.JobStatus),
		TaskReports:  make(map[string]common.TaskReport),
		StageReports: make(map[string][]common.TaskReport),
		stageTasks:   make(map[string][]string),
	}
}

// SetHistoryLimit fija cuántos jobs terminados se conservan. Al pasar el límite se
// descartan los más viejos junto con sus etapas y reportes. 0 = sin límite.
func (s *JobStore) SetHistoryLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyLimit = max(n, 0)
	s.pruneLocked()
}

// CreateJob registra un job nuevo en estado SUBMITTED.
func (s *JobStore) CreateJob(jobID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Jobs[jobID]; !exists {
		s.order = append(s.order, jobID)
	}
	s.Jobs[jobID] = &common.JobStatus{
		JobID:       jobID,
		Name:        name,
		Status:      common.JobStatusSubmitted,
		SubmittedAt: time.Now().Unix(),
	}
}

// SetStatus cambia el estado de un job. Los estados finales fijan FinishedAt.
func (s *JobStore) SetStatus(jobID, status string, jobErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.Jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, common.ErrJobNotFound)
	}
	job.Status = status
	if jobErr != nil {
		job.ErrorMsg = jobErr.Error()
	}
	if isFinal(status) {
		job.FinishedAt = time.Now().Unix()
		s.pruneLocked()
	}
	return nil
}

func isFinal(status string) bool {
	return status == common.JobStatusSucceeded || status == common.JobStatusFailed
}

// pruneLocked descarta los jobs terminados más viejos que excedan historyLimit.
// Los jobs en curso no se tocan.
func (s *JobStore) pruneLocked() {
	if s.historyLimit == 0 {
		return
	}
	finished := 0
	for _, id := range s.order {
		if isFinal(s.Jobs[id].Status) {
			finished++
		}
	}
	excess := finished - s.historyLimit
	if excess <= 0 {
		return
	}

	kept := s.order[:0]
	for _, id := range s.order {
		job := s.Jobs[id]
		if excess > 0 && isFinal(job.Status) {
			s.dropJobLocked(job)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	clear(s.order[len(kept):])
	s.order = kept
}

func (s *JobStore) dropJobLocked(job *common.JobStatus) {
	for _, st := range job.Stages {
		for _, taskID := range s.stageTasks[st.StageID] {
			delete(s.TaskReports, taskID)
		}
		delete(s.stageTasks, st.StageID)
		delete(s.StageReports, st.StageID)
	}
	delete(s.Jobs, job.JobID)
}

// SetResults guarda el resultado materializado de un job.
func (s *JobStore) SetResults(jobID string, results []common.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.Jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, common.ErrJobNotFound)
	}
	job.Results = results
	return nil
}

// RecordStage agrega la información de una etapa terminada (con o sin éxito).
func (s *JobStore) RecordStage(jobID string, info common.StageInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.Jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, common.ErrJobNotFound)
	}
	job.Stages = append(job.Stages, info)
	return nil
}

func (s *JobStore) SaveTaskReport(stageID string, report common.TaskReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TaskReports[report.TaskID] = report
	s.stageTasks[stageID] = append(s.stageTasks[stageID], report.TaskID)
	if report.Status == common.TaskStatusSuccess {
		s.StageReports[stageID] = append(s.StageReports[stageID], report)
	}
}

// CheckStageComplete verifica si todas las tareas de una etapa han terminado exitosamente
func (s *JobStore) CheckStageComplete(stageID string, expectedTasks int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reports, exists := s.StageReports[stageID]
	if !exists {
		return expectedTasks == 0
	}
	return len(reports) == expectedTasks
}

func (s *JobStore) GetStageResults(stageID string) []common.TaskReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.StageReports[stageID])
}

// GetJob devuelve una copia del estado del job.
func (s *JobStore) GetJob(jobID string) (common.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.Jobs[jobID]
	if !ok {
		return common.JobStatus{}, fmt.Errorf("job %s: %w", jobID, common.ErrJobNotFound)
	}
	cp := *job
	cp.Stages = slices.Clone(job.Stages)
	cp.Results = slices.Clone(job.Results)
	return cp, nil
}

// ListJobs devuelve los IDs en orden de creación.
func (s *JobStore) ListJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}
