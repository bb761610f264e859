package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/dag"
	"mini-shuffle/internal/driver"
	"mini-shuffle/internal/logger"
	"mini-shuffle/internal/sink"
)

// Server expone el driver por HTTP: se envían jobs como grafos JSON y se consulta su estado.
type Server struct {
	Context *driver.Context
	Sink    sink.Sink // opcional: recibe el resultado de cada job exitoso

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(sc *driver.Context, out sink.Sink) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{Context: sc, Sink: out, ctx: ctx, cancel: cancel}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/jobs", s.HandleSubmitJob)
	mux.HandleFunc("GET /api/v1/jobs", s.HandleListJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.HandleGetJob)
	mux.HandleFunc("GET /api/v1/stages/{id}", s.HandleGetStage)
	return mux
}

func (s *Server) HandleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req common.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ds, err := dag.BuildPipeline(s.Context, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req.JobID = uuid.New().String()
	s.Context.Jobs().CreateJob(req.JobID, req.Name)
	logger.Info("Driver", "Job recibido: %s (%s) con %d operaciones", req.JobID, req.Name, len(req.Graph))

	s.wg.Add(1)
	go s.run(req, ds)

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": req.JobID, "status": common.JobStatusSubmitted})
}

func (s *Server) run(req common.JobRequest, ds *driver.Dataset) {
	defer s.wg.Done()

	var deliver func(string, []common.Entry) error
	if s.Sink != nil {
		deliver = func(jobID string, entries []common.Entry) error {
			return s.Sink.Write(s.ctx, jobID, entries)
		}
	}
	// CollectJob deja el estado final y los resultados en el JobStore
	if _, err := ds.CollectJob(s.ctx, req.JobID, deliver); err != nil {
		logger.Warn("Driver", "Job %s (%s) terminó con error", req.JobID, req.Name)
	}
}

func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Context.Jobs().GetJob(r.PathValue("id"))
	if errors.Is(err, common.ErrJobNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleGetStage devuelve los reportes de las tareas exitosas de una etapa.
func (s *Server) HandleGetStage(w http.ResponseWriter, r *http.Request) {
	reports := s.Context.Jobs().GetStageResults(r.PathValue("id"))
	if len(reports) == 0 {
		http.Error(w, "etapa sin tareas exitosas", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"jobs": s.Context.Jobs().ListJobs()})
}

// Shutdown cancela los jobs en curso y espera a que terminen.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Wait espera los jobs en curso sin cancelarlos.
func (s *Server) Wait() { s.wg.Wait() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Driver", "Error escribiendo respuesta: %v", err)
	}
}
