package common

// JobRequest es el trabajo que llega por la API del driver.
// El grafo es una cadena lineal: cada nodo consume la salida del anterior.
type JobRequest struct {
	JobID         string          `json:"job_id"`
	Name          string          `json:"name"`       // Nombre del trabajo (ej: "WordCount-v1")
	InputPath     string          `json:"input_path"` // ej: "/data/input/texto.log"
	NumPartitions int             `json:"partitions"` // Particiones de la fuente; 0 = default de la config
	Graph         []OperationNode `json:"graph"`
}

// JobStatus es el estado de un job tal como lo guarda el JobStore y lo devuelve la API.
type JobStatus struct {
	JobID       string      `json:"job_id"`
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	ErrorMsg    string      `json:"error_msg,omitempty"`
	SubmittedAt int64       `json:"submitted_at"`
	FinishedAt  int64       `json:"finished_at,omitempty"`
	Stages      []StageInfo `json:"stages"`
	Results     []Entry     `json:"results,omitempty"`
}

// StageInfo resume una etapa ejecutada dentro de un job.
type StageInfo struct {
	StageID   string       `json:"stage_id"`
	StageType string       `json:"stage_type"`
	Tasks     int          `json:"tasks"`
	Metrics   StageMetrics `json:"metrics"`
}
