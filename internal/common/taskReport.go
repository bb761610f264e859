package common

type TaskReport struct {
	TaskID         string `json:"task_id"`
	JobID          string `json:"job_id"`
	StageID        string `json:"stage_id"`
	PartitionIndex int    `json:"partition_index"`
	Status         string `json:"status"` // SUCCESS, FAILURE, SKIPPED
	ErrorMsg       string `json:"error_msg,omitempty"`
	Timestamp      int64  `json:"timestamp"`   // Segundos, para facilitar el ordenamiento
	DurationMS     int64  `json:"duration_ms"` // Duración de la tarea en milisegundos

	ShuffleOutput []ShuffleMeta `json:"shuffle_outputs,omitempty"` // Buckets generados (solo SHUFFLE_MAP)
}
