package common

// Task es el trabajo de una partición dentro de una etapa.
type Task struct {
	TaskID         string `json:"task_id"`
	JobID          string `json:"job_id"`
	StageID        string `json:"stage_id"`
	StageType      string `json:"stage_type"`
	PartitionIndex int    `json:"partition_index"`
}
