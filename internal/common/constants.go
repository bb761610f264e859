package common

// --- 1. Definicion de Constantes (Tipos de Operaciones, Estados de Jobs y Tareas) ---

// Tipos de Operaciones (OperationNode.Type)
const (
	OpTypeMap         = "MAP"
	OpTypeFilter      = "FILTER"
	OpTypeFlatMap     = "FLAT_MAP"
	OpTypeReduceByKey = "REDUCE_BY_KEY"
	OpTypeGroupByKey  = "GROUP_BY_KEY"
	OpTypePartitionBy = "PARTITION_BY"
	OpTypeJoin        = "JOIN"
	OpTypePipe        = "PIPE"
)

// Tipos de Etapa (Task.StageType). Una etapa SHUFFLE_MAP reparte, una SHUFFLE_REDUCE
// consume lo repartido, y una NARROW no cruza particiones.
const (
	StageTypeNarrow        = "NARROW"
	StageTypeShuffleMap    = "SHUFFLE_MAP"
	StageTypeShuffleReduce = "SHUFFLE_REDUCE"
	StageTypeJoin          = "JOIN"
)

// Estados de un Job (JobStatus.Status)
const (
	JobStatusSubmitted = "SUBMITTED"
	JobStatusRunning   = "RUNNING"
	JobStatusSucceeded = "SUCCEEDED"
	JobStatusFailed    = "FAILED"
)

// Estados de una Tarea (TaskReport.Status)
const (
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailure = "FAILURE"
	TaskStatusSkipped = "SKIPPED" // Cancelada antes de empezar porque otra tarea de la etapa falló
)
