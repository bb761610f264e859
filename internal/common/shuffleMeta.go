package common

// ShuffleMeta describe lo que una tarea del lado map dejó para una partición destino.
type ShuffleMeta struct {
	PartitionKey int `json:"partition_key"` // ID de la partición destino (0 a N-1)
	Records      int `json:"records"`       // Entradas en el bucket después del pre-combine
}

// StageMetrics agrega los contadores de todas las tareas de una etapa.
// Se llena en la barrera, nunca mientras las tareas corren.
type StageMetrics struct {
	RecordsIn          int64 `json:"records_in"`
	RecordsOut         int64 `json:"records_out"`
	RecordsTransferred int64 `json:"records_transferred"` // Entradas que cambiaron de partición
	DurationMS         int64 `json:"duration_ms"`
}

// Merge combina dos métricas; es conmutativa y asociativa salvo DurationMS, que toma el máximo.
func (m StageMetrics) Merge(other StageMetrics) StageMetrics {
	return StageMetrics{
		RecordsIn:          m.RecordsIn + other.RecordsIn,
		RecordsOut:         m.RecordsOut + other.RecordsOut,
		RecordsTransferred: m.RecordsTransferred + other.RecordsTransferred,
		DurationMS:         max(m.DurationMS, other.DurationMS),
	}
}
