package common

type OperationNode struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	UDFName    string   `json:"udf_name"`
	Partitions int      `json:"partitions"`        // Particiones de salida para operaciones con shuffle; 0 = default
	Command    []string `json:"command,omitempty"` // Solo para PIPE: programa y argumentos
}
