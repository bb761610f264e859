package dag

import (
	"fmt"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/driver"
	"mini-shuffle/internal/pipe"
	"mini-shuffle/internal/udf"
)

// BuildPipeline arma el plan lazy de un JobRequest: TextFile(InputPath) seguido de los
// nodos del grafo en orden. Valida todo el grafo antes de devolver; no ejecuta nada.
func BuildPipeline(sc *driver.Context, job common.JobRequest) (*driver.Dataset, error) {
	if job.InputPath == "" {
		return nil, fmt.Errorf("job %q sin input_path: %w", job.Name, common.ErrInvalidArgument)
	}
	if job.NumPartitions < 0 {
		return nil, fmt.Errorf("job %q con %d particiones: %w", job.Name, job.NumPartitions, common.ErrInvalidArgument)
	}
	if len(job.Graph) == 0 {
		return nil, fmt.Errorf("job %q sin operaciones: %w", job.Name, common.ErrInvalidArgument)
	}

	ds := sc.TextFile(job.InputPath, job.NumPartitions)
	for _, node := range job.Graph {
		next, err := apply(ds, node)
		if err != nil {
			return nil, fmt.Errorf("nodo %s (%s): %w", node.ID, node.Type, err)
		}
		ds = next
	}
	return ds, nil
}

func apply(ds *driver.Dataset, node common.OperationNode) (*driver.Dataset, error) {
	if node.Partitions < 0 {
		return nil, fmt.Errorf("particiones = %d: %w", node.Partitions, common.ErrInvalidArgument)
	}

	switch node.Type {
	case common.OpTypeMap:
		fn, err := udf.GetMapFunction(node.UDFName)
		if err != nil {
			return nil, err
		}
		return ds.Map(driver.MapFunc(fn)), nil

	case common.OpTypeFilter:
		fn, err := udf.GetFilterFunction(node.UDFName)
		if err != nil {
			return nil, err
		}
		return ds.Filter(driver.FilterFunc(fn)), nil

	case common.OpTypeFlatMap:
		fn, err := udf.GetFlatMapFunction(node.UDFName)
		if err != nil {
			return nil, err
		}
		return ds.FlatMap(driver.FlatMapFunc(fn)), nil

	case common.OpTypeReduceByKey:
		fn, err := udf.GetCombineFunction(node.UDFName)
		if err != nil {
			return nil, err
		}
		return ds.ReduceByKey(func(a, b any) any { return fn(a, b) }, node.Partitions), nil

	case common.OpTypeGroupByKey:
		return ds.GroupByKey(node.Partitions), nil

	case common.OpTypePartitionBy:
		return ds.PartitionBy(node.Partitions), nil

	case common.OpTypePipe:
		if len(node.Command) == 0 {
			return nil, fmt.Errorf("pipe sin comando: %w", common.ErrInvalidArgument)
		}
		return ds.Pipe(node.Command, pipe.Options{}), nil

	case common.OpTypeJoin:
		// Un grafo lineal tiene un solo input; el join sólo existe en la API de Go.
		return nil, fmt.Errorf("join en un grafo lineal: %w", common.ErrUnsupportedOperation)

	default:
		return nil, fmt.Errorf("tipo %q: %w", node.Type, common.ErrUnsupportedOperation)
	}
}
