package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/config"
	"mini-shuffle/internal/driver"
	"mini-shuffle/internal/logger"
	"mini-shuffle/internal/sink"
	"mini-shuffle/internal/worker"
)

// Une usuarios con pedidos del archivo que genera tools/datagen.go:
//
//	U,ID,Nombre
//	O,OrderID,UserID,Producto
func main() {
	input := flag.String("input", "data/inputs/join_data.txt", "Archivo mixto de usuarios y pedidos")
	partitions := flag.Int("partitions", 4, "Particiones")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Configuracion invalida: %v", err)
	}
	cfg.DefaultPartitions = *partitions
	logger.SetLevelFromString(cfg.LogLevel)

	sc, err := driver.NewContext(cfg)
	if err != nil {
		log.Fatalf("No se pudo crear el contexto: %v", err)
	}
	ctx := context.Background()

	malformed := worker.NewCounter("lineas-invalidas")
	records := sc.TextFile(*input, *partitions).MapPartitionsWithContext(func(tc *worker.TaskContext, in []common.Entry) ([]common.Entry, error) {
		out := make([]common.Entry, 0, len(in))
		for _, e := range in {
			fields := strings.Split(e.Value.(string), ",")
			switch {
			case fields[0] == "U" && len(fields) == 3:
				out = append(out, common.Entry{Key: "U", Value: fields[1:]})
			case fields[0] == "O" && len(fields) == 4:
				out = append(out, common.Entry{Key: "O", Value: fields[1:]})
			default:
				worker.Add(tc, malformed, int64(1))
			}
		}
		return out, nil
	}, false)

	// Usuarios: (ID, Nombre). Se particionan una vez y el join reutiliza ese reparto.
	users := records.
		Filter(func(e common.Entry) bool { return e.Key == "U" }).
		Map(func(e common.Entry) (common.Entry, error) {
			f := e.Value.([]string)
			return common.Entry{Key: f[0], Value: f[1]}, nil
		}).
		PartitionBy(*partitions)
	if _, err := users.Count(ctx); err != nil {
		log.Fatalf("Error cargando usuarios: %v", err)
	}

	// Pedidos: (UserID, Producto)
	orders := records.
		Filter(func(e common.Entry) bool { return e.Key == "O" }).
		Map(func(e common.Entry) (common.Entry, error) {
			f := e.Value.([]string)
			return common.Entry{Key: f[1], Value: f[2]}, nil
		})

	// (Nombre, "Producto") -> lista de productos por usuario
	perUser := users.Join(orders, 0).
		Map(func(e common.Entry) (common.Entry, error) {
			p := e.Value.(common.Pair)
			return common.Entry{Key: p.Left, Value: p.Right}, nil
		}).
		GroupByKey(0)

	fmt.Print(perUser.Describe())
	results, err := perUser.Collect(ctx)
	if err != nil {
		log.Fatalf("Error en el join: %v", err)
	}

	out := sink.NewWriterSink(os.Stdout)
	if err := out.Write(ctx, "joindemo", results); err != nil {
		log.Fatalf("Error escribiendo resultado: %v", err)
	}
	fmt.Printf("%d usuarios, %d lineas invalidas\n", len(results), malformed.Value())

	for _, id := range sc.Jobs().ListJobs() {
		job, _ := sc.Jobs().GetJob(id)
		fmt.Printf("job %s %-28s %s, %d etapas\n", job.JobID[:8], job.Name, job.Status, len(job.Stages))
	}
}
