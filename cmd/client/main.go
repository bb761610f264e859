package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"mini-shuffle/internal/common"
)

func main() {
	driverURL := flag.String("driver", "http://localhost:8080", "URL del driver")
	input := flag.String("input", "/tmp/input_big.txt", "Archivo de entrada (se genera si no existe)")
	partitions := flag.Int("partitions", 4, "Particiones de la lectura y del reduce")
	flag.Parse()

	// 1. Generar datos de prueba
	if _, err := os.Stat(*input); os.IsNotExist(err) {
		createDummyData(*input)
	}

	// 2. Definir el Job: cadena lineal de operaciones
	job := common.JobRequest{
		Name:          "WordCount",
		InputPath:     *input,
		NumPartitions: *partitions,
		Graph: []common.OperationNode{
			// Nodo 0: descartar líneas vacías
			{ID: "stage-filter", Type: common.OpTypeFilter, UDFName: "not_empty"},
			// Nodo 1: tokenización (línea -> (palabra, 1))
			{ID: "stage-words", Type: common.OpTypeFlatMap, UDFName: "map_wordcount"},
			// Nodo 2: suma por clave (shuffle)
			{ID: "stage-reduce", Type: common.OpTypeReduceByKey, UDFName: "reduce_sum", Partitions: *partitions},
		},
	}

	// 3. Enviar el Job
	fmt.Println("Enviando Job al driver...")
	jobID, err := submitJob(*driverURL, job)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Job aceptado con ID: %s\n", jobID)

	// 4. Polling de estado
	status, err := monitorJob(*driverURL, jobID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printSummary(status)
	if status.Status != common.JobStatusSucceeded {
		os.Exit(1)
	}
}

func submitJob(baseURL string, job common.JobRequest) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	resp, err := http.Post(baseURL+"/api/v1/jobs", "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("error contactando al driver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("el driver rechazó el job: %s", strings.TrimSpace(string(body)))
	}

	var res map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	return res["job_id"], nil
}

func monitorJob(baseURL, jobID string) (common.JobStatus, error) {
	for {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s", baseURL, jobID))
		if err != nil {
			return common.JobStatus{}, fmt.Errorf("error consultando estado: %w", err)
		}

		var status common.JobStatus
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return common.JobStatus{}, err
		}

		fmt.Printf("Estado del Job: %s (%d etapas)\n", status.Status, len(status.Stages))
		if status.Status == common.JobStatusSucceeded || status.Status == common.JobStatusFailed {
			return status, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printSummary(status common.JobStatus) {
	for _, st := range status.Stages {
		fmt.Printf("  %-28s %-15s tareas=%d in=%d out=%d transferidos=%d %dms\n",
			st.StageID, st.StageType, st.Tasks,
			st.Metrics.RecordsIn, st.Metrics.RecordsOut, st.Metrics.RecordsTransferred, st.Metrics.DurationMS)
	}
	if status.ErrorMsg != "" {
		fmt.Printf("Error: %s\n", status.ErrorMsg)
		return
	}

	results := status.Results
	sort.Slice(results, func(i, j int) bool {
		return fmt.Sprint(results[i].Key) < fmt.Sprint(results[j].Key)
	})
	fmt.Printf("Resultado (%d claves):\n", len(results))
	for _, e := range results {
		fmt.Printf("  %v\n", e)
	}
}

func createDummyData(path string) {
	content := "gato perro gato raton perro gato elefante nube nube sol gato"
	// Multiplicamos para tener algo de volumen
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "No se pudo crear %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Archivo de entrada creado en %s\n", path)
}
