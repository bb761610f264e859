package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"mini-shuffle/internal/common"
)

// Config agrupa los parámetros del motor. Los binarios de cmd/ parten de FromEnv()
// y luego aplican sus flags encima.
type Config struct {
	// DefaultPartitions se usa cuando una operación no pide un número de particiones.
	// La heurística habitual es "al menos el doble de núcleos"; es tuning, no corrección.
	DefaultPartitions int
	// MaxWorkers limita cuántas tareas de una etapa corren a la vez.
	MaxWorkers int
	// MaxCollectEntries corta Collect con ErrResultTooLarge. 0 = sin límite.
	MaxCollectEntries int
	// PipeTimeout limita cada proceso externo de un Pipe. 0 = sin límite.
	PipeTimeout time.Duration
	// JobHistory es cuántos jobs terminados guarda el JobStore, con sus etapas y
	// reportes de tareas. 0 = sin límite.
	JobHistory int

	LogLevel   string
	ListenAddr string

	// AMQPURL vacío desactiva la publicación de resultados en RabbitMQ.
	AMQPURL   string
	AMQPQueue string
}

// Default devuelve la configuración base para la máquina actual.
func Default() Config {
	cores := runtime.NumCPU()
	return Config{
		DefaultPartitions: 2 * cores,
		MaxWorkers:        cores,
		MaxCollectEntries: 0,
		PipeTimeout:       0,
		JobHistory:        256,
		LogLevel:          "info",
		ListenAddr:        ":8080",
		AMQPQueue:         "mini-shuffle-results",
	}
}

// FromEnv parte de Default() y aplica las variables de entorno definidas.
func FromEnv() (Config, error) {
	cfg := Default()

	var err error
	if cfg.DefaultPartitions, err = getEnvInt("SHUFFLE_PARTITIONS", cfg.DefaultPartitions); err != nil {
		return cfg, err
	}
	if cfg.MaxWorkers, err = getEnvInt("SHUFFLE_MAX_WORKERS", cfg.MaxWorkers); err != nil {
		return cfg, err
	}
	if cfg.MaxCollectEntries, err = getEnvInt("SHUFFLE_MAX_COLLECT", cfg.MaxCollectEntries); err != nil {
		return cfg, err
	}
	if cfg.JobHistory, err = getEnvInt("SHUFFLE_JOB_HISTORY", cfg.JobHistory); err != nil {
		return cfg, err
	}
	if v := os.Getenv("SHUFFLE_PIPE_TIMEOUT"); v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			return cfg, fmt.Errorf("SHUFFLE_PIPE_TIMEOUT invalido %q: %w", v, common.ErrInvalidArgument)
		}
		cfg.PipeTimeout = d
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.ListenAddr = getEnv("SHUFFLE_LISTEN_ADDR", cfg.ListenAddr)
	cfg.AMQPURL = getEnv("RABBITMQ_URL", cfg.AMQPURL)
	cfg.AMQPQueue = getEnv("RABBITMQ_QUEUE", cfg.AMQPQueue)

	return cfg, cfg.Validate()
}

// Validate verifica que los valores tengan sentido.
func (c Config) Validate() error {
	if c.DefaultPartitions <= 0 {
		return fmt.Errorf("DefaultPartitions debe ser mayor a cero (%d): %w", c.DefaultPartitions, common.ErrInvalidArgument)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("MaxWorkers debe ser mayor a cero (%d): %w", c.MaxWorkers, common.ErrInvalidArgument)
	}
	if c.MaxCollectEntries < 0 {
		return fmt.Errorf("MaxCollectEntries no puede ser negativo (%d): %w", c.MaxCollectEntries, common.ErrInvalidArgument)
	}
	if c.JobHistory < 0 {
		return fmt.Errorf("JobHistory no puede ser negativo (%d): %w", c.JobHistory, common.ErrInvalidArgument)
	}
	if c.PipeTimeout < 0 {
		return fmt.Errorf("PipeTimeout no puede ser negativo (%s): %w", c.PipeTimeout, common.ErrInvalidArgument)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s invalido %q: %w", key, value, common.ErrInvalidArgument)
	}
	return n, nil
}
