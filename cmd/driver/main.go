package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mini-shuffle/internal/api"
	"mini-shuffle/internal/config"
	"mini-shuffle/internal/driver"
	"mini-shuffle/internal/logger"
	"mini-shuffle/internal/sink"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Configuracion invalida: %v", err)
	}
	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "Direccion HTTP del driver")
	flag.IntVar(&cfg.DefaultPartitions, "partitions", cfg.DefaultPartitions, "Particiones por defecto")
	flag.IntVar(&cfg.MaxWorkers, "workers", cfg.MaxWorkers, "Tareas concurrentes por etapa")
	flag.IntVar(&cfg.MaxCollectEntries, "max-collect", cfg.MaxCollectEntries, "Limite de entradas por resultado (0 = sin limite)")
	flag.DurationVar(&cfg.PipeTimeout, "pipe-timeout", cfg.PipeTimeout, "Timeout de cada proceso externo (0 = sin limite)")
	flag.IntVar(&cfg.JobHistory, "job-history", cfg.JobHistory, "Jobs terminados que se conservan (0 = todos)")
	flag.StringVar(&cfg.AMQPURL, "amqp", cfg.AMQPURL, "URL de RabbitMQ para publicar resultados (vacio = desactivado)")
	flag.StringVar(&cfg.AMQPQueue, "queue", cfg.AMQPQueue, "Cola de resultados")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error, quiet")
	flag.Parse()

	logger.SetLevelFromString(cfg.LogLevel)

	sc, err := driver.NewContext(cfg)
	if err != nil {
		log.Fatalf("No se pudo crear el contexto: %v", err)
	}

	var out sink.Sink
	if cfg.AMQPURL != "" {
		amqpSink, err := sink.NewAMQPSink(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			log.Fatalf("No se pudo conectar a RabbitMQ: %v", err)
		}
		defer amqpSink.Close()
		out = amqpSink
	}

	server := api.NewServer(sc, out)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server.Routes()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Driver", "Driver iniciado en %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error del servidor HTTP: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Driver", "Apagando...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Driver", "Shutdown HTTP: %v", err)
	}
	server.Shutdown()
}
