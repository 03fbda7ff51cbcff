// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianVision/pkg/logging"
	"github.com/AleutianAI/AleutianVision/services/vision/classifier"
	"github.com/AleutianAI/AleutianVision/services/vision/handlers"
	"github.com/AleutianAI/AleutianVision/services/vision/middleware"
	"github.com/AleutianAI/AleutianVision/services/vision/observability"
	"github.com/AleutianAI/AleutianVision/services/vision/routes"
	"github.com/AleutianAI/AleutianVision/services/vision/storage/sqlite"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("vision-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("VISION_PORT")
	if port == "" {
		port = "12230"
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("VISION_LOG_DIR"),
		Service: "vision",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	dbPath := os.Getenv("VISION_DB_PATH")
	if dbPath == "" {
		dbPath = "predictions.db"
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		log.Fatalf("FATAL: Could not open the prediction store: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("FATAL: Could not prepare the prediction schema: %v", err)
	}
	slog.Info("Prediction store ready", "path", dbPath)

	scriptPath := os.Getenv("VISION_SCRIPT_PATH")
	if scriptPath == "" {
		scriptPath = "predict_image_rf.py"
	}
	modelPath := os.Getenv("VISION_MODEL_PATH")
	if modelPath == "" {
		modelPath = "cat_dog_classifier_rf.pkl"
	}

	var opts []classifier.Option
	if runtime := os.Getenv("VISION_PYTHON_BIN"); runtime != "" {
		opts = append(opts, classifier.WithRuntime(runtime))
	}
	if raw := os.Getenv("VISION_CLASSIFY_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			slog.Warn("VISION_CLASSIFY_TIMEOUT is invalid, classifier runs unbounded",
				"value", raw, "error", err)
		} else {
			opts = append(opts, classifier.WithTimeout(timeout))
		}
	}
	invoker := classifier.NewSubprocessInvoker(scriptPath, modelPath, opts...)

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	router := gin.Default()
	router.Use(otelgin.Middleware("vision-service"))
	router.Use(middleware.VisitorIdentity())
	router.SetHTMLTemplate(handlers.HistoryTemplate())

	routes.SetupRoutes(router, invoker, store, metrics)

	slog.Info("Starting the vision server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
