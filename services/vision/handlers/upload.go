// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers for the vision service.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVision/pkg/validation"
	"github.com/AleutianAI/AleutianVision/services/vision/classifier"
	"github.com/AleutianAI/AleutianVision/services/vision/middleware"
	"github.com/AleutianAI/AleutianVision/services/vision/observability"
	"github.com/AleutianAI/AleutianVision/services/vision/storage"
)

// UploadImage handles POST /upload: validate the multipart upload, run the
// classifier once, persist the record best-effort, and answer with JSON.
//
// Status mapping: invalid input 400, runtime unavailable 501, every other
// classifier failure 500. A failed insert after a successful
// classification is logged and counted but does NOT fail the request -
// the caller still gets their result, only history for the item is lost.
// That trade-off is deliberate: user-visible success outranks durability
// of history.
func UploadImage(invoker classifier.Invoker, store storage.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitorID := middleware.VisitorID(c)

		fileHeader, err := c.FormFile("image")
		if err != nil {
			metrics.ClassificationsTotal.WithLabelValues(observability.OutcomeRejected, "none").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}

		if err := validation.ValidateImageFilename(fileHeader.Filename); err != nil {
			metrics.ClassificationsTotal.WithLabelValues(observability.OutcomeRejected, "none").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only image files are allowed!"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			slog.Error("Failed to open uploaded file", "error", err)
			metrics.ClassificationsTotal.WithLabelValues(observability.OutcomeError, "none").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read upload"})
			return
		}
		imageBytes, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			slog.Error("Failed to read uploaded file", "error", err)
			metrics.ClassificationsTotal.WithLabelValues(observability.OutcomeError, "none").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read upload"})
			return
		}
		if len(imageBytes) == 0 {
			metrics.ClassificationsTotal.WithLabelValues(observability.OutcomeRejected, "none").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}
		metrics.UploadBytes.Observe(float64(len(imageBytes)))

		start := time.Now()
		pred, err := invoker.Classify(c.Request.Context(), imageBytes)
		if err != nil {
			metrics.ClassificationsTotal.WithLabelValues(observability.OutcomeError, "none").Inc()
			status, message := classifyErrorResponse(err)
			slog.Error("Classification request failed",
				"visitor", visitorID, "status", status, "error", err)
			c.JSON(status, gin.H{"error": message})
			return
		}
		metrics.ClassificationDurationSeconds.Observe(time.Since(start).Seconds())
		metrics.ClassificationsTotal.WithLabelValues(observability.OutcomeSuccess, pred.Label).Inc()

		mimeType := fileHeader.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		rec := &storage.Record{
			OwnerID:    visitorID,
			Label:      pred.Label,
			Confidence: pred.Confidence,
			ImageData:  imageBytes,
			MimeType:   mimeType,
		}
		if err := store.Insert(c.Request.Context(), rec); err != nil {
			// Best-effort persistence: the classification stands, only
			// history for this item is lost.
			slog.Error("Failed to persist classification record",
				"visitor", visitorID, "label", pred.Label, "error", err)
			metrics.PersistFailuresTotal.Inc()
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"prediction": pred.Label,
			"confidence": pred.Confidence,
		})
	}
}

// classifyErrorResponse maps an invoker failure to an HTTP status and a
// generic caller-facing message. Detail stays in the server log.
func classifyErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, classifier.ErrRuntimeUnavailable):
		return http.StatusNotImplemented, "Python runtime not available in this environment"
	case errors.Is(err, classifier.ErrArtifactMissing):
		return http.StatusInternalServerError, "Model file not found"
	case errors.Is(err, classifier.ErrUnparsableOutput):
		return http.StatusInternalServerError, "Could not parse prediction result"
	default:
		return http.StatusInternalServerError, "Prediction failed"
	}
}
