// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVision/services/vision/middleware"
	"github.com/AleutianAI/AleutianVision/services/vision/storage"
)

// GetImage handles GET /image/:id: stream the stored bytes with the
// declared content type and exact length. Every miss is a 404 - a record
// owned by someone else is indistinguishable from one that never existed.
func GetImage(store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitorID := middleware.VisitorID(c)

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusNotFound, "Image not found")
			return
		}

		rec, err := store.GetByID(c.Request.Context(), id, visitorID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				slog.Error("Failed to load image record", "id", id, "error", err)
			}
			c.String(http.StatusNotFound, "Image not found")
			return
		}

		c.Header("Content-Length", strconv.Itoa(len(rec.ImageData)))
		c.Data(http.StatusOK, rec.MimeType, rec.ImageData)
	}
}
