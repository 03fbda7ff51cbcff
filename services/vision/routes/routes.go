// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianVision/services/vision/classifier"
	"github.com/AleutianAI/AleutianVision/services/vision/handlers"
	"github.com/AleutianAI/AleutianVision/services/vision/observability"
	"github.com/AleutianAI/AleutianVision/services/vision/storage"
)

// SetupRoutes registers the vision service surface. The visitor identity
// middleware must already be installed on the router; every route below
// assumes a visitor ID is present on the request context.
func SetupRoutes(router *gin.Engine, invoker classifier.Invoker, store storage.Store,
	metrics *observability.Metrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", handlers.Home(store))
	router.GET("/image/:id", handlers.GetImage(store))
	router.POST("/upload", handlers.UploadImage(invoker, store, metrics))
}
