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
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVision/services/vision/middleware"
	"github.com/AleutianAI/AleutianVision/services/vision/storage"
)

// historyLimit caps the records shown on the landing page.
const historyLimit = 10

// historyTemplateText is deliberately minimal; page styling belongs to
// the frontend, the core only guarantees the data on it.
const historyTemplateText = `<!DOCTYPE html>
<html>
<head><title>Cat vs Dog Classifier</title></head>
<body>
<h1>Cat vs Dog Classifier</h1>
<p>Visitor: <code>{{ .VisitorID }}</code></p>
<h2>Recent classifications</h2>
<ul>
{{- range .Records }}
<li><a href="/image/{{ .ID }}">#{{ .ID }}</a> {{ .Label }} (confidence: {{ printf "%.4f" .Confidence }}) at {{ .CreatedAt.Format "2006-01-02 15:04:05" }}</li>
{{- else }}
<li>No classifications yet.</li>
{{- end }}
</ul>
</body>
</html>
`

// HistoryTemplate returns the parsed landing page template. Install it on
// the router with SetHTMLTemplate before registering routes.
func HistoryTemplate() *template.Template {
	return template.Must(template.New("history").Parse(historyTemplateText))
}

// Home handles GET /: the caller's ten most recent records plus their
// identity, no image bytes. A store failure renders an empty history
// rather than an error page, matching the read path's best-effort shape.
func Home(store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitorID := middleware.VisitorID(c)

		records, err := store.ListRecent(c.Request.Context(), visitorID, historyLimit)
		if err != nil {
			slog.Error("Failed to list recent records", "visitor", visitorID, "error", err)
			records = nil
		}

		c.HTML(http.StatusOK, "history", gin.H{
			"VisitorID": visitorID,
			"Records":   records,
		})
	}
}
