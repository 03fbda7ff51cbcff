// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the vision service.
//
// # Visitor identity
//
// Every inbound request passes through VisitorIdentity before any
// handler runs. A visitor with no identity cookie is assigned a fresh
// opaque UUID token; a returning visitor keeps the token it already has.
// The token is the only thing scoping record reads and writes - there is
// no account system and no cross-visitor read path.
//
//	Request
//	   │
//	   ▼
//	VisitorIdentity
//	   │
//	   ├─► Read visitor cookie (assign + set when absent)
//	   │
//	   └─► Store token in context
//	           │
//	           ▼
//	       Handler (retrieves via VisitorID)
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// visitorCookie is the cookie carrying the opaque visitor token.
const visitorCookie = "aleutian_vision_visitor"

// visitorKey is the gin context key for the visitor token.
// Using a namespaced key prevents collisions with other context values.
const visitorKey = "aleutian_vision_visitor_id"

// visitorCookieMaxAge keeps the identity stable across browser restarts.
const visitorCookieMaxAge = int(365 * 24 * time.Hour / time.Second)

// VisitorIdentity creates a middleware assigning a stable anonymous
// identity to every caller.
//
// Idempotent: repeat requests carrying the cookie pass through with no
// side effects. There is no error path.
func VisitorIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(visitorCookie)
		if err != nil || id == "" {
			id = uuid.NewString()
			c.SetCookie(visitorCookie, id, visitorCookieMaxAge, "/", "", false, true)
		}
		c.Set(visitorKey, id)
		c.Next()
	}
}

// VisitorID retrieves the caller's identity token from the gin context.
// Returns empty string if VisitorIdentity did not run for this request.
func VisitorID(c *gin.Context) string {
	if value, exists := c.Get(visitorKey); exists {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
