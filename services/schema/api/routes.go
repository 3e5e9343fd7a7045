// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /v1 endpoints with the given router group.
//
// Endpoints:
//
//	GET    /v1/health
//	GET    /v1/configurations
//	GET    /v1/configurations/:code/:edition
//	GET    /v1/configurations/:code/:edition/filter-keys
//	GET    /v1/configurations/:code/:edition/toc
//	GET    /v1/configurations/:code/:edition/translation-ids
//	POST   /v1/configurations/:code/:edition/form
//	POST   /v1/configurations/:code/:edition/details
//	POST   /v1/configurations/:code/:edition/list-data
//	DELETE /v1/cache/:code/:edition
//	GET    /v1/cache/stats
//
// An :edition of "latest" selects the most recent edition.
//
// Example:
//
//	v1 := router.Group("/v1")
//	api.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/health", h.HandleHealth)

	configurations := rg.Group("/configurations")
	{
		configurations.GET("", h.HandleListConfigurations)
		configurations.GET("/:code/:edition", h.HandleReport)
		configurations.GET("/:code/:edition/filter-keys", h.HandleFilterKeys)
		configurations.GET("/:code/:edition/toc", h.HandleTOC)
		configurations.GET("/:code/:edition/translation-ids", h.HandleTranslationIDs)
		configurations.POST("/:code/:edition/form", h.HandleForm)
		configurations.POST("/:code/:edition/details", h.HandleDetails)
		configurations.POST("/:code/:edition/list-data", h.HandleListData)
	}

	c := rg.Group("/cache")
	{
		c.GET("/stats", h.HandleCacheStats)
		c.DELETE("/:code/:edition", h.HandleInvalidate)
	}
}
