package controllers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

var errorStatus = map[services.ErrorCode]int{
	services.ErrorNotFound:           http.StatusNotFound,
	services.ErrorConflict:           http.StatusConflict,
	services.ErrorInvariantViolation: http.StatusInternalServerError,
	services.ErrorUnavailable:        http.StatusServiceUnavailable,
	services.ErrorInvalid:            http.StatusBadRequest,
	services.ErrorForbidden:          http.StatusForbidden,
}

// writeError maps service errors onto HTTP. Anything unclassified is a 500 and is logged.
func writeError(c *gin.Context, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	status, ok := errorStatus[se.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": se.Message, "code": se.Code})
}

func currentPrincipal(c *gin.Context) models.Principal {
	pVal, _ := c.Get("principal")
	p, _ := pVal.(models.Principal)
	return p
}

func isAdmin(p models.Principal) bool {
	return p.Roles.Has(models.RoleAdmin)
}

func param(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return "", false
	}
	return v, true
}

type pageParams struct {
	all   bool
	limit int
	page  int
}

func readPage(c *gin.Context) pageParams {
	p := pageParams{
		all:   strings.EqualFold(c.Query("all"), "true") || c.Query("all") == "1",
		limit: 20,
		page:  1,
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.page = n
		}
	}
	return p
}

// paginate slices rows and writes the usual {data, meta} envelope.
func paginate[T any](c *gin.Context, rows []T) {
	p := readPage(c)
	total := len(rows)
	meta := gin.H{"total": total, "all": p.all}
	if !p.all {
		// Compare before multiplying so huge page or limit values cannot overflow.
		pages := total / p.limit
		if total%p.limit != 0 {
			pages++
		}
		start := total
		if p.page-1 < pages {
			start = (p.page - 1) * p.limit
		}
		end := total
		if p.limit < total-start {
			end = start + p.limit
		}
		rows = rows[start:end]
		meta["limit"] = p.limit
		meta["page"] = p.page
	}
	if rows == nil {
		rows = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "meta": meta})
}
