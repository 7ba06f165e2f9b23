package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

type pageParams struct {
	Page    int
	PerPage int
}

// pagination parses page/per_page query params with sane bounds.
func pagination(c *gin.Context) pageParams {
	p := pageParams{Page: 1, PerPage: defaultPerPage}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	if v := c.Query("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPerPage {
			p.PerPage = n
		}
	}
	return p
}

func (p pageParams) offset() int { return (p.Page - 1) * p.PerPage }

// listMeta builds the pagination meta object for list responses.
func listMeta(p pageParams, total int64) gin.H {
	pages := total / int64(p.PerPage)
	if total%int64(p.PerPage) != 0 {
		pages++
	}
	return gin.H{
		"page":        p.Page,
		"per_page":    p.PerPage,
		"total":       total,
		"total_pages": pages,
	}
}

// slugify folds a display name into a URL-safe slug.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// pathID parses a numeric path parameter; second result is false on garbage.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
