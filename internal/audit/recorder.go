package audit

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"universo_lite/internal/auth"
	"universo_lite/internal/models"
)

// Entry describes one auditable action. Meta is marshalled into the JSON
// metadata column as-is.
type Entry struct {
	ClusterID  int64
	UserID     int64
	Action     string
	EntityType string
	EntityID   int64
	Meta       map[string]interface{}
	IP         string
	UserAgent  string
	ActorName  string
}

// Record persists an audit entry. Audit writes are best-effort: a failure
// must never fail the request that triggered it, so the error is returned
// for logging but callers typically ignore it.
func Record(db *gorm.DB, e Entry) error {
	var metaJSON datatypes.JSON
	if e.Meta != nil {
		if b, err := json.Marshal(e.Meta); err == nil {
			metaJSON = datatypes.JSON(b)
		}
	}
	row := models.AuditLog{
		ClusterID:  e.ClusterID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Metadata:   metaJSON,
		IP:         e.IP,
		UserAgent:  e.UserAgent,
		ActorName:  e.ActorName,
		CreatedAt:  time.Now(),
	}
	return db.Create(&row).Error
}

// FromRequest fills an Entry with the request's actor and client details.
func FromRequest(c *gin.Context, db *gorm.DB, e Entry) Entry {
	e.IP = c.ClientIP()
	e.UserAgent = c.GetHeader("User-Agent")
	if cl, ok := auth.ClaimsFrom(c); ok {
		e.UserID = cl.UserID
		var u models.User
		if err := db.First(&u, cl.UserID).Error; err == nil {
			e.ActorName = u.Name
		}
	}
	return e
}
