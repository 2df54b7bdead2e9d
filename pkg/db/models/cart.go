package models

import "time"

// Cart is owned by exactly one of a user or an anonymous session.
type Cart struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    *int64     `gorm:"column:user_id;index"`
	SessionID *string    `gorm:"column:session_id;index"`
	IsActive  bool       `gorm:"column:is_active;not null"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

// IsGuest reports whether the cart is keyed by a session rather than a user.
func (c Cart) IsGuest() bool {
	return c.UserID == nil && c.SessionID != nil
}
