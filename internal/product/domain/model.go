package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Product struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Slug        string       `json:"slug" gorm:"type:varchar(160);not null;uniqueIndex"`
	Name        string       `json:"name" gorm:"type:varchar(255);not null"`
	Description string       `json:"description" gorm:"type:text;not null"`
	PriceCents  int64        `json:"price_cents" gorm:"not null"`
	Category    string       `json:"category" gorm:"type:varchar(64);not null;index"`
	ImageURL    *string      `json:"image_url,omitempty" gorm:"type:text"`
	IsAvailable bool         `json:"is_available" gorm:"not null;index"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }
