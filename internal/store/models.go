// File: internal/store/models.go

// Package store is the relational persistence layer: account, profile and
// post records plus their engagement rows, backed by gorm over sqlite or
// postgres.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an operator account able to authenticate against the API.
type User struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:text;not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Profile is a managed social-media persona. One user can own several.
type Profile struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string `gorm:"index;not null" json:"user_id"`
	Name       string `gorm:"not null" json:"name"`
	Bio        string `gorm:"type:text" json:"bio"`
	AvatarPath string `json:"avatar_path"`

	Posts []Post `gorm:"foreignKey:ProfileID" json:"posts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Post is one piece of published media with its description and the
// metadata-derived creation year. Year 0 means unknown.
type Post struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	ProfileID   string `gorm:"index;not null" json:"profile_id"`
	Description string `gorm:"type:text" json:"description"`
	MediaPath   string `json:"media_path"`
	MediaKind   string `json:"media_kind"`
	Year        int    `gorm:"index" json:"year,omitempty"`

	Tags     []Tag     `gorm:"many2many:post_tags" json:"tags,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	Likes    []Like    `gorm:"foreignKey:PostID" json:"likes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Comment is an engagement comment on a post. Synthetic marks comments
// produced by the engagement generator rather than a person; Username is
// the invented author in that case.
type Comment struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID    string `gorm:"index;not null" json:"post_id"`
	Username  string `gorm:"not null" json:"username"`
	Body      string `gorm:"type:text;not null" json:"body"`
	Synthetic bool   `gorm:"default:false" json:"synthetic"`

	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Like records one user liking one post. The composite unique index makes
// double-liking a no-op at the database level.
type Like struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID string `gorm:"uniqueIndex:idx_like_post_user;not null" json:"post_id"`
	UserID string `gorm:"uniqueIndex:idx_like_post_user;not null" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Tag is a free-form label shared across posts.
type Tag struct {
	ID   string `gorm:"primaryKey;type:uuid" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
