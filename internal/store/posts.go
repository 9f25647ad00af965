// File: internal/store/posts.go
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows ListPosts. Zero values mean "no constraint".
type PostFilter struct {
	ProfileID string
	Year      int
	Tag       string
	Limit     int
	Offset    int
}

// CreatePost inserts a post. Tags already present by name are reused, not
// duplicated.
func (s *Store) CreatePost(ctx context.Context, p *Post, tagNames []string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := ensureTags(tx, tagNames)
		if err != nil {
			return err
		}
		p.Tags = tags
		return tx.Create(p).Error
	}))
}

// PostByID fetches a post with tags, comments and likes preloaded.
func (s *Store) PostByID(ctx context.Context, id string) (*Post, error) {
	var p Post
	err := s.db.WithContext(ctx).
		Preload("Tags").
		Preload("Comments").
		Preload("Likes").
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListPosts returns posts matching the filter, newest first.
func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]Post, error) {
	q := s.db.WithContext(ctx).Model(&Post{}).Preload("Tags")

	if f.ProfileID != "" {
		q = q.Where("profile_id = ?", f.ProfileID)
	}
	if f.Year != 0 {
		q = q.Where("year = ?", f.Year)
	}
	if f.Tag != "" {
		q = q.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", normalizeTag(f.Tag))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var posts []Post
	err := q.Order("posts.created_at DESC").Find(&posts).Error
	return posts, translate(err)
}

// UpdatePost persists changes to description and year.
func (s *Store) UpdatePost(ctx context.Context, p *Post) error {
	res := s.db.WithContext(ctx).Model(&Post{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"description": p.Description,
			"year":        p.Year,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post and its engagement rows.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&Post{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}

// AddComment attaches a comment to a post.
func (s *Store) AddComment(ctx context.Context, c *Comment) error {
	if err := s.ensurePostExists(ctx, c.PostID); err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Create(c).Error)
}

// AddComments inserts a batch of comments in one transaction, used by the
// synthetic engagement flow.
func (s *Store) AddComments(ctx context.Context, comments []Comment) error {
	if len(comments) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(&comments).Error)
}

// LikePost records a like; liking twice is a silent no-op.
func (s *Store) LikePost(ctx context.Context, postID, userID string) error {
	if err := s.ensurePostExists(ctx, postID); err != nil {
		return err
	}
	like := Like{PostID: postID, UserID: userID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like).Error
	return translate(err)
}

// UnlikePost removes a like if present.
func (s *Store) UnlikePost(ctx context.Context, postID, userID string) error {
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&Like{}).Error
	return translate(err)
}

// TagPost attaches tags by name, creating any that are new.
func (s *Store) TagPost(ctx context.Context, postID string, tagNames []string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Post
		if err := tx.First(&p, "id = ?", postID).Error; err != nil {
			return err
		}
		tags, err := ensureTags(tx, tagNames)
		if err != nil {
			return err
		}
		return tx.Model(&p).Association("Tags").Append(tags)
	}))
}

// Years returns the distinct non-zero creation years present across posts,
// descending. Drives the archive navigation.
func (s *Store) Years(ctx context.Context) ([]int, error) {
	var years []int
	err := s.db.WithContext(ctx).Model(&Post{}).
		Where("year > 0").
		Distinct("year").
		Order("year DESC").
		Pluck("year", &years).Error
	return years, translate(err)
}

func (s *Store) ensurePostExists(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return translate(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ensureTags resolves tag names to rows, creating missing ones. Names are
// lowercased and deduplicated; empties are dropped.
func ensureTags(tx *gorm.DB, names []string) ([]Tag, error) {
	seen := map[string]bool{}
	var tags []Tag
	for _, name := range names {
		name = normalizeTag(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var tag Tag
		err := tx.Where("name = ?", name).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = Tag{Name: name}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func normalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
