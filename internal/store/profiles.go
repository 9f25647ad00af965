// File: internal/store/profiles.go
package store

import (
	"context"

	"gorm.io/gorm"
)

// CreateProfile inserts a new persona for a user.
func (s *Store) CreateProfile(ctx context.Context, p *Profile) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

// ProfileByID fetches a profile with its posts preloaded.
func (s *Store) ProfileByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).
		Preload("Posts").
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ProfilesByUser lists every profile owned by the user, newest first.
func (s *Store) ProfilesByUser(ctx context.Context, userID string) ([]Profile, error) {
	var profiles []Profile
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&profiles).Error
	return profiles, translate(err)
}

// UpdateProfile persists changes to name, bio and avatar.
func (s *Store) UpdateProfile(ctx context.Context, p *Profile) error {
	res := s.db.WithContext(ctx).Model(&Profile{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":        p.Name,
			"bio":         p.Bio,
			"avatar_path": p.AvatarPath,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfile removes a profile together with its posts and their
// engagement rows, in one transaction.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var postIDs []string
		if err := tx.Model(&Post{}).Where("profile_id = ?", id).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&Like{}).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM post_tags WHERE post_id IN ?", postIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("profile_id = ?", id).Delete(&Post{}).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&Profile{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}
