// File: internal/store/store_test.go
package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/mediaforge/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUserAndProfile(t *testing.T, s *Store) (*User, *Profile) {
	t.Helper()
	ctx := context.Background()
	u := &User{Email: "op@example.com", Username: "operator", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, u))
	p := &Profile{UserID: u.ID, Name: "Main Persona", Bio: "test"}
	require.NoError(t, s.CreateProfile(ctx, p))
	return u, p
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &User{Email: "a@b.c", Username: "ab", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID, "BeforeCreate should assign an id")

	t.Run("lookup by email", func(t *testing.T) {
		got, err := s.UserByEmail(ctx, "a@b.c")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("lookup by id", func(t *testing.T) {
		got, err := s.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "ab", got.Username)
	})

	t.Run("missing user maps to ErrNotFound", func(t *testing.T) {
		_, err := s.UserByEmail(ctx, "nobody@b.c")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		err := s.CreateUser(ctx, &User{Email: "a@b.c", Username: "other", PasswordHash: "h"})
		assert.Error(t, err)
	})
}

func TestPostLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, profile := seedUserAndProfile(t, s)

	post := &Post{
		ProfileID:   profile.ID,
		Description: "sunset over the bay",
		MediaPath:   "/media/sunset.jpg",
		MediaKind:   "image",
		Year:        2021,
	}
	require.NoError(t, s.CreatePost(ctx, post, []string{"Sunset", "sunset", " beach ", ""}))

	t.Run("tags deduplicated and normalized", func(t *testing.T) {
		got, err := s.PostByID(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, got.Tags, 2)
		names := []string{got.Tags[0].Name, got.Tags[1].Name}
		assert.ElementsMatch(t, []string{"sunset", "beach"}, names)
	})

	t.Run("filter by year", func(t *testing.T) {
		other := &Post{ProfileID: profile.ID, Description: "old", Year: 2015}
		require.NoError(t, s.CreatePost(ctx, other, nil))

		posts, err := s.ListPosts(ctx, PostFilter{Year: 2021})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, post.ID, posts[0].ID)
	})

	t.Run("filter by tag", func(t *testing.T) {
		posts, err := s.ListPosts(ctx, PostFilter{Tag: "BEACH"})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, post.ID, posts[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		post.Description = "sunset, revised"
		post.Year = 2022
		require.NoError(t, s.UpdatePost(ctx, post))

		got, err := s.PostByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "sunset, revised", got.Description)
		assert.Equal(t, 2022, got.Year)
	})

	t.Run("update of missing post", func(t *testing.T) {
		err := s.UpdatePost(ctx, &Post{ID: "missing"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete cascades engagement", func(t *testing.T) {
		require.NoError(t, s.AddComment(ctx, &Comment{PostID: post.ID, Username: "ana", Body: "wow"}))
		require.NoError(t, s.DeletePost(ctx, post.ID))

		_, err := s.PostByID(ctx, post.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLikes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, profile := seedUserAndProfile(t, s)

	post := &Post{ProfileID: profile.ID, Description: "likeable"}
	require.NoError(t, s.CreatePost(ctx, post, nil))

	require.NoError(t, s.LikePost(ctx, post.ID, user.ID))
	// Second like is a no-op, not an error.
	require.NoError(t, s.LikePost(ctx, post.ID, user.ID))

	got, err := s.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, 1)

	require.NoError(t, s.UnlikePost(ctx, post.ID, user.ID))
	got, err = s.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)

	t.Run("like of missing post", func(t *testing.T) {
		err := s.LikePost(ctx, "missing", user.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSyntheticComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, profile := seedUserAndProfile(t, s)

	post := &Post{ProfileID: profile.ID, Description: "commented"}
	require.NoError(t, s.CreatePost(ctx, post, nil))

	batch := []Comment{
		{PostID: post.ID, Username: "gen_ana", Body: "love this", Synthetic: true},
		{PostID: post.ID, Username: "gen_bo", Body: "amazing shot", Synthetic: true},
	}
	require.NoError(t, s.AddComments(ctx, batch))
	require.NoError(t, s.AddComments(ctx, nil))

	got, err := s.PostByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.True(t, got.Comments[0].Synthetic)
}

func TestYears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, profile := seedUserAndProfile(t, s)

	for _, y := range []int{2019, 2021, 2021, 0} {
		require.NoError(t, s.CreatePost(ctx, &Post{ProfileID: profile.ID, Year: y}, nil))
	}

	years, err := s.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2021, 2019}, years, "distinct, descending, zero excluded")
}

func TestDeleteProfileCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, profile := seedUserAndProfile(t, s)

	post := &Post{ProfileID: profile.ID, Description: "doomed"}
	require.NoError(t, s.CreatePost(ctx, post, []string{"gone"}))
	require.NoError(t, s.AddComment(ctx, &Comment{PostID: post.ID, Username: "c", Body: "b"}))
	require.NoError(t, s.LikePost(ctx, post.ID, user.ID))

	require.NoError(t, s.DeleteProfile(ctx, profile.ID))

	_, err := s.ProfileByID(ctx, profile.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.PostByID(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("deleting again", func(t *testing.T) {
		assert.ErrorIs(t, s.DeleteProfile(ctx, profile.ID), ErrNotFound)
	})
}
