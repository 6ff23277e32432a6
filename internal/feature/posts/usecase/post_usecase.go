package usecase

import (
	"context"
	"errors"

	"social_backend/internal/feature/posts/domain/entity"
)

// PostRepository は投稿・いいねの永続化層（Content Store）を抽象化します。
type PostRepository interface {
	// Create は投稿を保存し、ID・タイムスタンプを設定します。
	Create(ctx context.Context, post *entity.Post) error
	// FindByID は投稿を取得します。存在しない場合は ErrPostNotFound を返します。
	FindByID(ctx context.Context, id uint) (*entity.Post, error)
	// List はすべての投稿を新しい順に返します。
	List(ctx context.Context) ([]entity.Post, error)
	// Update はタイトル・説明・画像参照を更新します。
	Update(ctx context.Context, post *entity.Post) (*entity.Post, error)
	// Delete は投稿と、それに紐づくいいね・コメントを同一トランザクションで削除します。
	Delete(ctx context.Context, id uint) error
	// Like はいいねを記録して like_count を1増やし、更新後の投稿を返します。
	Like(ctx context.Context, userID, postID uint) (*entity.Post, error)
}

// CommentRepository はコメントの永続化層を抽象化します。
type CommentRepository interface {
	// Create はコメントを保存します。投稿が存在しない場合は ErrPostNotFound を返します。
	Create(ctx context.Context, comment *entity.Comment) error
	FindByID(ctx context.Context, id uint) (*entity.Comment, error)
	// ListByPost は投稿のコメントを古い順に返します。
	ListByPost(ctx context.Context, postID uint) ([]entity.Comment, error)
	Delete(ctx context.Context, id uint) error
}

// postUsecase は投稿・コメント・いいねの操作を実装します。
// 変更系の操作は認証済みユーザーIDを受け取り、作成者のみに許可します。
type postUsecase struct {
	posts    PostRepository
	comments CommentRepository
}

// NewPostUsecase はpostUsecaseの新しいインスタンスを生成します。
func NewPostUsecase(posts PostRepository, comments CommentRepository) *postUsecase {
	return &postUsecase{posts: posts, comments: comments}
}

// CreatePost は新しい投稿を作成します。imageRef は nil を許容します。
func (u *postUsecase) CreatePost(ctx context.Context, authorID uint, title, description string, imageRef *string) (*entity.Post, error) {
	post := &entity.Post{
		Title:       title,
		Description: description,
		AuthorID:    authorID,
		ImageRef:    imageRef,
	}
	if err := u.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost は投稿を1件取得します。
func (u *postUsecase) GetPost(ctx context.Context, id uint) (*entity.Post, error) {
	return u.posts.FindByID(ctx, id)
}

// ListPosts はすべての投稿を新しい順に返します。
func (u *postUsecase) ListPosts(ctx context.Context) ([]entity.Post, error) {
	return u.posts.List(ctx)
}

// ownedPost は投稿を取得し、requesterID が作成者であることを確認します。
func (u *postUsecase) ownedPost(ctx context.Context, requesterID, id uint) (*entity.Post, error) {
	post, err := u.posts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		return nil, ErrForbidden
	}
	return post, nil
}

// UpdatePost は投稿のタイトルと説明を更新します。
// imageRef が nil の場合は既存の画像参照を維持します。
func (u *postUsecase) UpdatePost(ctx context.Context, requesterID, id uint, title, description string, imageRef *string) (*entity.Post, error) {
	post, err := u.ownedPost(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	post.Title = title
	post.Description = description
	if imageRef != nil {
		post.ImageRef = imageRef
	}
	return u.posts.Update(ctx, post)
}

// DeletePost は投稿と、そのコメント・いいねを削除します。
func (u *postUsecase) DeletePost(ctx context.Context, requesterID, id uint) error {
	if _, err := u.ownedPost(ctx, requesterID, id); err != nil {
		return err
	}
	return u.posts.Delete(ctx, id)
}

// LikePost はユーザーのいいねを記録します。同じユーザーの2回目は ErrAlreadyLiked になります。
func (u *postUsecase) LikePost(ctx context.Context, userID, postID uint) (*entity.Post, error) {
	return u.posts.Like(ctx, userID, postID)
}

// CreateComment は投稿にコメントを追加します。
func (u *postUsecase) CreateComment(ctx context.Context, authorID, postID uint, text string) (*entity.Comment, error) {
	comment := &entity.Comment{Text: text, AuthorID: authorID, PostID: postID}
	if err := u.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments は投稿のコメントを古い順に返します。
func (u *postUsecase) ListComments(ctx context.Context, postID uint) ([]entity.Comment, error) {
	if _, err := u.posts.FindByID(ctx, postID); err != nil {
		return nil, err
	}
	return u.comments.ListByPost(ctx, postID)
}

// DeleteComment はコメントを削除します。
// コメントは指定された投稿に属している必要があり、削除できるのはコメントの作成者か投稿の作成者です。
func (u *postUsecase) DeleteComment(ctx context.Context, requesterID, postID, commentID uint) error {
	comment, err := u.comments.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.PostID != postID {
		return ErrCommentNotFound
	}
	if comment.AuthorID != requesterID {
		post, err := u.posts.FindByID(ctx, postID)
		if err != nil && !errors.Is(err, ErrPostNotFound) {
			return err
		}
		if post == nil || post.AuthorID != requesterID {
			return ErrForbidden
		}
	}
	return u.comments.Delete(ctx, commentID)
}
