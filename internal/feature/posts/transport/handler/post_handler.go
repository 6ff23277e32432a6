// Package handler はpostsフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	"social_backend/internal/api"
	"social_backend/internal/feature/posts/domain/entity"
	"social_backend/internal/feature/posts/usecase"
	jwtmw "social_backend/internal/platform/jwt"
	"social_backend/internal/platform/storage"
)

// imageField はマルチパートフォームの画像フィールド名です。
const imageField = "image"

// PostUsecase は投稿・コメント・いいねのユースケースを定義します。
type PostUsecase interface {
	CreatePost(ctx context.Context, authorID uint, title, description string, imageRef *string) (*entity.Post, error)
	GetPost(ctx context.Context, id uint) (*entity.Post, error)
	ListPosts(ctx context.Context) ([]entity.Post, error)
	UpdatePost(ctx context.Context, requesterID, id uint, title, description string, imageRef *string) (*entity.Post, error)
	DeletePost(ctx context.Context, requesterID, id uint) error
	LikePost(ctx context.Context, userID, postID uint) (*entity.Post, error)
	CreateComment(ctx context.Context, authorID, postID uint, text string) (*entity.Comment, error)
	ListComments(ctx context.Context, postID uint) ([]entity.Comment, error)
	DeleteComment(ctx context.Context, requesterID, postID, commentID uint) error
}

// QueryUsecase は検索・絞り込み・ランキングを定義します。
type QueryUsecase interface {
	Search(ctx context.Context, query string) ([]entity.Post, error)
	Filter(ctx context.Context, f entity.PostFilter) ([]entity.Post, error)
	MostLiked(ctx context.Context, page, limit int) ([]entity.Post, error)
}

// ImageStore はアップロードされた画像を保存し、参照を返します。
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// PostHandler は投稿関連のHTTPリクエストを処理します。
type PostHandler struct {
	posts  PostUsecase
	query  QueryUsecase
	images ImageStore
}

// NewPostHandler はPostHandlerの新しいインスタンスを生成します。
func NewPostHandler(posts PostUsecase, query QueryUsecase, images ImageStore) *PostHandler {
	return &PostHandler{posts: posts, query: query, images: images}
}

// statusFor はユースケースのエラーをHTTPステータスとメッセージに変換します。
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrPostNotFound):
		return http.StatusNotFound, "post not found"
	case errors.Is(err, usecase.ErrCommentNotFound):
		return http.StatusNotFound, "comment not found"
	case errors.Is(err, usecase.ErrAlreadyLiked):
		return http.StatusBadRequest, usecase.ErrAlreadyLiked.Error()
	case errors.Is(err, usecase.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, storage.ErrUnsupportedImage):
		return http.StatusBadRequest, storage.ErrUnsupportedImage.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func abortWith(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("posts request failed", "error", err, "path", c.FullPath(), "remote_addr", c.ClientIP())
	}
	c.JSON(status, api.ErrorResponse{Error: msg})
}

// pathID はパスパラメータを正の整数として読み取ります。
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := jwtmw.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
	}
	return userID, ok
}

// saveImage はフォームに画像があれば保存して参照を返します。画像がなければ nil です。
func (h *PostHandler) saveImage(c *gin.Context) (*string, error) {
	fh, err := c.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ref, err := h.storeFile(c.Request.Context(), fh)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (h *PostHandler) storeFile(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.images.Save(ctx, fh.Filename, f)
}

// discardImage はユースケースが失敗したときに保存済みの画像を削除します。
func (h *PostHandler) discardImage(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if err := h.images.Remove(ctx, *ref); err != nil {
		slog.Warn("failed to remove orphaned image", "error", err, "image", *ref)
	}
}

// ListPosts はすべての投稿を新しい順に返します。
func (h *PostHandler) ListPosts(c *gin.Context) {
	posts, err := h.posts.ListPosts(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost は投稿を1件返します。
func (h *PostHandler) GetPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	post, err := h.posts.GetPost(c.Request.Context(), id)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost はマルチパートフォーム（title, description, 任意の image）から投稿を作成します。
func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var form api.PostForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	imageRef, err := h.saveImage(c)
	if err != nil {
		slog.Warn("image upload failed", "error", err, "remote_addr", c.ClientIP())
		abortWith(c, err)
		return
	}
	post, err := h.posts.CreatePost(c.Request.Context(), userID, form.Title, form.Description, imageRef)
	if err != nil {
		h.discardImage(c.Request.Context(), imageRef)
		abortWith(c, err)
		return
	}
	slog.Info("post created", "post_id", post.ID, "author_id", userID)
	c.JSON(http.StatusCreated, post)
}

// UpdatePost は投稿を更新します。画像が送られなければ既存の画像を維持します。
func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var form api.PostForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	imageRef, err := h.saveImage(c)
	if err != nil {
		slog.Warn("image upload failed", "error", err, "remote_addr", c.ClientIP())
		abortWith(c, err)
		return
	}
	post, err := h.posts.UpdatePost(c.Request.Context(), userID, id, form.Title, form.Description, imageRef)
	if err != nil {
		h.discardImage(c.Request.Context(), imageRef)
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost は投稿とそのコメント・いいねを削除します。
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.posts.DeletePost(c.Request.Context(), userID, id); err != nil {
		abortWith(c, err)
		return
	}
	slog.Info("post deleted", "post_id", id, "author_id", userID)
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Post deleted successfully"})
}

// LikePost は投稿にいいねし、更新後の投稿を返します。
func (h *PostHandler) LikePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	post, err := h.posts.LikePost(c.Request.Context(), userID, id)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreateComment は投稿にコメントを追加します。
func (h *PostHandler) CreateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req api.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	comment, err := h.posts.CreateComment(c.Request.Context(), userID, postID, req.Text)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListComments は投稿のコメントを古い順に返します。
func (h *PostHandler) ListComments(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	comments, err := h.posts.ListComments(c.Request.Context(), postID)
	if err != nil {
		abortWith(c, err)
		return
	}
	if len(comments) == 0 {
		c.JSON(http.StatusOK, api.MessageResponse{Message: "No comments found for this post"})
		return
	}
	c.JSON(http.StatusOK, comments)
}

// DeleteComment はコメントを削除します。
func (h *PostHandler) DeleteComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	commentID, ok := pathID(c, "commentId")
	if !ok {
		return
	}
	if err := h.posts.DeleteComment(c.Request.Context(), userID, postID, commentID); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Comment deleted successfully"})
}

// SearchPosts はタイトルまたは説明にクエリを含む投稿を返します。
//
// エンドポイント例:
// GET /api/posts/search?query=golang
func (h *PostHandler) SearchPosts(c *gin.Context) {
	q := c.Query("query")
	if q == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "search query is required"})
		return
	}
	posts, err := h.query.Search(c.Request.Context(), q)
	if err != nil {
		abortWith(c, err)
		return
	}
	if len(posts) == 0 {
		c.JSON(http.StatusOK, api.MessageResponse{Message: "No match found"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

// FilterPosts は作成者・期間で投稿を絞り込みます。
//
// エンドポイント例:
// GET /api/posts/filter?author=1&startDate=2024-01-01&endDate=2024-01-31&sortByRecent=true&page=2&limit=5
func (h *PostHandler) FilterPosts(c *gin.Context) {
	var p api.FilterParams
	q := c.Request.URL.Query()
	params := []struct {
		name string
		dest any
	}{
		{"author", &p.Author},
		{"startDate", &p.StartDate},
		{"endDate", &p.EndDate},
		{"sortByRecent", &p.SortByRecent},
		{"page", &p.Page},
		{"limit", &p.Limit},
	}
	for _, param := range params {
		if err := runtime.BindQueryParameter("form", true, false, param.name, q, param.dest); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid " + param.name})
			return
		}
	}

	f, err := toPostFilter(p)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	posts, err := h.query.Filter(c.Request.Context(), f)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// toPostFilter はクエリパラメータをドメインのフィルタに変換します。
// endDate はその日の終わりまでを含みます。
func toPostFilter(p api.FilterParams) (entity.PostFilter, error) {
	var f entity.PostFilter
	if p.Author != nil {
		if *p.Author <= 0 {
			return f, errors.New("invalid author")
		}
		author := uint(*p.Author)
		f.AuthorID = &author
	}
	if p.StartDate != nil {
		start := p.StartDate.Time.UTC()
		f.StartDate = &start
	}
	if p.EndDate != nil {
		end := p.EndDate.Time.UTC().AddDate(0, 0, 1).Add(-time.Nanosecond)
		f.EndDate = &end
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, errors.New("endDate must not be before startDate")
	}
	if p.SortByRecent != nil {
		f.SortByRecent = *p.SortByRecent
	}
	if p.Page != nil {
		f.Page = *p.Page
	}
	if p.Limit != nil {
		f.Limit = *p.Limit
	}
	return f, nil
}

// MostLikedPosts はいいね数のランキングを返します。
//
// エンドポイント例:
// GET /api/posts/mostliked?page=1&limit=10
func (h *PostHandler) MostLikedPosts(c *gin.Context) {
	var p api.PageParams
	q := c.Request.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &p.Page); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid page"})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid limit"})
		return
	}

	var page, limit int
	if p.Page != nil {
		page = *p.Page
	}
	if p.Limit != nil {
		limit = *p.Limit
	}
	posts, err := h.query.MostLiked(c.Request.Context(), page, limit)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}
