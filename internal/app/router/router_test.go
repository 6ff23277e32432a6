package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"social_backend/internal/app/di"
	authadapters "social_backend/internal/feature/auth/adapters"
	authhandler "social_backend/internal/feature/auth/transport/handler"
	authusecase "social_backend/internal/feature/auth/usecase"
	postsadapters "social_backend/internal/feature/posts/adapters"
	postshandler "social_backend/internal/feature/posts/transport/handler"
	postsusecase "social_backend/internal/feature/posts/usecase"
	"social_backend/internal/platform/db"
	jwtmw "social_backend/internal/platform/jwt"
	"social_backend/internal/platform/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// outbox は送信されたメールを保持するテスト用 EmailSender です。
type outbox struct {
	mu   sync.Mutex
	sent []authusecase.Email
}

func (o *outbox) Send(_ context.Context, e authusecase.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, e)
	return nil
}

var codePattern = regexp.MustCompile(`\b[0-9a-f]{6}\b`)

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	code := codePattern.FindString(o.sent[len(o.sent)-1].Body)
	require.NotEmpty(t, code)
	return code
}

type testApp struct {
	router *gin.Engine
	mail   *outbox
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), db.GormConfig())
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb, append(authadapters.Models(), postsadapters.Models()...)...))

	images, err := storage.NewLocalImageStore(t.TempDir())
	require.NoError(t, err)

	issuer := jwtmw.NewIssuer("test-secret", time.Hour)
	users := authadapters.NewUserGorm(gdb)
	mail := &outbox{}

	postStore := di.NewPostStore(nil, gdb)
	authUC := authusecase.NewAuthUsecase(users, issuer)
	recoveryUC := authusecase.NewRecoveryUsecase(users, mail, issuer, nil)
	postUC := postsusecase.NewPostUsecase(postStore, postsadapters.NewCommentGorm(gdb))
	queryUC := postsusecase.NewQueryUsecase(postStore)

	r := NewRouter(Deps{
		Auth:     authhandler.NewAuthHandler(authUC, recoveryUC, issuer.Expiration()),
		Posts:    postshandler.NewPostHandler(postUC, queryUC, images),
		Verifier: issuer,
		DB:       sqlDB,
		ImageDir: images.Dir(),
	})
	return &testApp{router: r, mail: mail}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// signup は登録してログインし、トークンを返します。
func (a *testApp) signup(t *testing.T, email, password string) string {
	t.Helper()
	w, _ := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := resp.(map[string]any)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (a *testApp) createPost(t *testing.T, token, title string) uint {
	t.Helper()
	w, resp := a.do(t, http.MethodPost, "/api/posts", token, gin.H{"title": title, "description": "about " + title})
	require.Equal(t, http.StatusCreated, w.Code)
	return uint(resp.(map[string]any)["id"].(float64))
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	app := setupApp(t)

	w, resp := app.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, resp)
}

func TestRouter_RegisterLogin(t *testing.T) {
	t.Parallel()

	app := setupApp(t)
	token := app.signup(t, "alice@example.com", "password123")

	w, resp := app.do(t, http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", resp.(map[string]any)["email"])

	w, _ = app.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": "alice@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 存在しないメールと誤ったパスワードは区別できない
	wrongPw, respPw := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"})
	unknown, respUnknown := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "bob@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, wrongPw.Code, unknown.Code)
	assert.Equal(t, respPw, respUnknown)

	w, _ = app.do(t, http.MethodGet, "/api/users/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_PasswordReset(t *testing.T) {
	t.Parallel()

	app := setupApp(t)
	app.signup(t, "carol@example.com", "password123")

	w, _ := app.do(t, http.MethodPost, "/api/auth/forgotpassword", "", gin.H{"email": "carol@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	code := app.mail.lastCode(t)

	w, _ = app.do(t, http.MethodPost, "/api/auth/verifycode", "", gin.H{"code": code})
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp := app.do(t, http.MethodPut, "/api/auth/resetpassword", "", gin.H{"code": code, "password": "new-password"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.(map[string]any)["token"])

	// コードは一度しか使えない
	w, _ = app.do(t, http.MethodPut, "/api/auth/resetpassword", "", gin.H{"code": code, "password": "another-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "carol@example.com", "password": "new-password"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(t, http.MethodPost, "/api/auth/forgotpassword", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_PostLifecycle(t *testing.T) {
	t.Parallel()

	app := setupApp(t)
	alice := app.signup(t, "alice@example.com", "password123")
	bob := app.signup(t, "bob@example.com", "password123")

	w, _ := app.do(t, http.MethodPost, "/api/posts", "", gin.H{"title": "t", "description": "d"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	id := app.createPost(t, alice, "Learning Go")
	path := "/api/posts/" + itoa(id)

	w, resp := app.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Learning Go", resp.(map[string]any)["title"])

	// いいねは1ユーザー1回
	w, resp = app.do(t, http.MethodPost, path+"/like", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp.(map[string]any)["like_count"])
	w, _ = app.do(t, http.MethodPost, path+"/like", bob, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, resp = app.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, float64(1), resp.(map[string]any)["like_count"])

	// 作成者以外は更新・削除できない
	w, _ = app.do(t, http.MethodPut, path, bob, gin.H{"title": "hijack", "description": "d"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = app.do(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// コメント
	_, resp = app.do(t, http.MethodGet, path+"/comments", "", nil)
	assert.Equal(t, map[string]any{"message": "No comments found for this post"}, resp)
	w, resp = app.do(t, http.MethodPost, path+"/comments", bob, gin.H{"text": "great post"})
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := uint(resp.(map[string]any)["id"].(float64))
	_, resp = app.do(t, http.MethodGet, path+"/comments", "", nil)
	require.Len(t, resp, 1)

	// 検索
	_, resp = app.do(t, http.MethodGet, "/api/posts/search?query=learning", "", nil)
	require.Len(t, resp, 1)
	_, resp = app.do(t, http.MethodGet, "/api/posts/search?query=rust", "", nil)
	assert.Equal(t, map[string]any{"message": "No match found"}, resp)

	// 投稿の削除はコメントといいねも消す
	w, _ = app.do(t, http.MethodDelete, path, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = app.do(t, http.MethodDelete, path+"/comments/"+itoa(commentID), bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_FilterPagination(t *testing.T) {
	t.Parallel()

	app := setupApp(t)
	token := app.signup(t, "dave@example.com", "password123")

	var created []uint
	for i := 0; i < 12; i++ {
		created = append(created, app.createPost(t, token, "post "+itoa(uint(i+1))))
	}

	w, resp := app.do(t, http.MethodGet, "/api/posts/filter?page=2&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := resp.([]any)
	require.Len(t, posts, 5)
	for i, p := range posts {
		assert.Equal(t, float64(created[5+i]), p.(map[string]any)["id"])
	}

	w, resp = app.do(t, http.MethodGet, "/api/posts/mostliked?limit=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp, 3)
}

func TestRouter_ImageUpload(t *testing.T) {
	t.Parallel()

	app := setupApp(t)
	token := app.signup(t, "erin@example.com", "password123")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "sunset"))
	require.NoError(t, mw.WriteField("description", "a photo"))
	fw, err := mw.CreateFormFile("image", "sunset.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var post map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	ref, _ := post["image_url"].(string)
	require.NotEmpty(t, ref)

	// 保存した画像は静的ルートで配信される
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, ref, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fake png", w.Body.String())
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}

func TestRouter_CORS(t *testing.T) {
	t.Parallel()

	app := setupApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig(t *testing.T) {
	t.Parallel()

	cfg := corsConfig([]string{"https://app.example.com"})

	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowOrigins)
	assert.True(t, cfg.AllowCredentials)
	assert.Contains(t, cfg.AllowHeaders, "Authorization")
	assert.NoError(t, cfg.Validate())
}
