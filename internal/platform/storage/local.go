// Package storage は投稿画像の保存先を提供します。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	EnvKeyImageDir = "IMAGE_DIR"
	// URLPrefix は保存した画像を配信するパスです。
	URLPrefix = "/images"

	defaultImageDir = "./images"
)

// ErrUnsupportedImage は画像として受け付けない拡張子の場合に返されます。
var ErrUnsupportedImage = errors.New("unsupported image type")

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// DirFromEnv は IMAGE_DIR を返します。未設定なら ./images です。
func DirFromEnv() string {
	if v := os.Getenv(EnvKeyImageDir); v != "" {
		return v
	}
	return defaultImageDir
}

// LocalImageStore はローカルディスクに画像を保存します。
type LocalImageStore struct {
	dir string
}

// NewLocalImageStore はディレクトリを作成して LocalImageStore を返します。
func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", dir, err)
	}
	return &LocalImageStore{dir: dir}, nil
}

// Dir は保存先ディレクトリを返します。
func (s *LocalImageStore) Dir() string { return s.dir }

// Save は r の内容を一意な名前で保存し、/images/<uuid>-<slug><ext> 形式の参照を返します。
func (s *LocalImageStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}

	name := uuid.NewString()
	if base := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))); base != "" {
		name += "-" + base
	}
	name += ext

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close image: %w", err)
	}
	return path.Join(URLPrefix, name), nil
}

// Remove は Save が返した参照のファイルを削除します。存在しない場合は何もしません。
func (s *LocalImageStore) Remove(_ context.Context, ref string) error {
	name := path.Base(ref)
	if !strings.HasPrefix(ref, URLPrefix+"/") || name == "." || name == "/" {
		return fmt.Errorf("not an image reference: %q", ref)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
