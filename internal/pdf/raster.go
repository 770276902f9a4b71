package pdf

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"pdf-layout-translator/internal/logger"
)

// PopplerRasterizer 使用 pdftoppm 栅格化，zoom 1.0 对应 72dpi
type PopplerRasterizer struct {
	Path    string
	TempDir string
}

// NewPopplerRasterizer path 为空时从 PATH 查找 pdftoppm
func NewPopplerRasterizer(path string) *PopplerRasterizer {
	if path == "" {
		path = "pdftoppm"
	}
	return &PopplerRasterizer{Path: path}
}

// Available 检查 pdftoppm 是否可执行
func (r *PopplerRasterizer) Available() bool {
	_, err := exec.LookPath(r.Path)
	return err == nil
}

// Rasterize 一次调用 pdftoppm 输出全部页，再按页序逐张解码交给 visit
func (r *PopplerRasterizer) Rasterize(ctx context.Context, src []byte, zoom float64, visit PageVisitor) error {
	dir, err := os.MkdirTemp(r.TempDir, "raster_*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(srcPath, src, 0600); err != nil {
		return fmt.Errorf("failed to write source pdf: %w", err)
	}

	dpi := 72 * zoom
	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, r.Path,
		"-png",
		"-r", strconv.FormatFloat(dpi, 'f', -1, 64),
		srcPath,
		prefix,
	)
	prepareCmd(cmd)

	logger.Debug("rasterizing pdf", logger.Float64("dpi", dpi), logger.Int("bytes", len(src)))
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("pdftoppm failed: %w, output: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := listPageImages(dir)
	if err != nil {
		return err
	}
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := loadPNG(p)
		if err != nil {
			return fmt.Errorf("failed to load page %d image: %w", i+1, err)
		}
		if err := visit(i, img); err != nil {
			return err
		}
		os.Remove(p)
	}
	return nil
}

// listPageImages 按页号排序 page-1.png / page-01.png ...
func listPageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("failed to list page images: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	num := func(p string) int {
		s := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "page-"), ".png")
		n, _ := strconv.Atoi(s)
		return n
	}
	sort.Slice(matches, func(i, j int) bool { return num(matches[i]) < num(matches[j]) })
	return matches, nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
