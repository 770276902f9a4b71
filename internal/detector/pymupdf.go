package detector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/python"
)

// pymupdf4llmScript 从 stdin 读取 PDF，向 stdout 输出 to_json 结果
const pymupdf4llmScript = `import sys

import pymupdf
import pymupdf.layout  # noqa: F401  enables the layout analysis backend
import pymupdf4llm


def main():
    data = sys.stdin.buffer.read()
    dpi = int(sys.argv[1]) if len(sys.argv) > 1 else 300
    doc = pymupdf.open(stream=data, filetype="pdf")
    try:
        out = pymupdf4llm.to_json(doc, image_dpi=dpi, image_format="png", image_path="")
    finally:
        doc.close()
    sys.stdout.write(out)
    sys.stdout.flush()


if __name__ == "__main__":
    main()
`

// RequiredPackages 模块名 -> pip 包名
var RequiredPackages = map[string]string{
	"pymupdf":     "pymupdf",
	"pymupdf4llm": "pymupdf4llm",
}

// PyMuPDF 调用 pymupdf4llm 做版面检测
type PyMuPDF struct {
	Env      *python.Env
	Timeout  time.Duration
	ImageDPI int
	Log      logger.Logger
}

func (d *PyMuPDF) Detect(ctx context.Context, src []byte) (*layout.Document, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	log := d.Log
	if log == nil {
		log = logger.GetLogger()
	}

	start := time.Now()
	out, err := d.Env.RunScript(ctx, "detect_layout.py", pymupdf4llmScript, src, strconv.Itoa(d.ImageDPI))
	if err != nil {
		return nil, fmt.Errorf("layout detection: %w", err)
	}
	doc, err := layout.Decode(out)
	if err != nil {
		return nil, err
	}

	log.Info("layout detected",
		logger.Int("pages", len(doc.Pages)),
		logger.Duration("elapsed", time.Since(start)))
	return doc, nil
}
