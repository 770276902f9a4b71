// Package python 通过本地 Python 解释器运行内嵌脚本。
// 版面检测依赖 pymupdf4llm，只能在 Python 侧完成，这里负责进程管理与输出收集。
package python

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"pdf-layout-translator/internal/logger"
)

// Env 一个 Python 解释器
type Env struct {
	PythonPath string
	// WorkDir 脚本临时文件所在目录，为空时使用系统临时目录
	WorkDir string

	mu        sync.Mutex
	installed map[string]bool
}

// New 创建 Env，pythonPath 为空时使用 python3
func New(pythonPath string) *Env {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	return &Env{PythonPath: pythonPath, installed: make(map[string]bool)}
}

// ScriptError 脚本非零退出，Stderr 保留最后一段输出用于排查
type ScriptError struct {
	Script string
	Stderr string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("python script %s failed: %v: %s", e.Script, e.Err, tail(e.Stderr, 800))
}

func (e *ScriptError) Unwrap() error { return e.Err }

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// RunScript 将脚本源码写入临时文件后执行，stdin 作为标准输入，返回标准输出
func (e *Env) RunScript(ctx context.Context, name, source string, stdin []byte, args ...string) ([]byte, error) {
	f, err := os.CreateTemp(e.WorkDir, "pyscript_*_"+filepath.Base(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create script file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(source); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close script file: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.PythonPath, append([]string{f.Name()}, args...)...)
	prepareCmd(cmd)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("running python script",
		logger.String("script", name),
		logger.Int("stdinBytes", len(stdin)))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("python script %s: %w", name, ctx.Err())
		}
		return nil, &ScriptError{Script: name, Stderr: stderr.String(), Err: err}
	}
	if stderr.Len() > 0 {
		logger.Debug("python script stderr", logger.String("script", name), logger.String("stderr", tail(stderr.String(), 400)))
	}
	return stdout.Bytes(), nil
}

// HasModule 检查解释器能否 import 指定模块，结果会被缓存
func (e *Env) HasModule(ctx context.Context, module string) bool {
	e.mu.Lock()
	if ok, seen := e.installed[module]; seen {
		e.mu.Unlock()
		return ok
	}
	e.mu.Unlock()

	cmd := exec.CommandContext(ctx, e.PythonPath, "-c", "import "+module)
	prepareCmd(cmd)
	ok := cmd.Run() == nil

	e.mu.Lock()
	e.installed[module] = ok
	e.mu.Unlock()
	return ok
}

// EnsurePackages 通过 pip 安装缺失的包；packages 的键为 import 名，值为 pip 包名
func (e *Env) EnsurePackages(ctx context.Context, packages map[string]string) error {
	var missing []string
	for module, pkg := range packages {
		if !e.HasModule(ctx, module) {
			missing = append(missing, pkg)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	logger.Info("installing python packages", logger.String("packages", strings.Join(missing, ",")))
	cmd := exec.CommandContext(ctx, e.PythonPath, append([]string{"-m", "pip", "install", "--quiet"}, missing...)...)
	prepareCmd(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to install packages: %s: %w", tail(string(out), 800), err)
	}

	e.mu.Lock()
	for module := range packages {
		delete(e.installed, module)
	}
	e.mu.Unlock()
	return nil
}
