package utils

import (
	"os"
	"path/filepath"
)

// HomeEnv 指定配置根目录的环境变量
const HomeEnv = "BACKOFFICE_HOME"

// GetAbsPath 将相对路径解析为绝对路径
// 优先级：BACKOFFICE_HOME > 当前工作目录向上查找 go.mod 所在目录 > 当前工作目录
func GetAbsPath(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, relPath)
	}

	wd, err := os.Getwd()
	if err != nil {
		return relPath
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, relPath)
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return filepath.Join(wd, relPath)
}
