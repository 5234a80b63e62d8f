package views

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var staticFS embed.FS

// Static 页面脚本与样式
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
