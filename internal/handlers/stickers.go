package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StickerURLPrefix is where sticker image files are served from.
const StickerURLPrefix = "/stickers"

var stickerExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

type Sticker struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type StickerPack struct {
	Name     string    `json:"name"`
	Stickers []Sticker `json:"stickers"`
}

// StickerHandler lists sticker packs. A pack is a sub-directory of dir; its
// image files are the stickers.
type StickerHandler struct {
	dir string
	log *zap.Logger
}

func NewStickerHandler(dir string, log *zap.Logger) *StickerHandler {
	return &StickerHandler{dir: dir, log: log.Named("stickers")}
}

// Register mounts the catalog on api and the image files on router.
func (h *StickerHandler) Register(router *gin.Engine, api *gin.RouterGroup) {
	router.Static(StickerURLPrefix, h.dir)
	api.GET("/stickers/packs", h.ListPacks)
	api.GET("/stickers/packs/:pack_name", h.GetPack)
}

func (h *StickerHandler) ListPacks(c *gin.Context) {
	entries, err := os.ReadDir(h.dir)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusOK, gin.H{"packs": []StickerPack{}})
		return
	}
	if err != nil {
		h.log.Error("read sticker dir failed", zap.String("dir", h.dir), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sticker packs"})
		return
	}

	packs := make([]StickerPack, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stickers, err := h.readPack(entry.Name())
		if err != nil {
			h.log.Error("read sticker pack failed", zap.String("pack", entry.Name()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sticker packs"})
			return
		}
		packs = append(packs, StickerPack{Name: entry.Name(), Stickers: stickers})
	}
	c.JSON(http.StatusOK, gin.H{"packs": packs})
}

func (h *StickerHandler) GetPack(c *gin.Context) {
	name := c.Param("pack_name")
	if !validPackName(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "sticker pack not found"})
		return
	}

	info, err := os.Stat(filepath.Join(h.dir, name))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "sticker pack not found"})
		return
	}

	stickers, err := h.readPack(name)
	if err != nil {
		h.log.Error("read sticker pack failed", zap.String("pack", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stickers"})
		return
	}
	c.JSON(http.StatusOK, StickerPack{Name: name, Stickers: stickers})
}

func (h *StickerHandler) readPack(name string) ([]Sticker, error) {
	entries, err := os.ReadDir(filepath.Join(h.dir, name))
	if err != nil {
		return nil, err
	}
	stickers := make([]Sticker, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !stickerExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		stickers = append(stickers, Sticker{
			Name: entry.Name(),
			URL:  path.Join(StickerURLPrefix, name, entry.Name()),
		})
	}
	return stickers, nil
}

// pack names come from a path segment; keep lookups inside the sticker dir
func validPackName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
