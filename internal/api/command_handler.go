package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/ipixel-server/internal/service"
	"github.com/taoyao-code/ipixel-server/internal/storage"
	pgstorage "github.com/taoyao-code/ipixel-server/internal/storage/pg"
	redisstorage "github.com/taoyao-code/ipixel-server/internal/storage/redis"
)

// maxUploadBytes 上传图片的上限，与媒体指令 16 位外层长度一致
const maxUploadBytes = 0xFFFF

// CommandStatsSource 指令统计查询，*pgstorage.Repository 满足
type CommandStatsSource interface {
	CommandStats(ctx context.Context, since time.Time) ([]pgstorage.CommandStat, error)
}

// QueueStatsSource 出站队列统计，*redisstorage.OutboundQueue 满足
type QueueStatsSource interface {
	Stats(ctx context.Context) (redisstorage.QueueStats, error)
}

// CommandHandler 指令 API 处理器
type CommandHandler struct {
	svc    *service.CommandService
	stats  CommandStatsSource
	queue  QueueStatsSource
	logger *zap.Logger
}

// NewCommandHandler 创建指令处理器；stats 与 queue 可为 nil
func NewCommandHandler(svc *service.CommandService, stats CommandStatsSource, queue QueueStatsSource, logger *zap.Logger) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{svc: svc, stats: stats, queue: queue, logger: logger}
}

// CommandResponse 编码结果
type CommandResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Size          int    `json:"size"`
	Hex           string `json:"hex"`
	Priority      int    `json:"priority"`
	Queued        bool   `json:"queued"`
	SkippedImages int    `json:"skipped_images,omitempty"`
}

// Encode 返回指定指令的编码处理函数
// @Summary 编码一条 iPixel 指令
// @Description 校验参数并返回指令字节（十六进制），可选写入指令日志与出站队列
// @Tags 指令
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "指令名"
// @Param body body CommandBody true "指令参数"
// @Success 200 {object} StandardResponse{data=CommandResponse}
// @Failure 400 {object} StandardResponse "参数错误"
// @Failure 422 {object} StandardResponse "资源不可读"
// @Router /api/v1/commands/{name} [post]
func (h *CommandHandler) Encode(name string) gin.HandlerFunc {
	build, ok := builders[name]
	if !ok {
		panic(fmt.Sprintf("api: no request builder for command %q", name))
	}
	return func(c *gin.Context) {
		var body CommandBody
		if err := h.bindBody(c, &body); err != nil {
			badRequest(c, err.Error())
			return
		}

		enqueue, err := optBool(body.Enqueue, "enqueue")
		if err != nil {
			fail(c, err)
			return
		}
		req, err := build(h.svc, &body)
		if err != nil {
			fail(c, err)
			return
		}

		res, err := h.svc.Encode(c.Request.Context(), service.Target{Device: body.Device, Enqueue: enqueue}, req)
		if err != nil && res == nil {
			fail(c, err)
			return
		}
		if err != nil {
			// 编码成功但入队失败，仍返回指令内容
			h.logger.Warn("command encoded but not queued", zap.String("command", name), zap.Error(err))
		}
		success(c, CommandResponse{
			ID:            res.ID,
			Name:          res.Name,
			Size:          len(res.Command),
			Hex:           res.Hex(),
			Priority:      res.Priority,
			Queued:        res.Queued,
			SkippedImages: res.SkippedImages,
		})
	}
}

// bindBody 支持 JSON 与 multipart（png/gif 上传的 file 字段）
func (h *CommandHandler) bindBody(c *gin.Context, body *CommandBody) error {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if c.Request.ContentLength == 0 {
			return nil
		}
		return c.ShouldBindJSON(body)
	}

	body.Device = c.PostForm("device")
	if v, ok := c.GetPostForm("enqueue"); ok {
		body.Enqueue = v
	}
	body.Source = c.PostForm("source")
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil
		}
		return err
	}
	if fh.Size > maxUploadBytes {
		return fmt.Errorf("file too large: %d bytes", fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	body.Data, err = io.ReadAll(f)
	return err
}

// ListCommands 查询指令日志
// @Summary 查询指令日志
// @Tags 指令
// @Produce json
// @Security ApiKeyAuth
// @Param name query string false "指令名"
// @Param device query string false "设备地址"
// @Param since query string false "起始时间(RFC3339)"
// @Param limit query int false "每页数量(默认50)"
// @Param offset query int false "偏移量(默认0)"
// @Success 200 {object} StandardResponse
// @Router /api/v1/commands [get]
func (h *CommandHandler) ListCommands(c *gin.Context) {
	f := storage.CommandFilter{
		Name:   c.Query("name"),
		Device: c.Query("device"),
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "since must be RFC3339")
			return
		}
		f.Since = t
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Offset = n
		}
	}

	list, err := h.svc.ListCommands(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"commands": list, "count": len(list)})
}

// GetCommand 按 ID 查询指令日志
// @Summary 查询单条指令日志
// @Tags 指令
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "指令 ID"
// @Success 200 {object} StandardResponse
// @Failure 404 {object} StandardResponse
// @Router /api/v1/commands/{id} [get]
func (h *CommandHandler) GetCommand(c *gin.Context) {
	log, err := h.svc.GetCommand(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, log)
}

// CommandStats 按指令名聚合统计（默认最近 24 小时）
// @Summary 指令统计
// @Tags 指令
// @Produce json
// @Security ApiKeyAuth
// @Param hours query int false "统计窗口(小时)"
// @Success 200 {object} StandardResponse
// @Router /api/v1/commands/stats [get]
func (h *CommandHandler) CommandStats(c *gin.Context) {
	if h.stats == nil {
		fail(c, service.ErrHistoryDisabled)
		return
	}
	hours := 24
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "hours must be a positive integer")
			return
		}
		hours = n
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	stats, err := h.stats.CommandStats(c.Request.Context(), since)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"since": since, "stats": stats})
}

// QueueStats 出站队列统计
// @Summary 出站队列统计
// @Tags 出站队列
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StandardResponse{data=redisstorage.QueueStats}
// @Router /api/v1/queue/stats [get]
func (h *CommandHandler) QueueStats(c *gin.Context) {
	if h.queue == nil {
		respond(c, http.StatusServiceUnavailable, http.StatusServiceUnavailable, "outbound queue disabled", nil)
		return
	}
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	success(c, stats)
}

// Profiles 当前生效的字形宽度配置
// @Summary 字形宽度配置
// @Tags 指令
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StandardResponse
// @Router /api/v1/profiles [get]
func (h *CommandHandler) Profiles(c *gin.Context) {
	success(c, h.svc.Profiles())
}
