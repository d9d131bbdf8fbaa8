package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/ipixel-server/internal/config"
	"github.com/taoyao-code/ipixel-server/internal/metrics"
	"github.com/taoyao-code/ipixel-server/internal/outbound"
	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
	"github.com/taoyao-code/ipixel-server/internal/storage"
	"github.com/taoyao-code/ipixel-server/internal/storage/models"
	redisstorage "github.com/taoyao-code/ipixel-server/internal/storage/redis"
)

// stubRasterizer 每个字形返回 font.MinWidth 宽的全零位图
type stubRasterizer struct{}

func (stubRasterizer) Rasterize(ch rune, height int, font ipixel.FontSpec) ([]byte, int, error) {
	return make([]byte, height*((font.MinWidth+7)/8)), font.MinWidth, nil
}

// MockCommandRepo 模拟指令日志存储
type MockCommandRepo struct {
	logs      []*models.CommandLog
	queued    map[string]time.Time
	recordErr error
}

func (m *MockCommandRepo) WithTx(ctx context.Context, fn func(repo storage.CommandRepo) error) error {
	return fn(m)
}

func (m *MockCommandRepo) RecordCommand(_ context.Context, log *models.CommandLog) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockCommandRepo) MarkQueued(_ context.Context, id string, at time.Time) error {
	if m.queued == nil {
		m.queued = map[string]time.Time{}
	}
	m.queued[id] = at
	return nil
}

func (m *MockCommandRepo) GetCommand(_ context.Context, id string) (*models.CommandLog, error) {
	for _, l := range m.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *MockCommandRepo) ListCommands(_ context.Context, _ storage.CommandFilter) ([]models.CommandLog, error) {
	out := make([]models.CommandLog, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, *l)
	}
	return out, nil
}

// MockEnqueuer 模拟出站队列
type MockEnqueuer struct {
	msgs []*redisstorage.OutboundMessage
	err  error
}

func (m *MockEnqueuer) Enqueue(_ context.Context, msg *redisstorage.OutboundMessage) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func newTestService(t *testing.T, defaults config.EncoderConfig, opts ...CommandServiceOption) (*CommandService, *metrics.AppMetrics) {
	t.Helper()
	m := metrics.NewAppMetrics(prometheus.NewRegistry())
	enc := ipixel.NewEncoder(stubRasterizer{})
	opts = append([]CommandServiceOption{WithMetrics(m)}, opts...)
	return NewCommandService(enc, defaults, opts...), m
}

func boolPtr(v bool) *bool { return &v }

func TestEncode_SimpleCommands(t *testing.T) {
	svc, m := newTestService(t, config.EncoderConfig{})

	tests := []struct {
		req      Request
		want     ipixel.Command
		priority int
	}{
		{ClearRequest{}, ipixel.Clear(), outbound.PriorityEmergency},
		{LEDRequest{On: true}, ipixel.LedOn(), outbound.PriorityEmergency},
		{LEDRequest{On: false}, ipixel.LedOff(), outbound.PriorityEmergency},
		{FunRequest{Enable: true}, ipixel.SetFunMode(true), outbound.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.req.CommandName(), func(t *testing.T) {
			res, err := svc.Encode(context.Background(), Target{}, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Command)
			assert.Equal(t, tt.priority, res.Priority)
			assert.NotEmpty(t, res.ID)
			assert.False(t, res.Queued)
		})
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EncodeTotal.WithLabelValues(CmdLED, "ok")))
}

func TestEncode_ValidationError(t *testing.T) {
	svc, m := newTestService(t, config.EncoderConfig{})

	_, err := svc.Encode(context.Background(), Target{}, BrightnessRequest{Level: 101})
	require.Error(t, err)
	assert.ErrorIs(t, err, ipixel.ErrOutOfRange)
	assert.Contains(t, err.Error(), CmdBrightness)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EncodeTotal.WithLabelValues(CmdBrightness, "error")))
}

func TestEncode_RecordsAndEnqueues(t *testing.T) {
	repo := &MockCommandRepo{}
	queue := &MockEnqueuer{}
	svc, m := newTestService(t, config.EncoderConfig{Enqueue: true}, WithCommandRepo(repo), WithEnqueuer(queue))

	res, err := svc.Encode(context.Background(), Target{Device: " AA:BB "}, BrightnessRequest{Level: 50})
	require.NoError(t, err)
	assert.True(t, res.Queued)

	require.Len(t, repo.logs, 1)
	log := repo.logs[0]
	assert.Equal(t, res.ID, log.ID)
	assert.Equal(t, CmdBrightness, log.Name)
	assert.Equal(t, res.Hex(), log.Hex)
	require.NotNil(t, log.Device)
	assert.Equal(t, "AA:BB", *log.Device)
	assert.Contains(t, repo.queued, res.ID)

	require.Len(t, queue.msgs, 1)
	msg := queue.msgs[0]
	assert.Equal(t, res.ID, msg.ID)
	assert.Equal(t, "AA:BB", msg.Device)
	assert.Equal(t, outbound.PriorityHigh, msg.Priority)
	assert.Equal(t, []byte(res.Command), msg.Command)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnqueueTotal.WithLabelValues("ok")))
}

func TestEncode_EnqueueOverride(t *testing.T) {
	queue := &MockEnqueuer{}
	svc, _ := newTestService(t, config.EncoderConfig{Enqueue: true}, WithEnqueuer(queue))

	res, err := svc.Encode(context.Background(), Target{Enqueue: boolPtr(false)}, ClearRequest{})
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.Empty(t, queue.msgs)

	svc2, _ := newTestService(t, config.EncoderConfig{}, WithEnqueuer(queue))
	res, err = svc2.Encode(context.Background(), Target{Enqueue: boolPtr(true)}, ClearRequest{})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Len(t, queue.msgs, 1)
}

func TestEncode_EnqueueFailure(t *testing.T) {
	queue := &MockEnqueuer{err: errors.New("redis down")}
	svc, m := newTestService(t, config.EncoderConfig{Enqueue: true}, WithEnqueuer(queue))

	res, err := svc.Encode(context.Background(), Target{}, ClearRequest{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, ipixel.Clear(), res.Command)
	assert.False(t, res.Queued)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnqueueTotal.WithLabelValues("error")))
}

func TestEncode_RecordFailureDoesNotFail(t *testing.T) {
	repo := &MockCommandRepo{recordErr: errors.New("db down")}
	svc, m := newTestService(t, config.EncoderConfig{}, WithCommandRepo(repo))

	res, err := svc.Encode(context.Background(), Target{}, ClearRequest{})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandLogFailure))
}

func TestEncode_TextPacketItems(t *testing.T) {
	svc, m := newTestService(t, config.EncoderConfig{})

	req := TextPacketRequest{
		Options: svc.PacketDefaults(""),
		Items: []PacketItem{
			{Kind: ItemText, Text: "A"},
			{Kind: ItemBitmap, Width: 8, Height: 16, Bitmap: make([]byte, 16)},
			{Kind: ItemImage, Size: 16, Path: filepath.Join(t.TempDir(), "missing.png")},
		},
	}
	res, err := svc.Encode(context.Background(), Target{}, req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedImages)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedImages))
	assert.Equal(t, outbound.PriorityNormal, res.Priority)

	// 信封 15 字节 + 属性 14 字节 + 两个 16x8 固定位图帧
	assert.Len(t, res.Command, 15+14+2*(4+16))
}

func TestEncode_TextPacketMixedHeights(t *testing.T) {
	svc, _ := newTestService(t, config.EncoderConfig{})

	req := TextPacketRequest{
		Options: svc.PacketDefaults(""),
		Items: []PacketItem{
			{Kind: ItemText, Text: "A"},
			{Kind: ItemText, Text: "B", Size: 32},
		},
	}
	res, err := svc.Encode(context.Background(), Target{}, req)
	require.NoError(t, err)
	// 16x8 固定位图帧 + 32x16 固定位图帧
	assert.Len(t, res.Command, 15+14+(4+16)+(4+64))

	req.Items = []PacketItem{{Kind: ItemText, Text: "C", Size: 20}}
	_, err = svc.Encode(context.Background(), Target{}, req)
	assert.ErrorIs(t, err, ipixel.ErrNotAllowed)
}

func TestEncode_TextPacketWholeText(t *testing.T) {
	svc, _ := newTestService(t, config.EncoderConfig{})

	res, err := svc.Encode(context.Background(), Target{}, TextPacketRequest{Options: svc.PacketDefaults("AB")})
	require.NoError(t, err)
	assert.Len(t, res.Command, 15+14+2*(4+16))

	_, err = svc.Encode(context.Background(), Target{}, TextPacketRequest{Options: svc.PacketDefaults("")})
	assert.ErrorIs(t, err, ipixel.ErrOutOfRange)
}

func TestEncode_TextPacketItemErrors(t *testing.T) {
	svc, _ := newTestService(t, config.EncoderConfig{})

	tests := []struct {
		name string
		item PacketItem
		want error
	}{
		{"unknown kind", PacketItem{Kind: "video"}, ipixel.ErrNotAllowed},
		{"bad image size", PacketItem{Kind: ItemImage, Size: 17, Path: "x.png"}, ipixel.ErrNotAllowed},
		{"bad image data", PacketItem{Kind: ItemImage, Size: 16, Data: []byte("nope")}, ipixel.ErrInvalidInput},
		{"bitmap mismatch", PacketItem{Kind: ItemBitmap, Width: 8, Height: 16, Bitmap: []byte{1}}, ipixel.ErrBitmapSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := TextPacketRequest{Options: svc.PacketDefaults(""), Items: []PacketItem{tt.item}}
			_, err := svc.Encode(context.Background(), Target{}, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncode_MediaUpload(t *testing.T) {
	svc, _ := newTestService(t, config.EncoderConfig{})

	res, err := svc.Encode(context.Background(), Target{}, MediaRequest{Data: []byte{0x01, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, CmdPNG, res.Name)
	assert.Len(t, res.Command, 17)
	assert.True(t, bytes.HasSuffix(res.Command, []byte{0x01, 0x02}))

	res, err = svc.Encode(context.Background(), Target{}, MediaRequest{Animated: true, Source: "0102"})
	require.NoError(t, err)
	assert.Equal(t, CmdGIF, res.Name)
	assert.Equal(t, outbound.PriorityLow, res.Priority)
}

func TestDefaults_FromConfig(t *testing.T) {
	svc, _ := newTestService(t, config.EncoderConfig{MatrixHeight: 32, SaveSlot: 3, Speed: 50, Font: "gomono", LEDType: 1})

	text := svc.TextDefaults("hi")
	assert.Equal(t, 32, text.MatrixHeight)
	assert.Equal(t, 3, text.SaveSlot)
	assert.Equal(t, 50, text.Speed)
	assert.Equal(t, "gomono", text.Font)

	pkt := svc.PacketDefaults("hi")
	assert.Equal(t, 32, pkt.MatrixHeight)
	assert.Equal(t, ipixel.SaveSlotScratch, pkt.SaveSlot)
	assert.Equal(t, 1, pkt.LEDType)
	assert.Equal(t, 50, pkt.Speed)
}

func TestHistory_Disabled(t *testing.T) {
	svc, _ := newTestService(t, config.EncoderConfig{})

	_, err := svc.ListCommands(context.Background(), storage.CommandFilter{})
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.GetCommand(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestEncode_OutboundLimits(t *testing.T) {
	queue := &MockEnqueuer{}
	svc, _ := newTestService(t, config.EncoderConfig{Enqueue: true}, WithEnqueuer(queue), WithOutboundLimits(5, 1500))

	_, err := svc.Encode(context.Background(), Target{}, ClearRequest{})
	require.NoError(t, err)
	require.Len(t, queue.msgs, 1)
	assert.Equal(t, 5, queue.msgs[0].MaxRetry)
	assert.Equal(t, 1500, queue.msgs[0].Timeout)
}
