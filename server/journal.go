package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"citydrive/protocol"
)

// JournalEntry 每个车流 Tick 一行
type JournalEntry struct {
	Tick   int64                   `json:"tick"`
	TS     time.Time               `json:"ts"`
	Actors []protocol.TrafficState `json:"actors"`
}

// Journal 车流 Tick 的诊断记录：每小时一个 traffic-YYYY-MM-DD-HH.jsonl.zst，只写不读回
type Journal struct {
	dir string
	now func() time.Time

	mu  sync.Mutex
	seg *segment
}

// segment 一个小时的输出文件：文件 -> zstd -> 缓冲 -> JSON 行
type segment struct {
	hour string
	file *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer
	enc  *json.Encoder
}

func NewJournal(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

// WriteTick 追加一个 Tick；跨小时时先封口旧文件
func (j *Journal) WriteTick(snap Snapshot) error {
	ts := j.now().UTC()
	hour := ts.Format("2006-01-02-15")

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.seg == nil || j.seg.hour != hour {
		if err := j.seg.close(); err != nil {
			Log.Warnf("journal: closing segment: %v", err)
		}
		seg, err := openSegment(j.dir, hour)
		if err != nil {
			j.seg = nil
			return err
		}
		j.seg = seg
	}
	return j.seg.enc.Encode(JournalEntry{Tick: snap.Tick, TS: ts, Actors: snap.Actors})
}

// Close 刷新并关闭当前文件
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.seg.close()
	j.seg = nil
	return err
}

func openSegment(dir, hour string) (*segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	name := filepath.Join(dir, "traffic-"+hour+".jsonl.zst")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("journal zstd: %w", err)
	}
	bw := bufio.NewWriterSize(zw, 64<<10)
	return &segment{hour: hour, file: f, zw: zw, bw: bw, enc: json.NewEncoder(bw)}, nil
}

// close 顺序：缓冲 -> zstd 帧尾 -> 文件；nil 安全
func (s *segment) close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.bw.Flush(), s.zw.Close(), s.file.Close())
}
